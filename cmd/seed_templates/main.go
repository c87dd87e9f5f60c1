// seed_templates carga plantillas de facturas recurrentes desde un CSV exportado
// del sistema contable anterior.
//
// Uso: go run ./cmd/seed_templates [-latin1] [-sql ruta.sql] plantillas.csv
//
// Sin -sql inserta en la base configurada (DATABASE_URL / DB_*). Con -sql escribe un
// script de inserción en la ruta indicada (relativa a la raíz del módulo).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jhoicas/invorya-gst/internal/application/dto"
	"github.com/jhoicas/invorya-gst/internal/application/recurring"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
	"github.com/jhoicas/invorya-gst/internal/domain/repository"
	"github.com/jhoicas/invorya-gst/internal/infrastructure/memory"
	"github.com/jhoicas/invorya-gst/internal/infrastructure/postgres"
	"github.com/jhoicas/invorya-gst/pkg/config"
)

func main() {
	latin1 := flag.Bool("latin1", false, "el CSV está en ISO-8859-1")
	sqlOut := flag.String("sql", "", "escribir SQL en esta ruta en lugar de insertar")
	flag.Parse()

	csvPath := "plantillas.csv"
	if flag.NArg() > 0 {
		csvPath = flag.Arg(0)
	}
	f, err := os.Open(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir CSV: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	reqs, err := parseTemplates(f, *latin1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Leer CSV: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if *sqlOut != "" {
		store := memory.NewStore()
		n, err := seed(ctx, store.Templates(), store.Invoices(), reqs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Validar plantillas: %v\n", err)
			os.Exit(1)
		}
		outPath := filepath.Join(findModuleRoot(), *sqlOut)
		if err := writeSQLFile(ctx, outPath, store.Templates(), n); err != nil {
			fmt.Fprintf(os.Stderr, "Escribir SQL: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generado %s: %d plantillas\n", outPath, n)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuración: %v\n", err)
		os.Exit(1)
	}
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Conexión a PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	n, err := seed(ctx, postgres.NewRecurringTemplateRepository(pool), postgres.NewInvoiceRepository(pool), reqs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Insertar plantillas: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Insertadas %d plantillas\n", n)
}

// seed crea las plantillas con las mismas validaciones que la API.
func seed(ctx context.Context, templates repository.RecurringTemplateRepository, invoices repository.InvoiceRepository, reqs []dto.CreateTemplateRequest) (int, error) {
	uc := recurring.NewTemplateUseCase(templates, invoices, nil, nil, time.Now)
	for i, req := range reqs {
		if _, err := uc.Create(ctx, req); err != nil {
			return i, fmt.Errorf("plantilla %s: %w", req.BaseInvoice.Number, err)
		}
	}
	return len(reqs), nil
}

func writeSQLFile(ctx context.Context, path string, templates repository.RecurringTemplateRepository, n int) error {
	list, err := templates.List(ctx, n, 0)
	if err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return writeSQL(out, list)
}

func writeSQL(w io.Writer, list []*entity.RecurringTemplate) error {
	fmt.Fprintf(w, "-- Plantillas de facturas recurrentes\n")
	fmt.Fprintf(w, "-- Generado por seed_templates: %d plantillas\n\n", len(list))
	for _, t := range list {
		base, err := json.Marshal(t.BaseInvoice)
		if err != nil {
			return fmt.Errorf("plantilla %s: %w", t.ID, err)
		}
		fmt.Fprintf(w, "INSERT INTO recurring_templates (id, base_invoice, frequency, interval_count, start_date, end_date, max_occurrences, next_generation_date, is_active, created_at, updated_at)\n")
		fmt.Fprintf(w, "VALUES ('%s', '%s'::jsonb, '%s', %d, '%s', %s, %s, '%s', %t, NOW(), NOW())\n",
			t.ID, escapeSQL(string(base)), t.Config.Frequency, t.Config.Interval,
			t.Config.StartDate.Format(time.RFC3339), sqlTime(t.Config.EndDate), sqlInt(t.Config.MaxOccurrences),
			t.Config.NextGenerationDate.Format(time.RFC3339), t.Config.IsActive)
		if _, err := io.WriteString(w, "ON CONFLICT DO NOTHING;\n"); err != nil {
			return err
		}
	}
	return nil
}

func sqlTime(t *time.Time) string {
	if t == nil {
		return "NULL"
	}
	return "'" + t.Format(time.RFC3339) + "'"
}

func sqlInt(n *int) string {
	if n == nil {
		return "NULL"
	}
	return fmt.Sprintf("%d", *n)
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
