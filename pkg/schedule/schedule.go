// Package schedule evalúa el subconjunto de expresiones cron que usa el programador
// de facturas recurrentes: cinco campos (minuto hora día mes día-semana). Solo la forma
// "diaria a hora fija" (m h * * *) se resuelve a una fecha concreta; el resto de
// expresiones válidas se aceptan pero su próxima ejecución es desconocida y el
// llamador debe apoyarse en el sondeo periódico.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultTolerance ventana alrededor de la hora programada en la que ShouldRunNow es verdadero.
const DefaultTolerance = 5 * time.Minute

// field acepta *, */n, un entero, un rango a-b o una lista separada por comas de enteros/rangos.
var field = regexp.MustCompile(`^(\*|\*/\d+|\d+(-\d+)?(,\d+(-\d+)?)*)$`)

var standardParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate indica si expr es una expresión de cinco campos con sintaxis soportada
// y valores dentro de rango (minuto 0-59, hora 0-23, día 1-31, mes 1-12, día-semana 0-6).
func Validate(expr string) bool {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return false
	}
	for _, p := range parts {
		if !field.MatchString(p) {
			return false
		}
	}
	_, err := standardParser.Parse(strings.Join(parts, " "))
	return err == nil
}

// DailyTime hora fija de una expresión diaria.
type DailyTime struct {
	Hour   int
	Minute int
}

// String formato HH:MM.
func (d DailyTime) String() string {
	return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute)
}

// ParseDaily devuelve la hora fija si expr tiene la forma "m h * * *" con m y h enteros.
func ParseDaily(expr string) (DailyTime, bool) {
	if !Validate(expr) {
		return DailyTime{}, false
	}
	parts := strings.Fields(expr)
	if parts[2] != "*" || parts[3] != "*" || parts[4] != "*" {
		return DailyTime{}, false
	}
	minute, err := strconv.Atoi(parts[0])
	if err != nil {
		return DailyTime{}, false
	}
	hour, err := strconv.Atoi(parts[1])
	if err != nil {
		return DailyTime{}, false
	}
	return DailyTime{Hour: hour, Minute: minute}, true
}

// Describe etiqueta legible de la expresión.
func Describe(expr string) string {
	if !Validate(expr) {
		return "Invalid schedule"
	}
	if daily, ok := ParseDaily(expr); ok {
		return "Daily at " + daily.String()
	}
	return "Custom: " + expr
}

// Evaluator calcula ejecuciones en una zona horaria concreta.
type Evaluator struct {
	loc       *time.Location
	tolerance time.Duration
}

// NewEvaluator construye un evaluador. timezone vacío = UTC; tolerance <= 0 usa DefaultTolerance.
func NewEvaluator(timezone string, tolerance time.Duration) (*Evaluator, error) {
	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("zona horaria %q: %w", timezone, err)
		}
		loc = l
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Evaluator{loc: loc, tolerance: tolerance}, nil
}

// Location zona horaria del evaluador.
func (e *Evaluator) Location() *time.Location { return e.loc }

// Tolerance ventana de ShouldRunNow.
func (e *Evaluator) Tolerance() time.Duration { return e.tolerance }

// NextExecutionTime próxima ocurrencia estrictamente posterior a from.
// El segundo valor es false cuando la expresión no es diaria a hora fija (desconocido, no error).
func (e *Evaluator) NextExecutionTime(expr string, from time.Time) (time.Time, bool) {
	daily, ok := ParseDaily(expr)
	if !ok {
		return time.Time{}, false
	}
	local := from.In(e.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), daily.Hour, daily.Minute, 0, 0, e.loc)
	if !next.After(from) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, daily.Hour, daily.Minute, 0, 0, e.loc)
	}
	return next, true
}

// ShouldRunNow es verdadero cuando now cae dentro de la ventana de tolerancia de la
// próxima ejecución calculada desde lastRun (época Unix si lastRun es cero).
func (e *Evaluator) ShouldRunNow(expr string, lastRun, now time.Time) bool {
	if lastRun.IsZero() {
		lastRun = time.Unix(0, 0)
	}
	next, ok := e.NextExecutionTime(expr, lastRun)
	if !ok {
		return false
	}
	diff := now.Sub(next)
	if diff < 0 {
		diff = -diff
	}
	return diff <= e.tolerance
}

// Missed es verdadero cuando la ejecución calculada desde lastRun ya quedó atrás
// (now superó next + tolerancia). Permite recuperar ejecuciones que el sondeo no alcanzó.
func (e *Evaluator) Missed(expr string, lastRun, now time.Time) bool {
	if lastRun.IsZero() {
		return false
	}
	next, ok := e.NextExecutionTime(expr, lastRun)
	if !ok {
		return false
	}
	return now.After(next.Add(e.tolerance))
}
