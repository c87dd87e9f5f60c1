package recurring_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
	"github.com/jhoicas/invorya-gst/internal/domain/recurring"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextDate(t *testing.T) {
	cases := []struct {
		name      string
		current   time.Time
		frequency entity.Frequency
		interval  int
		want      time.Time
	}{
		{"semanal", date(2024, 1, 1), entity.FrequencyWeekly, 1, date(2024, 1, 8)},
		{"cada dos semanas", date(2024, 1, 29), entity.FrequencyWeekly, 2, date(2024, 2, 12)},
		{"mensual", date(2024, 1, 15), entity.FrequencyMonthly, 1, date(2024, 2, 15)},
		{"mensual fin de mes bisiesto", date(2024, 1, 31), entity.FrequencyMonthly, 1, date(2024, 2, 29)},
		{"mensual fin de mes", date(2023, 1, 31), entity.FrequencyMonthly, 1, date(2023, 2, 28)},
		{"mensual cruza año", date(2024, 11, 30), entity.FrequencyMonthly, 3, date(2025, 2, 28)},
		{"trimestral", date(2024, 1, 1), entity.FrequencyQuarterly, 1, date(2024, 4, 1)},
		{"trimestral x2", date(2024, 8, 31), entity.FrequencyQuarterly, 2, date(2025, 2, 28)},
		{"anual", date(2024, 3, 1), entity.FrequencyYearly, 1, date(2025, 3, 1)},
		{"anual 29 feb", date(2024, 2, 29), entity.FrequencyYearly, 1, date(2025, 2, 28)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := recurring.NextDate(tc.current, tc.frequency, tc.interval)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "esperado %s, obtenido %s", tc.want, got)
		})
	}
}

func TestNextDate_PreservaHora(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	cur := time.Date(2024, 1, 10, 9, 30, 0, 0, ist)
	got, err := recurring.NextDate(cur, entity.FrequencyMonthly, 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 10, 9, 30, 0, 0, ist), got)
}

func TestNextDate_IntervaloInvalido(t *testing.T) {
	for _, interval := range []int{0, -1} {
		_, err := recurring.NextDate(date(2024, 1, 1), entity.FrequencyMonthly, interval)
		assert.ErrorIs(t, err, domain.ErrInvalidInterval)
	}
}

func TestNextDate_FrecuenciaInvalida(t *testing.T) {
	_, err := recurring.NextDate(date(2024, 1, 1), entity.Frequency("daily"), 1)
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)
}

// Aplicar dos veces +1 mes equivale a +2 meses para días que existen en todos los meses.
func TestNextDate_ComposicionMensual(t *testing.T) {
	start := date(2023, 1, 1)
	for i := 0; i < 365; i++ {
		d := start.AddDate(0, 0, i)
		if d.Day() > 28 {
			continue
		}
		once, err := recurring.NextDate(d, entity.FrequencyMonthly, 1)
		require.NoError(t, err)
		twice, err := recurring.NextDate(once, entity.FrequencyMonthly, 1)
		require.NoError(t, err)
		direct, err := recurring.NextDate(d, entity.FrequencyMonthly, 2)
		require.NoError(t, err)
		assert.True(t, direct.Equal(twice), "d=%s", d)
	}
}
