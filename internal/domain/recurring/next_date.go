package recurring

import (
	"fmt"
	"time"

	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
)

// NextDate calcula la siguiente ocurrencia a partir de current (servicio de dominio, sin efectos).
// Meses y años usan suma de calendario: si el día no existe en el mes destino se ajusta
// al último día válido (31 ene + 1 mes = 29 feb en año bisiesto).
func NextDate(current time.Time, frequency entity.Frequency, interval int) (time.Time, error) {
	if interval <= 0 {
		return time.Time{}, domain.ErrInvalidInterval
	}
	switch frequency {
	case entity.FrequencyWeekly:
		return current.AddDate(0, 0, 7*interval), nil
	case entity.FrequencyMonthly:
		return addMonthsClamped(current, interval), nil
	case entity.FrequencyQuarterly:
		return addMonthsClamped(current, 3*interval), nil
	case entity.FrequencyYearly:
		return addMonthsClamped(current, 12*interval), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, frequency)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	// Primer día del mes destino; AddDate sobre el día 1 nunca desborda.
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()).AddDate(0, months, 0)
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
