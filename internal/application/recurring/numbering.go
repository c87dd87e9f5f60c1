package recurring

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jhoicas/invorya-gst/internal/domain"
)

var trailingDigits = regexp.MustCompile(`\d+$`)

// SequenceNumber numera la factura generada a partir del número base.
// El consecutivo se rellena con ceros al mismo ancho que los dígitos finales del base
// (INV-001 → INV-001-001); si el base no termina en dígitos se agrega "-N".
func SequenceNumber(base string, seq int) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", fmt.Errorf("%w: la factura base no tiene número", domain.ErrPermanent)
	}
	if seq < 1 {
		return "", fmt.Errorf("%w: consecutivo %d", domain.ErrInvalidInput, seq)
	}
	width := len(trailingDigits.FindString(base))
	if width == 0 {
		return fmt.Sprintf("%s-%d", base, seq), nil
	}
	return fmt.Sprintf("%s-%0*d", base, width, seq), nil
}
