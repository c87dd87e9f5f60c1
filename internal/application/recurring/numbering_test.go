package recurring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/invorya-gst/internal/application/recurring"
	"github.com/jhoicas/invorya-gst/internal/domain"
)

func TestSequenceNumber(t *testing.T) {
	cases := []struct {
		base string
		seq  int
		want string
	}{
		{"INV-001", 1, "INV-001-001"},
		{"INV-001", 2, "INV-001-002"},
		{"INV-001", 12, "INV-001-012"},
		{"INV-001", 1000, "INV-001-1000"},
		{"GST/2024/7", 3, "GST/2024/7-3"},
		{"INV-0042", 5, "INV-0042-0005"},
		{"INV", 1, "INV-1"},
		{"FACT-A", 10, "FACT-A-10"},
	}
	for _, tc := range cases {
		got, err := recurring.SequenceNumber(tc.base, tc.seq)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "base=%q seq=%d", tc.base, tc.seq)
	}
}

func TestSequenceNumber_BaseVacia(t *testing.T) {
	_, err := recurring.SequenceNumber("  ", 1)
	assert.ErrorIs(t, err, domain.ErrPermanent)
	assert.True(t, domain.IsPermanent(err))
}
