package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-01-05", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"01/05/2025", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"1/5/25", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"Jan 5, 2025", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"20250105", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"25/01/2025", time.Date(2025, 1, 25, 0, 0, 0, 0, time.UTC)},
		{"45662", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	for _, bad := range []string{"", "soon", "13/45/2025"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseDecimal(t *testing.T) {
	tests := map[string]string{
		"10":        "10",
		"$1,234.50": "1234.5",
		"(3.25)":    "-3.25",
		"15%":       "15",
		" 7.0 ":     "7",
	}
	for in, want := range tests {
		got, err := ParseDecimal(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)
	}

	_, err := ParseDecimal("abc")
	assert.Error(t, err)
	_, err = ParseDecimal("  ")
	assert.Error(t, err)
}

func TestCleanCode(t *testing.T) {
	assert.Equal(t, "1001", CleanCode(" 1001.0 "))
	assert.Equal(t, "1001.5", CleanCode("1001.5"))
	assert.Equal(t, "8-907", CleanCode("8-907"))
	assert.Equal(t, "", CleanCode("   "))
}
