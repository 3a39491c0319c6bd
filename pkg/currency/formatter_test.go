package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		code   string
		want   string
	}{
		{"small", 99.5, "USD", "USD 99.50"},
		{"thousands", 1234.56, "USD", "USD 1,234.56"},
		{"millions", 1234567.89, "EUR", "EUR 1,234,567.89"},
		{"whole amount", 500, "GBP", "GBP 500.00"},
		{"negative", -42.25, "USD", "-USD 42.25"},
		{"rounding carries", 999.999, "USD", "USD 1,000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.amount, tt.code))
		})
	}
}

func TestFormatMiles(t *testing.T) {
	assert.Equal(t, "57,500 miles", FormatMiles(57500))
	assert.Equal(t, "900 miles", FormatMiles(900))
	assert.Equal(t, "1,250,000 miles", FormatMiles(1250000))
}
