package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidOrderNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		valid  bool
	}{
		{
			name:   "valid number",
			number: "2410181234567",
			valid:  true,
		},
		{
			name:   "invalid checksum",
			number: "2410181234566",
			valid:  false,
		},
		{
			name:   "valid luhn but wrong length",
			number: "79927398713",
			valid:  false,
		},
		{
			name:   "contains letters",
			number: "24101812345a6",
			valid:  false,
		},
		{
			name:   "empty string",
			number: "",
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidOrderNumber(tt.number)
			if got != tt.valid {
				t.Fatalf("IsValidOrderNumber(%q) = %v, want %v", tt.number, got, tt.valid)
			}
		})
	}
}

func TestCheckDigit(t *testing.T) {
	d, err := CheckDigit("7992739871")
	require.NoError(t, err)
	assert.Equal(t, byte('3'), d)
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2024, 10, 18, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 50; i++ {
		number, err := NewOrderNumber(now)
		require.NoError(t, err)
		assert.Len(t, number, 13)
		assert.Equal(t, "241018", number[:6])
		assert.True(t, IsValidOrderNumber(number), number)
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{raw: "+7 (912) 345-67-89", want: "79123456789", ok: true},
		{raw: "89123456789", want: "79123456789", ok: true},
		{raw: "9123456789", want: "79123456789", ok: true},
		{raw: "79123456789", want: "79123456789", ok: true},
		{raw: "+1 912 345 67 89", ok: false},
		{raw: "791234567", ok: false},
		{raw: "791234567890", ok: false},
		{raw: "7912345678x", ok: false},
		{raw: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizePhone(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
