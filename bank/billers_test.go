package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// BILLER REGISTRY TESTS
// =============================================================================

func TestBillerValidate_StockFormats(t *testing.T) {
	// GIVEN: The stock registry
	// WHEN: Validating account numbers per biller
	// THEN: Each biller accepts only its exact digit count

	r := DefaultBillers()

	cases := []struct {
		biller string
		number string
		ok     bool
	}{
		{"electric", "1234567890", true},    // 10 digits
		{"electric", "123456789", false},    // 9
		{"water", "12345678", true},         // 8
		{"water", "123456789", false},       // 9
		{"internet", "123456789012", true},  // 12
		{"internet", "12345678901", false},  // 11
		{"phone", "12345678901", true},      // 11
		{"phone", "123456789012", false},    // 12
		{"electric", "12345abcde", false},   // non-digits
		{"electric", " 1234567890", false},  // leading space
	}
	for _, tc := range cases {
		b, err := r.Validate(tc.biller, tc.number)
		if tc.ok {
			assert.NoError(t, err, "%s %q", tc.biller, tc.number)
			assert.Equal(t, tc.biller, b.ID)
		} else {
			assert.ErrorIs(t, err, ErrInvalidAccountNumber, "%s %q", tc.biller, tc.number)
		}
	}
}

func TestBillerValidate_UnknownBiller(t *testing.T) {
	r := DefaultBillers()
	_, err := r.Validate("gas", "12345678")
	assert.ErrorIs(t, err, ErrUnknownBiller)
}

func TestBillerList_SortedByID(t *testing.T) {
	r := DefaultBillers()
	list := r.List()
	require.Len(t, list, 4)
	assert.Equal(t, "electric", list[0].ID)
	assert.Equal(t, "internet", list[1].ID)
	assert.Equal(t, "phone", list[2].ID)
	assert.Equal(t, "water", list[3].ID)
}

func TestNewBillerRegistry_BadPattern(t *testing.T) {
	_, err := NewBillerRegistry(map[string]struct {
		Name    string
		Pattern string
	}{
		"broken": {Name: "Broken", Pattern: `^\d{(`},
	})
	assert.Error(t, err)
}
