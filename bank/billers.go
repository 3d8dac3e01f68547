package bank

import (
	"fmt"
	"regexp"
	"sort"
)

// =============================================================================
// BILLER REGISTRY - Known billers and their account-number formats
// =============================================================================

// Biller is a payee with a fixed account-number format. The format is
// enforced here, before a bill payment reaches the engine.
type Biller struct {
	ID      string
	Name    string
	Pattern *regexp.Regexp
}

type BillerRegistry struct {
	billers map[string]Biller
}

// NewBillerRegistry compiles the given patterns. An invalid pattern is a
// configuration error and fails loudly.
func NewBillerRegistry(defs map[string]struct {
	Name    string
	Pattern string
}) (*BillerRegistry, error) {
	r := &BillerRegistry{billers: make(map[string]Biller)}
	for id, def := range defs {
		re, err := regexp.Compile(def.Pattern)
		if err != nil {
			return nil, fmt.Errorf("biller %s: invalid account pattern %q: %w", id, def.Pattern, err)
		}
		r.billers[id] = Biller{ID: id, Name: def.Name, Pattern: re}
	}
	return r, nil
}

// DefaultBillers returns the stock registry.
func DefaultBillers() *BillerRegistry {
	r, err := NewBillerRegistry(map[string]struct {
		Name    string
		Pattern string
	}{
		"electric": {Name: "City Electric", Pattern: `^\d{10}$`},
		"water":    {Name: "Metro Water", Pattern: `^\d{8}$`},
		"internet": {Name: "FiberNet", Pattern: `^\d{12}$`},
		"phone":    {Name: "TeleCom Mobile", Pattern: `^\d{11}$`},
	})
	if err != nil {
		panic(err) // stock patterns are constants
	}
	return r
}

// Validate resolves the biller and checks the account-number format.
func (r *BillerRegistry) Validate(billerID, accountNumber string) (Biller, error) {
	b, ok := r.billers[billerID]
	if !ok {
		return Biller{}, fmt.Errorf("%w: %s", ErrUnknownBiller, billerID)
	}
	if !b.Pattern.MatchString(accountNumber) {
		return Biller{}, fmt.Errorf("%w: biller %s", ErrInvalidAccountNumber, billerID)
	}
	return b, nil
}

// List returns all billers sorted by id.
func (r *BillerRegistry) List() []Biller {
	out := make([]Biller, 0, len(r.billers))
	for _, b := range r.billers {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
