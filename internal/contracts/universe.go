package contracts

import (
	"slices"
	"time"
)

// Universe represents the tradable securities for one rebalance date
// ⭐ SSOT: Universe Provider → Factor Engine 전달
type Universe struct {
	Date       time.Time         `json:"date"`
	Securities []string          `json:"securities"`
	Excluded   map[string]string `json:"excluded,omitempty"` // symbol: reason
}

// Contains checks if a symbol is in the universe
func (u *Universe) Contains(symbol string) bool {
	return slices.Contains(u.Securities, symbol)
}

// Count returns the number of tradable securities
func (u *Universe) Count() int {
	return len(u.Securities)
}
