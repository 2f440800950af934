package models

import (
	"fmt"
	"math"
)

// MajorAmount is a currency amount in major units (rupees), with at most
// two decimal places.
type MajorAmount float64

// MinorAmount is a currency amount in integer minor units (paisa).
// Gateway requests and validation calls always carry this value; it is
// converted exactly once at intent construction and never re-derived.
type MinorAmount int64

// Paisa converts a major-unit amount to integer paisa. Amounts with more
// than two decimal places are rejected rather than rounded silently.
func (a MajorAmount) Paisa() (MinorAmount, error) {
	if a <= 0 {
		return 0, fmt.Errorf("amount must be a positive number, got %v", float64(a))
	}
	scaled := float64(a) * 100
	rounded := math.Round(scaled)
	if math.Abs(scaled-rounded) > 1e-6 {
		return 0, fmt.Errorf("amount %v has more than two decimal places", float64(a))
	}
	return MinorAmount(rounded), nil
}

// Major converts paisa back to the major-unit amount.
func (m MinorAmount) Major() MajorAmount {
	return MajorAmount(float64(m) / 100)
}

func (m MinorAmount) String() string {
	return fmt.Sprintf("%d", int64(m))
}
