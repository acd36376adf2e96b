package model

import (
	"fmt"
	"math"
)

// Cents is a monetary amount in hundredths of the account currency.
// All balance arithmetic is done on int64 cents so that summing large
// statements never accumulates floating-point drift.
type Cents int64

// CentsFromFloat converts a decimal amount (as reported by the extraction
// service) to cents, rounding half away from zero.
func CentsFromFloat(v float64) Cents {
	return Cents(math.Round(v * 100))
}

func (c Cents) Float() float64 {
	return float64(c) / 100
}

func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
