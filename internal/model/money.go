package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Cents is a monetary amount in the smallest currency unit. Prices and
// booking totals are stored and compared as Cents; on the wire they are
// decimal numbers (12.5 means 1250 cents).
type Cents int64

// MaxAmount bounds decoded amounts, in whole currency units. Anything larger
// cannot be a ticket price and would not survive the float to int64
// conversion.
const MaxAmount = 1e12

var ErrAmountOutOfRange = errors.New("amount out of range")

// CentsFromAmount converts a decimal amount to Cents, rounding half away
// from zero. amount must lie within ±MaxAmount.
func CentsFromAmount(amount float64) Cents {
	return Cents(math.Round(amount * 100))
}

// Amount returns the decimal value.
func (c Cents) Amount() float64 {
	return float64(c) / 100
}

func (c Cents) String() string {
	return strconv.FormatFloat(c.Amount(), 'f', 2, 64)
}

func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(c.Amount(), 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (c *Cents) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = 0
		return nil
	}
	var n json.Number
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n = json.Number(s)
	} else if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("amount %q is not a number", string(n))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("amount %q is not finite", string(n))
	}
	if math.Abs(f) > MaxAmount {
		return fmt.Errorf("amount %q: %w", string(n), ErrAmountOutOfRange)
	}
	*c = CentsFromAmount(f)
	return nil
}
