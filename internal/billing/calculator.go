// Package billing turns a contract's quantity, rate and storage window into a
// charge and an itemised breakdown. Everything here is pure.
package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/coldstore/internal/model"
)

var (
	ErrInvalidInput  = errors.New("invalid billing input")
	ErrInvalidPeriod = errors.New("invalid storage period")
)

const (
	dateLayout  = "02 Jan 2006"
	monthLayout = "January 2006"
	separator   = "----------------------------------------"
)

type Bill struct {
	Amount    decimal.Decimal
	Breakdown string
	Lines     []model.BillLine
}

// Calculator holds presentation settings only; the amounts it computes depend
// on the arguments alone.
type Calculator struct {
	Currency string
}

func NewCalculator(currency string) Calculator {
	return Calculator{Currency: currency}
}

// Calculate selects the algorithm for the class. end is ignored for potatoes.
func (c Calculator) Calculate(class model.CommodityClass, quantity int, rates model.RateSettings, start, end time.Time) (Bill, error) {
	switch class {
	case model.ClassApple:
		return c.Apple(quantity, rates.AppleRate, start, end)
	case model.ClassPotato:
		return c.Potato(quantity, rates.PotatoRate, start)
	default:
		return Bill{}, fmt.Errorf("%w: unknown commodity class %q", ErrInvalidInput, class)
	}
}

func validateAmounts(quantity int, rate decimal.Decimal) error {
	if quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	if rate.IsNegative() {
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidInput)
	}
	return nil
}

func (c Calculator) money(amount decimal.Decimal) string {
	if c.Currency == "" {
		return amount.String()
	}
	return amount.String() + " " + c.Currency
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the length of the month containing t.
func DaysInMonth(t time.Time) int {
	return monthStart(t).AddDate(0, 1, -1).Day()
}
