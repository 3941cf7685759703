package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/coldstore/internal/model"
)

// The potato season runs from January to October of the start year.
const (
	seasonFirstMonth = time.January
	seasonLastMonth  = time.October
)

// ValidateSeasonStart reports ErrInvalidPeriod when start falls outside the season.
func ValidateSeasonStart(start time.Time) error {
	if m := start.Month(); m < seasonFirstMonth || m > seasonLastMonth {
		return fmt.Errorf("%w: potato storage must start between January and October, got %s",
			ErrInvalidPeriod, m)
	}
	return nil
}

// Potato bills a fixed season. The rate already covers the whole season, so
// the amount does not depend on the start day or on an early withdrawal.
func (c Calculator) Potato(quantity int, rate decimal.Decimal, start time.Time) (Bill, error) {
	if err := validateAmounts(quantity, rate); err != nil {
		return Bill{}, err
	}
	start = dateOnly(start)
	if err := ValidateSeasonStart(start); err != nil {
		return Bill{}, err
	}

	total := decimal.NewFromInt(int64(quantity)).Mul(rate)
	year := start.Year()
	line := model.BillLine{
		Label:  fmt.Sprintf("Season January %d to October %d", year, year),
		Rule:   "Fixed season charge",
		Amount: total,
	}

	var b strings.Builder
	b.WriteString("BILLING DETAILS:\n")
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "Storage Start Date: %s\n", start.Format(dateLayout))
	fmt.Fprintf(&b, "Number of Sacks: %d\n", quantity)
	fmt.Fprintf(&b, "Rate per Sack: %s\n", c.money(rate))
	fmt.Fprintf(&b, "Total Amount: %s\n", c.money(total))
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "Fixed Period: January %d to October %d\n\n", year, year)
	b.WriteString("IMPORTANT NOTES:\n")
	b.WriteString("- Full season payment is required regardless of start date\n")
	b.WriteString("- Storage period is fixed from January to October\n")
	b.WriteString("- Early withdrawal does not affect the total payment")

	return Bill{Amount: total, Breakdown: b.String(), Lines: []model.BillLine{line}}, nil
}
