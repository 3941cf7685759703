package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/coldstore/internal/model"
)

// Day-of-month thresholds for the final month. They are absolute day numbers
// and do not scale with the month length.
const (
	exemptUntilDay = 3
	halfUntilDay   = 18
)

var half = decimal.NewFromFloat(0.5)

type tier struct {
	multiplier decimal.Decimal
	rule       string
}

func finalMonthTier(day, daysInMonth int) tier {
	switch {
	case day <= exemptUntilDay:
		return tier{multiplier: decimal.Zero, rule: "Exempt (days 1-3)"}
	case day <= halfUntilDay:
		return tier{multiplier: half, rule: fmt.Sprintf("Half rate (days 4-18 of %d)", daysInMonth)}
	default:
		return tier{multiplier: decimal.NewFromInt(1), rule: fmt.Sprintf("Full rate (days 19-%d)", daysInMonth)}
	}
}

// Apple bills monthly storage. The first calendar month is always charged in
// full, every following complete month in full, and the month of end by the
// day-of-month tier of end.
func (c Calculator) Apple(quantity int, rate decimal.Decimal, start, end time.Time) (Bill, error) {
	if err := validateAmounts(quantity, rate); err != nil {
		return Bill{}, err
	}
	start, end = dateOnly(start), dateOnly(end)
	if end.Before(start) {
		return Bill{}, fmt.Errorf("%w: end date %s precedes start date %s",
			ErrInvalidInput, end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	qty := decimal.NewFromInt(int64(quantity))
	fullMonth := qty.Mul(rate)
	unit := model.ClassApple.Unit()

	var lines []model.BillLine
	var months []string

	lines = append(lines, model.BillLine{
		Label:  start.Format(monthLayout) + " (First Month)",
		Rule:   "Full month charge applies (initial month policy)",
		Amount: fullMonth,
	})
	months = append(months, fmt.Sprintf("%s:\n- %s\n- Amount: %d %s x %s = %s\n",
		lines[0].Label, lines[0].Rule, quantity, unit, c.money(rate), c.money(fullMonth)))

	total := fullMonth
	last := monthStart(end)
	for month := monthStart(start).AddDate(0, 1, 0); !month.After(last); month = month.AddDate(0, 1, 0) {
		if !month.Equal(last) {
			total = total.Add(fullMonth)
			line := model.BillLine{Label: month.Format(monthLayout), Rule: "Full month charge", Amount: fullMonth}
			lines = append(lines, line)
			months = append(months, fmt.Sprintf("%s:\n- %s\n- Amount: %d %s x %s = %s\n",
				line.Label, line.Rule, quantity, unit, c.money(rate), c.money(fullMonth)))
			continue
		}

		t := finalMonthTier(end.Day(), DaysInMonth(month))
		monthRate := rate.Mul(t.multiplier)
		amount := qty.Mul(monthRate)
		total = total.Add(amount)
		line := model.BillLine{Label: month.Format(monthLayout) + " (Final Month)", Rule: t.rule, Amount: amount}
		lines = append(lines, line)

		charge := "No charge (exempt period)"
		if monthRate.IsPositive() {
			charge = fmt.Sprintf("%d %s x %s = %s", quantity, unit, c.money(monthRate), c.money(amount))
		}
		months = append(months, fmt.Sprintf("%s:\n- %s\n- Amount: %s\n", line.Label, line.Rule, charge))
	}

	var b strings.Builder
	b.WriteString("BILLING DETAILS:\n\n")
	fmt.Fprintf(&b, "Storage Period: %s to %s\n", start.Format(dateLayout), end.Format(dateLayout))
	fmt.Fprintf(&b, "Number of Crates: %d\n", quantity)
	fmt.Fprintf(&b, "Base Rate: %s per crate per month\n\n", c.money(rate))
	b.WriteString("MONTHLY BREAKDOWN:\n")
	b.WriteString(separator + "\n")
	b.WriteString(strings.Join(months, "\n"))
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "TOTAL AMOUNT: %s", c.money(total))

	return Bill{Amount: total, Breakdown: b.String(), Lines: lines}, nil
}
