package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/coldstore/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Contracts writes a summary sheet followed by one sheet per commodity class.
func (g *Generator) Contracts(report model.ContractReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	summarySheet := "Summary"
	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, summarySheet, report)

	usedNames := map[string]struct{}{summarySheet: {}}
	for _, group := range groupByClass(report.Contracts) {
		sheetName := buildSheetName(group.class, usedNames)
		usedNames[sheetName] = struct{}{}

		if _, err := file.NewSheet(sheetName); err != nil {
			return nil, err
		}
		g.writeContracts(file, sheetName, report, group)
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Withdrawals writes the ledger on a single sheet after the summary.
func (g *Generator) Withdrawals(report model.ContractReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	summarySheet := "Summary"
	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, summarySheet, report)

	ledgerSheet := "Withdrawals"
	if _, err := file.NewSheet(ledgerSheet); err != nil {
		return nil, err
	}
	g.writeWithdrawals(file, ledgerSheet, report)

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, report model.ContractReport) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	billed := decimal.Zero
	for _, w := range report.Withdrawals {
		billed = billed.Add(w.BillAmount)
	}

	set("A1", "Commodity")
	set("B1", classLabel(report.Class))
	set("A2", "Status")
	set("B2", statusLabel(report.Status))
	set("A3", "Generated")
	set("B3", formatDateTime(report.GeneratedAt))
	set("A4", "Currency")
	set("B4", report.Currency)
	set("A5", "Apple rate, per crate per month")
	set("B5", amountValue(report.Rates.AppleRate))
	set("A6", "Potato rate, per sack per season")
	set("B6", amountValue(report.Rates.PotatoRate))
	set("A7", "Contracts")
	set("B7", len(report.Contracts))
	set("A8", "Withdrawals")
	set("B8", len(report.Withdrawals))
	set("A9", "Billed total")
	set("B9", amountValue(billed))

	_ = file.SetColWidth(sheet, "A", "A", 34)
	_ = file.SetColWidth(sheet, "B", "B", 20)
}

func (g *Generator) writeContracts(file *excelize.File, sheet string, report model.ContractReport, group classGroup) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{
		"Name",
		"CNIC",
		"Phone",
		"Address",
		"Truck",
		"Quantity",
		"Original Quantity",
		"Start Date",
		"Rate",
		"Status",
		"Billed",
		"End Date",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	rate := report.Rates.For(group.class)
	for i, contract := range group.contracts {
		row := i + 2
		truck, _ := contract.TruckNumber()
		var endDate time.Time
		if contract.Completion != nil {
			endDate = contract.Completion.EndDate
		}

		set(fmt.Sprintf("A%d", row), contract.Owner.FullName())
		set(fmt.Sprintf("B%d", row), contract.Owner.CNIC)
		set(fmt.Sprintf("C%d", row), contract.Owner.Phone)
		set(fmt.Sprintf("D%d", row), contract.Owner.Address)
		set(fmt.Sprintf("E%d", row), truck)
		set(fmt.Sprintf("F%d", row), contract.Quantity)
		set(fmt.Sprintf("G%d", row), contract.OriginalQuantity)
		set(fmt.Sprintf("H%d", row), formatDate(contract.StartDate))
		set(fmt.Sprintf("I%d", row), amountValue(rate))
		set(fmt.Sprintf("J%d", row), string(contract.Status))
		set(fmt.Sprintf("K%d", row), amountValue(contract.BilledAmount()))
		set(fmt.Sprintf("L%d", row), formatDate(endDate))
	}

	_ = file.SetColWidth(sheet, "A", "A", 28)
	_ = file.SetColWidth(sheet, "B", "C", 18)
	_ = file.SetColWidth(sheet, "D", "D", 32)
	_ = file.SetColWidth(sheet, "E", "L", 14)
}

func (g *Generator) writeWithdrawals(file *excelize.File, sheet string, report model.ContractReport) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{"#", "Date", "Contract", "Commodity", "Quantity", "Bill", "Status"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for i, w := range report.Withdrawals {
		row := i + 2
		status := "Pending"
		if w.IsPaid {
			status = "Paid"
		}
		set(fmt.Sprintf("A%d", row), w.Sequence)
		set(fmt.Sprintf("B%d", row), formatDate(w.WithdrawalDate))
		set(fmt.Sprintf("C%d", row), w.ContractID)
		set(fmt.Sprintf("D%d", row), string(w.Class))
		set(fmt.Sprintf("E%d", row), w.Quantity)
		set(fmt.Sprintf("F%d", row), amountValue(w.BillAmount))
		set(fmt.Sprintf("G%d", row), status)
	}

	_ = file.SetColWidth(sheet, "A", "A", 8)
	_ = file.SetColWidth(sheet, "B", "B", 14)
	_ = file.SetColWidth(sheet, "C", "C", 38)
	_ = file.SetColWidth(sheet, "D", "G", 14)
}

type classGroup struct {
	class     model.CommodityClass
	contracts []model.StorageContract
}

// groupByClass keeps the first-seen order of classes and of contracts
// within a class.
func groupByClass(contracts []model.StorageContract) []classGroup {
	var groups []classGroup
	index := make(map[model.CommodityClass]int)
	for _, contract := range contracts {
		class := contract.Class()
		i, ok := index[class]
		if !ok {
			i = len(groups)
			index[class] = i
			groups = append(groups, classGroup{class: class})
		}
		groups[i].contracts = append(groups[i].contracts, contract)
	}
	return groups
}

func classLabel(class model.CommodityClass) string {
	switch class {
	case model.ClassApple:
		return "Apples"
	case model.ClassPotato:
		return "Potatoes"
	default:
		return "All"
	}
}

func statusLabel(status model.ContractStatus) string {
	switch status {
	case model.ContractStatusActive:
		return "Active"
	case model.ContractStatusCompleted:
		return "Completed"
	default:
		return "All"
	}
}

func buildSheetName(class model.CommodityClass, used map[string]struct{}) string {
	base := sanitizeSheetName(classLabel(class))
	if len(base) > 31 {
		base = base[:31]
	}

	nameCandidate := base
	counter := 2
	for {
		if _, exists := used[nameCandidate]; !exists {
			return nameCandidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		trimmed := base
		if len(trimmed)+len(suffix) > 31 {
			trimmed = trimmed[:31-len(suffix)]
		}
		nameCandidate = trimmed + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "Sheet"
	}

	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "" {
		return "Sheet"
	}
	return value
}

func amountValue(value decimal.Decimal) float64 {
	return value.InexactFloat64()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
