// Package csvexport writes contract and withdrawal tables as CSV.
package csvexport

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/nurpe/coldstore/internal/model"
)

type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Contracts(report model.ContractReport) ([]byte, error) {
	rows := [][]string{{
		"Name", "CNIC", "Phone", "Address", "Commodity", "Truck",
		"Quantity", "Original Quantity", "Start Date", "Rate", "Status", "Billed", "End Date",
	}}
	for _, contract := range report.Contracts {
		truck, _ := contract.TruckNumber()
		endDate := ""
		if contract.Completion != nil {
			endDate = formatDate(contract.Completion.EndDate)
		}
		rows = append(rows, []string{
			contract.Owner.FullName(),
			contract.Owner.CNIC,
			contract.Owner.Phone,
			contract.Owner.Address,
			string(contract.Class()),
			truck,
			strconv.Itoa(contract.Quantity),
			strconv.Itoa(contract.OriginalQuantity),
			formatDate(contract.StartDate),
			report.Rates.For(contract.Class()).String(),
			string(contract.Status),
			contract.BilledAmount().String(),
			endDate,
		})
	}
	return write(rows)
}

func (w *Writer) Withdrawals(report model.ContractReport) ([]byte, error) {
	rows := [][]string{{"Sequence", "Date", "Contract", "Commodity", "Quantity", "Bill", "Paid"}}
	for _, record := range report.Withdrawals {
		rows = append(rows, []string{
			strconv.FormatInt(record.Sequence, 10),
			formatDate(record.WithdrawalDate),
			record.ContractID,
			string(record.Class),
			strconv.Itoa(record.Quantity),
			record.BillAmount.String(),
			strconv.FormatBool(record.IsPaid),
		})
	}
	return write(rows)
}

func write(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
