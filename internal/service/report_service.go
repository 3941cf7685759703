package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nurpe/coldstore/internal/model"
)

type PDFGenerator interface {
	Generate(doc model.BillDocument) ([]byte, error)
}

type TableGenerator interface {
	Contracts(report model.ContractReport) ([]byte, error)
	Withdrawals(report model.ContractReport) ([]byte, error)
}

// ReportService renders bills and exports. It only reads ledger state.
type ReportService struct {
	storage  *StorageService
	pdf      PDFGenerator
	tables   map[model.ReportFormat]TableGenerator
	currency string
	now      func() time.Time
}

type BillInput struct {
	ContractID string
	AsOf       time.Time
}

type ExportInput struct {
	Class  model.CommodityClass
	Status model.ContractStatus
	Format model.ReportFormat
}

type ReportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

func NewReportService(storage *StorageService, pdf PDFGenerator, tables map[model.ReportFormat]TableGenerator, currency string) *ReportService {
	return &ReportService{
		storage:  storage,
		pdf:      pdf,
		tables:   tables,
		currency: currency,
		now:      time.Now,
	}
}

// BillPDF renders the bill of a contract. Active contracts are priced as of
// input.AsOf; completed ones print their final settlement.
func (s *ReportService) BillPDF(ctx context.Context, input BillInput) (*ReportResult, error) {
	if strings.TrimSpace(input.ContractID) == "" {
		return nil, fmt.Errorf("%w: contract id is required", ErrInvalidInput)
	}

	now := s.now()
	asOf := input.AsOf
	if asOf.IsZero() {
		asOf = now
	}
	quote, err := s.storage.Quote(ctx, input.ContractID, asOf)
	if err != nil {
		return nil, err
	}

	contract := quote.Contract
	doc := model.BillDocument{
		Contract: contract,
		Rate:     quote.Rates.For(contract.Class()),
		Currency: s.currency,
		IssuedAt: now,
	}

	if contract.IsCompleted() && contract.Completion != nil {
		doc.Final = true
		doc.AsOf = contract.Completion.EndDate
		doc.Amount = contract.Completion.FinalAmount
		doc.Breakdown = contract.Completion.FinalBreakdown
		for _, w := range contract.Withdrawals {
			doc.Lines = append(doc.Lines, model.BillLine{
				Label:  fmt.Sprintf("Withdrawal %s", w.WithdrawalDate.Format("02.01.2006")),
				Rule:   fmt.Sprintf("%d %s", w.Quantity, contract.Class().Unit()),
				Amount: w.BillAmount,
			})
		}
	} else {
		doc.AsOf = dateOnly(asOf)
		doc.Amount = quote.Bill.Amount
		doc.Breakdown = quote.Bill.Breakdown
		doc.Lines = quote.Bill.Lines
	}

	content, err := s.pdf.Generate(doc)
	if err != nil {
		return nil, err
	}

	owner := sanitizeFileName(contract.Owner.FullName())
	if owner == "" {
		owner = contract.ID
	}
	return &ReportResult{
		FileName:    fmt.Sprintf("bill-%s-%s.pdf", owner, doc.AsOf.Format("20060102")),
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}

func (s *ReportService) ExportContracts(ctx context.Context, input ExportInput) (*ReportResult, error) {
	generator, err := s.generatorFor(input.Format)
	if err != nil {
		return nil, err
	}

	report := s.buildReport(ctx, input)
	report.Contracts = s.storage.List(ctx, ListFilter{Status: input.Status, Class: input.Class})
	for _, contract := range report.Contracts {
		report.Withdrawals = append(report.Withdrawals, contract.Withdrawals...)
	}

	content, err := generator.Contracts(report)
	if err != nil {
		return nil, err
	}
	return &ReportResult{
		FileName:    s.buildFileName("contracts", report, input.Format),
		ContentType: contentType(input.Format),
		Content:     content,
	}, nil
}

func (s *ReportService) ExportWithdrawals(ctx context.Context, input ExportInput) (*ReportResult, error) {
	generator, err := s.generatorFor(input.Format)
	if err != nil {
		return nil, err
	}

	report := s.buildReport(ctx, input)
	report.Status = ""
	report.Withdrawals = s.storage.Ledger(ctx, input.Class)

	content, err := generator.Withdrawals(report)
	if err != nil {
		return nil, err
	}
	return &ReportResult{
		FileName:    s.buildFileName("withdrawals", report, input.Format),
		ContentType: contentType(input.Format),
		Content:     content,
	}, nil
}

func (s *ReportService) generatorFor(format model.ReportFormat) (TableGenerator, error) {
	if format == "" {
		format = model.ReportFormatXLSX
	}
	generator, ok := s.tables[format]
	if !ok || generator == nil {
		return nil, fmt.Errorf("%w: unsupported report format %q", ErrInvalidInput, format)
	}
	return generator, nil
}

func (s *ReportService) buildReport(ctx context.Context, input ExportInput) model.ContractReport {
	return model.ContractReport{
		Class:       input.Class,
		Status:      input.Status,
		Currency:    s.currency,
		Rates:       s.storage.Rates(ctx),
		GeneratedAt: s.now(),
	}
}

func (s *ReportService) buildFileName(kind string, report model.ContractReport, format model.ReportFormat) string {
	if format == "" {
		format = model.ReportFormatXLSX
	}
	class := sanitizeFileName(string(report.Class))
	if class == "" {
		class = "all"
	}
	parts := []string{kind, class}
	if report.Status != "" {
		parts = append(parts, sanitizeFileName(string(report.Status)))
	}
	parts = append(parts, report.GeneratedAt.Format("20060102"))
	return fmt.Sprintf("%s.%s", strings.Join(parts, "-"), format)
}

func contentType(format model.ReportFormat) string {
	if format == model.ReportFormatCSV {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
