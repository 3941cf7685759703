package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/coldstore/internal/billing"
	"github.com/nurpe/coldstore/internal/model"
)

type ratesResponse struct {
	AppleRate  decimal.Decimal `json:"apple_rate"`
	PotatoRate decimal.Decimal `json:"potato_rate"`
}

type ownerResponse struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	CNIC      string `json:"cnic"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

type completionResponse struct {
	EndDate        string          `json:"end_date"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	FinalBreakdown string          `json:"final_breakdown"`
}

type contractResponse struct {
	ID               string               `json:"id"`
	Class            model.CommodityClass `json:"class"`
	Owner            ownerResponse        `json:"owner"`
	TruckNumber      *string              `json:"truck_number,omitempty"`
	Quantity         int                  `json:"quantity"`
	OriginalQuantity int                  `json:"original_quantity"`
	StartDate        string               `json:"start_date"`
	Status           model.ContractStatus `json:"status"`
	BilledAmount     decimal.Decimal      `json:"billed_amount"`
	Completion       *completionResponse  `json:"completion,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

type withdrawalResponse struct {
	ID             string               `json:"id"`
	Sequence       int64                `json:"sequence"`
	ContractID     string               `json:"contract_id"`
	Class          model.CommodityClass `json:"class"`
	Quantity       int                  `json:"quantity"`
	WithdrawalDate time.Time            `json:"withdrawal_date"`
	BillAmount     decimal.Decimal      `json:"bill_amount"`
	Breakdown      string               `json:"breakdown"`
	IsPaid         bool                 `json:"is_paid"`
}

type withdrawalResultResponse struct {
	Record            withdrawalResponse `json:"record"`
	RemainingQuantity int                `json:"remaining_quantity"`
	BillAmount        decimal.Decimal    `json:"bill_amount"`
	Completed         bool               `json:"completed"`
}

type billLineResponse struct {
	Label  string          `json:"label"`
	Rule   string          `json:"rule"`
	Amount decimal.Decimal `json:"amount"`
}

type billResponse struct {
	Amount    decimal.Decimal    `json:"amount"`
	Breakdown string             `json:"breakdown"`
	Lines     []billLineResponse `json:"lines"`
}

func toRatesResponse(rates model.RateSettings) ratesResponse {
	return ratesResponse{AppleRate: rates.AppleRate, PotatoRate: rates.PotatoRate}
}

func toContractResponse(contract model.StorageContract) contractResponse {
	response := contractResponse{
		ID:    contract.ID,
		Class: contract.Class(),
		Owner: ownerResponse{
			FirstName: contract.Owner.FirstName,
			LastName:  contract.Owner.LastName,
			CNIC:      contract.Owner.CNIC,
			Phone:     contract.Owner.Phone,
			Address:   contract.Owner.Address,
		},
		Quantity:         contract.Quantity,
		OriginalQuantity: contract.OriginalQuantity,
		StartDate:        formatDate(contract.StartDate),
		Status:           contract.Status,
		BilledAmount:     contract.BilledAmount(),
		CreatedAt:        contract.CreatedAt,
		UpdatedAt:        contract.UpdatedAt,
	}
	if truck, ok := contract.TruckNumber(); ok {
		response.TruckNumber = &truck
	}
	if contract.Completion != nil {
		response.Completion = &completionResponse{
			EndDate:        formatDate(contract.Completion.EndDate),
			FinalAmount:    contract.Completion.FinalAmount,
			FinalBreakdown: contract.Completion.FinalBreakdown,
		}
	}
	return response
}

func toWithdrawalResponse(record model.WithdrawalRecord) withdrawalResponse {
	return withdrawalResponse{
		ID:             record.ID,
		Sequence:       record.Sequence,
		ContractID:     record.ContractID,
		Class:          record.Class,
		Quantity:       record.Quantity,
		WithdrawalDate: record.WithdrawalDate,
		BillAmount:     record.BillAmount,
		Breakdown:      record.Breakdown,
		IsPaid:         record.IsPaid,
	}
}

func toWithdrawalResponses(records []model.WithdrawalRecord) []withdrawalResponse {
	response := make([]withdrawalResponse, 0, len(records))
	for _, record := range records {
		response = append(response, toWithdrawalResponse(record))
	}
	return response
}

func toBillResponse(bill billing.Bill) billResponse {
	lines := make([]billLineResponse, 0, len(bill.Lines))
	for _, line := range bill.Lines {
		lines = append(lines, billLineResponse{Label: line.Label, Rule: line.Rule, Amount: line.Amount})
	}
	return billResponse{Amount: bill.Amount, Breakdown: bill.Breakdown, Lines: lines}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
