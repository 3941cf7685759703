package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalRecord is one immutable ledger entry.
type WithdrawalRecord struct {
	ID             string
	Sequence       int64
	ContractID     string
	Class          CommodityClass
	Quantity       int
	WithdrawalDate time.Time
	BillAmount     decimal.Decimal
	Breakdown      string
	IsPaid         bool
}

type WithdrawalResult struct {
	Record            WithdrawalRecord
	RemainingQuantity int
	BillAmount        decimal.Decimal
	Completed         bool
}
