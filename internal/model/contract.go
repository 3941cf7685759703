package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CommodityClass string

const (
	ClassApple  CommodityClass = "apple"
	ClassPotato CommodityClass = "potato"
)

func (c CommodityClass) Valid() bool {
	return c == ClassApple || c == ClassPotato
}

// Unit is the storage unit name used in breakdowns and reports.
func (c CommodityClass) Unit() string {
	switch c {
	case ClassApple:
		return "crates"
	case ClassPotato:
		return "sacks"
	default:
		return "units"
	}
}

type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "active"
	ContractStatusCompleted ContractStatus = "completed"
)

// ClassDetails carries the fields that only exist for one commodity class.
// The class of a contract is derived from its details.
type ClassDetails interface {
	Class() CommodityClass
	isClassDetails()
}

type AppleDetails struct {
	TruckNumber string
}

func (AppleDetails) Class() CommodityClass { return ClassApple }
func (AppleDetails) isClassDetails()       {}

type PotatoDetails struct{}

func (PotatoDetails) Class() CommodityClass { return ClassPotato }
func (PotatoDetails) isClassDetails()       {}

// DetailsFor returns empty details for the class, or nil for an unknown class.
func DetailsFor(class CommodityClass) ClassDetails {
	switch class {
	case ClassApple:
		return AppleDetails{}
	case ClassPotato:
		return PotatoDetails{}
	default:
		return nil
	}
}

type StorageContract struct {
	ID               string
	Owner            Owner
	Details          ClassDetails
	Quantity         int
	OriginalQuantity int
	StartDate        time.Time
	Status           ContractStatus
	Completion       *Completion
	Withdrawals      []WithdrawalRecord
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Completion is set once the last unit has been withdrawn.
type Completion struct {
	EndDate        time.Time
	FinalAmount    decimal.Decimal
	FinalBreakdown string
}

func (c StorageContract) Class() CommodityClass {
	if c.Details == nil {
		return ""
	}
	return c.Details.Class()
}

func (c StorageContract) IsCompleted() bool {
	return c.Status == ContractStatusCompleted
}

// TruckNumber returns the truck number of an apple contract.
func (c StorageContract) TruckNumber() (string, bool) {
	details, ok := c.Details.(AppleDetails)
	if !ok {
		return "", false
	}
	return details.TruckNumber, true
}

// WithdrawnQuantity sums the ledger.
func (c StorageContract) WithdrawnQuantity() int {
	total := 0
	for _, w := range c.Withdrawals {
		total += w.Quantity
	}
	return total
}

// BilledAmount sums the bills of every withdrawal in the ledger.
func (c StorageContract) BilledAmount() decimal.Decimal {
	total := decimal.Zero
	for _, w := range c.Withdrawals {
		total = total.Add(w.BillAmount)
	}
	return total
}

// Clone returns a copy that shares no mutable state with c.
func (c StorageContract) Clone() StorageContract {
	clone := c
	if c.Completion != nil {
		completion := *c.Completion
		clone.Completion = &completion
	}
	if c.Withdrawals != nil {
		clone.Withdrawals = append([]WithdrawalRecord(nil), c.Withdrawals...)
	}
	return clone
}
