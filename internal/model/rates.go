package model

import "github.com/shopspring/decimal"

// RateSettings holds the configured prices. AppleRate is charged per crate
// per month, PotatoRate per sack for the whole season.
type RateSettings struct {
	AppleRate  decimal.Decimal
	PotatoRate decimal.Decimal
}

func (r RateSettings) For(class CommodityClass) decimal.Decimal {
	if class == ClassPotato {
		return r.PotatoRate
	}
	return r.AppleRate
}

// Snapshot is the full serialisable state of the ledger.
type Snapshot struct {
	Active       []StorageContract
	Completed    []StorageContract
	Rates        RateSettings
	NextSequence int64
}
