package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/coldstore/internal/model"
)

// SnapshotRepository stores the ledger state in postgres. Every Save writes
// the full snapshot inside one transaction.
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

type contractRow struct {
	ID               string
	Class            string
	TruckNumber      *string
	FirstName        string
	LastName         string
	CNIC             string `gorm:"column:cnic"`
	Phone            string
	Address          string
	Quantity         int
	OriginalQuantity int
	StartDate        time.Time
	Status           string
	EndDate          *time.Time
	FinalAmount      decimal.NullDecimal
	FinalBreakdown   *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type withdrawalRow struct {
	ID             string
	Sequence       int64
	ContractID     string
	Class          string
	Quantity       int
	WithdrawalDate time.Time
	BillAmount     decimal.Decimal
	Breakdown      string
	IsPaid         bool
}

type rateRow struct {
	AppleRate  decimal.Decimal
	PotatoRate decimal.Decimal
}

// Load returns nil when the rates row has never been written.
func (r *SnapshotRepository) Load(ctx context.Context) (*model.Snapshot, error) {
	db := r.db.WithContext(ctx)

	var rates []rateRow
	if err := db.Raw(`
		SELECT apple_rate, potato_rate
		FROM rate_settings
		WHERE id = 1
	`).Scan(&rates).Error; err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, nil
	}

	var contracts []contractRow
	if err := db.Raw(`
		SELECT
			id,
			class,
			truck_number,
			first_name,
			last_name,
			cnic,
			phone,
			address,
			quantity,
			original_quantity,
			start_date,
			status,
			end_date,
			final_amount,
			final_breakdown,
			created_at,
			updated_at
		FROM storage_contracts
		ORDER BY created_at ASC, id ASC
	`).Scan(&contracts).Error; err != nil {
		return nil, err
	}

	var withdrawals []withdrawalRow
	if err := db.Raw(`
		SELECT
			id,
			sequence,
			contract_id,
			class,
			quantity,
			withdrawal_date,
			bill_amount,
			breakdown,
			is_paid
		FROM withdrawal_records
		ORDER BY sequence ASC
	`).Scan(&withdrawals).Error; err != nil {
		return nil, err
	}

	var nextSequence int64
	if err := db.Raw(`
		SELECT COALESCE(MAX(next_sequence), 0) FROM ledger_state
	`).Scan(&nextSequence).Error; err != nil {
		return nil, err
	}

	snapshot, err := buildSnapshot(rates[0], contracts, withdrawals, nextSequence)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *SnapshotRepository) Save(ctx context.Context, snapshot model.Snapshot) error {
	contracts, withdrawals := flattenSnapshot(snapshot)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(contracts))
		for _, row := range contracts {
			ids = append(ids, row.ID)
			if err := tx.Exec(`
				INSERT INTO storage_contracts (
					id,
					class,
					truck_number,
					first_name,
					last_name,
					cnic,
					phone,
					address,
					quantity,
					original_quantity,
					start_date,
					status,
					end_date,
					final_amount,
					final_breakdown,
					created_at,
					updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					truck_number = EXCLUDED.truck_number,
					first_name = EXCLUDED.first_name,
					last_name = EXCLUDED.last_name,
					cnic = EXCLUDED.cnic,
					phone = EXCLUDED.phone,
					address = EXCLUDED.address,
					quantity = EXCLUDED.quantity,
					status = EXCLUDED.status,
					end_date = EXCLUDED.end_date,
					final_amount = EXCLUDED.final_amount,
					final_breakdown = EXCLUDED.final_breakdown,
					updated_at = EXCLUDED.updated_at
			`,
				row.ID,
				row.Class,
				row.TruckNumber,
				row.FirstName,
				row.LastName,
				row.CNIC,
				row.Phone,
				row.Address,
				row.Quantity,
				row.OriginalQuantity,
				row.StartDate,
				row.Status,
				row.EndDate,
				row.FinalAmount,
				row.FinalBreakdown,
				row.CreatedAt,
				row.UpdatedAt,
			).Error; err != nil {
				return fmt.Errorf("upsert contract %s: %w", row.ID, err)
			}
		}

		remove := tx.Exec(`DELETE FROM storage_contracts`)
		if len(ids) > 0 {
			remove = tx.Exec(`DELETE FROM storage_contracts WHERE id NOT IN ?`, ids)
		}
		if err := remove.Error; err != nil {
			return fmt.Errorf("delete removed contracts: %w", err)
		}

		for _, row := range withdrawals {
			if err := tx.Exec(`
				INSERT INTO withdrawal_records (
					id,
					sequence,
					contract_id,
					class,
					quantity,
					withdrawal_date,
					bill_amount,
					breakdown,
					is_paid
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO NOTHING
			`,
				row.ID,
				row.Sequence,
				row.ContractID,
				row.Class,
				row.Quantity,
				row.WithdrawalDate,
				row.BillAmount,
				row.Breakdown,
				row.IsPaid,
			).Error; err != nil {
				return fmt.Errorf("insert withdrawal %s: %w", row.ID, err)
			}
		}

		if err := tx.Exec(`
			INSERT INTO rate_settings (id, apple_rate, potato_rate, updated_at)
			VALUES (1, ?, ?, NOW())
			ON CONFLICT (id) DO UPDATE SET
				apple_rate = EXCLUDED.apple_rate,
				potato_rate = EXCLUDED.potato_rate,
				updated_at = EXCLUDED.updated_at
		`, snapshot.Rates.AppleRate, snapshot.Rates.PotatoRate).Error; err != nil {
			return fmt.Errorf("save rates: %w", err)
		}

		return tx.Exec(`
			INSERT INTO ledger_state (id, next_sequence)
			VALUES (1, ?)
			ON CONFLICT (id) DO UPDATE SET next_sequence = EXCLUDED.next_sequence
		`, snapshot.NextSequence).Error
	})
}

func flattenSnapshot(snapshot model.Snapshot) ([]contractRow, []withdrawalRow) {
	all := make([]model.StorageContract, 0, len(snapshot.Active)+len(snapshot.Completed))
	all = append(all, snapshot.Active...)
	all = append(all, snapshot.Completed...)

	contracts := make([]contractRow, 0, len(all))
	var withdrawals []withdrawalRow
	for _, contract := range all {
		row := contractRow{
			ID:               contract.ID,
			Class:            string(contract.Class()),
			FirstName:        contract.Owner.FirstName,
			LastName:         contract.Owner.LastName,
			CNIC:             contract.Owner.CNIC,
			Phone:            contract.Owner.Phone,
			Address:          contract.Owner.Address,
			Quantity:         contract.Quantity,
			OriginalQuantity: contract.OriginalQuantity,
			StartDate:        contract.StartDate,
			Status:           string(contract.Status),
			CreatedAt:        contract.CreatedAt,
			UpdatedAt:        contract.UpdatedAt,
		}
		if truck, ok := contract.TruckNumber(); ok {
			row.TruckNumber = &truck
		}
		if contract.Completion != nil {
			endDate := contract.Completion.EndDate
			breakdown := contract.Completion.FinalBreakdown
			row.EndDate = &endDate
			row.FinalAmount = decimal.NewNullDecimal(contract.Completion.FinalAmount)
			row.FinalBreakdown = &breakdown
		}
		contracts = append(contracts, row)

		for _, w := range contract.Withdrawals {
			withdrawals = append(withdrawals, withdrawalRow{
				ID:             w.ID,
				Sequence:       w.Sequence,
				ContractID:     w.ContractID,
				Class:          string(w.Class),
				Quantity:       w.Quantity,
				WithdrawalDate: w.WithdrawalDate,
				BillAmount:     w.BillAmount,
				Breakdown:      w.Breakdown,
				IsPaid:         w.IsPaid,
			})
		}
	}
	return contracts, withdrawals
}

func buildSnapshot(rates rateRow, contracts []contractRow, withdrawals []withdrawalRow, nextSequence int64) (model.Snapshot, error) {
	byContract := make(map[string][]model.WithdrawalRecord, len(contracts))
	for _, row := range withdrawals {
		byContract[row.ContractID] = append(byContract[row.ContractID], model.WithdrawalRecord{
			ID:             row.ID,
			Sequence:       row.Sequence,
			ContractID:     row.ContractID,
			Class:          model.CommodityClass(row.Class),
			Quantity:       row.Quantity,
			WithdrawalDate: row.WithdrawalDate.UTC(),
			BillAmount:     row.BillAmount,
			Breakdown:      row.Breakdown,
			IsPaid:         row.IsPaid,
		})
	}

	snapshot := model.Snapshot{
		Active:       []model.StorageContract{},
		Completed:    []model.StorageContract{},
		Rates:        model.RateSettings{AppleRate: rates.AppleRate, PotatoRate: rates.PotatoRate},
		NextSequence: nextSequence,
	}
	for _, row := range contracts {
		details := model.DetailsFor(model.CommodityClass(row.Class))
		if details == nil {
			return model.Snapshot{}, fmt.Errorf("contract %s has unknown class %q", row.ID, row.Class)
		}
		if apple, ok := details.(model.AppleDetails); ok && row.TruckNumber != nil {
			apple.TruckNumber = *row.TruckNumber
			details = apple
		}

		contract := model.StorageContract{
			ID: row.ID,
			Owner: model.Owner{
				FirstName: row.FirstName,
				LastName:  row.LastName,
				CNIC:      row.CNIC,
				Phone:     row.Phone,
				Address:   row.Address,
			},
			Details:          details,
			Quantity:         row.Quantity,
			OriginalQuantity: row.OriginalQuantity,
			StartDate:        dateOnly(row.StartDate),
			Status:           model.ContractStatus(row.Status),
			Withdrawals:      byContract[row.ID],
			CreatedAt:        row.CreatedAt.UTC(),
			UpdatedAt:        row.UpdatedAt.UTC(),
		}
		if row.EndDate != nil {
			contract.Completion = &model.Completion{
				EndDate:     dateOnly(*row.EndDate),
				FinalAmount: row.FinalAmount.Decimal,
			}
			if row.FinalBreakdown != nil {
				contract.Completion.FinalBreakdown = *row.FinalBreakdown
			}
		}

		if contract.IsCompleted() {
			snapshot.Completed = append(snapshot.Completed, contract)
		} else {
			snapshot.Active = append(snapshot.Active, contract)
		}
	}
	return snapshot, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
