package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/coldstore/internal/billing"
	"github.com/nurpe/coldstore/internal/ledger"
	"github.com/nurpe/coldstore/internal/metrics"
	"github.com/nurpe/coldstore/internal/model"
)

// SnapshotStore persists the whole ledger state. Load returns nil when
// nothing has been stored yet.
type SnapshotStore interface {
	Load(ctx context.Context) (*model.Snapshot, error)
	Save(ctx context.Context, snapshot model.Snapshot) error
}

type StorageService struct {
	mu    sync.Mutex
	book  *ledger.Book
	store SnapshotStore
	log   zerolog.Logger
	now   func() time.Time
}

type WithdrawInput struct {
	ContractID string
	Quantity   int
	IsPaid     bool
	Principal  model.Principal
}

type UpdateRatesInput struct {
	AppleRate  *decimal.Decimal
	PotatoRate *decimal.Decimal
	Principal  model.Principal
}

type ListFilter struct {
	Status model.ContractStatus
	Class  model.CommodityClass
}

func NewStorageService(book *ledger.Book, store SnapshotStore, log zerolog.Logger) *StorageService {
	return &StorageService{
		book:  book,
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// Load rehydrates the ledger from the store. With nothing stored the book
// keeps the rates it was built with.
func (s *StorageService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snapshot == nil {
		s.log.Info().Msg("no stored ledger, starting empty")
		return nil
	}
	if err := s.book.Restore(*snapshot); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	metrics.ActiveContracts.Set(float64(len(snapshot.Active)))
	s.log.Info().
		Int("active", len(snapshot.Active)).
		Int("completed", len(snapshot.Completed)).
		Msg("ledger restored")
	return nil
}

func (s *StorageService) Register(ctx context.Context, principal model.Principal, input ledger.RegisterInput) (model.StorageContract, error) {
	if !principal.CanMutate() {
		return model.StorageContract{}, ErrPermissionDenied
	}

	var contract model.StorageContract
	err := s.mutate(ctx, "register", func() error {
		var err error
		contract, err = s.book.Register(input)
		return err
	})
	if err != nil {
		return model.StorageContract{}, err
	}

	metrics.ContractsRegisteredTotal.WithLabelValues(string(contract.Class())).Inc()
	s.log.Info().
		Str("contract_id", contract.ID).
		Str("class", string(contract.Class())).
		Int("quantity", contract.Quantity).
		Msg("contract registered")
	return contract, nil
}

func (s *StorageService) Withdraw(ctx context.Context, input WithdrawInput) (model.WithdrawalResult, error) {
	if !input.Principal.CanMutate() {
		return model.WithdrawalResult{}, ErrPermissionDenied
	}

	var result model.WithdrawalResult
	err := s.mutate(ctx, "withdraw", func() error {
		var err error
		result, err = s.book.Withdraw(input.ContractID, input.Quantity, input.IsPaid)
		return err
	})
	if err != nil {
		return model.WithdrawalResult{}, err
	}

	class := string(result.Record.Class)
	metrics.WithdrawalsTotal.WithLabelValues(class).Inc()
	metrics.BilledAmountTotal.WithLabelValues(class).Add(result.BillAmount.InexactFloat64())
	if result.Completed {
		metrics.ContractsCompletedTotal.WithLabelValues(class).Inc()
	}
	s.log.Info().
		Str("contract_id", input.ContractID).
		Int("quantity", input.Quantity).
		Int("remaining", result.RemainingQuantity).
		Str("amount", result.BillAmount.String()).
		Bool("completed", result.Completed).
		Msg("withdrawal recorded")
	return result, nil
}

func (s *StorageService) Update(ctx context.Context, principal model.Principal, id string, input ledger.UpdateInput) (model.StorageContract, error) {
	if !principal.CanMutate() {
		return model.StorageContract{}, ErrPermissionDenied
	}

	var contract model.StorageContract
	err := s.mutate(ctx, "update", func() error {
		var err error
		contract, err = s.book.Update(id, input)
		return err
	})
	if err != nil {
		return model.StorageContract{}, err
	}
	return contract, nil
}

func (s *StorageService) Delete(ctx context.Context, principal model.Principal, id string) error {
	if !principal.CanMutate() {
		return ErrPermissionDenied
	}
	err := s.mutate(ctx, "delete", func() error {
		return s.book.Delete(id)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("contract_id", id).Msg("contract deleted")
	return nil
}

// UpdateRates changes only the rates that are set in input.
func (s *StorageService) UpdateRates(ctx context.Context, input UpdateRatesInput) (model.RateSettings, error) {
	if !input.Principal.IsAdmin() {
		return model.RateSettings{}, ErrPermissionDenied
	}
	if input.AppleRate == nil && input.PotatoRate == nil {
		return model.RateSettings{}, fmt.Errorf("%w: no rate given", ErrInvalidInput)
	}

	var rates model.RateSettings
	err := s.mutate(ctx, "update_rates", func() error {
		rates = s.book.Rates()
		if input.AppleRate != nil {
			rates.AppleRate = *input.AppleRate
		}
		if input.PotatoRate != nil {
			rates.PotatoRate = *input.PotatoRate
		}
		return s.book.SetRates(rates)
	})
	if err != nil {
		return model.RateSettings{}, err
	}
	s.log.Info().
		Str("apple_rate", rates.AppleRate.String()).
		Str("potato_rate", rates.PotatoRate.String()).
		Msg("rates updated")
	return rates, nil
}

// PreviewBill prices the remaining quantity as if withdrawn on asOf, or now
// when asOf is zero.
func (s *StorageService) PreviewBill(_ context.Context, id string, asOf time.Time) (billing.Bill, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	return s.book.PreviewBill(id, asOf)
}

// Quote reads a contract with its rates and current bill in one consistent view.
func (s *StorageService) Quote(_ context.Context, id string, asOf time.Time) (ledger.Quote, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	return s.book.Quote(id, asOf)
}

func (s *StorageService) Get(_ context.Context, id string) (model.StorageContract, error) {
	return s.book.Get(id)
}

func (s *StorageService) List(_ context.Context, filter ListFilter) []model.StorageContract {
	var contracts []model.StorageContract
	switch filter.Status {
	case model.ContractStatusActive:
		contracts = s.book.Active()
	case model.ContractStatusCompleted:
		contracts = s.book.Completed()
	default:
		contracts = append(s.book.Active(), s.book.Completed()...)
	}
	if filter.Class == "" {
		return contracts
	}
	result := make([]model.StorageContract, 0, len(contracts))
	for _, contract := range contracts {
		if contract.Class() == filter.Class {
			result = append(result, contract)
		}
	}
	return result
}

func (s *StorageService) Withdrawals(_ context.Context, id string) ([]model.WithdrawalRecord, error) {
	return s.book.Withdrawals(id)
}

// Ledger lists withdrawals of every contract, optionally of one class only.
func (s *StorageService) Ledger(_ context.Context, class model.CommodityClass) []model.WithdrawalRecord {
	records := s.book.Ledger()
	if class == "" {
		return records
	}
	result := make([]model.WithdrawalRecord, 0, len(records))
	for _, record := range records {
		if record.Class == class {
			result = append(result, record)
		}
	}
	return result
}

func (s *StorageService) Rates(_ context.Context) model.RateSettings {
	return s.book.Rates()
}

// mutate applies change and persists the resulting snapshot. When the save
// fails the book goes back to the state it had before change.
func (s *StorageService) mutate(ctx context.Context, operation string, change func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.book.Snapshot()
	if err := change(); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues(operation).Inc()
		return err
	}

	after := s.book.Snapshot()
	start := time.Now()
	err := s.store.Save(ctx, after)
	metrics.SnapshotSaveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues(operation).Inc()
		if restoreErr := s.book.Restore(before); restoreErr != nil {
			s.log.Error().Err(restoreErr).Str("operation", operation).Msg("failed to roll back ledger")
			return errors.Join(fmt.Errorf("save snapshot: %w", err), restoreErr)
		}
		s.log.Error().Err(err).Str("operation", operation).Msg("failed to save snapshot, change rolled back")
		return fmt.Errorf("save snapshot: %w", err)
	}

	metrics.ActiveContracts.Set(float64(len(after.Active)))
	return nil
}
