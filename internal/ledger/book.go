// Package ledger owns storage contracts, the rate settings and the
// append-only withdrawal ledger, and moves contracts through their lifecycle.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/coldstore/internal/billing"
	"github.com/nurpe/coldstore/internal/model"
)

// Book is the in-memory contract collection. All mutations are serialised
// under one lock; reads and bill previews share a read lock.
type Book struct {
	mu        sync.RWMutex
	calc      billing.Calculator
	rates     model.RateSettings
	contracts map[string]*model.StorageContract
	order     []string
	nextSeq   int64

	now   func() time.Time
	newID func() string
}

type Option func(*Book)

func WithClock(now func() time.Time) Option {
	return func(b *Book) { b.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(b *Book) { b.newID = newID }
}

func New(calc billing.Calculator, rates model.RateSettings, opts ...Option) (*Book, error) {
	if err := validateRates(rates); err != nil {
		return nil, err
	}
	b := &Book{
		calc:      calc,
		rates:     rates,
		contracts: make(map[string]*model.StorageContract),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

type RegisterInput struct {
	Owner     model.Owner
	Details   model.ClassDetails
	Quantity  int
	StartDate time.Time
}

// UpdateInput carries the fields to change; nil fields are left untouched.
type UpdateInput struct {
	FirstName   *string
	LastName    *string
	CNIC        *string
	Phone       *string
	Address     *string
	TruckNumber *string
}

func (b *Book) Register(input RegisterInput) (model.StorageContract, error) {
	if input.Quantity <= 0 {
		return model.StorageContract{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if input.Details == nil || !input.Details.Class().Valid() {
		return model.StorageContract{}, fmt.Errorf("%w: commodity class is required", ErrValidation)
	}
	if input.StartDate.IsZero() {
		return model.StorageContract{}, fmt.Errorf("%w: start date is required", ErrValidation)
	}
	start := dateOnly(input.StartDate)
	if input.Details.Class() == model.ClassPotato {
		if err := billing.ValidateSeasonStart(start); err != nil {
			return model.StorageContract{}, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now().UTC()
	contract := &model.StorageContract{
		ID:               b.newID(),
		Owner:            input.Owner,
		Details:          input.Details,
		Quantity:         input.Quantity,
		OriginalQuantity: input.Quantity,
		StartDate:        start,
		Status:           model.ContractStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, exists := b.contracts[contract.ID]; exists {
		return model.StorageContract{}, fmt.Errorf("%w: duplicate contract id %s", ErrValidation, contract.ID)
	}
	b.contracts[contract.ID] = contract
	b.order = append(b.order, contract.ID)
	return contract.Clone(), nil
}

// PreviewBill computes what the whole remaining quantity would cost if it
// were withdrawn on asOf. It never changes state.
func (b *Book) PreviewBill(id string, asOf time.Time) (billing.Bill, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	contract, ok := b.contracts[id]
	if !ok {
		return billing.Bill{}, ErrNotFound
	}
	return b.calc.Calculate(contract.Class(), contract.Quantity, b.rates, contract.StartDate, dateOnly(asOf))
}

// Quote is a consistent read of one contract, the rates in force and, for an
// active contract, the bill for its remaining quantity.
type Quote struct {
	Contract model.StorageContract
	Rates    model.RateSettings
	Bill     billing.Bill
}

// Quote reads the contract and prices it as of asOf under a single lock.
// Completed contracts carry no bill.
func (b *Book) Quote(id string, asOf time.Time) (Quote, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	contract, ok := b.contracts[id]
	if !ok {
		return Quote{}, ErrNotFound
	}
	quote := Quote{Contract: contract.Clone(), Rates: b.rates}
	if contract.IsCompleted() {
		return quote, nil
	}
	bill, err := b.calc.Calculate(contract.Class(), contract.Quantity, b.rates, contract.StartDate, dateOnly(asOf))
	if err != nil {
		return Quote{}, err
	}
	quote.Bill = bill
	return quote, nil
}

// Withdraw removes quantity from an active contract, bills it up to now and
// appends the record to the ledger. Reaching zero completes the contract.
// Nothing changes when an error is returned.
func (b *Book) Withdraw(id string, quantity int, isPaid bool) (model.WithdrawalResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	contract, ok := b.contracts[id]
	if !ok {
		return model.WithdrawalResult{}, ErrNotFound
	}
	if contract.IsCompleted() {
		return model.WithdrawalResult{}, ErrAlreadyCompleted
	}
	if quantity <= 0 || quantity > contract.Quantity {
		return model.WithdrawalResult{}, fmt.Errorf("%w: requested %d, remaining %d",
			ErrInvalidQuantity, quantity, contract.Quantity)
	}

	instant := b.now()
	today := dateOnly(instant)
	now := instant.UTC()
	bill, err := b.calc.Calculate(contract.Class(), quantity, b.rates, contract.StartDate, today)
	if err != nil {
		return model.WithdrawalResult{}, err
	}

	record := model.WithdrawalRecord{
		ID:             b.newID(),
		Sequence:       b.nextSeq + 1,
		ContractID:     contract.ID,
		Class:          contract.Class(),
		Quantity:       quantity,
		WithdrawalDate: now,
		BillAmount:     bill.Amount,
		Breakdown:      bill.Breakdown,
		IsPaid:         isPaid,
	}

	updated := contract.Clone()
	updated.Withdrawals = append(updated.Withdrawals, record)
	updated.Quantity -= quantity
	updated.UpdatedAt = now
	if updated.Quantity == 0 {
		updated.Status = model.ContractStatusCompleted
		updated.Completion = &model.Completion{
			EndDate:        today,
			FinalAmount:    updated.BilledAmount(),
			FinalBreakdown: bill.Breakdown,
		}
	}

	b.contracts[id] = &updated
	b.nextSeq = record.Sequence

	return model.WithdrawalResult{
		Record:            record,
		RemainingQuantity: updated.Quantity,
		BillAmount:        bill.Amount,
		Completed:         updated.IsCompleted(),
	}, nil
}

func (b *Book) Update(id string, input UpdateInput) (model.StorageContract, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	contract, ok := b.contracts[id]
	if !ok {
		return model.StorageContract{}, ErrNotFound
	}
	if contract.IsCompleted() {
		return model.StorageContract{}, ErrAlreadyCompleted
	}

	updated := contract.Clone()
	if input.TruckNumber != nil {
		details, ok := updated.Details.(model.AppleDetails)
		if !ok {
			return model.StorageContract{}, fmt.Errorf("%w: truck number applies to %s contracts only",
				ErrValidation, model.ClassApple)
		}
		details.TruckNumber = *input.TruckNumber
		updated.Details = details
	}
	setIfPresent(&updated.Owner.FirstName, input.FirstName)
	setIfPresent(&updated.Owner.LastName, input.LastName)
	setIfPresent(&updated.Owner.CNIC, input.CNIC)
	setIfPresent(&updated.Owner.Phone, input.Phone)
	setIfPresent(&updated.Owner.Address, input.Address)
	updated.UpdatedAt = b.now().UTC()

	b.contracts[id] = &updated
	return updated.Clone(), nil
}

// Delete removes an active contract. Completed contracts are history and
// cannot be deleted.
func (b *Book) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	contract, ok := b.contracts[id]
	if !ok {
		return ErrNotFound
	}
	if contract.IsCompleted() {
		return ErrAlreadyCompleted
	}

	delete(b.contracts, id)
	for i, existing := range b.order {
		if existing == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return nil
}

func (b *Book) Get(id string) (model.StorageContract, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	contract, ok := b.contracts[id]
	if !ok {
		return model.StorageContract{}, ErrNotFound
	}
	return contract.Clone(), nil
}

// Active lists active contracts in registration order.
func (b *Book) Active() []model.StorageContract {
	return b.list(model.ContractStatusActive)
}

// Completed lists completed contracts in registration order.
func (b *Book) Completed() []model.StorageContract {
	return b.list(model.ContractStatusCompleted)
}

func (b *Book) list(status model.ContractStatus) []model.StorageContract {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]model.StorageContract, 0, len(b.order))
	for _, id := range b.order {
		if contract := b.contracts[id]; contract.Status == status {
			result = append(result, contract.Clone())
		}
	}
	return result
}

// Withdrawals returns the ledger of one contract in insertion order.
func (b *Book) Withdrawals(id string) ([]model.WithdrawalRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	contract, ok := b.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]model.WithdrawalRecord{}, contract.Withdrawals...), nil
}

// Ledger returns every withdrawal record of every contract in the order the
// withdrawals were made.
func (b *Book) Ledger() []model.WithdrawalRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var records []model.WithdrawalRecord
	for _, id := range b.order {
		records = append(records, b.contracts[id].Withdrawals...)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Sequence < records[j].Sequence
	})
	return records
}

func (b *Book) Rates() model.RateSettings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rates
}

// SetRates replaces the rates. Bills computed before the change keep their amounts.
func (b *Book) SetRates(rates model.RateSettings) error {
	if err := validateRates(rates); err != nil {
		return err
	}
	b.mu.Lock()
	b.rates = rates
	b.mu.Unlock()
	return nil
}

func (b *Book) Snapshot() model.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snapshot := model.Snapshot{
		Active:       []model.StorageContract{},
		Completed:    []model.StorageContract{},
		Rates:        b.rates,
		NextSequence: b.nextSeq,
	}
	for _, id := range b.order {
		contract := b.contracts[id]
		if contract.IsCompleted() {
			snapshot.Completed = append(snapshot.Completed, contract.Clone())
		} else {
			snapshot.Active = append(snapshot.Active, contract.Clone())
		}
	}
	return snapshot
}

// Restore replaces the whole state with snapshot after checking its invariants.
func (b *Book) Restore(snapshot model.Snapshot) error {
	if err := validateRates(snapshot.Rates); err != nil {
		return err
	}

	all := make([]model.StorageContract, 0, len(snapshot.Active)+len(snapshot.Completed))
	all = append(all, snapshot.Active...)
	all = append(all, snapshot.Completed...)
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	contracts := make(map[string]*model.StorageContract, len(all))
	order := make([]string, 0, len(all))
	nextSeq := snapshot.NextSequence
	for _, contract := range all {
		if err := checkInvariants(contract); err != nil {
			return err
		}
		if _, exists := contracts[contract.ID]; exists {
			return fmt.Errorf("%w: duplicate contract id %s", ErrValidation, contract.ID)
		}
		for _, w := range contract.Withdrawals {
			if w.Sequence > nextSeq {
				nextSeq = w.Sequence
			}
		}
		restored := contract.Clone()
		contracts[contract.ID] = &restored
		order = append(order, contract.ID)
	}

	b.mu.Lock()
	b.contracts = contracts
	b.order = order
	b.rates = snapshot.Rates
	b.nextSeq = nextSeq
	b.mu.Unlock()
	return nil
}

func checkInvariants(c model.StorageContract) error {
	if c.ID == "" {
		return fmt.Errorf("%w: contract without id", ErrValidation)
	}
	if c.Details == nil || !c.Details.Class().Valid() {
		return fmt.Errorf("%w: contract %s has no commodity class", ErrValidation, c.ID)
	}
	if c.Quantity < 0 {
		return fmt.Errorf("%w: contract %s has negative quantity", ErrValidation, c.ID)
	}
	if (c.Quantity == 0) != c.IsCompleted() {
		return fmt.Errorf("%w: contract %s status %s does not match quantity %d",
			ErrValidation, c.ID, c.Status, c.Quantity)
	}
	if c.WithdrawnQuantity()+c.Quantity != c.OriginalQuantity {
		return fmt.Errorf("%w: contract %s ledger does not add up to original quantity",
			ErrValidation, c.ID)
	}
	return nil
}

func validateRates(rates model.RateSettings) error {
	if rates.AppleRate.IsNegative() || rates.PotatoRate.IsNegative() {
		return fmt.Errorf("%w: rates must not be negative", ErrValidation)
	}
	return nil
}

func setIfPresent(dst *string, value *string) {
	if value != nil {
		*dst = *value
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
