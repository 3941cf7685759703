package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/coldstore/internal/billing"
	"github.com/nurpe/coldstore/internal/model"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%03d", n)
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestBook(t *testing.T, clock *testClock) *Book {
	t.Helper()
	rates := model.RateSettings{AppleRate: decimal.NewFromInt(100), PotatoRate: decimal.NewFromInt(1200)}
	book, err := New(billing.NewCalculator("PKR"), rates, WithClock(clock.Now), WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)
	return book
}

func registerApple(t *testing.T, book *Book, quantity int, start time.Time) model.StorageContract {
	t.Helper()
	contract, err := book.Register(RegisterInput{
		Owner:     model.Owner{FirstName: "Ali", LastName: "Khan", CNIC: "12345-1234567-1", Phone: "0300-1234567"},
		Details:   model.AppleDetails{TruckNumber: "LES-123"},
		Quantity:  quantity,
		StartDate: start,
	})
	require.NoError(t, err)
	return contract
}

func assertLedgerBalances(t *testing.T, c model.StorageContract) {
	t.Helper()
	assert.Equal(t, c.OriginalQuantity, c.WithdrawnQuantity()+c.Quantity)
}

func TestBook_Register(t *testing.T) {
	clock := &testClock{now: date(2025, time.January, 1)}
	book := newTestBook(t, clock)

	contract := registerApple(t, book, 10, time.Date(2025, time.January, 5, 14, 30, 0, 0, time.UTC))
	assert.Equal(t, "id-001", contract.ID)
	assert.Equal(t, model.ClassApple, contract.Class())
	assert.Equal(t, model.ContractStatusActive, contract.Status)
	assert.Equal(t, 10, contract.Quantity)
	assert.Equal(t, 10, contract.OriginalQuantity)
	assert.Equal(t, date(2025, time.January, 5), contract.StartDate)
	assert.Empty(t, contract.Withdrawals)
	assert.Nil(t, contract.Completion)

	truck, ok := contract.TruckNumber()
	assert.True(t, ok)
	assert.Equal(t, "LES-123", truck)
}

func TestBook_RegisterValidation(t *testing.T) {
	clock := &testClock{now: date(2025, time.January, 1)}
	book := newTestBook(t, clock)

	_, err := book.Register(RegisterInput{Details: model.AppleDetails{}, Quantity: 0, StartDate: date(2025, 1, 1)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = book.Register(RegisterInput{Details: model.AppleDetails{}, Quantity: -3, StartDate: date(2025, 1, 1)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = book.Register(RegisterInput{Quantity: 3, StartDate: date(2025, 1, 1)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = book.Register(RegisterInput{Details: model.AppleDetails{}, Quantity: 3})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = book.Register(RegisterInput{Details: model.PotatoDetails{}, Quantity: 3, StartDate: date(2025, time.November, 2)})
	assert.ErrorIs(t, err, billing.ErrInvalidPeriod)

	assert.Empty(t, book.Active())
}

func TestBook_WithdrawPartialThenComplete(t *testing.T) {
	clock := &testClock{now: date(2025, time.January, 1)}
	book := newTestBook(t, clock)
	contract := registerApple(t, book, 10, date(2025, time.January, 1))

	clock.Set(date(2025, time.February, 15))
	result, err := book.Withdraw(contract.ID, 4, true)
	require.NoError(t, err)
	assert.Equal(t, 6, result.RemainingQuantity)
	assert.True(t, result.BillAmount.Equal(decimal.NewFromInt(600)), result.BillAmount.String())
	assert.False(t, result.Completed)
	assert.Equal(t, int64(1), result.Record.Sequence)
	assert.True(t, result.Record.IsPaid)
	assert.Equal(t, model.ClassApple, result.Record.Class)

	got, err := book.Get(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusActive, got.Status)
	require.Len(t, got.Withdrawals, 1)
	assertLedgerBalances(t, got)

	clock.Set(date(2025, time.February, 25))
	result, err = book.Withdraw(contract.ID, 6, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.RemainingQuantity)
	assert.True(t, result.BillAmount.Equal(decimal.NewFromInt(1200)), result.BillAmount.String())
	assert.True(t, result.Completed)

	got, err = book.Get(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusCompleted, got.Status)
	require.Len(t, got.Withdrawals, 2)
	assertLedgerBalances(t, got)
	require.NotNil(t, got.Completion)
	assert.Equal(t, date(2025, time.February, 25), got.Completion.EndDate)
	assert.True(t, got.Completion.FinalAmount.Equal(decimal.NewFromInt(1800)))
	assert.Contains(t, got.Completion.FinalBreakdown, "Full rate")

	assert.Empty(t, book.Active())
	assert.Len(t, book.Completed(), 1)
}

func TestBook_CompletedIsTerminal(t *testing.T) {
	clock := &testClock{now: date(2025, time.March, 1)}
	book := newTestBook(t, clock)
	contract := registerApple(t, book, 2, date(2025, time.March, 1))

	_, err := book.Withdraw(contract.ID, 2, false)
	require.NoError(t, err)

	_, err = book.Withdraw(contract.ID, 1, false)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	name := "Other"
	_, err = book.Update(contract.ID, UpdateInput{FirstName: &name})
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	err = book.Delete(contract.ID)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	got, err := book.Get(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ali", got.Owner.FirstName)
	assert.Len(t, got.Withdrawals, 1)
}

func TestBook_WithdrawInvalidQuantityLeavesStateUntouched(t *testing.T) {
	clock := &testClock{now: date(2025, time.January, 10)}
	book := newTestBook(t, clock)
	contract := registerApple(t, book, 5, date(2025, time.January, 1))
	before := book.Snapshot()

	for _, quantity := range []int{0, -1, 6} {
		_, err := book.Withdraw(contract.ID, quantity, false)
		assert.ErrorIs(t, err, ErrInvalidQuantity, "quantity %d", quantity)
	}

	assert.Equal(t, before, book.Snapshot())
}

func TestBook_WithdrawUnknown(t *testing.T) {
	book := newTestBook(t, &testClock{now: date(2025, 1, 1)})
	_, err := book.Withdraw("missing", 1, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBook_WithdrawBillingErrorLeavesStateUntouched(t *testing.T) {
	clock := &testClock{now: date(2025, time.June, 1)}
	book := newTestBook(t, clock)
	contract := registerApple(t, book, 5, date(2025, time.June, 10))
	before := book.Snapshot()

	_, err := book.Withdraw(contract.ID, 1, false)
	assert.ErrorIs(t, err, billing.ErrInvalidInput)
	assert.Equal(t, before, book.Snapshot())
}

func TestBook_PotatoWithdrawalIgnoresDates(t *testing.T) {
	clock := &testClock{now: date(2025, time.February, 1)}
	book := newTestBook(t, clock)
	contract, err := book.Register(RegisterInput{
		Owner:     model.Owner{FirstName: "Sana"},
		Details:   model.PotatoDetails{},
		Quantity:  5,
		StartDate: date(2025, time.January, 15),
	})
	require.NoError(t, err)

	clock.Set(date(2025, time.February, 2))
	result, err := book.Withdraw(contract.ID, 5, false)
	require.NoError(t, err)
	assert.True(t, result.BillAmount.Equal(decimal.NewFromInt(6000)))
	assert.True(t, result.Completed)
}

func TestBook_LedgerInvariantOverSequence(t *testing.T) {
	clock := &testClock{now: date(2025, time.January, 1)}
	book := newTestBook(t, clock)
	contract := registerApple(t, book, 20, date(2025, time.January, 1))

	for i, quantity := range []int{3, 1, 7, 2, 7} {
		clock.Set(date(2025, time.January, 1).AddDate(0, i, 5))
		_, err := book.Withdraw(contract.ID, quantity, i%2 == 0)
		require.NoError(t, err)

		got, err := book.Get(contract.ID)
		require.NoError(t, err)
		assertLedgerBalances(t, got)
	}

	got, err := book.Get(contract.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted())
	assert.Len(t, got.Withdrawals, 5)
}

func TestBook_PreviewBillDoesNotMutate(t *testing.T) {
	clock := &testClock{now: date(2025, time.January, 1)}
	book := newTestBook(t, clock)
	contract := registerApple(t, book, 10, date(2025, time.January, 1))
	before := book.Snapshot()

	bill, err := book.PreviewBill(contract.ID, date(2025, time.February, 15))
	require.NoError(t, err)
	assert.True(t, bill.Amount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, before, book.Snapshot())

	_, err = book.PreviewBill("missing", date(2025, time.February, 15))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBook_RatesApplyToLaterBills(t *testing.T) {
	clock := &testClock{now: date(2025, time.January, 20)}
	book := newTestBook(t, clock)
	contract := registerApple(t, book, 10, date(2025, time.January, 1))

	first, err := book.Withdraw(contract.ID, 1, false)
	require.NoError(t, err)

	require.NoError(t, book.SetRates(model.RateSettings{AppleRate: decimal.NewFromInt(200), PotatoRate: decimal.NewFromInt(1200)}))
	second, err := book.Withdraw(contract.ID, 1, false)
	require.NoError(t, err)

	assert.True(t, first.BillAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, second.BillAmount.Equal(decimal.NewFromInt(200)))

	records, err := book.Withdrawals(contract.ID)
	require.NoError(t, err)
	assert.True(t, records[0].BillAmount.Equal(decimal.NewFromInt(100)))

	err = book.SetRates(model.RateSettings{AppleRate: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBook_Update(t *testing.T) {
	clock := &testClock{now: date(2025, time.January, 1)}
	book := newTestBook(t, clock)
	contract := registerApple(t, book, 10, date(2025, time.January, 1))

	phone := "0311-7654321"
	truck := "LHR-9"
	updated, err := book.Update(contract.ID, UpdateInput{Phone: &phone, TruckNumber: &truck})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Owner.Phone)
	assert.Equal(t, "Ali", updated.Owner.FirstName)
	assert.Equal(t, 10, updated.Quantity)
	gotTruck, _ := updated.TruckNumber()
	assert.Equal(t, truck, gotTruck)

	potato, err := book.Register(RegisterInput{Details: model.PotatoDetails{}, Quantity: 1, StartDate: date(2025, 2, 1)})
	require.NoError(t, err)
	_, err = book.Update(potato.ID, UpdateInput{TruckNumber: &truck})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = book.Update("missing", UpdateInput{Phone: &phone})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBook_Delete(t *testing.T) {
	clock := &testClock{now: date(2025, time.January, 1)}
	book := newTestBook(t, clock)
	first := registerApple(t, book, 10, date(2025, time.January, 1))
	second := registerApple(t, book, 3, date(2025, time.January, 2))

	require.NoError(t, book.Delete(first.ID))
	_, err := book.Get(first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, book.Delete(first.ID), ErrNotFound)

	active := book.Active()
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestBook_LedgerOrderIsCallOrder(t *testing.T) {
	clock := &testClock{now: date(2025, time.March, 10)}
	book := newTestBook(t, clock)
	a := registerApple(t, book, 5, date(2025, time.January, 1))
	b := registerApple(t, book, 5, date(2025, time.January, 1))

	_, err := book.Withdraw(b.ID, 1, false)
	require.NoError(t, err)
	clock.Set(date(2025, time.March, 5))
	_, err = book.Withdraw(a.ID, 1, false)
	require.NoError(t, err)
	_, err = book.Withdraw(b.ID, 1, false)
	require.NoError(t, err)

	records := book.Ledger()
	require.Len(t, records, 3)
	assert.Equal(t, []string{b.ID, a.ID, b.ID}, []string{records[0].ContractID, records[1].ContractID, records[2].ContractID})
	assert.Equal(t, date(2025, time.March, 10), records[0].WithdrawalDate)
	assert.Equal(t, date(2025, time.March, 5), records[1].WithdrawalDate)
}

func TestBook_ReturnedContractsAreCopies(t *testing.T) {
	clock := &testClock{now: date(2025, time.January, 5)}
	book := newTestBook(t, clock)
	contract := registerApple(t, book, 5, date(2025, time.January, 1))
	_, err := book.Withdraw(contract.ID, 1, false)
	require.NoError(t, err)

	got, err := book.Get(contract.ID)
	require.NoError(t, err)
	got.Withdrawals[0].Quantity = 99
	got.Quantity = 0

	again, err := book.Get(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Withdrawals[0].Quantity)
	assert.Equal(t, 4, again.Quantity)
}

func TestBook_SnapshotRestore(t *testing.T) {
	clock := &testClock{now: date(2025, time.January, 1)}
	book := newTestBook(t, clock)
	a := registerApple(t, book, 5, date(2025, time.January, 1))
	clock.Set(date(2025, time.January, 2))
	registerApple(t, book, 2, date(2025, time.January, 2))

	clock.Set(date(2025, time.February, 20))
	_, err := book.Withdraw(a.ID, 5, true)
	require.NoError(t, err)

	snapshot := book.Snapshot()
	require.Len(t, snapshot.Active, 1)
	require.Len(t, snapshot.Completed, 1)
	assert.Equal(t, int64(1), snapshot.NextSequence)

	restored := newTestBook(t, clock)
	require.NoError(t, restored.Restore(snapshot))
	assert.Equal(t, snapshot, restored.Snapshot())

	b := snapshot.Active[0]
	result, err := restored.Withdraw(b.ID, 1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Record.Sequence)
}

func TestBook_RestoreRejectsBrokenInvariants(t *testing.T) {
	book := newTestBook(t, &testClock{now: date(2025, 1, 1)})

	broken := model.Snapshot{
		Active: []model.StorageContract{{
			ID:               "x",
			Details:          model.AppleDetails{},
			Quantity:         3,
			OriginalQuantity: 5,
			Status:           model.ContractStatusActive,
		}},
	}
	assert.ErrorIs(t, book.Restore(broken), ErrValidation)

	broken.Active[0].Quantity = 0
	broken.Active[0].OriginalQuantity = 0
	assert.ErrorIs(t, book.Restore(broken), ErrValidation)
}

func TestBook_ConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	clock := &testClock{now: date(2025, time.January, 20)}
	book := newTestBook(t, clock)
	contract := registerApple(t, book, 50, date(2025, time.January, 1))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = book.Withdraw(contract.ID, 1, false)
		}()
	}
	wg.Wait()

	got, err := book.Get(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
	assert.Len(t, got.Withdrawals, 50)
	assert.True(t, got.IsCompleted())
	assertLedgerBalances(t, got)
}

func TestBook_WithdrawBillsTheClockLocalDate(t *testing.T) {
	karachi := time.FixedZone("PKT", 5*60*60)
	instant := time.Date(2025, time.February, 4, 3, 0, 0, 0, karachi)
	clock := &testClock{now: date(2025, time.January, 1)}
	book := newTestBook(t, clock)
	contract := registerApple(t, book, 10, date(2025, time.January, 1))

	clock.Set(instant)
	preview, err := book.PreviewBill(contract.ID, instant)
	require.NoError(t, err)

	result, err := book.Withdraw(contract.ID, 10, false)
	require.NoError(t, err)

	assert.True(t, result.BillAmount.Equal(decimal.NewFromInt(1500)), "got %s", result.BillAmount)
	assert.True(t, preview.Amount.Equal(result.BillAmount), "preview %s withdraw %s", preview.Amount, result.BillAmount)
	assert.Equal(t, instant.UTC(), result.Record.WithdrawalDate)

	completed, err := book.Get(contract.ID)
	require.NoError(t, err)
	require.NotNil(t, completed.Completion)
	assert.Equal(t, date(2025, time.February, 4), completed.Completion.EndDate)
}

func TestBook_Quote(t *testing.T) {
	clock := &testClock{now: date(2025, time.January, 1)}
	book := newTestBook(t, clock)
	contract := registerApple(t, book, 10, date(2025, time.January, 1))

	quote, err := book.Quote(contract.ID, date(2025, time.February, 20))
	require.NoError(t, err)
	assert.Equal(t, contract.ID, quote.Contract.ID)
	assert.True(t, quote.Rates.AppleRate.Equal(decimal.NewFromInt(100)))
	assert.True(t, quote.Bill.Amount.Equal(decimal.NewFromInt(2000)), "got %s", quote.Bill.Amount)

	clock.Set(date(2025, time.February, 20))
	_, err = book.Withdraw(contract.ID, 10, true)
	require.NoError(t, err)

	quote, err = book.Quote(contract.ID, date(2025, time.March, 20))
	require.NoError(t, err)
	assert.True(t, quote.Contract.IsCompleted())
	assert.True(t, quote.Bill.Amount.IsZero())

	_, err = book.Quote("missing", date(2025, time.March, 20))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBook_RestoreOrdersTiesByID(t *testing.T) {
	clock := &testClock{now: date(2025, time.January, 1)}
	book := newTestBook(t, clock)
	first := registerApple(t, book, 5, date(2025, time.January, 1))
	second := registerApple(t, book, 5, date(2025, time.January, 1))
	third := registerApple(t, book, 5, date(2025, time.January, 1))

	clock.Set(date(2025, time.February, 20))
	_, err := book.Withdraw(first.ID, 5, true)
	require.NoError(t, err)

	restored := newTestBook(t, clock)
	require.NoError(t, restored.Restore(book.Snapshot()))

	ids := func(contracts []model.StorageContract) []string {
		out := make([]string, 0, len(contracts))
		for _, c := range contracts {
			out = append(out, c.ID)
		}
		return out
	}
	assert.Equal(t, []string{second.ID, third.ID}, ids(restored.Active()))
	assert.Equal(t, []string{first.ID}, ids(restored.Completed()))
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, restored.order)
	assert.Equal(t, book.Snapshot(), restored.Snapshot())
}
