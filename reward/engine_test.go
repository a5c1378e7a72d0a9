package reward

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kodiak-network/kodiak/core"
	"github.com/kodiak-network/kodiak/epoch"
	"github.com/kodiak-network/kodiak/params"
)

const testStart = 1000

var alice = common.HexToAddress("0xa11ce00000000000000000000000000000000001")

func testEconomy() *params.Economy {
	return &params.Economy{
		EpochLength:        100,
		Capacity:           big.NewInt(10_000),
		MinSupply:          big.NewInt(1),
		UnitCostPerEpoch:   big.NewInt(1),
		UnitRewardPerEpoch: big.NewInt(10),
		GrowthRate:         big.NewInt(1),
		GrowthScale:        big.NewInt(10),
		HealMargin:         big.NewInt(100),
		UnitCost:           big.NewInt(1000),
	}
}

// testBank is an in-memory FungibleLedger.
type testBank struct {
	balances map[common.Address]*big.Int
	mintErr  error
}

func newTestBank() *testBank {
	return &testBank{balances: make(map[common.Address]*big.Int)}
}

func (b *testBank) Mint(account common.Address, amount *big.Int) error {
	if b.mintErr != nil {
		return b.mintErr
	}
	cur, ok := b.balances[account]
	if !ok {
		cur = new(big.Int)
		b.balances[account] = cur
	}
	cur.Add(cur, amount)
	return nil
}

func (b *testBank) Burn(account common.Address, amount *big.Int) error {
	cur, ok := b.balances[account]
	if !ok || cur.Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	cur.Sub(cur, amount)
	return nil
}

func (b *testBank) BalanceOf(account common.Address) *big.Int {
	if cur, ok := b.balances[account]; ok {
		return new(big.Int).Set(cur)
	}
	return new(big.Int)
}

func newTestEngine(t *testing.T) (*Engine, *core.GlobalState, *testBank) {
	t.Helper()
	econ := testEconomy()
	st, err := core.NewGlobalState(econ, big.NewInt(6899), testStart)
	if err != nil {
		t.Fatalf("NewGlobalState: %v", err)
	}
	bank := newTestBank()
	return NewEngine(econ, epoch.New(testStart, econ.EpochLength), bank), st, bank
}

func epochTime(n uint64) uint64 { return testStart + n*100 }

func TestCalculatePlainAccrual(t *testing.T) {
	e, st, _ := newTestEngine(t)
	pos := core.Position{Units: 3, LastClaim: epochTime(0)}

	q := e.Calculate(st, pos, epochTime(8))
	if q.CappedAt != 0 {
		t.Fatalf("cappedAt = %d, want 0", q.CappedAt)
	}
	if want := int64(3 * 10 * 8); q.Amount.Int64() != want {
		t.Fatalf("amount = %v, want %d", q.Amount, want)
	}
}

func TestCalculateZeroCases(t *testing.T) {
	e, st, _ := newTestEngine(t)

	if q := e.Calculate(st, core.Position{Units: 3, LastClaim: epochTime(5)}, epochTime(5)+50); q.Amount.Sign() != 0 {
		t.Fatalf("zero elapsed epochs accrued %v", q.Amount)
	}
	if q := e.Calculate(st, core.Position{Units: 0, LastClaim: epochTime(0)}, epochTime(9)); q.Amount.Sign() != 0 {
		t.Fatalf("zero units accrued %v", q.Amount)
	}
}

func TestCalculateCapsAtExtinction(t *testing.T) {
	e, st, _ := newTestEngine(t)
	extinctAt := epochTime(5)
	st.Extinctions.Append(extinctAt)

	pos := core.Position{Units: 4, LastClaim: epochTime(2)}

	// Rewards run for exactly epochs 2..5 no matter how late settlement is.
	for _, now := range []uint64{epochTime(6), epochTime(50), epochTime(500)} {
		q := e.Calculate(st, pos, now)
		if q.CappedAt != extinctAt {
			t.Fatalf("cappedAt = %d, want %d", q.CappedAt, extinctAt)
		}
		if want := int64(4 * 10 * (5 - 2)); q.Amount.Int64() != want {
			t.Fatalf("amount at now=%d is %v, want %d", now, q.Amount, want)
		}
	}
}

func TestCalculateEarliestEntryInclusiveBoundary(t *testing.T) {
	e, st, _ := newTestEngine(t)
	first := epochTime(5)
	st.Extinctions.Append(first)
	st.Extinctions.Append(epochTime(20))

	// A claim stamped at the exact instant of the first extinction still
	// selects that extinction (inclusive boundary) and earns zero epochs.
	q := e.Calculate(st, core.Position{Units: 7, LastClaim: first}, epochTime(30))
	if q.CappedAt != first {
		t.Fatalf("cappedAt = %d, want first entry %d", q.CappedAt, first)
	}
	if q.Amount.Sign() != 0 {
		t.Fatalf("amount = %v, want 0", q.Amount)
	}

	// One second later the strict lookup applies and finds the second entry.
	q = e.Calculate(st, core.Position{Units: 7, LastClaim: first + 1}, epochTime(30))
	if q.CappedAt != epochTime(20) {
		t.Fatalf("cappedAt = %d, want second entry %d", q.CappedAt, epochTime(20))
	}
}

func TestCalculateAfterAllExtinctions(t *testing.T) {
	e, st, _ := newTestEngine(t)
	st.Extinctions.Append(epochTime(5))

	// Claimed after the last extinction: plain accrual from there.
	q := e.Calculate(st, core.Position{Units: 2, LastClaim: epochTime(10)}, epochTime(14))
	if q.CappedAt != 0 {
		t.Fatalf("cappedAt = %d, want 0", q.CappedAt)
	}
	if want := int64(2 * 10 * 4); q.Amount.Int64() != want {
		t.Fatalf("amount = %v, want %d", q.Amount, want)
	}
}

func TestSettleMintsAndStamps(t *testing.T) {
	e, st, bank := newTestEngine(t)
	pos := &core.Position{Units: 3, LastClaim: epochTime(0)}
	now := epochTime(8)

	q, err := e.Settle(st, alice, pos, now)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if want := int64(240); q.Amount.Int64() != want {
		t.Fatalf("settled %v, want %d", q.Amount, want)
	}
	if bank.BalanceOf(alice).Int64() != 240 {
		t.Fatalf("balance = %v, want 240", bank.BalanceOf(alice))
	}
	if st.TotalDistributed.Int64() != 240 {
		t.Fatalf("totalDistributed = %v, want 240", st.TotalDistributed)
	}
	if pos.LastClaim != now {
		t.Fatalf("lastClaim = %d, want %d", pos.LastClaim, now)
	}
	if pos.Units != 3 {
		t.Fatalf("units = %d, want 3", pos.Units)
	}
}

func TestSettleIdempotentAtZeroElapsed(t *testing.T) {
	e, st, bank := newTestEngine(t)
	pos := &core.Position{Units: 3, LastClaim: epochTime(0)}
	now := epochTime(8)

	if _, err := e.Settle(st, alice, pos, now); err != nil {
		t.Fatal(err)
	}
	q, err := e.Settle(st, alice, pos, now)
	if err != nil {
		t.Fatal(err)
	}
	if q.Amount.Sign() != 0 {
		t.Fatalf("second settle in the same epoch paid %v", q.Amount)
	}
	if bank.BalanceOf(alice).Int64() != 240 {
		t.Fatalf("balance changed on idempotent settle: %v", bank.BalanceOf(alice))
	}
}

func TestSettleZeroesDeadPosition(t *testing.T) {
	e, st, bank := newTestEngine(t)
	extinctAt := epochTime(5)
	st.Extinctions.Append(extinctAt)
	pos := &core.Position{Units: 4, LastClaim: epochTime(2)}

	q, err := e.Settle(st, alice, pos, epochTime(12))
	if err != nil {
		t.Fatal(err)
	}
	if q.CappedAt != extinctAt {
		t.Fatalf("cappedAt = %d, want %d", q.CappedAt, extinctAt)
	}
	if pos.Units != 0 {
		t.Fatalf("units = %d, want 0 after extinction settlement", pos.Units)
	}
	if bank.BalanceOf(alice).Int64() != 4*10*3 {
		t.Fatalf("balance = %v, want %d", bank.BalanceOf(alice), 4*10*3)
	}
}

func TestPostHealNonAccrual(t *testing.T) {
	e, st, _ := newTestEngine(t)
	st.Extinctions.Append(epochTime(5))
	st.Paused = true
	pos := core.Position{Units: 4, LastClaim: epochTime(2)}

	before := e.Calculate(st, pos, epochTime(10))

	// Heal the economy: pause clears, but the stale position earns nothing
	// for the collapsed epochs nor for anything after.
	st.Paused = false
	after := e.Calculate(st, pos, epochTime(40))

	if before.Amount.Cmp(after.Amount) != 0 || before.CappedAt != after.CappedAt {
		t.Fatalf("quote changed across heal: (%v,%d) vs (%v,%d)",
			before.Amount, before.CappedAt, after.Amount, after.CappedAt)
	}
}

func TestSettleMintFailureLeavesStateUntouched(t *testing.T) {
	e, st, bank := newTestEngine(t)
	bank.mintErr = errors.New("bank offline")
	pos := &core.Position{Units: 3, LastClaim: epochTime(0)}

	if _, err := e.Settle(st, alice, pos, epochTime(8)); err == nil {
		t.Fatal("expected mint failure to surface")
	}
	if pos.LastClaim != epochTime(0) || pos.Units != 3 {
		t.Fatalf("position mutated on failed settle: %+v", pos)
	}
	if st.TotalDistributed.Sign() != 0 {
		t.Fatalf("totalDistributed mutated on failed settle: %v", st.TotalDistributed)
	}
}
