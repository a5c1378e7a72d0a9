// Package reward computes and settles per-account staking rewards, capping
// accrual at extinction boundaries.
package reward

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/kodiak-network/kodiak/core"
	"github.com/kodiak-network/kodiak/epoch"
	"github.com/kodiak-network/kodiak/params"
)

// Quote is the result of a reward calculation. CappedAt is the timestamp of
// the extinction that truncated accrual, or zero when accrual ran to the
// current epoch. Quotes are transient; they are never persisted.
type Quote struct {
	Amount   *big.Int
	CappedAt uint64
}

// Engine computes reward quotes and applies them. It owns no state; the
// global state and positions it operates on belong to the controller.
type Engine struct {
	econ  *params.Economy
	clock epoch.Clock
	bank  core.FungibleLedger
}

func NewEngine(econ *params.Economy, clock epoch.Clock, bank core.FungibleLedger) *Engine {
	return &Engine{econ: econ, clock: clock, bank: bank}
}

// Calculate is the pure reward computation for one position.
//
// If the position's last claim predates an extinction, accrual is capped at
// the extinction's epoch: the account earns for the epochs between its last
// claim and the collapse, and nothing after, even once the economy heals.
// The relevant extinction is the earliest entry when lastClaim is at or
// before it (inclusive on purpose: a claim in the same instant as the first
// extinction still counts as pre-extinction), otherwise the first entry
// strictly after lastClaim. Changing either boundary changes settled
// reward amounts for existing positions, so both are load-bearing.
func (e *Engine) Calculate(st *core.GlobalState, pos core.Position, now uint64) Quote {
	var relevant uint64
	if first, ok := st.Extinctions.Earliest(); ok && pos.LastClaim <= first {
		relevant = first
	} else if after, ok := st.Extinctions.FirstAfter(pos.LastClaim); ok {
		relevant = after
	}

	if relevant > 0 {
		epochs := e.clock.Of(relevant) - e.clock.Of(pos.LastClaim)
		amount := new(big.Int).SetUint64(pos.Units)
		amount.Mul(amount, e.econ.UnitRewardPerEpoch)
		amount.Mul(amount, new(big.Int).SetUint64(epochs))
		return Quote{Amount: amount, CappedAt: relevant}
	}

	elapsed := e.clock.Of(now) - e.clock.Of(pos.LastClaim)
	amount := new(big.Int)
	if elapsed > 0 && pos.Units > 0 {
		amount.SetUint64(pos.Units)
		amount.Mul(amount, e.econ.UnitRewardPerEpoch)
		amount.Mul(amount, new(big.Int).SetUint64(elapsed))
	}
	return Quote{Amount: amount}
}

// Settle applies the current quote to a position: mints any accrued reward,
// zeroes the position if it died in an extinction (epochs after the
// collapse are forfeited, not deferred) and stamps the claim time. A
// repeated settle with zero elapsed epochs yields zero reward.
//
// A mint failure aborts with no state change.
func (e *Engine) Settle(st *core.GlobalState, account common.Address, pos *core.Position, now uint64) (Quote, error) {
	q := e.Calculate(st, *pos, now)

	if q.Amount.Sign() > 0 {
		if err := e.bank.Mint(account, q.Amount); err != nil {
			return Quote{}, fmt.Errorf("reward: mint for %s: %w", account.Hex(), err)
		}
		st.TotalDistributed.Add(st.TotalDistributed, q.Amount)
	}
	if q.CappedAt > 0 {
		// The position died in that extinction. Its units were already
		// removed from TotalUnits when the pool collapsed.
		pos.Units = 0
	}
	pos.LastClaim = now

	if q.Amount.Sign() > 0 {
		log.Debug("reward: settled", "account", account, "amount", q.Amount, "cappedAt", q.CappedAt)
	}
	return q, nil
}
