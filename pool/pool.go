// Package pool implements the fish supply: per-epoch consumption by staked
// bears, logistic regeneration, extinction detection and healing.
package pool

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/log"

	"github.com/kodiak-network/kodiak/core"
	"github.com/kodiak-network/kodiak/epoch"
	"github.com/kodiak-network/kodiak/params"
)

var (
	ErrNotPaused    = errors.New("pool: not paused")
	ErrSupplyTooLow = errors.New("pool: supply below heal threshold")
)

// Pool applies the resource-update law to a GlobalState. It holds no state
// of its own beyond the parameter set and epoch clock.
type Pool struct {
	econ  *params.Economy
	clock epoch.Clock
}

func New(econ *params.Economy, clock epoch.Clock) *Pool {
	return &Pool{econ: econ, clock: clock}
}

// Update advances the pool to now. It applies consumption by all staked
// bears and logistic regeneration for every elapsed epoch; if consumption
// outruns supply plus regeneration the whole ecosystem collapses: supply
// drops to the floor, all stake is wiped, the economy pauses and the
// extinction is recorded. Returns whether an extinction occurred.
//
// Arithmetic is big.Int throughout, multiplying before dividing so the
// growth factor keeps full precision at 1e18 scale.
func (p *Pool) Update(st *core.GlobalState, now uint64) bool {
	elapsed := p.clock.Of(now) - p.clock.Of(st.LastUpdate)
	if elapsed == 0 {
		return false
	}
	epochs := new(big.Int).SetUint64(elapsed)

	consumption := new(big.Int).SetUint64(st.TotalUnits)
	consumption.Mul(consumption, p.econ.UnitCostPerEpoch)
	consumption.Mul(consumption, epochs)

	regen := new(big.Int)
	if st.Supply.Cmp(p.econ.Capacity) < 0 {
		remaining := new(big.Int).Sub(p.econ.Capacity, st.Supply)
		regen.Mul(st.Supply, remaining)
		regen.Div(regen, p.econ.Capacity)
		regen.Mul(regen, p.econ.GrowthRate)
		regen.Mul(regen, epochs)
		regen.Div(regen, p.econ.GrowthScale)
	}

	budget := new(big.Int).Add(st.Supply, regen)
	if consumption.Cmp(budget) > 0 {
		st.Supply.Set(p.econ.MinSupply)
		st.TotalUnits = 0
		st.Paused = true
		st.Extinctions.Append(now)
		st.LastUpdate = now
		log.Warn("pool: extinction", "time", now, "consumed", consumption, "budget", budget)
		return true
	}

	next := budget.Sub(budget, consumption)
	if next.Cmp(p.econ.Capacity) > 0 {
		next.Set(p.econ.Capacity)
	}
	if next.Cmp(p.econ.MinSupply) < 0 {
		// Exact depletion without overshoot leaves the supply between zero
		// and the floor; clamp up so the supply invariant holds.
		next.Set(p.econ.MinSupply)
	}
	st.Supply.Set(next)
	st.LastUpdate = now
	log.Trace("pool: updated", "supply", st.Supply, "regen", regen, "consumed", consumption, "epochs", elapsed)
	return false
}

// Heal resumes a paused economy once the supply has regrown to within
// HealMargin of capacity. It clears the pause flag and nothing else.
func (p *Pool) Heal(st *core.GlobalState) error {
	if !st.Paused {
		return ErrNotPaused
	}
	threshold := new(big.Int).Sub(p.econ.Capacity, p.econ.HealMargin)
	if st.Supply.Cmp(threshold) < 0 {
		return ErrSupplyTooLow
	}
	st.Paused = false
	log.Info("pool: healed", "supply", st.Supply)
	return nil
}
