// Package staking orchestrates the bear staking economy: stake and claim
// operations, the pause gate, and the strict ordering of pool updates
// before reward settlement.
package staking

import (
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"

	"github.com/kodiak-network/kodiak/core"
	"github.com/kodiak-network/kodiak/epoch"
	"github.com/kodiak-network/kodiak/ledger"
	"github.com/kodiak-network/kodiak/params"
	"github.com/kodiak-network/kodiak/pool"
	"github.com/kodiak-network/kodiak/reward"
)

var (
	// ErrBusy is returned when an operation arrives while another is still
	// running. Every external operation runs to completion atomically; the
	// guard also catches collaborators calling back into the controller
	// mid-operation.
	ErrBusy = errors.New("staking: controller busy")

	ErrPaused         = errors.New("staking: economy is paused")
	ErrNoTokens       = errors.New("staking: empty token list")
	ErrDuplicateToken = errors.New("staking: duplicate token id")
	ErrBelowUnitCost  = errors.New("staking: amount below unit cost")
	ErrStakeTooLarge  = errors.New("staking: unit count out of range")
	ErrBadSnapshot    = errors.New("staking: corrupt snapshot")
)

// Config carries the controller's collaborators and parameters.
type Config struct {
	Econ    *params.Economy
	Clock   core.Clock
	Bank    core.FungibleLedger
	Custody core.NFTCustody
}

// Controller owns the global economy state, the extinction ledger and every
// stake position. All mutation goes through it, one operation at a time.
type Controller struct {
	econ    *params.Economy
	clock   core.Clock
	epochs  epoch.Clock
	pool    *pool.Pool
	rewards *reward.Engine
	bank    core.FungibleLedger
	custody core.NFTCustody

	state     *core.GlobalState
	positions map[common.Address]*core.Position

	feed    event.FeedOf[Event]
	pending []Event
	busy    atomic.Bool
}

// New builds a controller over a fresh economy starting at start with the
// given initial supply. Construction fails if the parameters or the initial
// supply violate an invariant.
func New(cfg Config, initialSupply *big.Int, start uint64) (*Controller, error) {
	st, err := core.NewGlobalState(cfg.Econ, initialSupply, start)
	if err != nil {
		return nil, err
	}
	return build(cfg, st)
}

// NewFromSnapshot restores a controller from a persisted state surface.
func NewFromSnapshot(cfg Config, snap core.Snapshot) (*Controller, error) {
	if err := cfg.Econ.Verify(); err != nil {
		return nil, err
	}
	ext, ok := ledger.Restore(snap.Extinctions)
	if !ok {
		return nil, fmt.Errorf("%w: unordered extinction history", ErrBadSnapshot)
	}
	if snap.Supply == nil || snap.TotalDistributed == nil {
		return nil, fmt.Errorf("%w: missing supply fields", ErrBadSnapshot)
	}
	st := &core.GlobalState{
		Supply:           new(big.Int).Set(snap.Supply),
		TotalUnits:       snap.TotalUnits,
		TotalDistributed: new(big.Int).Set(snap.TotalDistributed),
		LastUpdate:       snap.LastUpdate,
		Paused:           snap.Paused,
		Start:            snap.Start,
		Extinctions:      ext,
	}
	c, err := build(cfg, st)
	if err != nil {
		return nil, err
	}
	for addr, pos := range snap.Positions {
		p := pos
		c.positions[addr] = &p
	}
	return c, nil
}

func build(cfg Config, st *core.GlobalState) (*Controller, error) {
	switch {
	case cfg.Clock == nil:
		return nil, errors.New("staking: nil clock")
	case cfg.Bank == nil:
		return nil, errors.New("staking: nil fungible ledger")
	case cfg.Custody == nil:
		return nil, errors.New("staking: nil custody")
	}
	epochs := epoch.New(st.Start, cfg.Econ.EpochLength)
	return &Controller{
		econ:      cfg.Econ,
		clock:     cfg.Clock,
		epochs:    epochs,
		pool:      pool.New(cfg.Econ, epochs),
		rewards:   reward.NewEngine(cfg.Econ, epochs, cfg.Bank),
		bank:      cfg.Bank,
		custody:   cfg.Custody,
		state:     st,
		positions: make(map[common.Address]*core.Position),
	}, nil
}

// begin claims the busy flag; every external entry point must pair it with
// end. Rejecting instead of queueing keeps execution a total ordering of
// discrete operations and makes re-entrant callbacks fail fast instead of
// deadlocking.
func (c *Controller) begin() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (c *Controller) end() { c.busy.Store(false) }

// queue records an event for publication once the current operation ends.
func (c *Controller) queue(ev Event) { c.pending = append(c.pending, ev) }

// finish releases the busy flag and only then publishes the operation's
// queued events. Publication must stay outside the busy section: feed.Send
// waits for every subscriber, so a slow one may delay its own caller but
// can never wedge the controller.
func (c *Controller) finish() {
	events := c.pending
	c.pending = nil
	c.end()
	for _, ev := range events {
		c.feed.Send(ev)
	}
}

func (c *Controller) position(account common.Address) *core.Position {
	pos, ok := c.positions[account]
	if !ok {
		pos = new(core.Position)
		c.positions[account] = pos
	}
	return pos
}

// update runs the pool update and publishes collapse events when one
// happens. It must complete before any settlement or stake mutation.
func (c *Controller) update(now uint64) bool {
	extinct := c.pool.Update(c.state, now)
	if extinct {
		c.queue(ExtinctionEvent{Time: now})
		c.queue(PausedEvent{})
	}
	return extinct
}

// StakeLegacyNFTs stakes one unit per token id, taking each token into
// custody. The ids must be non-empty and unique and the economy unpaused.
// If the triggered pool update collapses the ecosystem the stake is
// abandoned wholesale: no custody transfer happens and applied is false
// without error. Should a custody transfer fail partway through the list,
// the tokens already in custody are credited as staked units (custody is
// one-way, nothing can hand them back) and the error names the failing id.
func (c *Controller) StakeLegacyNFTs(from common.Address, tokenIDs []uint64) (applied bool, err error) {
	if err := c.begin(); err != nil {
		return false, err
	}
	defer c.finish()

	if c.state.Paused {
		return false, ErrPaused
	}
	if len(tokenIDs) == 0 {
		return false, ErrNoTokens
	}
	seen := mapset.NewThreadUnsafeSet()
	for _, id := range tokenIDs {
		if !seen.Add(id) {
			return false, fmt.Errorf("%w: %d", ErrDuplicateToken, id)
		}
	}

	now := c.clock.Now()
	extinct := c.update(now)
	pos := c.position(from)
	q, err := c.settle(from, pos, now)
	if err != nil {
		return false, err
	}
	if q.Amount.Sign() > 0 {
		c.queue(RewardClaimedEvent{Account: from, Amount: q.Amount})
	}
	if extinct {
		log.Info("staking: stake dropped by extinction", "account", from, "tokens", len(tokenIDs))
		return false, nil
	}

	for i, id := range tokenIDs {
		if err := c.custody.TransferIn(from, id); err != nil {
			// Tokens transferred before the failure cannot come back out of
			// custody. Credit them so every held token has a position behind
			// it, then surface the failure.
			c.creditNFTs(from, pos, tokenIDs[:i])
			log.Error("staking: custody transfer failed", "account", from, "token", id, "credited", i)
			return false, fmt.Errorf("staking: custody transfer of token %d: %w", id, err)
		}
	}
	c.creditNFTs(from, pos, tokenIDs)
	return true, nil
}

// creditNFTs books ids as staked units for a position whose tokens are
// already in custody.
func (c *Controller) creditNFTs(from common.Address, pos *core.Position, ids []uint64) {
	if len(ids) == 0 {
		return
	}
	units := uint64(len(ids))
	pos.Units += units
	c.state.TotalUnits += units
	for _, id := range ids {
		c.queue(NFTStakedEvent{Account: from, TokenID: id})
	}
	log.Info("staking: nfts staked", "account", from, "units", units)
}

// StakeWithERC20 converts amount into whole staking units at UnitCost each
// and burns exactly units*UnitCost from the caller; any remainder stays
// with the caller. Same soft-drop behavior as StakeLegacyNFTs when the
// update collapses the ecosystem.
func (c *Controller) StakeWithERC20(from common.Address, amount *big.Int) (units uint64, applied bool, err error) {
	if err := c.begin(); err != nil {
		return 0, false, err
	}
	defer c.finish()

	if c.state.Paused {
		return 0, false, ErrPaused
	}
	if amount == nil || amount.Cmp(c.econ.UnitCost) < 0 {
		return 0, false, ErrBelowUnitCost
	}
	quot := new(big.Int).Div(amount, c.econ.UnitCost)
	if !quot.IsUint64() {
		return 0, false, ErrStakeTooLarge
	}
	units = quot.Uint64()

	now := c.clock.Now()
	extinct := c.update(now)
	pos := c.position(from)
	q, err := c.settle(from, pos, now)
	if err != nil {
		return 0, false, err
	}
	if q.Amount.Sign() > 0 {
		c.queue(RewardClaimedEvent{Account: from, Amount: q.Amount})
	}
	if extinct {
		log.Info("staking: stake dropped by extinction", "account", from, "units", units)
		return units, false, nil
	}

	cost := new(big.Int).Mul(new(big.Int).SetUint64(units), c.econ.UnitCost)
	if err := c.bank.Burn(from, cost); err != nil {
		return 0, false, fmt.Errorf("staking: burn: %w", err)
	}
	pos.Units += units
	c.state.TotalUnits += units
	c.queue(StakedEvent{Account: from, Units: units})
	log.Info("staking: erc20 staked", "account", from, "units", units, "burned", cost)
	return units, true, nil
}

// ClaimRewards settles any accrued reward for the caller. It always
// succeeds; with nothing accrued it is a no-op.
func (c *Controller) ClaimRewards(from common.Address) (*big.Int, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.finish()

	now := c.clock.Now()
	c.update(now)
	q, err := c.settle(from, c.position(from), now)
	if err != nil {
		return nil, err
	}
	if q.Amount.Sign() > 0 {
		c.queue(RewardClaimedEvent{Account: from, Amount: q.Amount})
	}
	return q.Amount, nil
}

// UpdateEcosystem advances the pool. Anyone may call it.
func (c *Controller) UpdateEcosystem() (extinct bool, err error) {
	if err := c.begin(); err != nil {
		return false, err
	}
	defer c.finish()

	now := c.clock.Now()
	extinct = c.update(now)
	if !extinct {
		c.queue(EcosystemUpdatedEvent{
			Supply: new(big.Int).Set(c.state.Supply),
			Epoch:  c.epochs.Of(now),
		})
	}
	return extinct, nil
}

// Heal resumes a paused economy once the supply has recovered.
func (c *Controller) Heal() error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.finish()

	if err := c.pool.Heal(c.state); err != nil {
		return err
	}
	c.queue(UnpausedEvent{})
	return nil
}

// CalculateRewards is a pure read: the reward quote the account would
// settle at right now, without running a pool update or mutating anything.
func (c *Controller) CalculateRewards(account common.Address) (reward.Quote, error) {
	if err := c.begin(); err != nil {
		return reward.Quote{}, err
	}
	defer c.end()

	var pos core.Position
	if p, ok := c.positions[account]; ok {
		pos = *p
	}
	return c.rewards.Calculate(c.state, pos, c.clock.Now()), nil
}

// Snapshot copies the full persisted state surface.
func (c *Controller) Snapshot() (core.Snapshot, error) {
	if err := c.begin(); err != nil {
		return core.Snapshot{}, err
	}
	defer c.end()

	snap := core.Snapshot{
		Supply:           new(big.Int).Set(c.state.Supply),
		TotalUnits:       c.state.TotalUnits,
		TotalDistributed: new(big.Int).Set(c.state.TotalDistributed),
		LastUpdate:       c.state.LastUpdate,
		Paused:           c.state.Paused,
		Start:            c.state.Start,
		Extinctions:      c.state.Extinctions.Entries(),
		Positions:        make(map[common.Address]core.Position, len(c.positions)),
	}
	for addr, pos := range c.positions {
		snap.Positions[addr] = *pos
	}
	return snap, nil
}

// SubscribeEvents delivers controller events to ch until the subscription
// is unsubscribed.
func (c *Controller) SubscribeEvents(ch chan<- Event) event.Subscription {
	return c.feed.Subscribe(ch)
}

func (c *Controller) settle(from common.Address, pos *core.Position, now uint64) (reward.Quote, error) {
	return c.rewards.Settle(c.state, from, pos, now)
}
