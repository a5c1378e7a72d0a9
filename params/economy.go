package params

import (
	"errors"
	"math/big"
)

// Scale is the base-unit multiplier for fish and reward amounts.
// One whole fish (or one whole HONEY reward token) is 1e18 base units.
var Scale = big.NewInt(1e18)

// Economy bundles every tunable of the staking economy. A single Economy
// value is built once at startup and threaded through the pool, reward and
// staking packages; there are no ambient globals.
type Economy struct {
	// EpochLength is the length of one epoch in seconds.
	EpochLength uint64

	// Capacity is the carrying capacity of the fish pool, in base units.
	// The supply never exceeds it.
	Capacity *big.Int

	// MinSupply is the floor the supply is reset to on extinction, and the
	// lowest value the supply may hold at any time.
	MinSupply *big.Int

	// UnitCostPerEpoch is the amount of fish one staked bear consumes per
	// epoch, in base units.
	UnitCostPerEpoch *big.Int

	// UnitRewardPerEpoch is the HONEY reward one staked bear accrues per
	// epoch, in base units.
	UnitRewardPerEpoch *big.Int

	// GrowthRate and GrowthScale control logistic regeneration:
	//   regen = GrowthRate * supply * (Capacity - supply) / Capacity / GrowthScale
	// per elapsed epoch. GrowthRate/GrowthScale is the intrinsic growth rate.
	GrowthRate  *big.Int
	GrowthScale *big.Int

	// HealMargin is how far below Capacity the supply may sit while still
	// allowing a heal: heal requires supply >= Capacity - HealMargin.
	HealMargin *big.Int

	// UnitCost is the ERC20 price of one staking unit, in base units.
	// stakeWithERC20 burns exactly units*UnitCost.
	UnitCost *big.Int
}

// DefaultEconomy returns the production parameters.
func DefaultEconomy() *Economy {
	return &Economy{
		EpochLength:        86_400, // 1 day
		Capacity:           new(big.Int).Mul(big.NewInt(10_000), Scale),
		MinSupply:          new(big.Int).Set(Scale), // 1 fish
		UnitCostPerEpoch:   new(big.Int).Set(Scale), // 1 fish per bear per epoch
		UnitRewardPerEpoch: new(big.Int).Mul(big.NewInt(10), Scale),
		GrowthRate:         big.NewInt(1),
		GrowthScale:        big.NewInt(10), // 10% logistic growth per epoch
		HealMargin:         new(big.Int).Mul(big.NewInt(100), Scale),
		UnitCost:           new(big.Int).Mul(big.NewInt(10_000), Scale),
	}
}

// Verify checks the internal consistency of the parameter set. It is called
// by every constructor that receives an Economy; a failure here means the
// system never reaches an operable state.
func (e *Economy) Verify() error {
	switch {
	case e == nil:
		return errors.New("economy: nil parameter set")
	case e.EpochLength == 0:
		return errors.New("economy: epoch length must be positive")
	case e.Capacity == nil || e.Capacity.Sign() <= 0:
		return errors.New("economy: capacity must be positive")
	case e.MinSupply == nil || e.MinSupply.Sign() < 0:
		return errors.New("economy: min supply must not be negative")
	case e.MinSupply.Cmp(e.Capacity) > 0:
		return errors.New("economy: min supply exceeds capacity")
	case e.UnitCostPerEpoch == nil || e.UnitCostPerEpoch.Sign() < 0:
		return errors.New("economy: unit cost per epoch must not be negative")
	case e.UnitRewardPerEpoch == nil || e.UnitRewardPerEpoch.Sign() < 0:
		return errors.New("economy: unit reward per epoch must not be negative")
	case e.GrowthRate == nil || e.GrowthRate.Sign() < 0:
		return errors.New("economy: growth rate must not be negative")
	case e.GrowthScale == nil || e.GrowthScale.Sign() <= 0:
		return errors.New("economy: growth scale must be positive")
	case e.HealMargin == nil || e.HealMargin.Sign() < 0:
		return errors.New("economy: heal margin must not be negative")
	case e.UnitCost == nil || e.UnitCost.Sign() <= 0:
		return errors.New("economy: unit cost must be positive")
	}
	return nil
}
