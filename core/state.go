// Package core defines the shared state of the staking economy and the
// capability contracts it consumes.
package core

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kodiak-network/kodiak/ledger"
	"github.com/kodiak-network/kodiak/params"
)

// GlobalState is the process-wide economy state. It is exclusively owned by
// the staking controller and threaded explicitly into the pool and reward
// engines; nothing reads it through a global.
type GlobalState struct {
	// Supply is the current fish supply in base units. It always sits in
	// [Economy.MinSupply, Economy.Capacity].
	Supply *big.Int

	// TotalUnits is the number of bears currently staked across all
	// accounts. Paused implies TotalUnits == 0.
	TotalUnits uint64

	// TotalDistributed is the cumulative HONEY reward ever minted.
	TotalDistributed *big.Int

	// LastUpdate is the timestamp of the last pool update.
	LastUpdate uint64

	// Paused is set on extinction and cleared only by a heal. While set, no
	// new stake is accepted.
	Paused bool

	// Start is the immutable start time epochs are counted from.
	Start uint64

	// Extinctions is the append-only extinction history.
	Extinctions *ledger.ExtinctionList
}

// Position is one account's stake: how many bears it has staked and when it
// last settled rewards. Positions are zeroed on extinction settlement,
// never deleted.
type Position struct {
	Units     uint64
	LastClaim uint64
}

// NewGlobalState builds the initial economy state. The initial supply must
// already respect the supply invariant; a violation here is a construction
// failure and the system never becomes operable.
func NewGlobalState(econ *params.Economy, initialSupply *big.Int, start uint64) (*GlobalState, error) {
	if err := econ.Verify(); err != nil {
		return nil, err
	}
	if initialSupply == nil || initialSupply.Cmp(econ.MinSupply) < 0 {
		return nil, fmt.Errorf("core: initial supply below minimum %v", econ.MinSupply)
	}
	if initialSupply.Cmp(econ.Capacity) > 0 {
		return nil, fmt.Errorf("core: initial supply %v exceeds capacity %v", initialSupply, econ.Capacity)
	}
	return &GlobalState{
		Supply:           new(big.Int).Set(initialSupply),
		TotalDistributed: new(big.Int),
		LastUpdate:       start,
		Start:            start,
		Extinctions:      new(ledger.ExtinctionList),
	}, nil
}

// Snapshot is the persisted state surface: everything needed to restore the
// economy after a restart.
type Snapshot struct {
	Supply           *big.Int
	TotalUnits       uint64
	TotalDistributed *big.Int
	LastUpdate       uint64
	Paused           bool
	Start            uint64
	Extinctions      []uint64
	Positions        map[common.Address]Position
}
