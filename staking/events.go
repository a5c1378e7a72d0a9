package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event is the union of payloads published on the controller's feed.
type Event interface{}

// NFTStakedEvent is emitted once per legacy bear NFT taken into custody.
type NFTStakedEvent struct {
	Account common.Address
	TokenID uint64
}

// StakedEvent is emitted for ERC20-funded stakes.
type StakedEvent struct {
	Account common.Address
	Units   uint64
}

// RewardClaimedEvent is emitted when a claim pays out a positive amount.
type RewardClaimedEvent struct {
	Account common.Address
	Amount  *big.Int
}

// EcosystemUpdatedEvent reports a completed pool update.
type EcosystemUpdatedEvent struct {
	Supply *big.Int
	Epoch  uint64
}

// ExtinctionEvent reports a collapse of the pool.
type ExtinctionEvent struct {
	Time uint64
}

// PausedEvent and UnpausedEvent report pause-gate transitions.
type PausedEvent struct{}
type UnpausedEvent struct{}
