package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FungibleLedger is the external fungible-balance collaborator. The engine
// mints HONEY rewards into it and burns the ERC20 paid for stake; it never
// does its own balance bookkeeping.
type FungibleLedger interface {
	Mint(account common.Address, amount *big.Int) error
	Burn(account common.Address, amount *big.Int) error
	BalanceOf(account common.Address) *big.Int
}

// NFTCustody is the external custody collaborator for legacy bear NFTs.
// TransferIn moves one token from the account into custody; staked tokens
// are never returned.
type NFTCustody interface {
	TransferIn(account common.Address, tokenID uint64) error
}

// Clock supplies the current time in unix seconds. Implementations must be
// monotonically non-decreasing.
type Clock interface {
	Now() uint64
}
