package main

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kodiak-network/kodiak/store"
)

// storeBank is the daemon's in-process FungibleLedger: a simple balance
// book persisted in the same database as the economy state. Deployments
// that bridge to an external token replace this with their own adapter.
type storeBank struct {
	db store.KeyValueStore
}

var (
	balancePrefix = []byte("kdk-bal-")
	custodyPrefix = []byte("kdk-nft-")
)

func balanceKey(account common.Address) []byte {
	return append(append([]byte(nil), balancePrefix...), account.Bytes()...)
}

func (b *storeBank) BalanceOf(account common.Address) *big.Int {
	raw, err := b.db.Get(balanceKey(account))
	if err != nil {
		return new(big.Int)
	}
	return new(uint256.Int).SetBytes(raw).ToBig()
}

func (b *storeBank) Mint(account common.Address, amount *big.Int) error {
	return b.write(account, new(big.Int).Add(b.BalanceOf(account), amount))
}

func (b *storeBank) Burn(account common.Address, amount *big.Int) error {
	cur := b.BalanceOf(account)
	if cur.Cmp(amount) < 0 {
		return fmt.Errorf("burn %v from %s: balance %v too low", amount, account.Hex(), cur)
	}
	return b.write(account, cur.Sub(cur, amount))
}

func (b *storeBank) write(account common.Address, balance *big.Int) error {
	word, overflow := uint256.FromBig(balance)
	if overflow {
		return fmt.Errorf("balance of %s overflows 256 bits", account.Hex())
	}
	b32 := word.Bytes32()
	return b.db.Put(balanceKey(account), b32[:])
}

// storeCustody records NFT ownership for staked bears. Tokens are one-way:
// once transferred in they stay in custody.
type storeCustody struct {
	db store.KeyValueStore
}

func custodyKey(tokenID uint64) []byte {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], tokenID)
	return append(append([]byte(nil), custodyPrefix...), idx[:]...)
}

func (c *storeCustody) TransferIn(account common.Address, tokenID uint64) error {
	key := custodyKey(tokenID)
	if held, err := c.db.Has(key); err != nil {
		return err
	} else if held {
		return fmt.Errorf("token %d already in custody", tokenID)
	}
	return c.db.Put(key, account.Bytes())
}
