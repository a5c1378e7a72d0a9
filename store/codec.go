package store

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kodiak-network/kodiak/core"
)

// Key schema. Scalar fields live under fixed keys; extinction entries are
// keyed by their big-endian index so prefix iteration yields them oldest
// first; positions are keyed by account address.
var (
	supplyKey      = []byte("kdk-supply")
	unitsKey       = []byte("kdk-units")
	distributedKey = []byte("kdk-distributed")
	lastUpdateKey  = []byte("kdk-lastupdate")
	pausedKey      = []byte("kdk-paused")
	startKey       = []byte("kdk-start")

	extinctionPrefix = []byte("kdk-ext-")
	positionPrefix   = []byte("kdk-pos-")
)

func extinctionKey(index uint64) []byte {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)
	return append(append([]byte(nil), extinctionPrefix...), idx[:]...)
}

func positionKey(account common.Address) []byte {
	return append(append([]byte(nil), positionPrefix...), account.Bytes()...)
}

// Values are stored as 256-bit words for big integers and raw big-endian
// bytes for fixed-width fields.

func putBig(db KeyValueStore, key []byte, v *big.Int) error {
	word, overflow := uint256.FromBig(v)
	if overflow {
		return fmt.Errorf("store: value overflows 256 bits under key %q", key)
	}
	b32 := word.Bytes32()
	return db.Put(key, b32[:])
}

func getBig(db KeyValueStore, key []byte) (*big.Int, error) {
	raw, err := db.Get(key)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(raw).ToBig(), nil
}

func putUint64(db KeyValueStore, key []byte, n uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return db.Put(key, buf[:])
}

func getUint64(db KeyValueStore, key []byte) (uint64, error) {
	raw, err := db.Get(key)
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("store: malformed uint64 under key %q", key)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func putBool(db KeyValueStore, key []byte, v bool) error {
	b := []byte{0}
	if v {
		b[0] = 1
	}
	return db.Put(key, b)
}

func getBool(db KeyValueStore, key []byte) (bool, error) {
	raw, err := db.Get(key)
	if err != nil {
		return false, err
	}
	return len(raw) == 1 && raw[0] != 0, nil
}

// WriteState persists the full state surface. Positions and extinction
// entries are only ever added or overwritten in place, so no key cleanup is
// needed.
func WriteState(db KeyValueStore, snap core.Snapshot) error {
	if err := putBig(db, supplyKey, snap.Supply); err != nil {
		return err
	}
	if err := putBig(db, distributedKey, snap.TotalDistributed); err != nil {
		return err
	}
	if err := putUint64(db, unitsKey, snap.TotalUnits); err != nil {
		return err
	}
	if err := putUint64(db, lastUpdateKey, snap.LastUpdate); err != nil {
		return err
	}
	if err := putUint64(db, startKey, snap.Start); err != nil {
		return err
	}
	if err := putBool(db, pausedKey, snap.Paused); err != nil {
		return err
	}
	for i, ts := range snap.Extinctions {
		if err := putUint64(db, extinctionKey(uint64(i)), ts); err != nil {
			return err
		}
	}
	for account, pos := range snap.Positions {
		var buf [16]byte
		binary.BigEndian.PutUint64(buf[:8], pos.Units)
		binary.BigEndian.PutUint64(buf[8:], pos.LastClaim)
		if err := db.Put(positionKey(account), buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// ReadState restores a previously persisted state surface. found is false
// when the database holds no state at all.
func ReadState(db KeyValueStore) (core.Snapshot, bool, error) {
	if ok, err := db.Has(startKey); err != nil || !ok {
		return core.Snapshot{}, false, err
	}

	var (
		snap core.Snapshot
		err  error
	)
	if snap.Supply, err = getBig(db, supplyKey); err != nil {
		return core.Snapshot{}, false, err
	}
	if snap.TotalDistributed, err = getBig(db, distributedKey); err != nil {
		return core.Snapshot{}, false, err
	}
	if snap.TotalUnits, err = getUint64(db, unitsKey); err != nil {
		return core.Snapshot{}, false, err
	}
	if snap.LastUpdate, err = getUint64(db, lastUpdateKey); err != nil {
		return core.Snapshot{}, false, err
	}
	if snap.Start, err = getUint64(db, startKey); err != nil {
		return core.Snapshot{}, false, err
	}
	if snap.Paused, err = getBool(db, pausedKey); err != nil {
		return core.Snapshot{}, false, err
	}

	it := db.NewIterator(extinctionPrefix)
	for it.Next() {
		if len(it.Value()) != 8 {
			key := it.Key()
			it.Release()
			return core.Snapshot{}, false, fmt.Errorf("store: malformed extinction record %x", key)
		}
		snap.Extinctions = append(snap.Extinctions, binary.BigEndian.Uint64(it.Value()))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return core.Snapshot{}, false, err
	}

	snap.Positions = make(map[common.Address]core.Position)
	it = db.NewIterator(positionPrefix)
	for it.Next() {
		key, value := it.Key(), it.Value()
		if len(key) != len(positionPrefix)+common.AddressLength || len(value) != 16 {
			it.Release()
			return core.Snapshot{}, false, fmt.Errorf("store: malformed position record %x", key)
		}
		account := common.BytesToAddress(key[len(positionPrefix):])
		snap.Positions[account] = core.Position{
			Units:     binary.BigEndian.Uint64(value[:8]),
			LastClaim: binary.BigEndian.Uint64(value[8:]),
		}
	}
	it.Release()
	if err := it.Error(); err != nil {
		return core.Snapshot{}, false, err
	}
	return snap, true, nil
}
