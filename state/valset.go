package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/halcyonchain/settled/types"
)

// SnapshotEntry is one consensus validator in an epoch-indexed
// validator-set snapshot. Power is normalized to the 2^32 scale.
type SnapshotEntry struct {
	Addr        []byte
	HotKeyAddr  common.Address
	ColdKeyAddr common.Address
	HotKey      []byte
	Power       uint64
}

func (e *SnapshotEntry) AddrBook() types.EthAddrBook {
	return types.EthAddrBook{
		HotKeyAddr:  e.HotKeyAddr,
		ColdKeyAddr: e.ColdKeyAddr,
	}
}

// WriteValidatorSnapshot records the consensus validator set for an
// epoch. Entries land under address-ordered keys, so reads iterate
// them deterministically on every node.
func (s *State) WriteValidatorSnapshot(epoch types.Epoch, entries []SnapshotEntry) error {
	for i := range entries {
		val, err := rlp.EncodeToBytes(&entries[i])
		if err != nil {
			return err
		}
		s.set(validatorRecordKey(uint64(epoch), entries[i].Addr), val)
	}
	return nil
}

// ConsensusValidators returns the snapshot for an epoch in storage
// (address) order. An empty slice means no snapshot is recorded.
func (s *State) ConsensusValidators(epoch types.Epoch) (entries []SnapshotEntry, err error) {
	prefix := []byte(validatorEpochPrefix(uint64(epoch)))
	end := PrefixEndBytes(prefix)
	it, err := s.db.Iterator(prefix, end, true)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		var entry SnapshotEntry
		if err = rlp.DecodeBytes(it.Value(), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ReadValidatorHotKey resolves the bridge hot key a validator used
// during the given epoch.
func (s *State) ReadValidatorHotKey(addr []byte, epoch types.Epoch) ([]byte, error) {
	val, err := s.get(validatorRecordKey(uint64(epoch), addr))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, ErrNotFound
	}
	var entry SnapshotEntry
	if err = rlp.DecodeBytes(val, &entry); err != nil {
		return nil, err
	}
	if len(entry.HotKey) == 0 {
		return nil, ErrNotFound
	}
	return entry.HotKey, nil
}

func (s *State) ValsetUpdSeen(epoch types.Epoch) (bool, error) {
	val, err := s.get(valsetUpdSeenKey(uint64(epoch)))
	if err != nil {
		return false, err
	}
	return val != nil, nil
}

// SetValsetUpdSeen marks that a finalized validator-set-update proof
// exists for the epoch; extensions attesting to it are stale.
func (s *State) SetValsetUpdSeen(epoch types.Epoch) {
	s.set(valsetUpdSeenKey(uint64(epoch)), []byte{1})
}

func validatorEpochPrefix(epoch uint64) string {
	return fmt.Sprintf(KeyValidatorEpochPrefix, epoch)
}
