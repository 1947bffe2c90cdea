package bridge

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/halcyonchain/settled/types"
)

var ErrBadVextEncoding = errors.New("malformed vote extension encoding")

// VotingPowersMap maps a validator's external key pair to its
// normalized voting power. Iteration preserves insertion order so
// encoding a decoded map round-trips byte for byte.
type VotingPowersMap struct {
	order  []types.EthAddrBook
	powers map[types.EthAddrBook]types.VotingPower
}

func NewVotingPowersMap() *VotingPowersMap {
	return &VotingPowersMap{
		powers: make(map[types.EthAddrBook]types.VotingPower),
	}
}

func (m *VotingPowersMap) Set(book types.EthAddrBook, power types.VotingPower) {
	if _, exists := m.powers[book]; !exists {
		m.order = append(m.order, book)
	}
	m.powers[book] = power
}

func (m *VotingPowersMap) Get(book types.EthAddrBook) (types.VotingPower, bool) {
	power, ok := m.powers[book]
	return power, ok
}

func (m *VotingPowersMap) Len() int {
	return len(m.order)
}

// Each calls fn for every entry in insertion order, stopping early if
// fn returns false.
func (m *VotingPowersMap) Each(fn func(book types.EthAddrBook, power types.VotingPower) bool) {
	for _, book := range m.order {
		if !fn(book, m.powers[book]) {
			return
		}
	}
}

// sortedEntries returns the map contents in the canonical signing
// order: descending power, ties broken by ascending hot key address.
func (m *VotingPowersMap) sortedEntries() []vextEntry {
	entries := make([]vextEntry, 0, len(m.order))
	for _, book := range m.order {
		entries = append(entries, vextEntry{
			HotKeyAddr:  book.HotKeyAddr,
			ColdKeyAddr: book.ColdKeyAddr,
			Power:       uint64(m.powers[book]),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Power != entries[j].Power {
			return entries[i].Power > entries[j].Power
		}
		return bytes.Compare(entries[i].HotKeyAddr[:], entries[j].HotKeyAddr[:]) < 0
	})
	return entries
}

type vextEntry struct {
	HotKeyAddr  common.Address
	ColdKeyAddr common.Address
	Power       uint64
}

type vextWire struct {
	SigningEpoch  uint64
	ValidatorAddr []byte
	Entries       []vextEntry
}

// Vext is a validator-set-update vote extension: the full voting power
// table for the epoch after SigningEpoch, attested by ValidatorAddr.
type Vext struct {
	VotingPowers  *VotingPowersMap
	ValidatorAddr []byte
	SigningEpoch  types.Epoch
}

// SignBytes is the digest the external hot key signs: the keccak hash
// of the canonically ordered RLP encoding. Insertion order never leaks
// into the digest.
func (v *Vext) SignBytes() ([]byte, error) {
	raw, err := rlp.EncodeToBytes(&vextWire{
		SigningEpoch:  uint64(v.SigningEpoch),
		ValidatorAddr: v.ValidatorAddr,
		Entries:       v.VotingPowers.sortedEntries(),
	})
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(raw), nil
}

// Sign produces a SignedVext with a 65-byte recoverable signature from
// the validator's external hot key.
func (v *Vext) Sign(key *ecdsa.PrivateKey) (*SignedVext, error) {
	digest, err := v.SignBytes()
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, err
	}
	return &SignedVext{Data: *v, Sig: sig}, nil
}

// SignedVext pairs a vote extension with its hot-key signature.
type SignedVext struct {
	Data Vext
	Sig  []byte
}

// Verify checks the signature against a compressed secp256k1 public
// key as stored in the validator snapshot.
func (s *SignedVext) Verify(compressedPubKey []byte) error {
	digest, err := s.Data.SignBytes()
	if err != nil {
		return err
	}
	if len(s.Sig) < 64 {
		return ErrVerifySigFailed
	}
	if !crypto.VerifySignature(compressedPubKey, digest, s.Sig[:64]) {
		return ErrVerifySigFailed
	}
	return nil
}

type signedVextWire struct {
	SigningEpoch  uint64
	ValidatorAddr []byte
	Entries       []vextEntry
	Sig           []byte
}

// EncodeSignedVext serializes a signed extension for the ABCI
// vote-extension field. The entry order on the wire is the map's
// insertion order, not the signing order.
func EncodeSignedVext(s *SignedVext) ([]byte, error) {
	entries := make([]vextEntry, 0, s.Data.VotingPowers.Len())
	s.Data.VotingPowers.Each(func(book types.EthAddrBook, power types.VotingPower) bool {
		entries = append(entries, vextEntry{
			HotKeyAddr:  book.HotKeyAddr,
			ColdKeyAddr: book.ColdKeyAddr,
			Power:       uint64(power),
		})
		return true
	})
	return rlp.EncodeToBytes(&signedVextWire{
		SigningEpoch:  uint64(s.Data.SigningEpoch),
		ValidatorAddr: s.Data.ValidatorAddr,
		Entries:       entries,
		Sig:           s.Sig,
	})
}

// DecodeSignedVext parses a signed extension from its wire bytes.
func DecodeSignedVext(raw []byte) (*SignedVext, error) {
	var wire signedVextWire
	if err := rlp.DecodeBytes(raw, &wire); err != nil {
		return nil, ErrBadVextEncoding
	}
	powers := NewVotingPowersMap()
	for _, e := range wire.Entries {
		powers.Set(types.EthAddrBook{
			HotKeyAddr:  e.HotKeyAddr,
			ColdKeyAddr: e.ColdKeyAddr,
		}, types.VotingPower(e.Power))
	}
	return &SignedVext{
		Data: Vext{
			VotingPowers:  powers,
			ValidatorAddr: wire.ValidatorAddr,
			SigningEpoch:  types.Epoch(wire.SigningEpoch),
		},
		Sig: wire.Sig,
	}, nil
}
