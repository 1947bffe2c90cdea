package state

import (
	"encoding/json"

	"github.com/cometbft/cometbft/crypto/ed25519"
)

// StateHeader is the per-height summary committed alongside the tree.
type StateHeader struct {
	Height     uint64
	Epoch      uint64
	ChainId    string
	AccountIdx uint64
	Hash       []byte
	RootHash   []byte
}

func (h *StateHeader) Clone() *StateHeader {
	n := &StateHeader{
		Height:     h.Height,
		Epoch:      h.Epoch,
		ChainId:    h.ChainId,
		AccountIdx: h.AccountIdx,
	}
	if h.Hash != nil {
		n.Hash = append([]byte(nil), h.Hash...)
	}
	if h.RootHash != nil {
		n.RootHash = append([]byte(nil), h.RootHash...)
	}
	return n
}

// Account is a consensus validator account. EthHotKey and EthColdKey
// are compressed secp256k1 public keys used on the bridge side; the
// hot key signs validator-set-update vote extensions.
type Account struct {
	Index      uint64
	PubKey     []byte
	Stake      uint64
	Nonce      uint64
	EthHotKey  []byte
	EthColdKey []byte
}

type accountSt struct {
	Index      uint64         `json:"index"`
	PubKey     ed25519.PubKey `json:"pubKey"`
	Stake      uint64         `json:"stake"`
	Nonce      uint64         `json:"nonce"`
	EthHotKey  []byte         `json:"ethHotKey"`
	EthColdKey []byte         `json:"ethColdKey"`
}

func (a *Account) MarshalJSON() (dat []byte, err error) {
	o := accountSt{
		Index:      a.Index,
		PubKey:     a.PubKey,
		Stake:      a.Stake,
		Nonce:      a.Nonce,
		EthHotKey:  a.EthHotKey,
		EthColdKey: a.EthColdKey,
	}
	return json.Marshal(o)
}

func (a *Account) UnmarshalJSON(dat []byte) (err error) {
	var o accountSt
	err = json.Unmarshal(dat, &o)
	if err != nil {
		return
	}
	a.Index = o.Index
	a.PubKey = o.PubKey
	a.Stake = o.Stake
	a.Nonce = o.Nonce
	a.EthHotKey = o.EthHotKey
	a.EthColdKey = o.EthColdKey
	return
}

func (a *Account) Clone() *Account {
	n := &Account{
		Index: a.Index,
		Stake: a.Stake,
		Nonce: a.Nonce,
	}
	if a.PubKey != nil {
		n.PubKey = append([]byte(nil), a.PubKey...)
	}
	if a.EthHotKey != nil {
		n.EthHotKey = append([]byte(nil), a.EthHotKey...)
	}
	if a.EthColdKey != nil {
		n.EthColdKey = append([]byte(nil), a.EthColdKey...)
	}
	return n
}

func (a *Account) SetPubKey(pkey []byte) {
	if a.PubKey == nil {
		a.PubKey = make([]byte, len(pkey))
	}
	copy(a.PubKey, pkey)
}

func (a *Account) AddrBytes() []byte {
	pk := ed25519.PubKey(a.PubKey[:])
	return pk.Address()[:]
}

func (a *Account) Address() string {
	pk := ed25519.PubKey(a.PubKey[:])
	return pk.Address().String()
}

func (a *Account) Verify(msg []byte, sigs [][]byte) (succ bool) {
	if len(sigs) != 1 {
		return false
	}
	pk := ed25519.PubKey(a.PubKey[:])
	return pk.VerifySignature(msg, sigs[0])
}
