package tx

import (
	"encoding/json"
)

// LedgerTx is the signed envelope every transaction travels in.
// Validator is the submitting account's index, Sig carries one
// signature per account key.
type LedgerTx struct {
	Version   uint8        `json:"version"`
	Type      LedgerTxType `json:"type"`
	Nonce     uint64       `json:"nonce"`
	Validator uint64       `json:"validator"`
	Tx        any          `json:"tx"`
	Sig       [][]byte     `json:"sig"`
}

// ProposalTx locks Funds with the governance account and opens voting
// over [StartEpoch, GraceEpoch). Code, when present, runs if the
// proposal passes.
type ProposalTx struct {
	Funds      uint64 `json:"funds"`
	StartEpoch uint64 `json:"startEpoch"`
	GraceEpoch uint64 `json:"graceEpoch"`
	Code       []byte `json:"code,omitempty"`
}

type VoteTx struct {
	Proposal uint64 `json:"proposal"`
	Yay      bool   `json:"yay"`
}

type RetractTx struct {
	Amount uint64 `json:"amount"`
}

type ledgerTxTmpl[Tx any] struct {
	Version   uint8        `json:"version"`
	Type      LedgerTxType `json:"type"`
	Nonce     uint64       `json:"nonce"`
	Validator uint64       `json:"validator"`
	Tx        Tx           `json:"tx"`
	Sig       [][]byte     `json:"sig"`
}

// SigData is the byte string signed by the submitter: the envelope
// with the signature slot collapsed to the chain id.
func (tx *LedgerTx) SigData(ext []byte) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = [][]byte{ext}
	dat, err = json.Marshal(ntx)
	return
}

func parseLedgerTxType(dat []byte) LedgerTxType {
	var tx struct {
		Type LedgerTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return LedgerTxTypeUnknown
	}
	return tx.Type
}

func unmarshalLedgerTx[Tx any](dat []byte) (btx *LedgerTx, err error) {
	var txt ledgerTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return
	}
	btx = new(LedgerTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.Validator = txt.Validator
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalLedgerTx(dat []byte) (btx *LedgerTx, err error) {
	tp := parseLedgerTxType(dat)
	switch tp {
	case LedgerTxTypeProposal:
		return unmarshalLedgerTx[ProposalTx](dat)
	case LedgerTxTypeVote:
		return unmarshalLedgerTx[VoteTx](dat)
	case LedgerTxTypeRetract:
		return unmarshalLedgerTx[RetractTx](dat)
	default:
		err = ErrUnsupportedTxType
	}
	return
}

func MarshalLedgerTx(btx *LedgerTx) (dat []byte, err error) {
	return json.Marshal(btx)
}
