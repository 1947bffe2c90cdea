package tx

import (
	"errors"
)

type LedgerTxType uint8

const (
	LedgerTxTypeUnknown  LedgerTxType = 0
	LedgerTxTypeProposal LedgerTxType = 1
	LedgerTxTypeVote     LedgerTxType = 2
	LedgerTxTypeRetract  LedgerTxType = 3
)

const (
	LedgerTxVersion0 uint8 = 0
	LedgerTxVersion1 uint8 = 1
)

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnmatchedTxType      = errors.New("unmatched tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
)
