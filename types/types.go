package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// Epoch is a contiguous span of blocks treated as one unit for
// validator-set and voting-power snapshots.
type Epoch uint64

func (e Epoch) Next() Epoch {
	return e + 1
}

// Amount is a non-negative native token amount.
type Amount uint64

// VotingPower is a validator's weight in quorum calculations,
// normalized to a 2^32 fixed-point scale when crossing the bridge.
type VotingPower uint64

// PowerScale is the fixed-point scale voting powers are normalized to
// in validator-set-update vote extensions.
const PowerScale = uint64(1) << 32

type TallyResult uint8

const (
	TallyUnknown TallyResult = iota
	TallyPassed
	TallyRejected
)

func (r TallyResult) String() string {
	switch r {
	case TallyPassed:
		return "passed"
	case TallyRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Proposal is the stored governance proposal model. Funds are escrowed
// at submission and disposed of exactly once at settlement.
type Proposal struct {
	ID         uint64         `json:"id"`
	Funds      Amount         `json:"funds"`
	StartEpoch Epoch          `json:"start_epoch"`
	GraceEpoch Epoch          `json:"grace_epoch"`
	Author     common.Address `json:"author"`
	Code       []byte         `json:"code,omitempty"`
}

// ProposalsResult accumulates the ids settled during one execution
// pass, bucketed by outcome in drain order.
type ProposalsResult struct {
	Passed   []uint64 `json:"passed"`
	Rejected []uint64 `json:"rejected"`
}

// ProposalVote is a single validator vote as read back from storage.
type ProposalVote struct {
	Voter common.Address `json:"voter"`
	Yay   bool           `json:"yay"`
}

// EthAddrBook pairs the externally-facing signing-key addresses of a
// validator on the bridge side.
type EthAddrBook struct {
	HotKeyAddr  common.Address `json:"hot_key_addr"`
	ColdKeyAddr common.Address `json:"cold_key_addr"`
}

var (
	// GovAddress escrows proposal funds between submission and settlement.
	GovAddress = common.HexToAddress("0x00000000000000000000000000000000476f7665")
	// TreasuryAddress receives funds from proposals that fail after tally.
	TreasuryAddress = common.HexToAddress("0x0000000000000000000000000000005472656173")
)
