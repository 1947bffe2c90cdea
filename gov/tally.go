package gov

import (
	"math/big"

	"github.com/halcyonchain/settled/state"
	"github.com/halcyonchain/settled/types"
)

// GetProposalVotes reads back the votes cast on a proposal during its
// voting window, in voter address order.
func GetProposalVotes(st *state.State, id uint64) ([]types.ProposalVote, error) {
	return st.ProposalVotes(id)
}

// ComputeTally weighs votes against the validator-set snapshot as of
// the proposal's start epoch. Passed requires yay power of at least
// two thirds of the total active power. Missing snapshot data or
// power-arithmetic overflow yields Unknown, never Passed.
func ComputeTally(st *state.State, epoch types.Epoch, votes []types.ProposalVote) types.TallyResult {
	entries, err := st.ConsensusValidators(epoch)
	if err != nil || len(entries) == 0 {
		return types.TallyUnknown
	}

	powerByAddr := make(map[string]uint64, len(entries))
	var total uint64
	var ok bool
	for i := range entries {
		powerByAddr[string(entries[i].Addr)] = entries[i].Power
		total, ok = checkedAdd(total, entries[i].Power)
		if !ok {
			return types.TallyUnknown
		}
	}

	var yay uint64
	for _, vote := range votes {
		if !vote.Yay {
			continue
		}
		power, found := powerByAddr[string(vote.Voter.Bytes())]
		if !found {
			// vote from outside the snapshot carries no weight
			continue
		}
		yay, ok = checkedAdd(yay, power)
		if !ok {
			return types.TallyUnknown
		}
	}

	// 3*yay >= 2*total, widened so the comparison cannot wrap
	lhs := new(big.Int).SetUint64(yay)
	lhs.Mul(lhs, big.NewInt(3))
	rhs := new(big.Int).SetUint64(total)
	rhs.Mul(rhs, big.NewInt(2))
	if lhs.Cmp(rhs) >= 0 {
		return types.TallyPassed
	}
	return types.TallyRejected
}

func checkedAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}
