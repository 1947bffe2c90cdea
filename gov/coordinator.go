package gov

import (
	"fmt"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"

	"github.com/halcyonchain/settled/state"
	"github.com/halcyonchain/settled/types"
)

// Executor runs a passed proposal's attached code against a transient
// storage scope. It reports whether the code accepted the state changes
// it produced; on false the caller discards the scope.
type Executor interface {
	Apply(st *state.State, code []byte, id uint64) (accepted bool, err error)
}

// Coordinator settles expired governance proposals at epoch
// boundaries: tally, optional code execution, fund routing, events.
type Coordinator struct {
	logger cmtlog.Logger
	exec   Executor
}

func NewCoordinator(logger cmtlog.Logger, exec Executor) *Coordinator {
	return &Coordinator{
		logger: logger.With("module", "gov"),
		exec:   exec,
	}
}

// ExecuteGovernanceProposals settles every proposal id in pending,
// draining the slice. When newEpoch is false it does nothing, so a
// second call within the same block is a no-op. A proposal with
// corrupt core storage aborts the whole pass with BadProposalError and
// no partial settlement reaches the caller's committed state.
func (c *Coordinator) ExecuteGovernanceProposals(st *state.State, pending *[]uint64, newEpoch bool) (types.ProposalsResult, []abcitypes.Event, error) {
	var result types.ProposalsResult
	if !newEpoch {
		return result, nil, nil
	}

	ids := *pending
	*pending = nil

	var events []abcitypes.Event
	for _, id := range ids {
		funds, err := st.ReadProposalFunds(id)
		if err != nil {
			return result, nil, BadProposalError{ID: id, Reason: fmt.Sprintf("read funds: %v", err)}
		}
		startEpoch, err := st.ReadProposalStartEpoch(id)
		if err != nil {
			return result, nil, BadProposalError{ID: id, Reason: fmt.Sprintf("read start epoch: %v", err)}
		}

		votes, err := GetProposalVotes(st, id)
		if err != nil {
			return result, nil, BadProposalError{ID: id, Reason: fmt.Sprintf("read votes: %v", err)}
		}
		tally := ComputeTally(st, startEpoch, votes)

		event, dest, passed, err := c.settleOutcome(st, id, tally)
		if err != nil {
			return result, nil, err
		}

		if err := st.Transfer(types.GovAddress, dest, funds); err != nil {
			return result, nil, BadProposalError{ID: id, Reason: fmt.Sprintf("refund transfer: %v", err)}
		}

		if passed {
			result.Passed = append(result.Passed, id)
		} else {
			result.Rejected = append(result.Rejected, id)
		}
		events = append(events, event)
		c.logger.Info("proposal settled", "id", id, "tally", tally.String(), "dest", dest.Hex())
	}
	return result, events, nil
}

// settleOutcome decides where a proposal's locked funds go, which
// result bucket it lands in, and what event to emit. Passed proposals
// without code refund the author; passed proposals with code refund
// the author only when the code accepts. Rejected and Unknown tallies
// both route to the treasury and both emit a rejected event.
func (c *Coordinator) settleOutcome(st *state.State, id uint64, tally types.TallyResult) (abcitypes.Event, common.Address, bool, error) {
	if tally != types.TallyPassed {
		ev := &types.ProposalEvent{
			TallyResult: types.TallyRejected,
			ProposalID:  id,
		}
		return types.EncodeProposalEvent(ev), types.TreasuryAddress, false, nil
	}

	author, err := st.ReadProposalAuthor(id)
	if err != nil {
		return abcitypes.Event{}, types.TreasuryAddress, false, BadProposalError{ID: id, Reason: fmt.Sprintf("read author: %v", err)}
	}
	code, err := st.ReadProposalCode(id)
	if err != nil {
		return abcitypes.Event{}, types.TreasuryAddress, false, BadProposalError{ID: id, Reason: fmt.Sprintf("read code: %v", err)}
	}

	if len(code) == 0 {
		ev := &types.ProposalEvent{
			TallyResult: types.TallyPassed,
			ProposalID:  id,
		}
		return types.EncodeProposalEvent(ev), author, true, nil
	}

	accepted := c.runProposalCode(st, id, code)
	ev := &types.ProposalEvent{
		TallyResult:  types.TallyPassed,
		ProposalID:   id,
		HasCode:      true,
		CodeAccepted: accepted,
	}
	// code rejection overrides the tally: the id lands in the rejected
	// bucket and the treasury keeps the funds
	dest := types.TreasuryAddress
	if accepted {
		dest = author
	}
	return types.EncodeProposalEvent(ev), dest, accepted, nil
}

// runProposalCode executes code inside a nested write scope so a
// rejecting or crashing script leaves no trace in storage.
func (c *Coordinator) runProposalCode(st *state.State, id uint64, code []byte) bool {
	st.MarkProposalExecution(id)
	defer st.ClearProposalExecution(id)

	if err := st.BeginTx(); err != nil {
		c.logger.Error("begin proposal code scope", "id", id, "err", err)
		return false
	}
	accepted, err := c.exec.Apply(st, code, id)
	if err != nil || !accepted {
		if err != nil {
			c.logger.Info("proposal code failed", "id", id, "err", err)
		}
		st.DropTx()
		return false
	}
	if err := st.CommitTx(); err != nil {
		c.logger.Error("commit proposal code scope", "id", id, "err", err)
		st.DropTx()
		return false
	}
	return true
}
