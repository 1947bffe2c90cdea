package gov

import (
	"testing"

	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/halcyonchain/settled/state"
	"github.com/halcyonchain/settled/types"
)

// scriptStub stands in for the script executor. It writes a marker key
// so tests can observe whether the nested scope was committed or
// dropped.
type scriptStub struct {
	accept bool
	err    error
	calls  int
}

func (e *scriptStub) Apply(st *state.State, code []byte, id uint64) (bool, error) {
	e.calls++
	st.SetStorage("gov/executed", code)
	return e.accept, e.err
}

type settleFixture struct {
	st     *state.State
	author common.Address
	ids    []uint64
}

func newAccount(t *testing.T, st *state.State, stake, balance uint64) *state.Account {
	priv := ed25519.GenPrivKey()
	var acnt state.Account
	acnt.SetPubKey(priv.PubKey().Bytes())
	acnt.Stake = stake
	require.NoError(t, st.AddAccount(&acnt))
	if balance > 0 {
		addr := common.BytesToAddress(acnt.AddrBytes())
		require.NoError(t, st.Credit(addr, types.Amount(balance)))
	}
	return &acnt
}

// newSettleFixture submits one proposal with the given code, has a
// single full-power validator vote on it, and advances to the grace
// epoch so the proposal is drained and ready to settle.
func newSettleFixture(t *testing.T, yay bool, code []byte) *settleFixture {
	db, err := state.NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(t, err)
	st := db.NewState()

	author := newAccount(t, st, 1000, 500)
	voter := newAccount(t, st, 1000, 0)

	_, err = st.SubmitProposal(author.Index, 200, 1, 2, code, false)
	require.NoError(t, err)

	require.NoError(t, st.WriteValidatorSnapshot(1, []state.SnapshotEntry{
		{Addr: voter.AddrBytes(), Power: 1 << 32},
	}))

	st.SetEpoch(1)
	_, err = st.CastVote(voter.Index, 1, yay, false)
	require.NoError(t, err)

	// votes and snapshots are read from the tree, not the overlay
	_, err = st.Update()
	require.NoError(t, err)

	st.SetEpoch(2)
	ids, err := st.DequeueExpiredProposals(2)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, ids)

	return &settleFixture{
		st:     st,
		author: common.BytesToAddress(author.AddrBytes()),
		ids:    ids,
	}
}

func balanceOf(t *testing.T, st *state.State, addr common.Address) uint64 {
	bal, err := st.Balance(addr)
	require.NoError(t, err)
	return bal
}

func TestSettleRejectedRoutesToTreasury(t *testing.T) {
	require := require.New(t)

	fix := newSettleFixture(t, false, nil)
	exec := &scriptStub{}
	coord := NewCoordinator(cmtlog.NewNopLogger(), exec)

	result, events, err := coord.ExecuteGovernanceProposals(fix.st, &fix.ids, true)
	require.NoError(err)
	require.Empty(result.Passed)
	require.Equal([]uint64{1}, result.Rejected)
	require.Len(events, 1)
	require.Equal(types.EventProposalType, events[0].Type)

	require.Equal(uint64(200), balanceOf(t, fix.st, types.TreasuryAddress))
	require.Equal(uint64(300), balanceOf(t, fix.st, fix.author))
	require.Equal(uint64(0), balanceOf(t, fix.st, types.GovAddress))
	require.Zero(exec.calls)
	require.Nil(fix.ids)
}

func TestSettleUnknownTallyEmitsRejected(t *testing.T) {
	require := require.New(t)

	db, err := state.NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(err)
	st := db.NewState()

	// no validator snapshot for the start epoch, so the tally is
	// indeterminate
	author := newAccount(t, st, 1000, 500)
	_, err = st.SubmitProposal(author.Index, 200, 1, 2, nil, false)
	require.NoError(err)
	_, err = st.Update()
	require.NoError(err)

	st.SetEpoch(2)
	ids, err := st.DequeueExpiredProposals(2)
	require.NoError(err)
	require.Equal([]uint64{1}, ids)

	coord := NewCoordinator(cmtlog.NewNopLogger(), &scriptStub{})
	result, events, err := coord.ExecuteGovernanceProposals(st, &ids, true)
	require.NoError(err)
	require.Equal([]uint64{1}, result.Rejected)
	require.Len(events, 1)
	for _, attr := range events[0].Attributes {
		if attr.Key == "tally_result" {
			require.Equal(types.TallyRejected.String(), attr.Value)
		}
	}
	require.Equal(uint64(200), balanceOf(t, st, types.TreasuryAddress))
}

func TestSettlePassedNoCodeRefundsAuthor(t *testing.T) {
	require := require.New(t)

	fix := newSettleFixture(t, true, nil)
	exec := &scriptStub{}
	coord := NewCoordinator(cmtlog.NewNopLogger(), exec)

	result, _, err := coord.ExecuteGovernanceProposals(fix.st, &fix.ids, true)
	require.NoError(err)
	require.Equal([]uint64{1}, result.Passed)
	require.Empty(result.Rejected)

	require.Equal(uint64(500), balanceOf(t, fix.st, fix.author))
	require.Equal(uint64(0), balanceOf(t, fix.st, types.TreasuryAddress))
	require.Zero(exec.calls)
}

func TestSettlePassedCodeAccepted(t *testing.T) {
	require := require.New(t)

	fix := newSettleFixture(t, true, []byte{0xca, 0xfe})
	exec := &scriptStub{accept: true}
	coord := NewCoordinator(cmtlog.NewNopLogger(), exec)

	result, _, err := coord.ExecuteGovernanceProposals(fix.st, &fix.ids, true)
	require.NoError(err)
	require.Equal([]uint64{1}, result.Passed)
	require.Equal(1, exec.calls)

	require.Equal(uint64(500), balanceOf(t, fix.st, fix.author))
	require.Equal(uint64(0), balanceOf(t, fix.st, types.TreasuryAddress))

	// accepted script writes survive the scope
	val, err := fix.st.GetStorage("gov/executed")
	require.NoError(err)
	require.Equal([]byte{0xca, 0xfe}, val)
}

func TestSettlePassedCodeRejected(t *testing.T) {
	require := require.New(t)

	fix := newSettleFixture(t, true, []byte{0xca, 0xfe})
	exec := &scriptStub{accept: false}
	coord := NewCoordinator(cmtlog.NewNopLogger(), exec)

	result, _, err := coord.ExecuteGovernanceProposals(fix.st, &fix.ids, true)
	require.NoError(err)
	// code rejection overrides the passed tally
	require.Empty(result.Passed)
	require.Equal([]uint64{1}, result.Rejected)
	require.Equal(1, exec.calls)

	require.Equal(uint64(300), balanceOf(t, fix.st, fix.author))
	require.Equal(uint64(200), balanceOf(t, fix.st, types.TreasuryAddress))

	// rejected script writes are dropped with the scope
	val, err := fix.st.GetStorage("gov/executed")
	require.NoError(err)
	require.Nil(val)
}

func TestSettleNoNewEpochIsNoop(t *testing.T) {
	require := require.New(t)

	fix := newSettleFixture(t, true, nil)
	coord := NewCoordinator(cmtlog.NewNopLogger(), &scriptStub{})

	result, events, err := coord.ExecuteGovernanceProposals(fix.st, &fix.ids, false)
	require.NoError(err)
	require.Empty(result.Passed)
	require.Empty(result.Rejected)
	require.Empty(events)
	// the pending list is untouched and settles on the next boundary
	require.Equal([]uint64{1}, fix.ids)

	result, _, err = coord.ExecuteGovernanceProposals(fix.st, &fix.ids, true)
	require.NoError(err)
	require.Equal([]uint64{1}, result.Passed)
	require.Nil(fix.ids)
}

func TestSettleCorruptProposalAborts(t *testing.T) {
	require := require.New(t)

	db, err := state.NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(err)
	st := db.NewState()
	coord := NewCoordinator(cmtlog.NewNopLogger(), &scriptStub{})

	ids := []uint64{99}
	_, _, err = coord.ExecuteGovernanceProposals(st, &ids, true)
	var bad BadProposalError
	require.ErrorAs(err, &bad)
	require.Equal(uint64(99), bad.ID)
}

func TestSettleConservesFunds(t *testing.T) {
	require := require.New(t)

	for _, yay := range []bool{true, false} {
		fix := newSettleFixture(t, yay, nil)
		coord := NewCoordinator(cmtlog.NewNopLogger(), &scriptStub{})
		_, _, err := coord.ExecuteGovernanceProposals(fix.st, &fix.ids, true)
		require.NoError(err)

		total := balanceOf(t, fix.st, fix.author) +
			balanceOf(t, fix.st, types.GovAddress) +
			balanceOf(t, fix.st, types.TreasuryAddress)
		require.Equal(uint64(500), total)
	}
}
