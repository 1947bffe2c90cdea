package state

import (
	"testing"

	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/halcyonchain/settled/types"
)

func newTestDB(t *testing.T) *StateDB {
	db, err := NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(t, err)
	return db
}

func addTestAccount(t *testing.T, st *State, stake uint64, balance uint64) *Account {
	priv := ed25519.GenPrivKey()
	var acnt Account
	acnt.SetPubKey(priv.PubKey().Bytes())
	acnt.Stake = stake
	require.NoError(t, st.AddAccount(&acnt))
	if balance > 0 {
		addr := common.BytesToAddress(acnt.AddrBytes())
		require.NoError(t, st.Credit(addr, types.Amount(balance)))
	}
	got, err := st.GetAccount(acnt.Index)
	require.NoError(t, err)
	return got
}

func TestSubmitProposalEscrowsFunds(t *testing.T) {
	require := require.New(t)

	db := newTestDB(t)
	st := db.NewState()
	acnt := addTestAccount(t, st, 1000, 500)
	author := common.BytesToAddress(acnt.AddrBytes())

	event, err := st.SubmitProposal(acnt.Index, 200, 1, 3, nil, false)
	require.NoError(err)
	require.NotNil(event)
	require.Equal(uint64(1), event.ProposalID)

	balance, err := st.Balance(author)
	require.NoError(err)
	require.Equal(uint64(300), balance)
	escrow, err := st.Balance(types.GovAddress)
	require.NoError(err)
	require.Equal(uint64(200), escrow)

	p, err := st.GetProposal(1)
	require.NoError(err)
	require.Equal(author, p.Author)
	require.Equal(types.Amount(200), p.Funds)
	require.Equal(types.Epoch(1), p.StartEpoch)
	require.Equal(types.Epoch(3), p.GraceEpoch)
	require.Nil(p.Code)
}

func TestSubmitProposalRejectsBadEpochs(t *testing.T) {
	require := require.New(t)

	db := newTestDB(t)
	st := db.NewState()
	acnt := addTestAccount(t, st, 1000, 500)

	// start must be in the future
	_, err := st.SubmitProposal(acnt.Index, 10, 0, 2, nil, false)
	require.ErrorIs(err, ErrBadProposalEpochs)
	// grace must follow start
	_, err = st.SubmitProposal(acnt.Index, 10, 2, 2, nil, false)
	require.ErrorIs(err, ErrBadProposalEpochs)
	// escrow above balance
	_, err = st.SubmitProposal(acnt.Index, 501, 1, 2, nil, false)
	require.ErrorIs(err, ErrInsufficientFunds)
}

func TestCastVoteWindow(t *testing.T) {
	require := require.New(t)

	db := newTestDB(t)
	st := db.NewState()
	acnt := addTestAccount(t, st, 1000, 500)
	voter := addTestAccount(t, st, 1000, 0)

	_, err := st.SubmitProposal(acnt.Index, 100, 2, 4, nil, false)
	require.NoError(err)

	// epoch 0, window not yet open
	_, err = st.CastVote(voter.Index, 1, true, false)
	require.ErrorIs(err, ErrVotingClosed)

	st.SetEpoch(2)
	event, err := st.CastVote(voter.Index, 1, true, false)
	require.NoError(err)
	require.True(event.Yay)

	_, err = st.CastVote(voter.Index, 1, false, false)
	require.ErrorIs(err, ErrAlreadyVoted)

	other := addTestAccount(t, st, 1000, 0)
	st.SetEpoch(4)
	_, err = st.CastVote(other.Index, 1, true, false)
	require.ErrorIs(err, ErrVotingClosed)
}

func TestProposalVotesReadBack(t *testing.T) {
	require := require.New(t)

	db := newTestDB(t)
	st := db.NewState()
	acnt := addTestAccount(t, st, 1000, 500)
	v1 := addTestAccount(t, st, 1000, 0)
	v2 := addTestAccount(t, st, 1000, 0)

	_, err := st.SubmitProposal(acnt.Index, 100, 1, 3, nil, false)
	require.NoError(err)
	st.SetEpoch(1)
	_, err = st.CastVote(v1.Index, 1, true, false)
	require.NoError(err)
	_, err = st.CastVote(v2.Index, 1, false, false)
	require.NoError(err)

	_, err = st.Update()
	require.NoError(err)

	votes, err := st.ProposalVotes(1)
	require.NoError(err)
	require.Len(votes, 2)
	yay := 0
	for _, v := range votes {
		if v.Yay {
			yay++
		}
	}
	require.Equal(1, yay)
}

func TestDequeueExpiredProposals(t *testing.T) {
	require := require.New(t)

	db := newTestDB(t)
	st := db.NewState()
	acnt := addTestAccount(t, st, 1000, 1000)

	_, err := st.SubmitProposal(acnt.Index, 10, 1, 2, nil, false)
	require.NoError(err)
	_, err = st.SubmitProposal(acnt.Index, 10, 1, 5, nil, false)
	require.NoError(err)
	_, err = st.Update()
	require.NoError(err)

	ids, err := st.DequeueExpiredProposals(2)
	require.NoError(err)
	require.Equal([]uint64{1}, ids)

	// the drained entry is deleted in the overlay, a second drain in
	// the same block sees nothing
	ids, err = st.DequeueExpiredProposals(2)
	require.NoError(err)
	require.Empty(ids)

	ids, err = st.DequeueExpiredProposals(5)
	require.NoError(err)
	require.Equal([]uint64{2}, ids)
}

func TestTxScopeCommitAndDrop(t *testing.T) {
	require := require.New(t)

	db := newTestDB(t)
	st := db.NewState()

	require.NoError(st.BeginTx())
	st.SetStorage("key/a", []byte{1})
	st.DropTx()
	val, err := st.GetStorage("key/a")
	require.NoError(err)
	require.Nil(val)

	require.NoError(st.BeginTx())
	st.SetStorage("key/a", []byte{2})
	require.NoError(st.CommitTx())
	val, err = st.GetStorage("key/a")
	require.NoError(err)
	require.Equal([]byte{2}, val)

	// scope cannot be nested twice
	require.NoError(st.BeginTx())
	require.ErrorIs(st.BeginTx(), ErrTxScopeOpen)
	st.DropTx()
	require.ErrorIs(st.CommitTx(), ErrNoTxScope)
}

func TestTransferConservesTotal(t *testing.T) {
	require := require.New(t)

	db := newTestDB(t)
	st := db.NewState()
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")
	require.NoError(st.Credit(a, 100))

	require.NoError(st.Transfer(a, b, 30))
	balA, _ := st.Balance(a)
	balB, _ := st.Balance(b)
	require.Equal(uint64(70), balA)
	require.Equal(uint64(30), balB)

	require.ErrorIs(st.Transfer(a, b, 71), ErrInsufficientFunds)
}

func TestTransferToSelfKeepsBalance(t *testing.T) {
	require := require.New(t)

	db := newTestDB(t)
	st := db.NewState()
	a := common.HexToAddress("0x01")
	require.NoError(st.Credit(a, 100))

	require.NoError(st.Transfer(a, a, 40))
	bal, err := st.Balance(a)
	require.NoError(err)
	require.Equal(uint64(100), bal)

	require.ErrorIs(st.Transfer(a, a, 101), ErrInsufficientFunds)
}

func TestValidatorSnapshotRoundTrip(t *testing.T) {
	require := require.New(t)

	db := newTestDB(t)
	st := db.NewState()

	entries := []SnapshotEntry{
		{
			Addr:        []byte{0x01, 0x02},
			HotKeyAddr:  common.HexToAddress("0xaa"),
			ColdKeyAddr: common.HexToAddress("0xbb"),
			HotKey:      []byte{0x02, 0x99},
			Power:       1 << 31,
		},
		{
			Addr:        []byte{0x03, 0x04},
			HotKeyAddr:  common.HexToAddress("0xcc"),
			ColdKeyAddr: common.HexToAddress("0xdd"),
			HotKey:      []byte{0x03, 0x88},
			Power:       1 << 31,
		},
	}
	require.NoError(st.WriteValidatorSnapshot(7, entries))
	_, err := st.Update()
	require.NoError(err)

	got, err := st.ConsensusValidators(7)
	require.NoError(err)
	require.Len(got, 2)

	hot, err := st.ReadValidatorHotKey([]byte{0x01, 0x02}, 7)
	require.NoError(err)
	require.Equal([]byte{0x02, 0x99}, hot)

	_, err = st.ReadValidatorHotKey([]byte{0xff}, 7)
	require.ErrorIs(err, ErrNotFound)

	none, err := st.ConsensusValidators(8)
	require.NoError(err)
	require.Empty(none)

	seen, err := st.ValsetUpdSeen(7)
	require.NoError(err)
	require.False(seen)
	st.SetValsetUpdSeen(7)
	seen, err = st.ValsetUpdSeen(7)
	require.NoError(err)
	require.True(seen)
}
