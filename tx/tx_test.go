package tx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedgerTxRoundTrip(t *testing.T) {
	require := require.New(t)

	btx := &LedgerTx{
		Version:   LedgerTxVersion1,
		Type:      LedgerTxTypeProposal,
		Nonce:     7,
		Validator: 65536,
		Tx: &ProposalTx{
			Funds:      200,
			StartEpoch: 1,
			GraceEpoch: 3,
			Code:       []byte{0x01},
		},
		Sig: [][]byte{{0xaa}},
	}
	dat, err := MarshalLedgerTx(btx)
	require.NoError(err)

	got, err := UnmarshalLedgerTx(dat)
	require.NoError(err)
	require.Equal(btx.Version, got.Version)
	require.Equal(btx.Type, got.Type)
	require.Equal(btx.Nonce, got.Nonce)
	require.Equal(btx.Validator, got.Validator)
	require.Equal(btx.Sig, got.Sig)

	ptx, ok := got.Tx.(*ProposalTx)
	require.True(ok)
	require.Equal(uint64(200), ptx.Funds)
	require.Equal(uint64(1), ptx.StartEpoch)
	require.Equal(uint64(3), ptx.GraceEpoch)
	require.Equal([]byte{0x01}, ptx.Code)
}

func TestUnmarshalLedgerTxByType(t *testing.T) {
	require := require.New(t)

	vote, err := MarshalLedgerTx(&LedgerTx{
		Type: LedgerTxTypeVote,
		Tx:   &VoteTx{Proposal: 1, Yay: true},
	})
	require.NoError(err)
	got, err := UnmarshalLedgerTx(vote)
	require.NoError(err)
	vtx, ok := got.Tx.(*VoteTx)
	require.True(ok)
	require.True(vtx.Yay)

	retract, err := MarshalLedgerTx(&LedgerTx{
		Type: LedgerTxTypeRetract,
		Tx:   &RetractTx{Amount: 5},
	})
	require.NoError(err)
	got, err = UnmarshalLedgerTx(retract)
	require.NoError(err)
	rtx, ok := got.Tx.(*RetractTx)
	require.True(ok)
	require.Equal(uint64(5), rtx.Amount)

	_, err = UnmarshalLedgerTx([]byte(`{"type":99}`))
	require.ErrorIs(err, ErrUnsupportedTxType)

	_, err = UnmarshalLedgerTx([]byte("nonsense"))
	require.ErrorIs(err, ErrUnsupportedTxType)
}

func TestSigDataExcludesSignature(t *testing.T) {
	require := require.New(t)

	btx := &LedgerTx{
		Type: LedgerTxTypeVote,
		Tx:   &VoteTx{Proposal: 2, Yay: false},
	}
	withoutSig, err := btx.SigData([]byte("chain-1"))
	require.NoError(err)

	btx.Sig = [][]byte{{0x01, 0x02}}
	withSig, err := btx.SigData([]byte("chain-1"))
	require.NoError(err)

	// the signature slot never feeds back into the signed payload
	require.Equal(withoutSig, withSig)

	otherChain, err := btx.SigData([]byte("chain-2"))
	require.NoError(err)
	require.NotEqual(withoutSig, otherChain)
}
