package app

import (
	"context"
	"testing"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/halcyonchain/settled/config"
	"github.com/halcyonchain/settled/state"
	"github.com/halcyonchain/settled/tx"
	"github.com/halcyonchain/settled/types"
)

const testChainID = "settled-test"

type appHarness struct {
	app  *SettledApp
	priv ed25519.PrivKey
	addr common.Address
}

// newAppHarness boots a one-validator chain through InitChain with a
// five-block epoch.
func newAppHarness(t *testing.T) *appHarness {
	cfg := config.NewAppConfig(t.TempDir())
	cfg.EpochBlocks = 5
	a, err := NewSettledApp(cfg, cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(a.Stop)

	priv := ed25519.GenPrivKey()
	hotKey, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	coldKey, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	appState, err := cmtjson.Marshal(genesisAppState{
		Validators: []types.GenesisValidator{{
			Address:    priv.PubKey().Address(),
			PubKey:     priv.PubKey(),
			Power:      10,
			Balance:    1000,
			EthHotKey:  ethcrypto.CompressPubkey(&hotKey.PublicKey),
			EthColdKey: ethcrypto.CompressPubkey(&coldKey.PublicKey),
		}},
	})
	require.NoError(t, err)

	res, err := a.InitChain(context.Background(), &abcitypes.RequestInitChain{
		ChainId:       testChainID,
		AppStateBytes: appState,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.AppHash)

	a.SetBridgeKey(hotKey, priv.PubKey().Address().Bytes())

	return &appHarness{
		app:  a,
		priv: priv,
		addr: common.BytesToAddress(priv.PubKey().Address().Bytes()),
	}
}

func (h *appHarness) signedTx(t *testing.T, nonce uint64, txType tx.LedgerTxType, inner any) []byte {
	btx := &tx.LedgerTx{
		Version:   tx.LedgerTxVersion1,
		Type:      txType,
		Nonce:     nonce,
		Validator: state.StartAccountIdx,
		Tx:        inner,
	}
	sigData, err := btx.SigData([]byte(testChainID))
	require.NoError(t, err)
	sig, err := h.priv.Sign(sigData)
	require.NoError(t, err)
	btx.Sig = [][]byte{sig}
	raw, err := tx.MarshalLedgerTx(btx)
	require.NoError(t, err)
	return raw
}

func (h *appHarness) finalize(t *testing.T, height int64, txs [][]byte) *abcitypes.ResponseFinalizeBlock {
	res, err := h.app.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{
		Height: height,
		Txs:    txs,
	})
	require.NoError(t, err)
	_, err = h.app.Commit(context.Background(), &abcitypes.RequestCommit{})
	require.NoError(t, err)
	return res
}

func (h *appHarness) balance(t *testing.T, addr common.Address) uint64 {
	bal, err := h.app.db.State().Balance(addr)
	require.NoError(t, err)
	return bal
}

func TestAppProposalLifecycle(t *testing.T) {
	require := require.New(t)
	h := newAppHarness(t)

	// voting over epoch 1, settlement due at epoch 2
	proposal := h.signedTx(t, 0, tx.LedgerTxTypeProposal, &tx.ProposalTx{
		Funds:      200,
		StartEpoch: 1,
		GraceEpoch: 2,
	})
	res := h.finalize(t, 1, [][]byte{proposal})
	require.Len(res.TxResults, 1)
	require.Equal(uint64(800), h.balance(t, h.addr))
	require.Equal(uint64(200), h.balance(t, types.GovAddress))

	// first block of epoch 1 opens the voting window
	voteTx := h.signedTx(t, 1, tx.LedgerTxTypeVote, &tx.VoteTx{Proposal: 1, Yay: true})
	h.finalize(t, 5, [][]byte{voteTx})

	// first block of epoch 2 settles: full yay power, author refunded
	res = h.finalize(t, 10, nil)
	var settled bool
	for _, ev := range res.Events {
		if ev.Type == types.EventProposalType {
			settled = true
		}
	}
	require.True(settled)
	require.Equal(uint64(1000), h.balance(t, h.addr))
	require.Equal(uint64(0), h.balance(t, types.GovAddress))
	require.Equal(uint64(0), h.balance(t, types.TreasuryAddress))

	// the queue is drained; the next boundary settles nothing
	res = h.finalize(t, 15, nil)
	for _, ev := range res.Events {
		require.NotEqual(types.EventProposalType, ev.Type)
	}
}

func TestAppRejectedProposalFundsTreasury(t *testing.T) {
	require := require.New(t)
	h := newAppHarness(t)

	proposal := h.signedTx(t, 0, tx.LedgerTxTypeProposal, &tx.ProposalTx{
		Funds:      300,
		StartEpoch: 1,
		GraceEpoch: 2,
	})
	h.finalize(t, 1, [][]byte{proposal})

	// nobody votes: zero yay power rejects
	h.finalize(t, 5, nil)
	h.finalize(t, 10, nil)

	require.Equal(uint64(700), h.balance(t, h.addr))
	require.Equal(uint64(300), h.balance(t, types.TreasuryAddress))
}

func TestAppVoteExtensionRoundTrip(t *testing.T) {
	require := require.New(t)
	h := newAppHarness(t)

	// extensions only flow once a block is committed
	h.finalize(t, 1, nil)

	ext, err := h.app.ExtendVote(context.Background(), &abcitypes.RequestExtendVote{Height: 2})
	require.NoError(err)
	require.NotEmpty(ext.VoteExtension)

	verify, err := h.app.VerifyVoteExtension(context.Background(), &abcitypes.RequestVerifyVoteExtension{
		Height:           2,
		ValidatorAddress: h.priv.PubKey().Address().Bytes(),
		VoteExtension:    ext.VoteExtension,
	})
	require.NoError(err)
	require.Equal(abcitypes.ResponseVerifyVoteExtension_ACCEPT, verify.Status)

	// a different claimed signer is rejected
	verify, err = h.app.VerifyVoteExtension(context.Background(), &abcitypes.RequestVerifyVoteExtension{
		Height:           2,
		ValidatorAddress: []byte{0x01, 0x02},
		VoteExtension:    ext.VoteExtension,
	})
	require.NoError(err)
	require.Equal(abcitypes.ResponseVerifyVoteExtension_REJECT, verify.Status)

	// abstention always accepted
	verify, err = h.app.VerifyVoteExtension(context.Background(), &abcitypes.RequestVerifyVoteExtension{Height: 2})
	require.NoError(err)
	require.Equal(abcitypes.ResponseVerifyVoteExtension_ACCEPT, verify.Status)
}

func TestAppCheckTxRejectsBadSignature(t *testing.T) {
	require := require.New(t)
	h := newAppHarness(t)
	h.finalize(t, 1, nil)

	raw := h.signedTx(t, 1, tx.LedgerTxTypeVote, &tx.VoteTx{Proposal: 1, Yay: true})
	btx, err := tx.UnmarshalLedgerTx(raw)
	require.NoError(err)
	btx.Sig = [][]byte{make([]byte, 64)}
	tampered, err := tx.MarshalLedgerTx(btx)
	require.NoError(err)

	res, err := h.app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: tampered})
	require.NoError(err)
	require.NotZero(res.Code)
}
