package handler

import (
	"context"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/halcyonchain/settled/state"
	"github.com/halcyonchain/settled/tx"
	"github.com/halcyonchain/settled/types"
)

type VoteTxHandler struct {
	logger cmtlog.Logger
}

func NewVoteTxHandler(logger cmtlog.Logger) (h *VoteTxHandler) {
	logger = logger.With("module", "voteTx")
	h = &VoteTxHandler{
		logger: logger,
	}
	return
}

func (h *VoteTxHandler) Check(ctx context.Context, st *state.State, btx *tx.LedgerTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	vtx := btx.Tx.(*tx.VoteTx)
	_, err1 := st.CastVote(btx.Validator, vtx.Proposal, vtx.Yay, true)
	if err1 != nil {
		h.logger.Info("CheckTx VoteTx fail", "err", err1)
		res.Code = 1
		res.Log = err1.Error()
	}
	return
}

func (h *VoteTxHandler) NewContext(ctx context.Context) {
}

// duplicate votes are rejected by storage, so no per-block validator
// guard is needed here
func (h *VoteTxHandler) handle(ctx context.Context, st *state.State, btx *tx.LedgerTx) (res *abcitypes.ExecTxResult, err error) {
	vtx := btx.Tx.(*tx.VoteTx)
	event, err := st.CastVote(btx.Validator, vtx.Proposal, vtx.Yay, false)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{}
	if event != nil {
		res.Events = []abcitypes.Event{types.EncodeEventVote(event)}
	}
	return
}

func (h *VoteTxHandler) Prepare(ctx context.Context, st *state.State, btx *tx.LedgerTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *VoteTxHandler) Process(ctx context.Context, st *state.State, btx *tx.LedgerTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
