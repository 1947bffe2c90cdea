package handler

import (
	"context"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/halcyonchain/settled/state"
	"github.com/halcyonchain/settled/tx"
	"github.com/halcyonchain/settled/types"
)

type ProposalTxHandler struct {
	logger cmtlog.Logger

	validatorSet map[uint64]bool
}

func NewProposalTxHandler(logger cmtlog.Logger) (h *ProposalTxHandler) {
	logger = logger.With("module", "proposalTx")
	h = &ProposalTxHandler{
		logger:       logger,
		validatorSet: make(map[uint64]bool),
	}
	return
}

func (h *ProposalTxHandler) Check(ctx context.Context, st *state.State, btx *tx.LedgerTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	ptx := btx.Tx.(*tx.ProposalTx)
	_, err1 := st.SubmitProposal(btx.Validator, ptx.Funds, ptx.StartEpoch, ptx.GraceEpoch, ptx.Code, true)
	if err1 != nil {
		h.logger.Info("CheckTx ProposalTx fail", "err", err1)
		res.Code = 1
		res.Log = err1.Error()
	}
	return
}

func (h *ProposalTxHandler) NewContext(ctx context.Context) {
	h.validatorSet = make(map[uint64]bool)
}

func (h *ProposalTxHandler) handle(ctx context.Context, st *state.State, btx *tx.LedgerTx) (res *abcitypes.ExecTxResult, err error) {
	if _, ok := h.validatorSet[btx.Validator]; ok {
		return nil, state.ErrOneActionInOneBlock
	}
	ptx := btx.Tx.(*tx.ProposalTx)
	event, err := st.SubmitProposal(btx.Validator, ptx.Funds, ptx.StartEpoch, ptx.GraceEpoch, ptx.Code, false)
	if err != nil {
		return nil, err
	}
	h.validatorSet[btx.Validator] = true
	res = &abcitypes.ExecTxResult{}
	if event != nil {
		res.Events = []abcitypes.Event{types.EncodeEventNewProposal(event)}
	}
	return
}

func (h *ProposalTxHandler) Prepare(ctx context.Context, st *state.State, btx *tx.LedgerTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *ProposalTxHandler) Process(ctx context.Context, st *state.State, btx *tx.LedgerTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
