package app

import (
	"context"
	"errors"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/halcyonchain/settled/state"
	"github.com/halcyonchain/settled/tx"
	"github.com/halcyonchain/settled/types"
)

var (
	ErrUnexpectedTxProcess = errors.New("unexpected tx process")
)

func (app *SettledApp) getState() (st *state.State) {
	st = app.db.NewState()
	app.st = st
	return
}

func (app *SettledApp) parseTx(txDat []byte, allowNonceGap bool) (btx *tx.LedgerTx, err error) {
	btx, err = tx.UnmarshalLedgerTx(txDat)
	if err != nil {
		return
	}
	st := app.db.State()
	sigData, err := btx.SigData([]byte(st.ChainId()))
	if err != nil {
		return nil, err
	}
	_, err = st.VerifyTx(btx.Validator, btx.Nonce, sigData, btx.Sig, allowNonceGap)
	return
}

func (app *SettledApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	btx, err := app.parseTx(check.Tx, true)
	if err != nil {
		app.logger.Info("check tx parse fail", "err", err)
		res.Code = 1
		res.Log = err.Error()
		err = nil
		return
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		app.logger.Error("unsupported tx", "type", btx.Type)
		res.Code = 1
		res.Log = "unsupported tx"
		return
	}
	st := app.db.State()
	res, err = h.Check(ctx, st, btx)
	if err != nil {
		app.logger.Error("check tx fail", "err", err)
		res.Code = 1
		res.Log = err.Error()
		err = nil
	}
	return
}

func (app *SettledApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	st := app.getState()
	// mirror FinalizeBlock's epoch clock so boundary-block txs are
	// filtered under the epoch they will execute in
	if epoch := app.cfg.EpochOf(uint64(proposal.Height)); epoch > st.Epoch() {
		st.SetEpoch(epoch)
	}
	for _, h := range app.txHdlrs {
		h.NewContext(ctx)
	}
	txs := make([][]byte, 0, len(proposal.Txs))
	for _, stx := range proposal.Txs {
		stTmp := st.Clone()
		btx, err := app.parseTx(stx, false)
		if err != nil {
			app.logger.Info("skip tx, parse fail", "err", err)
			continue
		}
		h, ok := app.txHdlrs[btx.Type]
		if !ok {
			app.logger.Info("skip tx, no handler", "type", btx.Type)
			continue
		}
		result, err := h.Prepare(ctx, stTmp, btx)
		if err != nil {
			app.logger.Info("skip tx, prepare fail", "type", btx.Type, "err", err)
			continue
		}
		if result == nil || result.Code != 0 {
			app.logger.Info("skip tx, prepare rejected", "type", btx.Type)
			continue
		}
		st = stTmp
		txs = append(txs, stx)
	}
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

func (app *SettledApp) executeTxs(ctx context.Context, st *state.State, txs [][]byte) (res []*abcitypes.ExecTxResult, err error) {
	for _, h := range app.txHdlrs {
		h.NewContext(ctx)
	}
	res = make([]*abcitypes.ExecTxResult, len(txs))
	for i, stx := range txs {
		btx, err := app.parseTx(stx, false)
		if err != nil {
			app.logger.Error("unexpected tx, parse fail", "err", err)
			return nil, err
		}
		h, ok := app.txHdlrs[btx.Type]
		if !ok {
			app.logger.Error("unexpected tx, no handler", "type", btx.Type)
			return nil, ErrUnexpectedTxProcess
		}
		result, err := h.Process(ctx, st, btx)
		if err != nil {
			app.logger.Error("unexpected process tx fail", "type", btx.Type, "err", err)
			return nil, ErrUnexpectedTxProcess
		}
		if result == nil || result.Code != 0 {
			app.logger.Error("unexpected process tx result", "type", btx.Type)
			return nil, ErrUnexpectedTxProcess
		}
		res[i] = result
	}
	return
}

func (app *SettledApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	if len(proposal.Txs) == 0 {
		res.Status = abcitypes.ResponseProcessProposal_ACCEPT
		return res, nil
	}
	st := app.getState()
	if epoch := app.cfg.EpochOf(uint64(proposal.Height)); epoch > st.Epoch() {
		st.SetEpoch(epoch)
	}
	_, err = app.executeTxs(ctx, st, proposal.Txs)
	if err != nil {
		app.logger.Error("process proposal fail", "err", err)
		return res, nil
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	return res, nil
}

// FinalizeBlock advances the epoch clock, runs the block's
// transactions, and on an epoch boundary settles every proposal whose
// voting window has closed.
func (app *SettledApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.logger.Info("FinalizeBlock", "height", req.Height)
	app.lastBlk.Set(req)
	st := app.getState()
	st.SetHeight(uint64(req.Height))

	epoch := app.cfg.EpochOf(uint64(req.Height))
	newEpoch := epoch > st.Epoch()
	if newEpoch {
		st.SetEpoch(epoch)
	}

	res, err := app.executeTxs(ctx, st, req.Txs)
	if err != nil {
		return nil, err
	}

	var events []abcitypes.Event
	if newEpoch {
		ids, err := st.DequeueExpiredProposals(types.Epoch(epoch))
		if err != nil {
			app.logger.Error("dequeue expired proposals fail", "err", err)
			return nil, err
		}
		app.expired = append(app.expired, ids...)
	}
	result, govEvents, err := app.gov.ExecuteGovernanceProposals(st, &app.expired, newEpoch)
	if err != nil {
		app.logger.Error("settle proposals fail", "err", err)
		return nil, err
	}
	if len(result.Passed)+len(result.Rejected) > 0 {
		app.logger.Info("proposals settled",
			"passed", len(result.Passed), "rejected", len(result.Rejected))
	}
	events = append(events, govEvents...)

	if newEpoch {
		if err := app.writeSnapshot(st, types.Epoch(epoch).Next()); err != nil {
			app.logger.Error("write validator snapshot fail", "err", err)
			return nil, err
		}
	}

	curVals, err := st.Validators()
	if err != nil {
		app.logger.Error("get validators fail", "err", err)
		return nil, err
	}
	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	updateVals, err := st.ValidatorsUpdate(curVals)
	if err != nil {
		app.logger.Error("state update validators fail", "err", err)
		return nil, err
	}
	return &abcitypes.ResponseFinalizeBlock{
		TxResults:        res,
		AppHash:          h.Bytes(),
		ValidatorUpdates: updateVals,
		Events:           events,
	}, nil
}

func (app *SettledApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	_, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	app.st = nil
	return &abcitypes.ResponseCommit{}, nil
}
