package handler

import (
	"context"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/halcyonchain/settled/state"
	"github.com/halcyonchain/settled/tx"
)

type TxHandler interface {
	Check(ctx context.Context, st *state.State, btx *tx.LedgerTx) (res *abcitypes.ResponseCheckTx, err error)
	NewContext(ctx context.Context)
	Prepare(ctx context.Context, st *state.State, btx *tx.LedgerTx) (res *abcitypes.ExecTxResult, err error)
	Process(ctx context.Context, st *state.State, btx *tx.LedgerTx) (res *abcitypes.ExecTxResult, err error)
}
