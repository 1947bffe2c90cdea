package app

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/store"
	"github.com/ethereum/go-ethereum/common"

	"github.com/halcyonchain/settled/config"
	"github.com/halcyonchain/settled/gov"
	"github.com/halcyonchain/settled/state"
	"github.com/halcyonchain/settled/tx"
	"github.com/halcyonchain/settled/tx/handler"
	"github.com/halcyonchain/settled/types"
)

type finalizeBlock struct {
	Height uint64
	Hash   common.Hash
}

func (b *finalizeBlock) Set(blk *abcitypes.RequestFinalizeBlock) {
	b.Height = uint64(blk.Height)
	b.Hash = common.BytesToHash(blk.Hash)
}

var _ abcitypes.Application = &SettledApp{}

type SettledApp struct {
	cfg    *config.AppConfig
	logger cmtlog.Logger

	db            *state.StateDB
	lastBlk       finalizeBlock
	txHdlrs       map[tx.LedgerTxType]handler.TxHandler
	queriers      map[string]Querier
	gov           *gov.Coordinator
	bridgeKey     *ecdsa.PrivateKey
	validatorAddr []byte

	// proposal ids drained from the expiry queue, consumed by the
	// settlement pass of the same block
	expired []uint64

	st *state.State
}

func NewSettledApp(cfg *config.AppConfig, logger cmtlog.Logger) (app *SettledApp, err error) {
	logger = logger.With("module", "app")

	dir := cfg.Home + "/data"
	db, err := state.NewStateDB(dir, logger)
	if err != nil {
		return nil, err
	}

	app = &SettledApp{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		txHdlrs:  make(map[tx.LedgerTxType]handler.TxHandler),
		queriers: make(map[string]Querier),
	}
	app.gov = gov.NewCoordinator(logger, tx.NewScriptExecutor(tx.NewFreeGasMeter))
	app.registerTxHandler()
	app.registerQuerier()
	return
}

// SetBridgeKey installs the external hot key used to sign
// validator-set-update vote extensions, along with this node's
// consensus address. Without both the node abstains from extending
// votes.
func (app *SettledApp) SetBridgeKey(key *ecdsa.PrivateKey, validatorAddr []byte) {
	app.bridgeKey = key
	app.validatorAddr = validatorAddr
}

func (app *SettledApp) Start(bs *store.BlockStore) {
	height := app.db.Header().Height
	if height > 0 {
		blk := bs.LoadBlock(int64(height))
		if blk == nil {
			panic("unexpected BlockStore")
		}
		app.lastBlk.Height = height
		app.lastBlk.Hash = common.BytesToHash(blk.Hash())
	}
}

func (app *SettledApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("settled app stopped")
}

func (app *SettledApp) registerTxHandler() {
	app.txHdlrs = map[tx.LedgerTxType]handler.TxHandler{
		tx.LedgerTxTypeProposal: handler.NewProposalTxHandler(app.logger),
		tx.LedgerTxTypeVote:     handler.NewVoteTxHandler(app.logger),
		tx.LedgerTxTypeRetract:  handler.NewUnStakeTxHandler(app.logger),
	}
}

func (app *SettledApp) registerQuerier() {
	app.queriers["/accounts/"] = NewAccountQuerier(app.db, app.logger)
	app.queriers["/validators/"] = NewValidatorQuerier(app.db, app.logger)
	app.queriers["/proposals/"] = NewProposalQuerier(app.db, app.logger)
}

type genesisAppState struct {
	Validators []types.GenesisValidator `json:"validators"`
}

func (app *SettledApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	st := app.db.NewState()
	st.SetChainId(chain.ChainId)

	var appState genesisAppState
	if len(chain.AppStateBytes) > 0 {
		if err = cmtjson.Unmarshal(chain.AppStateBytes, &appState); err != nil {
			app.logger.Error("InitChain parse app state fail", "err", err)
			return nil, err
		}
	}
	for i := range appState.Validators {
		v := &appState.Validators[i]
		var acnt state.Account
		acnt.SetPubKey(v.PubKey.Bytes())
		acnt.Stake = uint64(v.Power) * config.GWeiPerPower(0)
		acnt.EthHotKey = v.EthHotKey
		acnt.EthColdKey = v.EthColdKey
		if err = st.AddAccount(&acnt); err != nil {
			app.logger.Error("InitChain add account fail", "err", err)
			return nil, err
		}
		addr := common.BytesToAddress(acnt.AddrBytes())
		if err = st.Credit(addr, types.Amount(v.Balance)); err != nil {
			app.logger.Error("InitChain credit balance fail", "err", err)
			return nil, err
		}
	}

	// flush the accounts into the tree first, the snapshot writer
	// scans them from there
	if _, err = st.Update(); err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}

	// chain starts in epoch 0; the set signed at genesis also covers
	// the first transition
	if err = app.writeSnapshot(st, 0); err != nil {
		app.logger.Error("InitChain write snapshot fail", "err", err)
		return nil, err
	}
	if err = app.writeSnapshot(st, 1); err != nil {
		app.logger.Error("InitChain write snapshot fail", "err", err)
		return nil, err
	}

	var h common.Hash
	_, err = st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err = app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

// writeSnapshot records the consensus validator set for an epoch, with
// powers normalized to the fixed 2^32 scale.
func (app *SettledApp) writeSnapshot(st *state.State, epoch types.Epoch) error {
	if _, err := st.Validators(); err != nil {
		return err
	}
	accounts, _, err := st.ValidatorAccounts()
	if err != nil {
		return err
	}

	var total uint64
	powers := make([]int64, len(accounts))
	for i, acnt := range accounts {
		powers[i] = config.PowerPerStake(acnt.Stake, st.LastBlockHeight())
		total += uint64(powers[i])
	}
	if total == 0 {
		return nil
	}

	scale := new(big.Int).SetUint64(types.PowerScale)
	totalBig := new(big.Int).SetUint64(total)
	entries := make([]state.SnapshotEntry, 0, len(accounts))
	for i, acnt := range accounts {
		norm := new(big.Int).SetInt64(powers[i])
		norm.Mul(norm, scale)
		norm.Quo(norm, totalBig)

		hotAddr, err := types.PubKeyBytesToAddress(acnt.EthHotKey)
		if err != nil {
			return err
		}
		coldAddr, err := types.PubKeyBytesToAddress(acnt.EthColdKey)
		if err != nil {
			return err
		}
		entries = append(entries, state.SnapshotEntry{
			Addr:        acnt.AddrBytes(),
			HotKeyAddr:  hotAddr,
			ColdKeyAddr: coldAddr,
			HotKey:      acnt.EthHotKey,
			Power:       norm.Uint64(),
		})
	}
	return st.WriteValidatorSnapshot(epoch, entries)
}

func (app *SettledApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *SettledApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return nil, nil
}

func (app *SettledApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return nil, nil
}

func (app *SettledApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return nil, nil
}

func (app *SettledApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return nil, nil
}
