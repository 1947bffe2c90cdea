package state

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"container/heap"

	abci_types "github.com/cometbft/cometbft/abci/types"
	cmtcrypto "github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/halcyonchain/settled/config"
	"github.com/syndtr/goleveldb/leveldb"
)

const (
	StartAccountIdx = 65536

	ModifiedFlagNew = 1 << 0
	ModifiedFlagMod = 1 << 1
	ModifiedFlagPK  = 1 << 2

	MaxValidators = 100
)

var (
	ErrNotFound = errors.New("not found")
)

var (
	ErrTxValidatorNoexists  = errors.New("validator noexists")
	ErrTxNotMembership      = errors.New("not membership")
	ErrTxNonceInvalid       = errors.New("nonce invalid")
	ErrTxSigInvalid         = errors.New("signature invalid")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrAccountNoexists      = errors.New("account noexists")
	ErrProposalNoexists     = errors.New("proposal noexists")
	ErrTxScopeOpen          = errors.New("nested tx scope already open")
	ErrNoTxScope            = errors.New("no nested tx scope open")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrBalanceOverflow      = errors.New("balance overflow")
	ErrVotingClosed         = errors.New("voting period closed")
	ErrRetractPartial       = errors.New("must retract all")
	ErrAlreadyVoted         = errors.New("already voted")
	ErrBadProposalEpochs    = errors.New("bad proposal epochs")
	ErrOneActionInOneBlock  = errors.New("one action in one block")
)

// State is the mutable ledger state for one block. Mutations buffer in
// an insertion-ordered write-log and flush to the iavl tree in Update;
// proposal code executes in a nested scope that is committed or
// dropped as a unit.
type State struct {
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64

	header     *StateHeader
	validators []abci_types.ValidatorUpdate
	idxs       map[string]uint64
	acnts      map[uint64]*Account

	modifiedAcnts    map[uint64]uint32
	proposalMaxIndex uint64
	proposalIdxDirty bool

	writes   *WriteLog
	txWrites *WriteLog
}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	s := &State{
		logger:        logger,
		db:            db,
		dbVer:         0,
		header:        new(StateHeader),
		validators:    []abci_types.ValidatorUpdate{},
		idxs:          make(map[string]uint64),
		acnts:         make(map[uint64]*Account),
		modifiedAcnts: make(map[uint64]uint32),
		writes:        NewWriteLog(),
	}
	s.header.AccountIdx = StartAccountIdx
	return s
}

func (s *State) nextState() *State {
	n := &State{
		logger:           s.logger,
		db:               s.db,
		dbVer:            s.dbVer,
		idxs:             make(map[string]uint64),
		acnts:            make(map[uint64]*Account),
		modifiedAcnts:    make(map[uint64]uint32),
		proposalMaxIndex: s.proposalMaxIndex,
		writes:           NewWriteLog(),
	}
	n.header = s.header.Clone()
	if s.header.Hash != nil {
		n.header.Height = s.header.Height + 1
	}
	return n
}

func (s *State) Clone() *State {
	n := &State{
		logger:           s.logger,
		db:               s.db,
		dbVer:            s.dbVer,
		validators:       append([]abci_types.ValidatorUpdate(nil), s.validators...),
		idxs:             make(map[string]uint64, len(s.idxs)),
		acnts:            make(map[uint64]*Account, len(s.acnts)),
		modifiedAcnts:    make(map[uint64]uint32, len(s.modifiedAcnts)),
		proposalMaxIndex: s.proposalMaxIndex,
		proposalIdxDirty: s.proposalIdxDirty,
		writes:           s.writes.Clone(),
	}
	for k, v := range s.idxs {
		n.idxs[k] = v
	}
	for k, v := range s.acnts {
		n.acnts[k] = v.Clone()
	}
	for k, v := range s.modifiedAcnts {
		n.modifiedAcnts[k] = v
	}
	n.header = s.header.Clone()
	return n
}

func (s *State) load() (err error) {
	val, err := s.db.Get([]byte(KeyProposalIndex))
	if err != nil {
		if err != leveldb.ErrNotFound {
			return err
		}
	}
	s.proposalMaxIndex = new(big.Int).SetBytes(val).Uint64()
	val, err = s.db.Get([]byte(KeyState))
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil
		}
		return err
	}
	if val != nil {
		err = rlp.DecodeBytes(val, s.header)
		if err != nil {
			return
		}
		h := s.db.Hash()
		if h != nil {
			s.calcHash(h, true)
		}
	}
	return
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		if s.header.RootHash == nil {
			s.header.RootHash = make([]byte, len(rootHash))
		}
		copy(s.header.RootHash, rootHash)
		if s.header.Hash == nil {
			s.header.Hash = make([]byte, len(h))
		}
		copy(s.header.Hash, h[:])
	}
	return
}

// get reads through the nested scope, then the block write-log, then
// the tree.
func (s *State) get(key []byte) ([]byte, error) {
	if s.txWrites != nil {
		if val, found, deleted := s.txWrites.Get(string(key)); found {
			if deleted {
				return nil, nil
			}
			return val, nil
		}
	}
	if val, found, deleted := s.writes.Get(string(key)); found {
		if deleted {
			return nil, nil
		}
		return val, nil
	}
	val, err := s.db.Get(key)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

func (s *State) set(key, val []byte) {
	if s.txWrites != nil {
		s.txWrites.Set(string(key), val)
		return
	}
	s.writes.Set(string(key), val)
}

func (s *State) delete(key []byte) {
	if s.txWrites != nil {
		s.txWrites.Delete(string(key))
		return
	}
	s.writes.Delete(string(key))
}

// BeginTx opens the nested write scope for one proposal's code.
func (s *State) BeginTx() error {
	if s.txWrites != nil {
		return ErrTxScopeOpen
	}
	s.txWrites = NewWriteLog()
	return nil
}

// CommitTx merges the nested scope into the block write-log.
func (s *State) CommitTx() error {
	if s.txWrites == nil {
		return ErrNoTxScope
	}
	s.writes.Merge(s.txWrites)
	s.txWrites = nil
	return nil
}

// DropTx discards the nested scope entirely.
func (s *State) DropTx() {
	s.txWrites = nil
}

// Raw storage access, used by the governance script executor. Writes
// land in the innermost open scope.
func (s *State) GetStorage(key string) ([]byte, error) {
	return s.get([]byte(key))
}

func (s *State) SetStorage(key string, val []byte) {
	s.set([]byte(key), val)
}

func (s *State) DeleteStorage(key string) {
	s.delete([]byte(key))
}

func (s *State) Update() (h common.Hash, err error) {
	if s.txWrites != nil {
		return h, ErrTxScopeOpen
	}
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()

	err = s.writes.Each(func(key string, val []byte, deleted bool) error {
		if deleted {
			_, _, err1 := s.db.Remove([]byte(key))
			return err1
		}
		_, err1 := s.db.Set([]byte(key), val)
		return err1
	})
	if err != nil {
		return
	}

	var val []byte
	val, err = rlp.EncodeToBytes(s.header)
	if err != nil {
		return
	}
	_, err = s.db.Set([]byte(KeyState), val)
	if err != nil {
		return
	}

	if s.proposalIdxDirty {
		_, err = s.db.Set([]byte(KeyProposalIndex), big.NewInt(int64(s.proposalMaxIndex)).Bytes())
		if err != nil {
			return
		}
	}

	n := len(s.modifiedAcnts)
	if n > 0 {
		idxs := make([]uint64, n)
		i := 0
		for idx := range s.modifiedAcnts {
			idxs[i] = idx
			i += 1
		}
		sort.Slice(idxs, func(i, j int) bool {
			return idxs[i] < idxs[j]
		})
		for _, idx := range idxs {
			flag := s.modifiedAcnts[idx]
			acnt := s.acnts[idx]
			key := fmt.Sprintf(KeyAccountBody, acnt.Index)
			val, err = rlp.EncodeToBytes(acnt)
			if err != nil {
				return
			}
			_, err = s.db.Set([]byte(key), val)
			if err != nil {
				return
			}
			if (flag&ModifiedFlagNew == ModifiedFlagNew) || (flag&ModifiedFlagPK == ModifiedFlagPK) {
				key = fmt.Sprintf(KeyAccountIndex, acnt.Address())
				val, err = rlp.EncodeToBytes(acnt.Index)
				if err != nil {
					return
				}
				_, err = s.db.Set([]byte(key), val)
				if err != nil {
					return
				}
			}
		}
	}
	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)
	s.writes = NewWriteLog()
	s.modifiedAcnts = make(map[uint64]uint32)
	s.proposalIdxDirty = false
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}

	s.dbVer = ver
	h = s.calcHash(hash, true)

	return
}

func (s *State) GetAccount(idx uint64) (acnt *Account, err error) {
	if idx >= s.header.AccountIdx {
		err = ErrAccountNoexists
		return
	}
	acnt = s.acnts[idx]
	if acnt != nil {
		return
	}
	key := fmt.Sprintf(KeyAccountBody, idx)
	val, err := s.get([]byte(key))
	if err != nil {
		return nil, err
	}
	if val == nil {
		err = ErrNotFound
		return
	}
	acnt = new(Account)
	err = rlp.DecodeBytes(val, acnt)
	if err != nil {
		acnt = nil
		return
	}
	s.acnts[idx] = acnt
	return
}

func (s *State) existPubkey(pubkey []byte) (bool, error) {
	addr := ed25519.PubKey(pubkey).Address()[:]
	saddr := cmtcrypto.Address(addr).String()
	// exist in cache
	if _, ok := s.idxs[saddr]; ok {
		return true, nil
	}
	// exist in db
	key := fmt.Sprintf(KeyAccountIndex, saddr)
	val, err := s.get([]byte(key))
	if err != nil {
		return false, err
	}
	if val != nil {
		return true, nil
	}
	// exist in modify
	for _, acc := range s.acnts {
		if bytes.Equal(acc.AddrBytes(), addr) {
			return true, nil
		}
	}
	return false, nil
}

func (s *State) FindAccount(addr []byte) (acnt *Account, err error) {
	saddr := cmtcrypto.Address(addr).String()
	idx, ok := s.idxs[saddr]
	if !ok {
		key := fmt.Sprintf(KeyAccountIndex, saddr)
		val, err := s.get([]byte(key))
		if err != nil {
			return nil, err
		}
		if val == nil {
			return nil, nil
		}
		err = rlp.DecodeBytes(val, &idx)
		if err != nil {
			return nil, err
		}
		s.idxs[saddr] = idx
	}
	acnt, err = s.GetAccount(idx)

	return
}

func (s *State) AddAccount(acnt *Account) (err error) {
	a, err := s.FindAccount(acnt.AddrBytes())
	if err != nil {
		return err
	}
	if a != nil {
		err = ErrAccountAlreadyExists
		return
	}
	acnt.Index = s.header.AccountIdx
	s.header.AccountIdx += 1
	s.acnts[acnt.Index] = acnt.Clone()
	s.modifiedAcnts[acnt.Index] = ModifiedFlagNew
	return
}

// VerifyTx checks a transaction's nonce and signature against the
// issuing validator account. sigData is the canonical signing payload
// already bound to the chain id.
func (s *State) VerifyTx(validator uint64, nonce uint64, sigData []byte, sigs [][]byte, allowNonceGap bool) (succ bool, err error) {
	a, err := s.GetAccount(validator)
	if err != nil {
		return succ, err
	}
	if a == nil {
		err = ErrTxValidatorNoexists
		return
	}
	if !(a.Nonce == nonce || (allowNonceGap && a.Nonce < nonce)) {
		err = ErrTxNonceInvalid
		return
	}
	succ = a.Verify(sigData, sigs)
	if !succ {
		err = ErrTxSigInvalid
	}
	return
}

func (s *State) ValidatorAccounts() (acounts []*Account, height uint64, err error) {
	vals := s.validators
	for _, val := range vals {
		pk := ed25519.PubKey(val.PubKey.GetEd25519()[:])
		addr := pk.Address()[:]
		act, _ := s.FindAccount(addr)
		if act != nil {
			acounts = append(acounts, act)
		}
	}
	height = s.header.Height
	return
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

func (s *State) ChainId() string {
	return s.header.ChainId
}

func (s *State) SetHeight(height uint64) {
	s.header.Height = height
}

func (s *State) LastBlockHeight() uint64 {
	return s.header.Height
}

func (s *State) Epoch() uint64 {
	return s.header.Epoch
}

func (s *State) SetEpoch(epoch uint64) {
	s.header.Epoch = epoch
}

func (s *State) Validators() (updateVals map[string]abci_types.ValidatorUpdate, err error) {
	updateVals = make(map[string]abci_types.ValidatorUpdate, 0)
	start := []byte(fmt.Sprintf(KeyAccountBody, ""))
	end := PrefixEndBytes(start)
	aIterator, err := s.db.Iterator(start, end, false)
	if err != nil {
		return nil, err
	}

	valsQueue := &PowerQueue{}
	heap.Init(valsQueue)
	for ; aIterator.Valid(); aIterator.Next() {
		var act Account
		valBytes := aIterator.Value()
		err = rlp.DecodeBytes(valBytes, &act)
		if err != nil {
			return nil, err
		}
		power := config.PowerPerStake(act.Stake, s.header.Height)
		if power > 0 {
			heap.Push(valsQueue, validatorWithPower{
				Index:  act.Index,
				Pubkey: act.PubKey,
				Power:  power,
			})
		}
	}

	vals := make([]abci_types.ValidatorUpdate, 0)
	for valsQueue.Len() > 0 && len(vals) < MaxValidators {
		val := heap.Pop(valsQueue).(validatorWithPower)
		vals = append(vals, abci_types.Ed25519ValidatorUpdate(val.Pubkey, val.Power))
	}
	s.validators = vals

	for _, val := range vals {
		updateVals[val.PubKey.String()] = val
	}

	return updateVals, nil
}

func (s *State) ValidatorsUpdate(curVals map[string]abci_types.ValidatorUpdate) (updateVals []abci_types.ValidatorUpdate, err error) {
	nextVals, err := s.Validators()
	if err != nil {
		return nil, err
	}

	for key, val := range nextVals {
		if v, ok := curVals[key]; ok {
			if v.Power != val.Power {
				updateVals = append(updateVals, val)
			}
		} else {
			updateVals = append(updateVals, val)
		}
	}

	for key, curVal := range curVals {
		if _, ok := nextVals[key]; !ok {
			curVal.Power = 0
			updateVals = append(updateVals, curVal)
		}
	}
	return
}

type validatorWithPower struct {
	Index  uint64
	Pubkey []byte
	Power  int64
}

type PowerQueue []validatorWithPower

func (pq PowerQueue) Len() int { return len(pq) }

func (pq PowerQueue) Less(i, j int) bool {
	if pq[i].Power == pq[j].Power {
		return pq[i].Index < pq[j].Index
	}
	return pq[i].Power > pq[j].Power
}

func (pq PowerQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *PowerQueue) Push(x any) {
	item := x.(validatorWithPower)
	*pq = append(*pq, item)
}

func (pq *PowerQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[0 : n-1]
	return item
}
