package state

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/halcyonchain/settled/types"
)

// SubmitProposal escrows funds and records a new proposal. The id is
// assigned from the monotonic proposal index.
func (s *State) SubmitProposal(validator uint64, funds uint64, startEpoch uint64, graceEpoch uint64, code []byte, checkOnly bool) (event *types.EventNewProposal, err error) {
	s.logger.Debug("apply proposal", "validator", validator, "height", s.header.Height)
	a, err := s.GetAccount(validator)
	if err != nil {
		return nil, err
	}
	if a == nil {
		err = ErrTxValidatorNoexists
		return
	}
	if a.Stake == 0 {
		err = ErrTxNotMembership
		return
	}
	if startEpoch <= s.header.Epoch || graceEpoch <= startEpoch {
		err = ErrBadProposalEpochs
		return
	}
	author := common.BytesToAddress(a.AddrBytes())
	balance, err := s.Balance(author)
	if err != nil {
		return nil, err
	}
	if balance < funds {
		err = ErrInsufficientFunds
		return
	}
	if !checkOnly {
		s.proposalMaxIndex += 1
		s.proposalIdxDirty = true
		id := s.proposalMaxIndex

		if err = s.Transfer(author, types.GovAddress, types.Amount(funds)); err != nil {
			return nil, err
		}
		var val []byte
		if val, err = rlp.EncodeToBytes(funds); err != nil {
			return nil, err
		}
		s.set(proposalFundsKey(id), val)
		s.set(proposalAuthorKey(id), author.Bytes())
		if val, err = rlp.EncodeToBytes(startEpoch); err != nil {
			return nil, err
		}
		s.set(proposalStartEpochKey(id), val)
		if val, err = rlp.EncodeToBytes(graceEpoch); err != nil {
			return nil, err
		}
		s.set(proposalGraceEpochKey(id), val)
		if len(code) > 0 {
			s.set(proposalCodeKey(id), code)
		}
		s.set(proposalQueueKey(graceEpoch, id), []byte{1})

		a.Nonce += 1
		v := s.modifiedAcnts[a.Index]
		v |= ModifiedFlagMod
		s.modifiedAcnts[a.Index] = v
		s.acnts[a.Index] = a.Clone()

		event = &types.EventNewProposal{
			ProposalID: id,
			Author:     author.Hex(),
			Funds:      funds,
			StartEpoch: startEpoch,
			GraceEpoch: graceEpoch,
			HasCode:    len(code) > 0,
		}
	}
	return
}

// CastVote records a validator's vote while the proposal's voting
// window is open.
func (s *State) CastVote(validator uint64, proposalID uint64, yay bool, checkOnly bool) (event *types.EventVote, err error) {
	s.logger.Debug("apply vote", "validator", validator, "proposal", proposalID, "height", s.header.Height)
	a, err := s.GetAccount(validator)
	if err != nil {
		return nil, err
	}
	if a == nil {
		err = ErrTxValidatorNoexists
		return
	}
	if a.Stake == 0 {
		err = ErrTxNotMembership
		return
	}
	if proposalID == 0 || proposalID > s.proposalMaxIndex {
		err = ErrProposalNoexists
		return
	}
	startEpoch, err := s.ReadProposalStartEpoch(proposalID)
	if err != nil {
		return nil, err
	}
	graceEpoch, err := s.readProposalGraceEpoch(proposalID)
	if err != nil {
		return nil, err
	}
	cur := types.Epoch(s.header.Epoch)
	if cur < startEpoch || cur >= graceEpoch {
		err = ErrVotingClosed
		return
	}
	voter := a.AddrBytes()
	existing, err := s.get(proposalVoteKey(proposalID, voter))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		err = ErrAlreadyVoted
		return
	}
	if !checkOnly {
		choice := []byte{0}
		if yay {
			choice = []byte{1}
		}
		s.set(proposalVoteKey(proposalID, voter), choice)

		a.Nonce += 1
		v := s.modifiedAcnts[a.Index]
		v |= ModifiedFlagMod
		s.modifiedAcnts[a.Index] = v
		s.acnts[a.Index] = a.Clone()

		event = &types.EventVote{
			ProposalID: proposalID,
			Voter:      common.BytesToAddress(voter).Hex(),
			Yay:        yay,
		}
	}
	return
}

func (s *State) UnStake(validator uint64, amount uint64, checkOnly bool) (event *types.EventUnStake, err error) {
	s.logger.Debug("apply retract", "validator", validator, "amount", amount, "height", s.header.Height)
	a, err := s.GetAccount(validator)
	if err != nil {
		return nil, err
	}
	if a == nil {
		err = ErrTxValidatorNoexists
		return
	}
	if a.Stake == 0 {
		err = ErrTxNotMembership
		return
	}
	if a.Stake != amount {
		err = ErrRetractPartial
		return
	}
	if !checkOnly {
		event = &types.EventUnStake{
			Validator: validator,
			Address:   a.Address(),
			Amount:    amount,
		}
		a.Stake -= amount
		a.Nonce += 1
		v := s.modifiedAcnts[a.Index]
		v |= ModifiedFlagMod
		s.modifiedAcnts[a.Index] = v
		s.acnts[a.Index] = a.Clone()
	}
	return
}

func (s *State) ProposalMax() uint64 {
	return s.proposalMaxIndex
}

func (s *State) ReadProposalFunds(id uint64) (funds types.Amount, err error) {
	val, err := s.get(proposalFundsKey(id))
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, ErrNotFound
	}
	var raw uint64
	if err = rlp.DecodeBytes(val, &raw); err != nil {
		return 0, err
	}
	return types.Amount(raw), nil
}

func (s *State) ReadProposalStartEpoch(id uint64) (epoch types.Epoch, err error) {
	val, err := s.get(proposalStartEpochKey(id))
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, ErrNotFound
	}
	var raw uint64
	if err = rlp.DecodeBytes(val, &raw); err != nil {
		return 0, err
	}
	return types.Epoch(raw), nil
}

func (s *State) readProposalGraceEpoch(id uint64) (epoch types.Epoch, err error) {
	val, err := s.get(proposalGraceEpochKey(id))
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, ErrNotFound
	}
	var raw uint64
	if err = rlp.DecodeBytes(val, &raw); err != nil {
		return 0, err
	}
	return types.Epoch(raw), nil
}

func (s *State) ReadProposalAuthor(id uint64) (author common.Address, err error) {
	val, err := s.get(proposalAuthorKey(id))
	if err != nil {
		return author, err
	}
	if val == nil {
		return author, ErrNotFound
	}
	return common.BytesToAddress(val), nil
}

// ReadProposalCode returns nil without error for signaling-only
// proposals.
func (s *State) ReadProposalCode(id uint64) ([]byte, error) {
	return s.get(proposalCodeKey(id))
}

func (s *State) GetProposal(id uint64) (p *types.Proposal, err error) {
	funds, err := s.ReadProposalFunds(id)
	if err != nil {
		return nil, err
	}
	startEpoch, err := s.ReadProposalStartEpoch(id)
	if err != nil {
		return nil, err
	}
	graceEpoch, err := s.readProposalGraceEpoch(id)
	if err != nil {
		return nil, err
	}
	author, err := s.ReadProposalAuthor(id)
	if err != nil {
		return nil, err
	}
	code, err := s.ReadProposalCode(id)
	if err != nil {
		return nil, err
	}
	return &types.Proposal{
		ID:         id,
		Funds:      funds,
		StartEpoch: startEpoch,
		GraceEpoch: graceEpoch,
		Author:     author,
		Code:       code,
	}, nil
}

// MarkProposalExecution writes the pending-execution marker read by
// the code being dispatched. Always paired with
// ClearProposalExecution before the settlement pass returns.
func (s *State) MarkProposalExecution(id uint64) {
	s.set(proposalExecutionKey(id), []byte{1})
}

func (s *State) ClearProposalExecution(id uint64) {
	s.delete(proposalExecutionKey(id))
}

func (s *State) ProposalExecutionPending(id uint64) (bool, error) {
	val, err := s.get(proposalExecutionKey(id))
	if err != nil {
		return false, err
	}
	return val != nil, nil
}

// ProposalVotes returns all recorded votes for a proposal in voter
// address order.
func (s *State) ProposalVotes(id uint64) (votes []types.ProposalVote, err error) {
	prefix := []byte(proposalVotePrefix(id))
	end := PrefixEndBytes(prefix)
	it, err := s.db.Iterator(prefix, end, true)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		key := it.Key()
		addr := key[len(prefix):]
		val := it.Value()
		votes = append(votes, types.ProposalVote{
			Voter: common.BytesToAddress(addr),
			Yay:   len(val) == 1 && val[0] == 1,
		})
	}
	return votes, nil
}

// DequeueExpiredProposals collects, in (grace epoch, id) order, every
// proposal whose voting window closed at or before the given epoch,
// removing the queue entries so a later boundary does not see them.
func (s *State) DequeueExpiredProposals(upTo types.Epoch) (ids []uint64, err error) {
	start := []byte(KeyProposalQueuePrefix)
	end := PrefixEndBytes([]byte(queueEpochPrefix(uint64(upTo))))
	it, err := s.db.Iterator(start, end, true)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		key := string(it.Key())
		if _, found, deleted := s.writes.Get(key); found && deleted {
			continue
		}
		id, err1 := parseQueueKey(key)
		if err1 != nil {
			return nil, err1
		}
		ids = append(ids, id)
		s.delete([]byte(key))
	}
	return ids, nil
}

func proposalVotePrefix(id uint64) string {
	return fmt.Sprintf(KeyProposalVotePrefix, id)
}

func queueEpochPrefix(epoch uint64) string {
	key := proposalQueueKey(epoch, 0)
	return string(key[:22])
}

func parseQueueKey(key string) (uint64, error) {
	if len(key) != 42 {
		return 0, ErrProposalNoexists
	}
	return strconv.ParseUint(key[22:], 10, 64)
}
