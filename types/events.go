package types

import (
	"fmt"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
)

const (
	EventProposalType    = "proposal"
	EventNewProposalType = "new_proposal"
	EventVoteType        = "proposal_vote"
	EventUnStakeType     = "retract"
)

// ProposalEvent is emitted once per proposal processed at an epoch
// boundary, whatever the outcome.
type ProposalEvent struct {
	TallyResult  TallyResult `json:"tally_result"`
	ProposalID   uint64      `json:"proposal_id"`
	HasCode      bool        `json:"has_code"`
	CodeAccepted bool        `json:"code_accepted"`
}

func EncodeProposalEvent(event *ProposalEvent) abci.Event {
	return abci.Event{
		Type: EventProposalType,
		Attributes: []abci.EventAttribute{
			{Key: "tally_result", Value: event.TallyResult.String(), Index: true},
			{Key: "proposal_id", Value: fmt.Sprintf("%v", event.ProposalID), Index: true},
			{Key: "has_code", Value: strconv.FormatBool(event.HasCode), Index: false},
			{Key: "code_accepted", Value: strconv.FormatBool(event.CodeAccepted), Index: false},
		},
	}
}

func DecodeProposalEvent(originEvent abci.Event) *ProposalEvent {
	event := &ProposalEvent{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "tally_result":
			switch v.Value {
			case "passed":
				event.TallyResult = TallyPassed
			case "rejected":
				event.TallyResult = TallyRejected
			default:
				event.TallyResult = TallyUnknown
			}
		case "proposal_id":
			id, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalID = id
		case "has_code":
			hasCode, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.HasCode = hasCode
		case "code_accepted":
			accepted, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.CodeAccepted = accepted
		}
	}
	return event
}

// EventNewProposal is emitted when a proposal is submitted and its
// funds escrowed.
type EventNewProposal struct {
	ProposalID uint64 `json:"proposal_id"`
	Author     string `json:"author"`
	Funds      uint64 `json:"funds"`
	StartEpoch uint64 `json:"start_epoch"`
	GraceEpoch uint64 `json:"grace_epoch"`
	HasCode    bool   `json:"has_code"`
}

func EncodeEventNewProposal(event *EventNewProposal) abci.Event {
	return abci.Event{
		Type: EventNewProposalType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal_id", Value: fmt.Sprintf("%v", event.ProposalID), Index: true},
			{Key: "author", Value: event.Author, Index: true},
			{Key: "funds", Value: fmt.Sprintf("%v", event.Funds), Index: false},
			{Key: "start_epoch", Value: fmt.Sprintf("%v", event.StartEpoch), Index: false},
			{Key: "grace_epoch", Value: fmt.Sprintf("%v", event.GraceEpoch), Index: false},
			{Key: "has_code", Value: strconv.FormatBool(event.HasCode), Index: false},
		},
	}
}

func DecodeEventNewProposal(originEvent abci.Event) *EventNewProposal {
	event := &EventNewProposal{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal_id":
			id, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalID = id
		case "author":
			event.Author = v.Value
		case "funds":
			funds, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Funds = funds
		case "start_epoch":
			epoch, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.StartEpoch = epoch
		case "grace_epoch":
			epoch, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.GraceEpoch = epoch
		case "has_code":
			hasCode, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.HasCode = hasCode
		}
	}
	return event
}

type EventVote struct {
	ProposalID uint64 `json:"proposal_id"`
	Voter      string `json:"voter"`
	Yay        bool   `json:"yay"`
}

func EncodeEventVote(event *EventVote) abci.Event {
	return abci.Event{
		Type: EventVoteType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal_id", Value: fmt.Sprintf("%v", event.ProposalID), Index: true},
			{Key: "voter", Value: event.Voter, Index: true},
			{Key: "yay", Value: strconv.FormatBool(event.Yay), Index: false},
		},
	}
}

func DecodeEventVote(originEvent abci.Event) *EventVote {
	event := &EventVote{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal_id":
			id, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalID = id
		case "voter":
			event.Voter = v.Value
		case "yay":
			yay, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.Yay = yay
		}
	}
	return event
}

type EventUnStake struct {
	Validator uint64 `json:"validatorIndex"`
	Address   string `json:"address"`
	Amount    uint64 `json:"amount"`
}

func EncodeEventUnStake(event *EventUnStake) abci.Event {
	return abci.Event{
		Type: EventUnStakeType,
		Attributes: []abci.EventAttribute{
			{Key: "validator", Value: fmt.Sprintf("%v", event.Validator), Index: true},
			{Key: "addr", Value: event.Address, Index: false},
			{Key: "amount", Value: fmt.Sprintf("%v", event.Amount), Index: false},
		},
	}
}
