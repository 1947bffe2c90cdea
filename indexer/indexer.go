package indexer

import (
	"context"
	"errors"
	"strconv"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"

	"github.com/halcyonchain/settled/types"
)

// ChainIndexer follows finalized blocks over RPC and mirrors proposal
// lifecycle events into sqlite for the HTTP service.
type ChainIndexer struct {
	logger        cmtlog.Logger
	Url           string
	Height        int64
	db            *gorm.DB
	cli           *comethttp.HTTP
	eventHandlers map[string]eventHandler
}

func NewChainIndexer(logger cmtlog.Logger, dbPath string, chainUrl string) (*ChainIndexer, error) {
	logger.Info("NewChainIndexer", "dbPath", dbPath, "url", chainUrl)
	cli, err := comethttp.New(chainUrl, "/websocket")
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Proposal{}, &ProposalVote{}, &Retract{}, &Height{}).Error; err != nil {
		return nil, err
	}
	h := Height{Id: 1}
	if err = db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	c := ChainIndexer{
		logger: logger.With("module", "indexer"),
		Url:    chainUrl,
		Height: int64(h.Height + 1),
		db:     db,
		cli:    cli,
	}
	c.eventHandlers = map[string]eventHandler{
		types.EventNewProposalType: c.handleEventNewProposal,
		types.EventVoteType:        c.handleEventVote,
		types.EventProposalType:    c.handleEventProposal,
		types.EventUnStakeType:     c.handleEventUnStake,
	}
	return &c, nil
}

type eventHandler func(ctx context.Context, event abci.Event, height int64)

func (c *ChainIndexer) handleEvent(ctx context.Context, event abci.Event, height int64) {
	if h, ok := c.eventHandlers[event.Type]; ok {
		h(ctx, event, height)
	}
}

func (c *ChainIndexer) handleEventNewProposal(ctx context.Context, event abci.Event, height int64) {
	ev := types.DecodeEventNewProposal(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	proposal := Proposal{
		Id:              ev.ProposalID,
		Author:          ev.Author,
		Funds:           ev.Funds,
		StartEpoch:      ev.StartEpoch,
		GraceEpoch:      ev.GraceEpoch,
		HasCode:         ev.HasCode,
		SubmitHeight:    uint64(height),
		CreateTimestamp: time.Now().Unix(),
	}
	if err := c.db.Save(&proposal).Error; err != nil {
		c.logger.Error("save proposal fail", "err", err)
	}
}

func (c *ChainIndexer) handleEventVote(ctx context.Context, event abci.Event, height int64) {
	ev := types.DecodeEventVote(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	existing := ProposalVote{}
	err := c.db.Where("proposal = ? And voter = ?", ev.ProposalID, ev.Voter).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		c.logger.Error("query vote fail", "err", err)
		return
	}
	if existing.Id != 0 {
		return
	}
	vote := ProposalVote{
		Proposal: ev.ProposalID,
		Voter:    ev.Voter,
		Yay:      ev.Yay,
		Height:   uint64(height),
	}
	if err := c.db.Create(&vote).Error; err != nil {
		c.logger.Error("save vote fail", "err", err)
	}
}

// handleEventProposal records the settlement outcome emitted at an
// epoch boundary.
func (c *ChainIndexer) handleEventProposal(ctx context.Context, event abci.Event, height int64) {
	ev := types.DecodeProposalEvent(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	var proposal Proposal
	if err := c.db.First(&proposal, ev.ProposalID).Error; err != nil {
		c.logger.Error("get proposal fail", "err", err)
		return
	}
	proposal.SettleHeight = uint64(height)
	proposal.TallyResult = ev.TallyResult.String()
	proposal.CodeAccepted = ev.CodeAccepted
	if err := c.db.Save(&proposal).Error; err != nil {
		c.logger.Error("save proposal fail", "err", err)
	}
}

func (c *ChainIndexer) handleEventUnStake(ctx context.Context, event abci.Event, height int64) {
	retract := Retract{Height: uint64(height)}
	for _, v := range event.Attributes {
		switch v.Key {
		case "validator":
			retract.Validator = parseUint(v.Value)
		case "addr":
			retract.Address = v.Value
		case "amount":
			retract.Amount = parseUint(v.Value)
		}
	}
	if err := c.db.Create(&retract).Error; err != nil {
		c.logger.Error("save retract fail", "err", err)
	}
}

func (c *ChainIndexer) Start(ctx context.Context) {
	var err error
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.cli == nil {
				c.cli, err = comethttp.New(c.Url, "/websocket")
				if err != nil {
					c.logger.Error("connect fail", "err", err)
					continue
				}
			}
			b, err := c.cli.Status(context.TODO())
			if err != nil {
				c.logger.Error("get status fail", "err", err)
				if !c.cli.IsRunning() {
					c.cli.Stop()
					c.cli, err = comethttp.New(c.Url, "/websocket")
					if err != nil {
						c.logger.Error("reconnect fail", "err", err)
						continue
					}
				}
				continue
			}
			for b.SyncInfo.LatestBlockHeight > c.Height {
				events, err := c.cli.BlockResults(ctx, &c.Height)
				if err != nil {
					c.logger.Error("get block results fail", "height", c.Height, "err", err)
					break
				}
				for _, res := range events.TxsResults {
					for _, event := range res.Events {
						c.handleEvent(ctx, event, c.Height)
					}
				}
				// settlement events are block-level, not tied to a tx
				for _, event := range events.FinalizeBlockEvents {
					c.handleEvent(ctx, event, c.Height)
				}
				if err := c.db.Save(&Height{
					Id:     1,
					Height: uint64(c.Height),
				}).Error; err != nil {
					c.logger.Error("save height fail", "err", err)
					break
				}
				c.Height += 1
			}
		}
	}
}

func (c *ChainIndexer) getProposalById(id uint64) (Proposal, error) {
	var p Proposal
	err := c.db.First(&p, id).Error
	return p, err
}

func (c *ChainIndexer) getProposals(page, pageSize int) ([]Proposal, uint64, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	if page < 1 {
		page = 1
	}
	var total uint64
	if err := c.db.Model(&Proposal{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var proposals []Proposal
	err := c.db.Order("id desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&proposals).Error
	return proposals, total, err
}

func (c *ChainIndexer) getVotesByProposal(id uint64) ([]ProposalVote, error) {
	var votes []ProposalVote
	err := c.db.Where("proposal = ?", id).Order("height asc").Find(&votes).Error
	return votes, err
}

func parseUint(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
