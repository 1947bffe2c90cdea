package indexer

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Service exposes the indexed proposal data over HTTP.
type Service struct {
	engine     *gin.Engine
	indexer    *ChainIndexer
	listenAddr string
}

func NewService(listenAddr string, indexer *ChainIndexer) *Service {
	r := gin.Default()
	s := &Service{
		engine:     r,
		indexer:    indexer,
		listenAddr: listenAddr,
	}
	s.engine.POST("/getProposals", s.handleGetProposals)
	s.engine.POST("/getVotes", s.handleGetVotes)
	return s
}

func (s *Service) Start() {
	s.engine.Run(s.listenAddr)
}

type ProposalInfo struct {
	Proposal Proposal       `json:"proposal"`
	Votes    []ProposalVote `json:"votes"`
}

type GetProposalsReq struct {
	ProposalId uint64 `json:"proposalId"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
}

type GetProposalsResponse struct {
	Proposals []ProposalInfo `json:"proposals"`
	Total     uint64         `json:"total"`
}

func (s *Service) handleGetProposals(c *gin.Context) {
	var response GetProposalsResponse
	response.Proposals = make([]ProposalInfo, 0)
	var requestData GetProposalsReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if requestData.ProposalId != 0 {
		proposal, err := s.indexer.getProposalById(requestData.ProposalId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		votes, err := s.indexer.getVotesByProposal(requestData.ProposalId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, ProposalInfo{
			Proposal: proposal,
			Votes:    votes,
		})
		response.Total = 1
		c.JSON(http.StatusOK, response)
		return
	}

	proposals, total, err := s.indexer.getProposals(requestData.Page, requestData.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	response.Total = total
	for _, proposal := range proposals {
		votes, err := s.indexer.getVotesByProposal(proposal.Id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, ProposalInfo{
			Proposal: proposal,
			Votes:    votes,
		})
	}
	c.JSON(http.StatusOK, response)
}

type GetVotesReq struct {
	ProposalId uint64 `json:"proposalId"`
}

func (s *Service) handleGetVotes(c *gin.Context) {
	var requestData GetVotesReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	votes, err := s.indexer.getVotesByProposal(requestData.ProposalId)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"votes": votes})
}
