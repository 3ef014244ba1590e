package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"plaza/internal/middleware"
	"plaza/internal/services"
	"plaza/internal/utils"
)

type VoteHandler struct {
	votes *services.VoteService
}

func NewVoteHandler(votes *services.VoteService) *VoteHandler {
	return &VoteHandler{votes: votes}
}

// Tally 帖子的赞踩统计
func (h *VoteHandler) Tally(c *gin.Context) {
	postID, err := utils.ParseID(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	tally, err := h.votes.Tally(middleware.RequestContext(c), postID, middleware.CurrentIdentity(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tally)
}

type voteRequest struct {
	Vote int `json:"vote"`
}

// Vote 点赞或点踩，重复同一操作即撤销
func (h *VoteHandler) Vote(c *gin.Context) {
	postID, err := utils.ParseID(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := middleware.RequestContext(c)
	identity := middleware.CurrentIdentity(c)
	if _, err := h.votes.Vote(ctx, identity, postID, req.Vote); err != nil {
		RespondError(c, err)
		return
	}
	tally, err := h.votes.Tally(ctx, postID, identity)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tally)
}
