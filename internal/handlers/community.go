package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"plaza/internal/middleware"
	"plaza/internal/services"
	"plaza/internal/utils"
)

type CommunityHandler struct {
	communities *services.CommunityService
	posts       *services.PostService
}

func NewCommunityHandler(communities *services.CommunityService, posts *services.PostService) *CommunityHandler {
	return &CommunityHandler{communities: communities, posts: posts}
}

// List 全部社区
func (h *CommunityHandler) List(c *gin.Context) {
	communities, err := h.communities.ListCommunities(middleware.RequestContext(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, communities)
}

type createCommunityRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create 新建社区
func (h *CommunityHandler) Create(c *gin.Context) {
	var req createCommunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	community, err := h.communities.CreateCommunity(middleware.RequestContext(c), req.Name, req.Description)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, community)
}

// Posts 社区下的帖子
func (h *CommunityHandler) Posts(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := middleware.RequestContext(c)
	community, err := h.communities.GetCommunity(ctx, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	posts, err := h.posts.ListCommunityPosts(ctx, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"community": community,
		"posts":     toPostResponses(posts),
	})
}
