package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"plaza/internal/middleware"
	"plaza/internal/services"
	"plaza/internal/utils"
	"plaza/internal/view"
)

type CommentHandler struct {
	comments *services.CommentService
}

func NewCommentHandler(comments *services.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// List 帖子的评论树；?view=flat 返回展平的列表，?collapse=3,7 折叠指定评论的回复
func (h *CommentHandler) List(c *gin.Context) {
	postID, err := utils.ParseID(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	roots, err := h.comments.Thread(middleware.RequestContext(c), postID)
	if err != nil {
		RespondError(c, err)
		return
	}

	if c.Query("view") != "flat" {
		c.JSON(http.StatusOK, gin.H{
			"post_id":  postID,
			"total":    services.CountNodes(roots),
			"comments": view.RenderTree(roots, utils.RenderContent),
		})
		return
	}

	collapsed, err := utils.ParseIDList(c.Query("collapse"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	rows := view.Flatten(roots, collapsed)
	for i := range rows {
		rows[i].ContentHTML = utils.RenderContent(rows[i].Content)
	}
	c.JSON(http.StatusOK, gin.H{
		"post_id":  postID,
		"total":    services.CountNodes(roots),
		"comments": rows,
	})
}

type createCommentRequest struct {
	Content         string `json:"content"`
	ParentCommentID *int64 `json:"parent_comment_id"`
}

// commentErrorResponse 失败时回传用户输入，客户端据此保留表单内容
type commentErrorResponse struct {
	BasicResponse
	Content string `json:"content"`
}

// Create 发表评论或回复
func (h *CommentHandler) Create(c *gin.Context) {
	postID, err := utils.ParseID(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	comment, err := h.comments.SubmitComment(middleware.RequestContext(c), middleware.CurrentIdentity(c), services.NewComment{
		PostID:   postID,
		ParentID: req.ParentCommentID,
		Content:  req.Content,
	})
	if err != nil {
		_ = c.Error(err)
		c.JSON(StatusFor(err), commentErrorResponse{
			BasicResponse: NewBasicResponse(false, err.Error()),
			Content:       req.Content,
		})
		return
	}
	c.JSON(http.StatusCreated, comment)
}
