package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"plaza/internal/middleware"
	"plaza/internal/models"
	"plaza/internal/services"
	"plaza/internal/utils"
)

type PostHandler struct {
	posts *services.PostService
}

func NewPostHandler(posts *services.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

type postResponse struct {
	models.Post
	ContentHTML template.HTML `json:"content_html"`
}

func toPostResponses(posts []models.Post) []postResponse {
	out := make([]postResponse, len(posts))
	for i, p := range posts {
		out[i] = postResponse{Post: p, ContentHTML: utils.RenderContent(p.Content)}
	}
	return out
}

// List 帖子列表，最新在前
func (h *PostHandler) List(c *gin.Context) {
	posts, err := h.posts.ListPosts(middleware.RequestContext(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPostResponses(posts))
}

// Detail 单个帖子
func (h *PostHandler) Detail(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	post, err := h.posts.GetPost(middleware.RequestContext(c), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, postResponse{Post: *post, ContentHTML: utils.RenderContent(post.Content)})
}

// Create 发布帖子，multipart 表单：title、content、community_id（可选）、image
func (h *PostHandler) Create(c *gin.Context) {
	in := services.NewPost{
		Title:   c.PostForm("title"),
		Content: c.PostForm("content"),
	}
	if raw := c.PostForm("community_id"); raw != "" {
		id, err := utils.ParseID(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		in.CommunityID = &id
	}

	var image *services.ImageUpload
	if header, err := c.FormFile("image"); err == nil {
		file, err := header.Open()
		if err != nil {
			badRequest(c, "读取图片失败: "+err.Error())
			return
		}
		defer file.Close()
		image = &services.ImageUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Body:        file,
		}
	}

	post, err := h.posts.CreatePost(middleware.RequestContext(c), middleware.CurrentIdentity(c), in, image)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, postResponse{Post: *post, ContentHTML: utils.RenderContent(post.Content)})
}
