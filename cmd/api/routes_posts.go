package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"universe/internal/auth"
)

type createPostRequest struct {
	Content string `json:"content" binding:"required"`
}

func (a *api) createPost(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := a.posts.Create(c.Request.Context(), claims.Subject, req.Content)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (a *api) listPosts(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	feed, err := a.posts.List(c.Request.Context(), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": feed})
}

func (a *api) likePost(c *gin.Context) {
	if err := a.posts.Like(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "liked"})
}
