package main

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"universe/internal/auth"
)

type openMarketChatRequest struct {
	ListingID string `json:"listing_id" binding:"required"`
}

// openMarketChat opens (or returns) the conversation between the caller and
// a listing's owner about that listing.
func (a *api) openMarketChat(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	var req openMarketChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	l, err := a.market.Listing(c.Request.Context(), req.ListingID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if l.OwnerID == claims.Subject {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open a chat with yourself"})
		return
	}

	me, err := a.accounts.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}

	chat, err := a.chats.OpenMarketChat(c.Request.Context(),
		me.ID, me.Email, me.RollNumber,
		l.OwnerID, l.OwnerEmail, l.OwnerRollNumber,
		l.ID, l.ItemName)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

type openSecureChatRequest struct {
	PostID string `json:"post_id" binding:"required"`
}

// openSecureChat opens (or returns) the anonymous thread between the caller
// and a post's author. The author's identity stays server-side.
func (a *api) openSecureChat(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	var req openSecureChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := a.posts.Author(c.Request.Context(), req.PostID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if p.AuthorID == claims.Subject {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open a chat with yourself"})
		return
	}

	chat, err := a.chats.OpenSecureChat(c.Request.Context(), p.ID, p.Content, p.AuthorID, claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (a *api) listChats(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	chats, err := a.chats.UserChats(c.Request.Context(), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (a *api) getChat(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	chat, err := a.chats.Get(c.Request.Context(), c.Param("id"), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (a *api) listMessages(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	messages, err := a.chats.Messages(c.Request.Context(), c.Param("id"), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (a *api) sendMessage(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := a.chats.Send(c.Request.Context(), c.Param("id"), claims.Subject, req.Content)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// streamMessages serves the chat over SSE: the stored backlog first, then
// live messages until the client disconnects.
func (a *api) streamMessages(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	chatID := c.Param("id")
	ctx := c.Request.Context()

	// Subscribe before replaying the backlog so no message falls in the gap.
	live, err := a.chats.Subscribe(ctx, chatID, claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}
	backlog, err := a.chats.Messages(ctx, chatID, claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	for _, m := range backlog {
		c.SSEvent("message", m)
	}
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case m, ok := <-live:
			if !ok {
				return false
			}
			c.SSEvent("message", m)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
