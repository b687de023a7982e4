package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"universe/internal/auth"
)

type registerRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RollNumber string `json:"roll_number" binding:"required"`
	Role       string `json:"role"`
}

func (a *api) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	acct, err := a.accounts.Register(c.Request.Context(), req.Email, req.Password, req.RollNumber, req.Role)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, acct)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *api) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	acct, tokens, err := a.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":       acct,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (a *api) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tokens, err := a.accounts.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp,
	})
}

func (a *api) logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.accounts.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (a *api) me(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	acct, err := a.accounts.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (a *api) walletBalance(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	w, err := a.ledger.Balance(c.Request.Context(), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (a *api) walletHistory(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := a.ledger.History(c.Request.Context(), claims.Subject, limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
