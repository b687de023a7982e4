package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"universe/internal/auth"
)

func (a *api) issueSession(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	sess, err := a.attendance.IssueSession(c.Request.Context(), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (a *api) listSessions(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	sessions, err := a.attendance.ListSessions(c.Request.Context(), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (a *api) listSessionRecords(c *gin.Context) {
	records, err := a.attendance.ListRecords(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

type redeemCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

func (a *api) redeemCode(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	var req redeemCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := a.accounts.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}

	rec, err := a.attendance.Redeem(c.Request.Context(), acct.ID, acct.Email, acct.RollNumber, req.Code)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"record":         rec,
		"points_awarded": a.attendance.Points(),
	})
}

func (a *api) weeklySummary(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	sum, err := a.attendance.WeeklySummary(c.Request.Context(), claims.Subject, a.cfg.WeeklyDisplayCap)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
