package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"universe/internal/auth"
)

type listingRequest struct {
	ItemName     string `json:"item_name" binding:"required"`
	Description  string `json:"description" binding:"required"`
	LendingPrice int64  `json:"lending_price"`
	Category     string `json:"category"`
}

func (a *api) createListing(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	var req listingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := a.accounts.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}

	l, err := a.market.CreateListing(c.Request.Context(), req.ItemName, req.Description, req.LendingPrice,
		acct.ID, acct.Email, acct.RollNumber, req.Category)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (a *api) listListings(c *gin.Context) {
	onlyAvailable := c.Query("status") == "available"
	listings, err := a.market.Listings(c.Request.Context(), onlyAvailable)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

func (a *api) myListings(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	listings, err := a.market.UserListings(c.Request.Context(), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

func (a *api) borrowListing(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	l, err := a.market.Borrow(c.Request.Context(), c.Param("id"), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (a *api) returnListing(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	l, err := a.market.Return(c.Request.Context(), c.Param("id"), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (a *api) withdrawListing(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	if err := a.market.Withdraw(c.Request.Context(), c.Param("id"), claims.Subject); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "withdrawn"})
}

type itemRequestBody struct {
	ItemName      string `json:"item_name" binding:"required"`
	Description   string `json:"description" binding:"required"`
	OfferingPrice int64  `json:"offering_price"`
	Category      string `json:"category"`
}

func (a *api) createRequest(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	var req itemRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := a.accounts.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}

	r, err := a.market.CreateRequest(c.Request.Context(), req.ItemName, req.Description, req.OfferingPrice,
		acct.ID, acct.Email, acct.RollNumber, req.Category)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (a *api) listRequests(c *gin.Context) {
	requests, err := a.market.ActiveRequests(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (a *api) myRequests(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	requests, err := a.market.UserRequests(c.Request.Context(), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (a *api) cancelRequest(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	if err := a.market.CancelRequest(c.Request.Context(), c.Param("id"), claims.Subject); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
