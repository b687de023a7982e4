package main

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"universe/internal/account"
	"universe/internal/attendance"
	"universe/internal/chat"
	"universe/internal/market"
	"universe/internal/perks"
	"universe/internal/posts"
	"universe/internal/wallet"
)

// respondErr maps service errors to HTTP responses. Unknown errors are
// logged and returned as a generic 500 so internals never leak.
func respondErr(c *gin.Context, err error) {
	var cooldown *attendance.CooldownError
	if errors.As(err, &cooldown) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":               cooldown.Error(),
			"retry_after_minutes": cooldown.RemainingMinutes(),
		})
		return
	}

	switch {
	case errors.Is(err, account.ErrEmailNotAllowed),
		errors.Is(err, account.ErrRollNumberRequired),
		errors.Is(err, account.ErrPasswordTooShort),
		errors.Is(err, market.ErrValidation),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, posts.ErrEmptyContent),
		errors.Is(err, wallet.ErrBadAmount),
		errors.Is(err, attendance.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, account.ErrBadCredentials),
		errors.Is(err, account.ErrBadRefreshToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

	case errors.Is(err, wallet.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})

	case errors.Is(err, market.ErrNotOwner),
		errors.Is(err, market.ErrSelfBorrow),
		errors.Is(err, chat.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, account.ErrNotFound),
		errors.Is(err, wallet.ErrWalletNotFound),
		errors.Is(err, market.ErrListingNotFound),
		errors.Is(err, market.ErrRequestNotFound),
		errors.Is(err, perks.ErrUnknownPerk),
		errors.Is(err, chat.ErrChatNotFound),
		errors.Is(err, posts.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, account.ErrEmailTaken),
		errors.Is(err, attendance.ErrAlreadyMarked),
		errors.Is(err, market.ErrNotAvailable),
		errors.Is(err, market.ErrNotBorrowed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, attendance.ErrCodeExpired):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})

	case errors.Is(err, posts.ErrContentBlocked):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	case errors.Is(err, posts.ErrClassifierUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

	default:
		log.Printf("api: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
