package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"universe/internal/auth"
	"universe/internal/perks"
)

func (a *api) listPerks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"perks": perks.Catalog})
}

func (a *api) redeemPerk(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	v, err := a.perks.Redeem(c.Request.Context(), claims.Subject, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

type voucherView struct {
	perks.Voucher
	Expired bool `json:"expired"`
}

func (a *api) listVouchers(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	vouchers, err := a.perks.Vouchers(c.Request.Context(), claims.Subject)
	if err != nil {
		respondErr(c, err)
		return
	}

	now := time.Now().UTC()
	views := make([]voucherView, 0, len(vouchers))
	for _, v := range vouchers {
		views = append(views, voucherView{Voucher: v, Expired: v.Expired(now)})
	}
	c.JSON(http.StatusOK, gin.H{"vouchers": views})
}
