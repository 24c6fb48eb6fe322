package http

import (
	"github.com/gin-gonic/gin"
	"github.com/openbounty/commerce-api/internal/adapter/http/middleware"
	"github.com/openbounty/commerce-api/internal/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(ch *CartHandler, oh *OrderHandler, wh *WalletHandler, th *TokenHandler, authz *middleware.Authz) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())

	l := logging.New("http")
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		logging.From(c).Info("health check")
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/v1/token", th.IssueToken)

	v1 := r.Group("/v1")
	{
		write := authz.Require("commerce.write")
		read := authz.Require("commerce.read")

		v1.POST("/carts", write, ch.OpenCart)
		v1.GET("/carts/:id", read, ch.GetCart)
		v1.POST("/carts/:id/items/bounty", write, ch.AddBountyItem)
		v1.POST("/carts/:id/items/point-grant", write, ch.AddPointGrantItem)
		v1.POST("/carts/:id/recompute", write, ch.Recompute)
		v1.GET("/carts/:id/validate", read, ch.Validate)
		v1.POST("/carts/:id/checkout", write, ch.Checkout)

		v1.GET("/orders/:id", read, oh.GetOrder)
		v1.POST("/orders/:id/pay", write, oh.PayOrder)
		v1.GET("/orders/:id/validate", read, oh.ValidateOrder)
		v1.POST("/orders/:id/refund", write, oh.RefundOrder)

		v1.GET("/point-orders/:id", read, oh.GetPointOrder)
		v1.POST("/point-orders/:id/pay", write, oh.PayPointOrder)

		v1.GET("/wallets/:id", read, wh.GetAccount)
		v1.POST("/wallets/:id/funds", write, wh.AddFunds)
	}

	return r
}
