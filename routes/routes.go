package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"payment-gateway-service/controllers"
	"payment-gateway-service/middleware"
)

// RegisterPaymentRoutes wires both gateway surfaces. Initiation
// endpoints sit behind auth; redirects and webhooks are entered by the
// gateways themselves and carry no user identity.
func RegisterPaymentRoutes(r *gin.Engine, cips *controllers.ConnectIPSController, hbl *controllers.HBLController) {
	connectips := r.Group("/payment/connectips")
	{
		connectips.POST("/initiate", middleware.AuthMiddleware(), cips.InitiatePayment)
		connectips.GET("/success", cips.PaymentSuccess)
		connectips.GET("/failure", cips.PaymentFailure)
		connectips.POST("/webhook", cips.Webhook)
		connectips.GET("/status/:txnId", cips.TransactionStatus)
	}

	hblGroup := r.Group("/payment/hbl")
	{
		hblGroup.POST("/generate-page", middleware.AuthMiddleware(), hbl.GeneratePaymentPage)
		hblGroup.GET("/success", hbl.PaymentSuccess)
		hblGroup.GET("/failure", hbl.PaymentFailure)
		hblGroup.POST("/webhook", hbl.Webhook)
		hblGroup.GET("/status/:txnId", hbl.TransactionStatus)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
