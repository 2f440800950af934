package controllers

import (
	"context"
	"net/url"

	"github.com/gin-gonic/gin"

	apperrors "payment-gateway-service/errors"
	"payment-gateway-service/models"
	"payment-gateway-service/services"
)

// Reconciler applies a verified gateway result to a transaction and
// returns its fresh state. EnsureCredited backfills a missing wallet
// credit for an already-successful transaction; terminal short-circuit
// paths must call it so a credit lost to a crash between the status
// transition and the ledger insert is recovered by the next trigger.
type Reconciler interface {
	Apply(ctx context.Context, txn *models.Transaction, res *services.GatewayResult) (*models.Transaction, error)
	EnsureCredited(ctx context.Context, txn *models.Transaction) error
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.StatusOf(err), gin.H{
		"success": false,
		"error":   apperrors.MessageOf(err),
	})
}

// redirectByStatus sends the user back to the frontend result page
// matching the transaction's final state.
func redirectByStatus(c *gin.Context, frontendURL string, txn *models.Transaction) {
	page := "/payment-failed"
	if txn.Status == models.StatusSuccess {
		page = "/payment-success"
	}
	c.Redirect(302, frontendURL+page+"?txnId="+url.QueryEscape(txn.TxnID))
}

// transactionView is the externally visible projection of a
// transaction; merchant credentials and internal ids stay out.
func transactionView(txn *models.Transaction) gin.H {
	view := gin.H{
		"transactionId": txn.TxnID,
		"gateway":       txn.Gateway,
		"status":        txn.Status,
		"amount":        txn.Amount,
		"currency":      txn.Currency,
		"description":   txn.Description,
		"createdAt":     txn.CreatedAt,
	}
	if txn.GatewayReference != "" {
		view["gatewayReference"] = txn.GatewayReference
	}
	if txn.PaymentMethod != "" {
		view["paymentMethod"] = txn.PaymentMethod
	}
	if txn.CompletedAt != nil {
		view["completedAt"] = txn.CompletedAt
	}
	if txn.ErrorMessage != "" {
		view["errorMessage"] = txn.ErrorMessage
	}
	return view
}
