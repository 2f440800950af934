package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "payment-gateway-service/errors"
	"payment-gateway-service/middleware"
	"payment-gateway-service/models"
	"payment-gateway-service/repository"
	"payment-gateway-service/services"
)

// HBLGateway is the hosted-page adapter surface the controller needs.
type HBLGateway interface {
	GeneratePaymentPage(ctx context.Context, amount models.MajorAmount, description, userID string) (*services.PagePaymentResult, error)
	VerifyTransaction(ctx context.Context, txn *models.Transaction) (*services.GatewayResult, error)
	DecodeWebhook(body []byte) (*services.HBLWebhookNotification, error)
}

type HBLController struct {
	Gateway     HBLGateway
	Txns        repository.TransactionStore
	Recon       Reconciler
	FrontendURL string
	Logger      *zap.Logger
}

// GeneratePaymentPage creates the payment intent and returns the hosted
// page URL the client navigates to.
func (hc *HBLController) GeneratePaymentPage(c *gin.Context) {
	var req struct {
		Amount      json.Number `json:"amount" binding:"required"`
		Description string      `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	amount, err := req.Amount.Float64()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "amount must be a number"})
		return
	}

	userID := middleware.GetUserID(c)

	res, err := hc.Gateway.GeneratePaymentPage(c.Request.Context(), models.MajorAmount(amount), req.Description, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"paymentUrl":    res.PaymentURL,
		"transactionId": res.TxnID,
	})
}

// PaymentSuccess handles the gateway's success redirect, which carries
// the gateway-side order number rather than our transaction id.
func (hc *HBLController) PaymentSuccess(c *gin.Context) {
	hc.handleRedirect(c, false)
}

func (hc *HBLController) PaymentFailure(c *gin.Context) {
	hc.handleRedirect(c, true)
}

func (hc *HBLController) handleRedirect(c *gin.Context, failurePath bool) {
	ctx := c.Request.Context()

	txn, err := hc.resolveTransaction(ctx, c.Query("invoiceNo"), c.Query("orderNo"))
	if err != nil {
		hc.Logger.Warn("HBL redirect for unknown transaction",
			zap.String("invoice_no", c.Query("invoiceNo")),
			zap.String("order_no", c.Query("orderNo")),
			zap.Error(err),
		)
		c.Redirect(302, hc.FrontendURL+"/payment-failed")
		return
	}
	if txn.Status.IsTerminal() {
		if txn.Status == models.StatusSuccess {
			if creditErr := hc.Recon.EnsureCredited(ctx, txn); creditErr != nil {
				hc.Logger.Error("Failed to backfill wallet credit", zap.String("txn_id", txn.TxnID), zap.Error(creditErr))
			}
		}
		redirectByStatus(c, hc.FrontendURL, txn)
		return
	}

	res, err := hc.Gateway.VerifyTransaction(ctx, txn)
	if err != nil {
		hc.Logger.Error("HBL verification failed during redirect",
			zap.String("txn_id", txn.TxnID), zap.Error(err))
		c.Redirect(302, hc.FrontendURL+"/payment-failed?txnId="+txn.TxnID)
		return
	}
	if failurePath && (res.Outcome == services.OutcomePending || res.Outcome == services.OutcomeUnknown) {
		res.Outcome = services.OutcomeCancelled
	}

	fresh, err := hc.Recon.Apply(ctx, txn, res)
	if err != nil {
		hc.Logger.Error("Failed to reconcile transaction", zap.String("txn_id", txn.TxnID), zap.Error(err))
		c.Redirect(302, hc.FrontendURL+"/payment-failed?txnId="+txn.TxnID)
		return
	}
	redirectByStatus(c, hc.FrontendURL, fresh)
}

// Webhook handles the gateway's JOSE notification. The envelope is
// decrypted and its signature verified, but the verdict inside is only
// a trigger: the engine still re-verifies through the inquiry endpoint
// before any state moves. Always responds 200.
func (hc *HBLController) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	notif, err := hc.Gateway.DecodeWebhook(body)
	if err != nil {
		hc.Logger.Error("HBL webhook envelope rejected", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	ctx := c.Request.Context()
	txn, err := hc.resolveTransaction(ctx, notif.InvoiceNo, notif.OrderNo)
	if err != nil {
		hc.Logger.Warn("HBL webhook for unknown transaction",
			zap.String("invoice_no", notif.InvoiceNo),
			zap.String("order_no", notif.OrderNo),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	if txn.Status.IsTerminal() {
		if txn.Status == models.StatusSuccess {
			// A retried webhook is the recovery channel for a credit lost
			// after the terminal transition; answer false until it lands.
			if creditErr := hc.Recon.EnsureCredited(ctx, txn); creditErr != nil {
				hc.Logger.Error("Failed to backfill wallet credit", zap.String("txn_id", txn.TxnID), zap.Error(creditErr))
				c.JSON(http.StatusOK, gin.H{"success": false})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"success": txn.Status == models.StatusSuccess})
		return
	}

	res, err := hc.Gateway.VerifyTransaction(ctx, txn)
	if err != nil {
		hc.Logger.Error("HBL verification failed during webhook",
			zap.String("txn_id", txn.TxnID),
			zap.String("resp_code", notif.RespCode),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	fresh, err := hc.Recon.Apply(ctx, txn, res)
	if err != nil {
		hc.Logger.Error("Failed to reconcile transaction", zap.String("txn_id", txn.TxnID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": fresh.Status == models.StatusSuccess})
}

// TransactionStatus returns current state, re-verifying non-terminal
// transactions through the inquiry endpoint first.
func (hc *HBLController) TransactionStatus(c *gin.Context) {
	txnID := c.Param("txnId")
	ctx := c.Request.Context()

	txn, err := hc.Txns.FindByTxnID(ctx, txnID)
	if err != nil {
		respondError(c, err)
		return
	}

	if txn.Status.IsTerminal() {
		if txn.Status == models.StatusSuccess {
			if creditErr := hc.Recon.EnsureCredited(ctx, txn); creditErr != nil {
				hc.Logger.Error("Failed to backfill wallet credit", zap.String("txn_id", txnID), zap.Error(creditErr))
			}
		}
	} else {
		res, err := hc.Gateway.VerifyTransaction(ctx, txn)
		if err != nil {
			hc.Logger.Warn("HBL verification failed during status check",
				zap.String("txn_id", txnID), zap.Error(err))
		} else if fresh, applyErr := hc.Recon.Apply(ctx, txn, res); applyErr == nil {
			txn = fresh
		} else {
			respondError(c, apperrors.Internal("Failed to reconcile transaction", applyErr))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": transactionView(txn)})
}

func (hc *HBLController) resolveTransaction(ctx context.Context, invoiceNo, orderNo string) (*models.Transaction, error) {
	if invoiceNo != "" {
		return hc.Txns.FindByTxnID(ctx, invoiceNo)
	}
	if orderNo != "" {
		return hc.Txns.FindByGatewayReference(ctx, orderNo)
	}
	return nil, apperrors.Validation("Missing transaction identifier", nil)
}
