package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "payment-gateway-service/errors"
	"payment-gateway-service/middleware"
	"payment-gateway-service/models"
	"payment-gateway-service/repository"
	"payment-gateway-service/services"
)

// ConnectIPSGateway is the gateway adapter surface the controller
// needs; the concrete implementation lives in services.
type ConnectIPSGateway interface {
	InitiatePayment(ctx context.Context, amount models.MajorAmount, description, userID string) (*services.FormPaymentResult, error)
	VerifyTransaction(ctx context.Context, txn *models.Transaction) (*services.GatewayResult, error)
}

type ConnectIPSController struct {
	Gateway     ConnectIPSGateway
	Txns        repository.TransactionStore
	Recon       Reconciler
	FrontendURL string
	Logger      *zap.Logger
}

// InitiatePayment creates the payment intent and returns the form-POST
// parameters the client submits to the gateway login page.
func (pc *ConnectIPSController) InitiatePayment(c *gin.Context) {
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

	res, err := pc.Gateway.InitiatePayment(c.Request.Context(), models.MajorAmount(amount), req.Description, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"connectIPSUrl": res.GatewayURL,
		"method":        res.Method,
		"fields":        res.Fields,
		"transactionId": res.TxnID,
	})
}

// PaymentSuccess handles the gateway's success redirect. The query
// status is never trusted; the transaction is re-verified before the
// user is sent to a result page.
func (pc *ConnectIPSController) PaymentSuccess(c *gin.Context) {
	pc.handleRedirect(c, false)
}

// PaymentFailure handles the failure redirect. A verification that
// comes back inconclusive here means the user abandoned the gateway
// page, so the transaction is closed as cancelled.
func (pc *ConnectIPSController) PaymentFailure(c *gin.Context) {
	pc.handleRedirect(c, true)
}

func (pc *ConnectIPSController) handleRedirect(c *gin.Context, failurePath bool) {
	txnID := c.Query("TXNID")
	if txnID == "" {
		txnID = c.Query("txnId")
	}
	if txnID == "" {
		c.Redirect(302, pc.FrontendURL+"/payment-failed")
		return
	}

	ctx := c.Request.Context()
	txn, err := pc.Txns.FindByTxnID(ctx, txnID)
	if err != nil {
		pc.Logger.Warn("ConnectIPS redirect for unknown transaction", zap.String("txn_id", txnID), zap.Error(err))
		c.Redirect(302, pc.FrontendURL+"/payment-failed")
		return
	}
	if txn.Status.IsTerminal() {
		if txn.Status == models.StatusSuccess {
			if creditErr := pc.Recon.EnsureCredited(ctx, txn); creditErr != nil {
				pc.Logger.Error("Failed to backfill wallet credit", zap.String("txn_id", txnID), zap.Error(creditErr))
			}
		}
		redirectByStatus(c, pc.FrontendURL, txn)
		return
	}

	res, err := pc.Gateway.VerifyTransaction(ctx, txn)
	if err != nil {
		pc.Logger.Error("ConnectIPS verification failed during redirect",
			zap.String("txn_id", txnID), zap.Error(err))
		c.Redirect(302, pc.FrontendURL+"/payment-failed?txnId="+txnID)
		return
	}
	if failurePath && (res.Outcome == services.OutcomePending || res.Outcome == services.OutcomeUnknown) {
		res.Outcome = services.OutcomeCancelled
	}

	fresh, err := pc.Recon.Apply(ctx, txn, res)
	if err != nil {
		pc.Logger.Error("Failed to reconcile transaction", zap.String("txn_id", txnID), zap.Error(err))
		c.Redirect(302, pc.FrontendURL+"/payment-failed?txnId="+txnID)
		return
	}
	redirectByStatus(c, pc.FrontendURL, fresh)
}

// Webhook handles server-to-server notifications. The posted status is
// only a hint; the authoritative verdict comes from the validation
// call. The response is always 200 so the gateway does not retry into
// a state we already handled.
func (pc *ConnectIPSController) Webhook(c *gin.Context) {
	var req struct {
		TxnID       string `json:"txnId"`
		ReferenceID string `json:"referenceId"`
		Status      string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	txnID := req.TxnID
	if txnID == "" {
		txnID = req.ReferenceID
	}
	if txnID == "" {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	ctx := c.Request.Context()
	txn, err := pc.Txns.FindByTxnID(ctx, txnID)
	if err != nil {
		pc.Logger.Warn("ConnectIPS webhook for unknown transaction", zap.String("txn_id", txnID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	if txn.Status.IsTerminal() {
		if txn.Status == models.StatusSuccess {
			// A retried webhook is the recovery channel for a credit lost
			// after the terminal transition; answer false until it lands.
			if creditErr := pc.Recon.EnsureCredited(ctx, txn); creditErr != nil {
				pc.Logger.Error("Failed to backfill wallet credit", zap.String("txn_id", txnID), zap.Error(creditErr))
				c.JSON(http.StatusOK, gin.H{"success": false})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"success": txn.Status == models.StatusSuccess})
		return
	}

	res, err := pc.Gateway.VerifyTransaction(ctx, txn)
	if err != nil {
		pc.Logger.Error("ConnectIPS verification failed during webhook",
			zap.String("txn_id", txnID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	fresh, err := pc.Recon.Apply(ctx, txn, res)
	if err != nil {
		pc.Logger.Error("Failed to reconcile transaction", zap.String("txn_id", txnID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": fresh.Status == models.StatusSuccess})
}

// TransactionStatus returns current state, re-verifying non-terminal
// transactions against the gateway first.
func (pc *ConnectIPSController) TransactionStatus(c *gin.Context) {
	txnID := c.Param("txnId")
	ctx := c.Request.Context()

	txn, err := pc.Txns.FindByTxnID(ctx, txnID)
	if err != nil {
		respondError(c, err)
		return
	}

	if txn.Status.IsTerminal() {
		if txn.Status == models.StatusSuccess {
			if creditErr := pc.Recon.EnsureCredited(ctx, txn); creditErr != nil {
				pc.Logger.Error("Failed to backfill wallet credit", zap.String("txn_id", txnID), zap.Error(creditErr))
			}
		}
	} else {
		res, err := pc.Gateway.VerifyTransaction(ctx, txn)
		if err != nil {
			// Status reads tolerate gateway downtime; serve stored state.
			pc.Logger.Warn("ConnectIPS verification failed during status check",
				zap.String("txn_id", txnID), zap.Error(err))
		} else if fresh, applyErr := pc.Recon.Apply(ctx, txn, res); applyErr == nil {
			txn = fresh
		} else {
			respondError(c, apperrors.Internal("Failed to reconcile transaction", applyErr))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": transactionView(txn)})
}
