package services

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"payment-gateway-service/config"
	apperrors "payment-gateway-service/errors"
	"payment-gateway-service/models"
	"payment-gateway-service/repository"
)

const (
	GatewayHBL = "hbl"

	hblCurrency = "NPR"

	hblPrePaymentPath = "/api/1.0/Payment/prePaymentUi"
	hblInquiryPath    = "/api/1.0/Inquiry"
)

// hblOutcomeByCode maps the gateway's respCode vocabulary onto the
// internal outcome set. Codes outside this table are UNKNOWN and never
// advance the state machine.
var hblOutcomeByCode = map[string]GatewayOutcome{
	"0000": OutcomeSuccess,
	"2000": OutcomeSuccess,
	"0001": OutcomeFailed,
	"2001": OutcomeFailed,
	"2002": OutcomeFailed,
	"2003": OutcomeCancelled,
	"1000": OutcomePending,
	"1001": OutcomePending,
}

// PagePaymentResult carries the hosted payment page for the client.
type PagePaymentResult struct {
	PaymentURL string `json:"paymentUrl"`
	TxnID      string `json:"transactionId"`
}

// HBLWebhookNotification is the verified claim payload of a webhook
// envelope.
type HBLWebhookNotification struct {
	InvoiceNo      string `json:"invoiceNo"`
	OrderNo        string `json:"orderNo"`
	TxnReference   string `json:"txnReference"`
	RespCode       string `json:"respCode"`
	RespDesc       string `json:"respDesc"`
	PaymentChannel string `json:"paymentChannel"`
}

// TransactionID resolves the merchant-side transaction id the gateway
// echoed back, preferring the invoice number.
func (n *HBLWebhookNotification) TransactionID() string {
	if n.InvoiceNo != "" {
		return n.InvoiceNo
	}
	return n.OrderNo
}

type hblPageResponse struct {
	Response struct {
		Data struct {
			OrderNo     string `json:"orderNo"`
			PaymentPage struct {
				PaymentPageURL string `json:"paymentPageURL"`
			} `json:"paymentPage"`
		} `json:"Data"`
	} `json:"response"`
}

type hblInquiryResponse struct {
	RespCode       string  `json:"respCode"`
	RespDesc       string  `json:"respDesc"`
	OrderNo        string  `json:"orderNo"`
	TxnReference   string  `json:"txnReference"`
	PaymentChannel string  `json:"paymentChannel"`
	Amount         float64 `json:"amount"`
}

// HBLService is the gateway adapter for the hosted-payment-page
// service. All traffic is JOSE envelopes in both directions.
type HBLService struct {
	cfg    config.HBLConfig
	codec  *HBLEnvelopeCodec
	txns   repository.TransactionStore
	users  repository.UserStore
	client *http.Client
	logger *zap.Logger
}

func NewHBLService(
	cfg config.HBLConfig,
	codec *HBLEnvelopeCodec,
	txns repository.TransactionStore,
	users repository.UserStore,
	logger *zap.Logger,
) *HBLService {
	return &HBLService{
		cfg:    cfg,
		codec:  codec,
		txns:   txns,
		users:  users,
		client: &http.Client{Timeout: gatewayCallTimeout},
		logger: logger,
	}
}

// GeneratePaymentPage validates the intent, persists the INITIATED
// transaction, then asks the gateway for a hosted payment page. The
// transaction record must exist before the user can reach the gateway.
func (s *HBLService) GeneratePaymentPage(ctx context.Context, amount models.MajorAmount, description, userID string) (*PagePaymentResult, error) {
	paisa, err := amount.Paisa()
	if err != nil {
		return nil, apperrors.Validation("Invalid amount", err)
	}
	if userID == "" {
		return nil, apperrors.Validation("User ID is required", nil)
	}
	if _, err := s.users.FindByUserID(ctx, userID); err != nil {
		return nil, err
	}

	txnID := "TXN" + strconv.FormatInt(time.Now().UnixMilli(), 10) + strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	if description == "" {
		description = "Payment for " + txnID
	}

	txn := &models.Transaction{
		TxnID:        txnID,
		Gateway:      GatewayHBL,
		MerchantID:   s.cfg.MerchantID,
		AppID:        s.cfg.AppID,
		InvoiceNo:    txnID,
		Amount:       amount,
		AmountPaisa:  paisa,
		Currency:     hblCurrency,
		Description:  description,
		Status:       models.StatusInitiated,
		UserID:       userID,
		UserDefined1: s.cfg.AppID,
	}
	if err := s.txns.Create(ctx, txn); err != nil {
		return nil, apperrors.Internal("Failed to record transaction", err)
	}

	pageResp, err := s.requestPaymentPage(ctx, txn)
	if err != nil {
		// The gateway never acknowledged the page; the attempt is dead.
		if _, markErr := s.txns.MarkTerminal(ctx, txnID, repository.TerminalUpdate{
			Status:       models.StatusFailed,
			ErrorMessage: err.Error(),
		}); markErr != nil {
			s.logger.Error("Failed to mark transaction failed", zap.String("txn_id", txnID), zap.Error(markErr))
		}
		return nil, err
	}

	pageURL := pageResp.Response.Data.PaymentPage.PaymentPageURL
	orderNo := pageResp.Response.Data.OrderNo
	if pageURL == "" {
		if _, markErr := s.txns.MarkTerminal(ctx, txnID, repository.TerminalUpdate{
			Status:       models.StatusFailed,
			ErrorMessage: "gateway response missing payment page URL",
		}); markErr != nil {
			s.logger.Error("Failed to mark transaction failed", zap.String("txn_id", txnID), zap.Error(markErr))
		}
		return nil, apperrors.Gateway("HBL response missing payment page URL", nil)
	}

	if err := s.txns.MarkProcessing(ctx, txnID, orderNo); err != nil {
		return nil, apperrors.Internal("Failed to update transaction", err)
	}

	s.logger.Info("HBL payment page generated",
		zap.String("txn_id", txnID),
		zap.String("order_no", orderNo),
		zap.String("user_id", userID),
	)
	return &PagePaymentResult{PaymentURL: pageURL, TxnID: txnID}, nil
}

func (s *HBLService) requestPaymentPage(ctx context.Context, txn *models.Transaction) (*hblPageResponse, error) {
	claims, err := s.call(ctx, hblPrePaymentPath, map[string]interface{}{
		"amount":       float64(txn.Amount),
		"invoiceNo":    txn.InvoiceNo,
		"description":  txn.Description,
		"currencyCode": txn.Currency,
		"appId":        s.cfg.AppID,
		"officeId":     s.cfg.OfficeID,
	})
	if err != nil {
		return nil, err
	}
	var page hblPageResponse
	if err := decodeClaims(claims, &page); err != nil {
		return nil, apperrors.Gateway("HBL payment page response malformed", err)
	}
	return &page, nil
}

// VerifyTransaction re-verifies the transaction with the gateway's
// inquiry endpoint. Used by callbacks, webhooks and manual status
// checks alike; caller-supplied status fields are never trusted alone.
func (s *HBLService) VerifyTransaction(ctx context.Context, txn *models.Transaction) (*GatewayResult, error) {
	claims, err := s.call(ctx, hblInquiryPath, map[string]interface{}{
		"officeId":  s.cfg.OfficeID,
		"invoiceNo": txn.InvoiceNo,
		"apiRequest": map[string]interface{}{
			"requestMessageID": uuid.NewString(),
		},
	})
	if err != nil {
		return nil, err
	}

	var inq hblInquiryResponse
	if err := decodeClaims(claims, &inq); err != nil {
		return nil, apperrors.Gateway("HBL inquiry response malformed", err)
	}

	outcome, known := hblOutcomeByCode[inq.RespCode]
	if !known {
		outcome = OutcomeUnknown
	}

	// A success claim with a different amount than the one signed at
	// initiation is a forgery signal, not a success.
	if outcome == OutcomeSuccess && inq.Amount != 0 && math.Abs(inq.Amount-float64(txn.Amount)) > 0.009 {
		return nil, apperrors.Verification(
			fmt.Sprintf("HBL inquiry amount %.2f does not match transaction amount %.2f", inq.Amount, float64(txn.Amount)), nil)
	}

	result := &GatewayResult{
		Outcome:          outcome,
		GatewayReference: inq.TxnReference,
		PaymentMethod:    inq.PaymentChannel,
		ResponseCode:     inq.RespCode,
		ResponseMessage:  inq.RespDesc,
	}
	if result.GatewayReference == "" {
		result.GatewayReference = inq.OrderNo
	}
	if result.PaymentMethod == "" {
		result.PaymentMethod = "HBL"
	}

	s.logger.Info("HBL inquiry result",
		zap.String("txn_id", txn.TxnID),
		zap.String("resp_code", inq.RespCode),
		zap.String("outcome", string(outcome)),
	)
	return result, nil
}

// DecodeWebhook opens a webhook envelope. On verification failure a
// relaxed diagnostic parse is attempted so the gateway's error detail
// lands in the logs, but the strict error is what the caller gets.
func (s *HBLService) DecodeWebhook(body []byte) (*HBLWebhookNotification, error) {
	claims, err := s.codec.Open(body)
	if err != nil {
		if diag, diagErr := s.codec.OpenDiagnostic(body); diagErr == nil {
			s.logger.Warn("HBL webhook envelope failed strict verification",
				zap.Any("diagnostic_claims", diag),
				zap.Error(err),
			)
		}
		return nil, err
	}
	var notif HBLWebhookNotification
	if err := decodeClaims(claims, &notif); err != nil {
		return nil, apperrors.Gateway("HBL webhook payload malformed", err)
	}
	return &notif, nil
}

// call seals the payload, posts it as application/jose and opens the
// response envelope.
func (s *HBLService) call(ctx context.Context, path string, payload map[string]interface{}) (map[string]interface{}, error) {
	envelope, err := s.codec.Seal(payload)
	if err != nil {
		return nil, apperrors.Internal("Failed to seal gateway request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, strings.NewReader(envelope))
	if err != nil {
		return nil, apperrors.Internal("Failed to build gateway request", err)
	}
	req.Header.Set("Content-Type", "application/jose; charset=utf-8")
	req.Header.Set("Accept", "application/jose")
	req.Header.Set("CompanyApiKey", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.Gateway("HBL gateway call failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Gateway("Failed to read gateway response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Error bodies may still be inspectable envelopes.
		if diag, diagErr := s.codec.OpenDiagnostic(body); diagErr == nil {
			s.logger.Warn("HBL gateway error envelope", zap.Int("status", resp.StatusCode), zap.Any("claims", diag))
		}
		return nil, apperrors.Gateway(fmt.Sprintf("HBL gateway returned HTTP %d", resp.StatusCode), nil)
	}

	return s.codec.Open(body)
}
