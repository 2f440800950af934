package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"payment-gateway-service/config"
	apperrors "payment-gateway-service/errors"
	"payment-gateway-service/models"
	"payment-gateway-service/repository"
)

const (
	GatewayConnectIPS = "connectips"

	connectIPSCurrency = "NPR"
	// The gateway caps TXNID at 20 characters and REMARKS/PARTICULARS
	// at 20 characters.
	connectIPSRemarksMax = 20

	gatewayCallTimeout = 30 * time.Second
)

// connectIPSSuccessCode is the gateway's success sentinel on the
// validatetxn API.
const connectIPSSuccessCode = "000"

// FormPaymentResult is what the client needs to auto-submit the user
// to the gateway login page.
type FormPaymentResult struct {
	GatewayURL string            `json:"gatewayUrl"`
	Method     string            `json:"method"`
	Fields     map[string]string `json:"fields"`
	TxnID      string            `json:"transactionId"`
}

// ConnectIPSService is the gateway adapter for the interbank switch:
// it maps payment intents to the gateway's wire fields, persists the
// INITIATED transaction before the user can reach the gateway, and owns
// the response-code mapping on verification.
type ConnectIPSService struct {
	cfg    config.ConnectIPSConfig
	tokens *ConnectIPSTokenEngine
	txns   repository.TransactionStore
	users  repository.UserStore
	client *http.Client
	logger *zap.Logger
}

func NewConnectIPSService(
	cfg config.ConnectIPSConfig,
	tokens *ConnectIPSTokenEngine,
	txns repository.TransactionStore,
	users repository.UserStore,
	logger *zap.Logger,
) *ConnectIPSService {
	return &ConnectIPSService{
		cfg:    cfg,
		tokens: tokens,
		txns:   txns,
		users:  users,
		client: &http.Client{Timeout: gatewayCallTimeout},
		logger: logger,
	}
}

// InitiatePayment validates the intent, signs the initiation token and
// persists the INITIATED transaction. Minor-unit conversion happens
// here, exactly once; the stored paisa value is what verification
// replays later.
func (s *ConnectIPSService) InitiatePayment(ctx context.Context, amount models.MajorAmount, description, userID string) (*FormPaymentResult, error) {
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

	now := time.Now()
	txnID := "TXN" + strconv.FormatInt(now.UnixMilli(), 10)
	referenceID := "REF" + strconv.FormatInt(now.UnixMilli(), 10)
	txnDate := now.Format("02-01-2006")
	remarks := sanitizeRemarks(description, txnID)

	fields := PaymentTokenFields{
		MerchantID:  s.cfg.MerchantID,
		AppID:       s.cfg.AppID,
		AppName:     s.cfg.AppName,
		TxnID:       txnID,
		TxnDate:     txnDate,
		Currency:    connectIPSCurrency,
		AmountPaisa: paisa,
		ReferenceID: referenceID,
		Remarks:     remarks,
		Particulars: remarks,
	}
	token, err := s.tokens.PaymentToken(fields)
	if err != nil {
		return nil, apperrors.Internal("Failed to sign payment token", err)
	}

	txn := &models.Transaction{
		TxnID:       txnID,
		Gateway:     GatewayConnectIPS,
		MerchantID:  s.cfg.MerchantID,
		AppID:       s.cfg.AppID,
		ReferenceID: referenceID,
		Amount:      amount,
		AmountPaisa: paisa,
		Currency:    connectIPSCurrency,
		Description: remarks,
		Status:      models.StatusInitiated,
		UserID:      userID,
	}
	if err := s.txns.Create(ctx, txn); err != nil {
		return nil, apperrors.Internal("Failed to record transaction", err)
	}

	s.logger.Info("ConnectIPS payment initiated",
		zap.String("txn_id", txnID),
		zap.String("user_id", userID),
		zap.Int64("amount_paisa", int64(paisa)),
	)

	return &FormPaymentResult{
		GatewayURL: s.cfg.GatewayURL,
		Method:     http.MethodPost,
		Fields: map[string]string{
			"MERCHANTID":  fields.MerchantID,
			"APPID":       fields.AppID,
			"APPNAME":     fields.AppName,
			"TXNID":       fields.TxnID,
			"TXNDATE":     fields.TxnDate,
			"TXNCRNCY":    fields.Currency,
			"TXNAMT":      fields.AmountPaisa.String(),
			"REFERENCEID": fields.ReferenceID,
			"REMARKS":     fields.Remarks,
			"PARTICULARS": fields.Particulars,
			"TOKEN":       token,
		},
		TxnID: txnID,
	}, nil
}

type connectIPSValidationRequest struct {
	MerchantID  string `json:"merchantId"`
	AppID       string `json:"appId"`
	ReferenceID string `json:"referenceId"`
	TxnAmt      string `json:"txnAmt"`
	Token       string `json:"token"`
}

type connectIPSValidationResponse struct {
	Status          string `json:"status"`
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
	TxnAmt          string `json:"txnAmt"`
}

// VerifyTransaction re-verifies the transaction with the gateway's own
// validatetxn endpoint. The token is computed over the stored
// minor-unit amount, never a caller-supplied one.
func (s *ConnectIPSService) VerifyTransaction(ctx context.Context, txn *models.Transaction) (*GatewayResult, error) {
	token, err := s.tokens.ValidationToken(txn.MerchantID, txn.AppID, txn.TxnID, txn.AmountPaisa)
	if err != nil {
		return nil, apperrors.Internal("Failed to sign validation token", err)
	}

	body, _ := json.Marshal(connectIPSValidationRequest{
		MerchantID:  txn.MerchantID,
		AppID:       txn.AppID,
		ReferenceID: txn.TxnID,
		TxnAmt:      txn.AmountPaisa.String(),
		Token:       token,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ValidationURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Internal("Failed to build validation request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.cfg.AppID, s.cfg.BasicAuthPassword)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.Gateway("ConnectIPS validation call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.Gateway(fmt.Sprintf("ConnectIPS validation returned HTTP %d", resp.StatusCode), nil)
	}

	var vr connectIPSValidationResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, apperrors.Gateway("ConnectIPS validation response malformed", err)
	}

	result := &GatewayResult{
		Outcome:          s.mapResponse(vr),
		PaymentMethod:    "ConnectIPS",
		ResponseCode:     vr.ResponseCode,
		ResponseMessage:  vr.ResponseMessage,
		GatewayReference: txn.ReferenceID,
	}

	s.logger.Info("ConnectIPS validation result",
		zap.String("txn_id", txn.TxnID),
		zap.String("response_code", vr.ResponseCode),
		zap.String("outcome", string(result.Outcome)),
	)
	return result, nil
}

// mapResponse owns the translation from the gateway-native vocabulary
// to the internal outcome set. Unrecognized codes stay UNKNOWN.
func (s *ConnectIPSService) mapResponse(vr connectIPSValidationResponse) GatewayOutcome {
	if vr.ResponseCode == connectIPSSuccessCode {
		return OutcomeSuccess
	}
	switch strings.ToUpper(vr.Status) {
	case "SUCCESS":
		return OutcomeSuccess
	case "FAILED", "FAILURE", "ERROR":
		return OutcomeFailed
	case "CANCELLED", "CANCELED":
		return OutcomeCancelled
	case "PENDING":
		return OutcomePending
	}
	return OutcomeUnknown
}

func sanitizeRemarks(description, fallback string) string {
	remarks := strings.TrimSpace(description)
	if remarks == "" {
		remarks = "Payment " + fallback
	}
	// Commas would break the signed token string.
	remarks = strings.ReplaceAll(remarks, ",", " ")
	if len(remarks) > connectIPSRemarksMax {
		// Back off to a rune boundary so a multibyte character is
		// never cut in half.
		cut := connectIPSRemarksMax
		for cut > 0 && !utf8.RuneStart(remarks[cut]) {
			cut--
		}
		remarks = remarks[:cut]
	}
	return remarks
}
