package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payment-gateway-service/config"
	apperrors "payment-gateway-service/errors"
	"payment-gateway-service/models"
	"payment-gateway-service/repository"
)

func hblTestConfig(baseURL string) config.HBLConfig {
	return config.HBLConfig{
		BaseURL:    baseURL,
		APIKey:     "company-api-key",
		KeyID:      "uat-key-id",
		OfficeID:   "OFFICE1",
		MerchantID: "M1",
		AppID:      "APP1",
	}
}

// fakeGateway decrypts the merchant's request envelope and answers with
// a gateway-signed envelope of the given claims.
func (f *joseFixture) fakeGateway(t *testing.T, path string, respClaims map[string]interface{}, onRequest func(claims map[string]interface{})) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, path, r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/jose")
		assert.Equal(t, "company-api-key", r.Header.Get("CompanyApiKey"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		plaintext, err := jwe.Decrypt(body, jwe.WithKey(jwa.RSA_OAEP, f.gatewayDecryption))
		require.NoError(t, err)
		token, err := jwt.Parse(plaintext,
			jwt.WithKey(jwa.PS256, &f.merchantSigning.PublicKey),
			jwt.WithAudience(HBLAudience),
		)
		require.NoError(t, err)
		if onRequest != nil {
			onRequest(token.PrivateClaims())
		}

		_, _ = w.Write(f.sealAsGateway(t, respClaims, time.Now().Add(time.Hour)))
	}))
}

func newHBLFixture(t *testing.T, baseURL string) (*HBLService, *joseFixture, *MockTransactionStore, *MockUserStore) {
	t.Helper()
	f := newJoseFixture(t)
	txns := new(MockTransactionStore)
	users := new(MockUserStore)
	svc := NewHBLService(hblTestConfig(baseURL), f.codec, txns, users, zap.NewNop())
	return svc, f, txns, users
}

func TestHBLGeneratePaymentPage(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - page URL returned, transaction PROCESSING", func(t *testing.T) {
		f := newJoseFixture(t)
		var reqClaims map[string]interface{}
		srv := f.fakeGateway(t, hblPrePaymentPath, map[string]interface{}{
			"response": map[string]interface{}{
				"Data": map[string]interface{}{
					"orderNo": "ORD1",
					"paymentPage": map[string]interface{}{
						"paymentPageURL": "https://pay.example.com/page/ORD1",
					},
				},
			},
		}, func(claims map[string]interface{}) { reqClaims = claims })
		defer srv.Close()

		txns := new(MockTransactionStore)
		users := new(MockUserStore)
		svc := NewHBLService(hblTestConfig(srv.URL), f.codec, txns, users, zap.NewNop())

		users.On("FindByUserID", ctx, "user-1").Return(&models.User{UserID: "user-1"}, nil).Once()
		var created *models.Transaction
		txns.On("Create", ctx, mock.Anything).Run(func(args mock.Arguments) {
			created = args.Get(1).(*models.Transaction)
		}).Return(nil).Once()
		txns.On("MarkProcessing", ctx, mock.Anything, "ORD1").Return(nil).Once()

		res, err := svc.GeneratePaymentPage(ctx, 100.50, "wallet top-up", "user-1")
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example.com/page/ORD1", res.PaymentURL)

		require.NotNil(t, created)
		assert.Equal(t, models.StatusInitiated, created.Status)
		assert.Equal(t, created.TxnID, created.InvoiceNo)
		assert.Equal(t, models.MinorAmount(10050), created.AmountPaisa)

		require.NotNil(t, reqClaims)
		assert.Equal(t, created.InvoiceNo, reqClaims["invoiceNo"])
		assert.Equal(t, 100.5, reqClaims["amount"])
		assert.Equal(t, "NPR", reqClaims["currencyCode"])
		assert.Equal(t, "OFFICE1", reqClaims["officeId"])

		txns.AssertExpectations(t)
	})

	t.Run("Failure - gateway unreachable marks transaction FAILED", func(t *testing.T) {
		svc, _, txns, users := newHBLFixture(t, "http://127.0.0.1:1")

		users.On("FindByUserID", ctx, "user-1").Return(&models.User{UserID: "user-1"}, nil).Once()
		txns.On("Create", ctx, mock.Anything).Return(nil).Once()
		txns.On("MarkTerminal", ctx, mock.Anything, mock.MatchedBy(func(upd repository.TerminalUpdate) bool {
			return upd.Status == models.StatusFailed && upd.ErrorMessage != ""
		})).Return(true, nil).Once()

		_, err := svc.GeneratePaymentPage(ctx, 100, "top-up", "user-1")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindGateway, apperrors.KindOf(err))
		txns.AssertExpectations(t)
	})

	t.Run("Failure - invalid amount creates nothing", func(t *testing.T) {
		svc, _, txns, _ := newHBLFixture(t, "unused")

		_, err := svc.GeneratePaymentPage(ctx, -1, "top-up", "user-1")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		txns.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestHBLVerifyTransaction(t *testing.T) {
	ctx := context.Background()
	txn := &models.Transaction{
		TxnID:       "TXN1",
		InvoiceNo:   "TXN1",
		Amount:      100.50,
		AmountPaisa: 10050,
		Status:      models.StatusProcessing,
	}

	verify := func(t *testing.T, respClaims map[string]interface{}) (*GatewayResult, error) {
		f := newJoseFixture(t)
		var reqClaims map[string]interface{}
		srv := f.fakeGateway(t, hblInquiryPath, respClaims, func(claims map[string]interface{}) { reqClaims = claims })
		defer srv.Close()

		svc := NewHBLService(hblTestConfig(srv.URL), f.codec, new(MockTransactionStore), new(MockUserStore), zap.NewNop())
		res, err := svc.VerifyTransaction(ctx, txn)
		if err == nil {
			assert.Equal(t, "TXN1", reqClaims["invoiceNo"])
			assert.Equal(t, "OFFICE1", reqClaims["officeId"])
		}
		return res, err
	}

	t.Run("Success - respCode 0000 with matching amount", func(t *testing.T) {
		res, err := verify(t, map[string]interface{}{
			"respCode": "0000", "txnReference": "BANKREF1", "paymentChannel": "CC", "amount": 100.5,
		})
		require.NoError(t, err)
		assert.Equal(t, OutcomeSuccess, res.Outcome)
		assert.Equal(t, "BANKREF1", res.GatewayReference)
		assert.Equal(t, "CC", res.PaymentMethod)
	})

	t.Run("Verification error - success with mismatched amount", func(t *testing.T) {
		_, err := verify(t, map[string]interface{}{"respCode": "0000", "amount": 999.0})
		require.Error(t, err)
		assert.Equal(t, apperrors.KindVerification, apperrors.KindOf(err))
	})

	t.Run("Failed - decline code", func(t *testing.T) {
		res, err := verify(t, map[string]interface{}{"respCode": "2001", "respDesc": "declined"})
		require.NoError(t, err)
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.Equal(t, "declined", res.ResponseMessage)
	})

	t.Run("Pending - in-progress code", func(t *testing.T) {
		res, err := verify(t, map[string]interface{}{"respCode": "1000"})
		require.NoError(t, err)
		assert.Equal(t, OutcomePending, res.Outcome)
	})

	t.Run("Unknown - unrecognized code", func(t *testing.T) {
		res, err := verify(t, map[string]interface{}{"respCode": "9999"})
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnknown, res.Outcome)
	})
}

func TestHBLDecodeWebhook(t *testing.T) {
	svc, f, _, _ := newHBLFixture(t, "unused")

	t.Run("Success - verified notification", func(t *testing.T) {
		envelope := f.sealAsGateway(t, map[string]interface{}{
			"invoiceNo": "TXN1", "orderNo": "ORD1", "respCode": "0000",
		}, time.Now().Add(time.Hour))

		notif, err := svc.DecodeWebhook(envelope)
		require.NoError(t, err)
		assert.Equal(t, "TXN1", notif.InvoiceNo)
		assert.Equal(t, "ORD1", notif.OrderNo)
		assert.Equal(t, "TXN1", notif.TransactionID())
	})

	t.Run("Failure - garbage body", func(t *testing.T) {
		_, err := svc.DecodeWebhook([]byte("not-a-jose-envelope"))
		require.Error(t, err)
		assert.Equal(t, apperrors.KindGateway, apperrors.KindOf(err))
	})
}
