package services

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"payment-gateway-service/models"
)

// ConnectIPSTokenEngine produces the detached signatures the ConnectIPS
// switch requires. The gateway defines two distinct field subsets — a
// payment-initiation token and a validation token — joined as KEY=value
// pairs with a comma, in the gateway's fixed (not sorted) order, then
// signed SHA-256 / RSA PKCS#1 v1.5 and base64-encoded.
//
// The engine is a pure function of its inputs and key material.
type ConnectIPSTokenEngine struct {
	signingKey *rsa.PrivateKey
}

func NewConnectIPSTokenEngine(signingKey *rsa.PrivateKey) *ConnectIPSTokenEngine {
	return &ConnectIPSTokenEngine{signingKey: signingKey}
}

// PaymentTokenFields is the ordered field set signed at initiation.
type PaymentTokenFields struct {
	MerchantID  string
	AppID       string
	AppName     string
	TxnID       string
	TxnDate     string // DD-MM-YYYY
	Currency    string
	AmountPaisa models.MinorAmount
	ReferenceID string
	Remarks     string
	Particulars string
}

// PaymentToken signs the payment-initiation field set.
func (e *ConnectIPSTokenEngine) PaymentToken(f PaymentTokenFields) (string, error) {
	msg, err := buildTokenString([][2]string{
		{"MERCHANTID", f.MerchantID},
		{"APPID", f.AppID},
		{"APPNAME", f.AppName},
		{"TXNID", f.TxnID},
		{"TXNDATE", f.TxnDate},
		{"TXNCRNCY", f.Currency},
		{"TXNAMT", f.AmountPaisa.String()},
		{"REFERENCEID", f.ReferenceID},
		{"REMARKS", f.Remarks},
		{"PARTICULARS", f.Particulars},
		{"TOKEN", "TOKEN"},
	})
	if err != nil {
		return "", err
	}
	return e.sign(msg)
}

// ValidationToken signs the smaller field set the validatetxn API
// expects. The subsets differ by gateway contract and must not be
// conflated with the initiation token.
func (e *ConnectIPSTokenEngine) ValidationToken(merchantID, appID, referenceID string, amountPaisa models.MinorAmount) (string, error) {
	msg, err := buildTokenString([][2]string{
		{"MERCHANTID", merchantID},
		{"APPID", appID},
		{"REFERENCEID", referenceID},
		{"TXNAMT", amountPaisa.String()},
	})
	if err != nil {
		return "", err
	}
	return e.sign(msg)
}

// buildTokenString joins the ordered pairs. A value containing the pair
// separator would produce a string the gateway parses differently than
// we signed it, so it is rejected here instead of being escaped.
func buildTokenString(pairs [][2]string) (string, error) {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if strings.Contains(p[1], ",") {
			return "", fmt.Errorf("field %s contains the token separator: %q", p[0], p[1])
		}
		parts = append(parts, p[0]+"="+p[1])
	}
	return strings.Join(parts, ","), nil
}

func (e *ConnectIPSTokenEngine) sign(message string) (string, error) {
	if e.signingKey == nil {
		return "", fmt.Errorf("connectips signing key is not loaded")
	}
	digest := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPKCS1v15(rand.Reader, e.signingKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing token string: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
