package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"payment-gateway-service/config"
	apperrors "payment-gateway-service/errors"
)

// HBLAudience is the fixed audience claim of the PACO API contract.
const HBLAudience = "PacoAudience"

// envelopeTTL is the signed-token validity window required by the
// gateway contract.
const envelopeTTL = time.Hour

// HBLEnvelopeCodec implements the gateway's sign-then-encrypt scheme:
// outbound requests are wrapped in issuer/audience/expiry claims,
// signed PS256 with the merchant signing key, then the compact JWS is
// encrypted RSA-OAEP / A128CBC-HS256 for the gateway encryption key.
// Inbound envelopes run the inverse: decrypt with the merchant
// decryption key, then verify the inner signature against the gateway
// signing key, including audience and time-validity claims.
type HBLEnvelopeCodec struct {
	keys   config.HBLKeys
	apiKey string
	keyID  string
}

func NewHBLEnvelopeCodec(keys config.HBLKeys, apiKey, keyID string) *HBLEnvelopeCodec {
	return &HBLEnvelopeCodec{keys: keys, apiKey: apiKey, keyID: keyID}
}

// Seal builds the compact encrypted envelope for an outbound request.
// The payload fields become private claims next to the standard set.
func (c *HBLEnvelopeCodec) Seal(payload map[string]interface{}) (string, error) {
	if c.keys.SigningKey == nil {
		return "", fmt.Errorf("hbl merchant signing key is not loaded")
	}
	if c.keys.GatewayEncryptionKey == nil {
		return "", fmt.Errorf("hbl gateway encryption key is not loaded")
	}

	now := time.Now()
	builder := jwt.NewBuilder().
		Issuer(c.apiKey).
		Audience([]string{HBLAudience}).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(envelopeTTL)).
		Claim("CompanyApiKey", c.apiKey)
	for k, v := range payload {
		builder = builder.Claim(k, v)
	}
	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("building request claims: %w", err)
	}

	sigHdrs := jws.NewHeaders()
	_ = sigHdrs.Set(jws.TypeKey, "JWT")
	_ = sigHdrs.Set(jws.KeyIDKey, c.keyID)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.PS256, c.keys.SigningKey, jws.WithProtectedHeaders(sigHdrs)))
	if err != nil {
		return "", fmt.Errorf("signing request claims: %w", err)
	}

	encHdrs := jwe.NewHeaders()
	_ = encHdrs.Set(jwe.KeyIDKey, c.keyID)
	envelope, err := jwe.Encrypt(signed,
		jwe.WithKey(jwa.RSA_OAEP, c.keys.GatewayEncryptionKey),
		jwe.WithContentEncryption(jwa.A128CBC_HS256),
		jwe.WithProtectedHeaders(encHdrs),
	)
	if err != nil {
		return "", fmt.Errorf("encrypting signed token: %w", err)
	}
	return string(envelope), nil
}

// Open decrypts and verifies an inbound envelope, returning the claim
// set. Decryption failure and signature/time-window failure surface as
// distinct error kinds; neither is ever "not found".
func (c *HBLEnvelopeCodec) Open(envelope []byte) (map[string]interface{}, error) {
	return c.open(envelope, true)
}

// OpenDiagnostic skips time-validity claims so that gateway error
// envelopes returned after long delays can still be inspected. The
// signature is still verified. Results from this path are for
// diagnostics only and must never be accepted as a success outcome.
func (c *HBLEnvelopeCodec) OpenDiagnostic(envelope []byte) (map[string]interface{}, error) {
	return c.open(envelope, false)
}

func (c *HBLEnvelopeCodec) open(envelope []byte, validate bool) (map[string]interface{}, error) {
	if c.keys.DecryptionKey == nil {
		return nil, fmt.Errorf("hbl merchant decryption key is not loaded")
	}
	if c.keys.GatewaySigningKey == nil {
		return nil, fmt.Errorf("hbl gateway signing key is not loaded")
	}

	plaintext, err := jwe.Decrypt(envelope, jwe.WithKey(jwa.RSA_OAEP, c.keys.DecryptionKey))
	if err != nil {
		return nil, apperrors.Gateway("Envelope decryption failed", err)
	}

	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.PS256, c.keys.GatewaySigningKey),
		jwt.WithValidate(validate),
	}
	if validate {
		opts = append(opts, jwt.WithAudience(HBLAudience))
	}
	token, err := jwt.Parse(plaintext, opts...)
	if err != nil {
		return nil, apperrors.Verification("Envelope signature verification failed", err)
	}
	return token.PrivateClaims(), nil
}

// decodeClaims maps a claim set onto a typed struct via JSON.
func decodeClaims(claims map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
