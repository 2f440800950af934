package config

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// ConnectIPSKeys is the merchant signing material for the token gateway.
type ConnectIPSKeys struct {
	SigningKey *rsa.PrivateKey
}

// HBLKeys is the four-key set for the JOSE gateway: the merchant signs
// and decrypts, the gateway encrypts to us and signs its responses.
type HBLKeys struct {
	SigningKey           *rsa.PrivateKey
	DecryptionKey        *rsa.PrivateKey
	GatewayEncryptionKey *rsa.PublicKey
	GatewaySigningKey    *rsa.PublicKey
}

// KeyBundle is loaded once at startup and passed by dependency
// injection. Keys never change during a process lifetime, so the bundle
// is read-only shared state.
type KeyBundle struct {
	ConnectIPS ConnectIPSKeys
	HBL        HBLKeys
}

// LoadKeyBundle resolves and parses all gateway key material. Any
// missing or malformed key is fatal for startup.
func LoadKeyBundle(cfg *Config) (*KeyBundle, error) {
	bundle := &KeyBundle{}

	cipsKey, err := loadConnectIPSPrivateKey(cfg.ConnectIPS)
	if err != nil {
		return nil, fmt.Errorf("connectips signing key: %w", err)
	}
	bundle.ConnectIPS.SigningKey = cipsKey

	bundle.HBL.SigningKey, err = loadPrivateKey(cfg.HBL.SigningPrivateKeyPEM, cfg.HBL.SigningPrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("hbl signing key: %w", err)
	}
	bundle.HBL.DecryptionKey, err = loadPrivateKey(cfg.HBL.DecryptionPrivateKeyPEM, cfg.HBL.DecryptionPrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("hbl decryption key: %w", err)
	}
	bundle.HBL.GatewayEncryptionKey, err = loadPublicKey(cfg.HBL.GatewayEncryptionPubPEM, cfg.HBL.GatewayEncryptionPubFile)
	if err != nil {
		return nil, fmt.Errorf("hbl gateway encryption key: %w", err)
	}
	bundle.HBL.GatewaySigningKey, err = loadPublicKey(cfg.HBL.GatewaySigningPubPEM, cfg.HBL.GatewaySigningPubFile)
	if err != nil {
		return nil, fmt.Errorf("hbl gateway signing key: %w", err)
	}

	return bundle, nil
}

func loadConnectIPSPrivateKey(cfg ConnectIPSConfig) (*rsa.PrivateKey, error) {
	if cfg.PrivateKeyPEM != "" {
		return ParseRSAPrivateKeyPEM(cfg.PrivateKeyPEM)
	}
	data, err := os.ReadFile(cfg.PFXPath)
	if err != nil {
		return nil, fmt.Errorf("reading pfx bundle %s: %w", cfg.PFXPath, err)
	}
	key, _, _, err := pkcs12.DecodeChain(data, cfg.CreditorPassword)
	if err != nil {
		return nil, fmt.Errorf("decoding pfx bundle: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("pfx bundle holds a %T, want *rsa.PrivateKey", key)
	}
	return rsaKey, nil
}

func loadPrivateKey(pemStr, file string) (*rsa.PrivateKey, error) {
	pemStr, err := resolvePEM(pemStr, file)
	if err != nil {
		return nil, err
	}
	return ParseRSAPrivateKeyPEM(pemStr)
}

func loadPublicKey(pemStr, file string) (*rsa.PublicKey, error) {
	pemStr, err := resolvePEM(pemStr, file)
	if err != nil {
		return nil, err
	}
	return ParseRSAPublicKeyPEM(pemStr)
}

func resolvePEM(pemStr, file string) (string, error) {
	if pemStr != "" {
		return pemStr, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("reading key file %s: %w", file, err)
	}
	return string(data), nil
}

// ParseRSAPrivateKeyPEM accepts PKCS#8 or PKCS#1 private keys.
// Newline-escaped PEM from env files is normalized first.
func ParseRSAPrivateKeyPEM(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(normalizePEM(pemStr)))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("PKCS#8 key is %T, want *rsa.PrivateKey", key)
		}
		return rsaKey, nil
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// ParseRSAPublicKeyPEM accepts PKIX (SPKI) public keys.
func ParseRSAPublicKeyPEM(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(normalizePEM(pemStr)))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, want *rsa.PublicKey", pub)
	}
	return rsaPub, nil
}

func normalizePEM(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
