package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// ConnectIPSConfig holds merchant credentials and endpoints for the
// ConnectIPS interbank switch. The signing key comes either from a
// PEM-encoded env var (possibly newline-escaped) or from the creditor
// PFX bundle.
type ConnectIPSConfig struct {
	MerchantID        string
	AppID             string
	AppName           string
	BasicAuthPassword string // validation API basic-auth secret
	CreditorPassword  string // PFX bundle password
	GatewayURL        string
	ValidationURL     string
	PrivateKeyPEM     string
	PFXPath           string
}

// HBLConfig holds merchant credentials and endpoints for the HBL PACO
// hosted-payment-page service. Key material is PEM via env (possibly
// newline-escaped) or file paths.
type HBLConfig struct {
	BaseURL                  string
	APIKey                   string
	KeyID                    string
	OfficeID                 string
	MerchantID               string
	AppID                    string
	SigningPrivateKeyPEM     string
	SigningPrivateKeyFile    string
	DecryptionPrivateKeyPEM  string
	DecryptionPrivateKeyFile string
	GatewayEncryptionPubPEM  string
	GatewayEncryptionPubFile string
	GatewaySigningPubPEM     string
	GatewaySigningPubFile    string
}

type Config struct {
	Port        string
	Env         string
	MongoURL    string
	MongoDB     string
	FrontendURL string

	KafkaBrokers string // comma-separated; empty disables event publishing
	KafkaTopic   string

	ConnectIPS ConnectIPSConfig
	HBL        HBLConfig
}

// LoadConfig reads .env (if present) and the environment, validating
// eagerly so missing gateway secrets fail at startup rather than on the
// first payment request.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	isProd := os.Getenv("ENV") == "production"

	cfg := &Config{
		Port:        getEnv("PORT", "8087"),
		Env:         getEnv("ENV", "development"),
		MongoURL:    os.Getenv("MONGO_URL"),
		MongoDB:     getEnv("MONGO_DB", "payments"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		KafkaBrokers: os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_PAYMENT_TOPIC", "payment-events"),

		ConnectIPS: ConnectIPSConfig{
			MerchantID:        os.Getenv("CONNECTIPS_MERCHANT_ID"),
			AppID:             os.Getenv("CONNECTIPS_APP_ID"),
			AppName:           os.Getenv("CONNECTIPS_APP_NAME"),
			BasicAuthPassword: os.Getenv("CONNECTIPS_BASIC_AUTH_PASSWORD"),
			CreditorPassword:  os.Getenv("CONNECTIPS_CREDITOR_PASSWORD"),
			GatewayURL:        getEnv("CONNECTIPS_GATEWAY_URL", "https://uat.connectips.com/connectipswebgw/loginpage"),
			ValidationURL:     getEnv("CONNECTIPS_VALIDATION_URL", "https://uat.connectips.com/connectipswebws/api/creditor/validatetxn"),
			PrivateKeyPEM:     os.Getenv("CONNECTIPS_PRIVATE_KEY"),
			PFXPath:           os.Getenv("CONNECTIPS_PFX_PATH"),
		},

		HBL: HBLConfig{
			BaseURL:                  pickEnv(isProd, "HBL_PROD_BASE_URL", "HBL_UAT_BASE_URL"),
			KeyID:                    pickEnv(isProd, "HBL_PROD_KEY_ID", "HBL_UAT_KEY_ID"),
			APIKey:                   os.Getenv("HBL_API_KEY"),
			OfficeID:                 os.Getenv("HBL_OFFICE_ID"),
			MerchantID:               os.Getenv("HBL_MERCHANT_ID"),
			AppID:                    os.Getenv("HBL_APP_ID"),
			SigningPrivateKeyPEM:     os.Getenv("HBL_SIGNING_PRIVATE_KEY"),
			SigningPrivateKeyFile:    os.Getenv("HBL_SIGNING_PRIVATE_KEY_FILE"),
			DecryptionPrivateKeyPEM:  os.Getenv("HBL_DECRYPTION_PRIVATE_KEY"),
			DecryptionPrivateKeyFile: os.Getenv("HBL_DECRYPTION_PRIVATE_KEY_FILE"),
			GatewayEncryptionPubPEM:  os.Getenv("HBL_GATEWAY_ENCRYPTION_PUBLIC_KEY"),
			GatewayEncryptionPubFile: os.Getenv("HBL_GATEWAY_ENCRYPTION_PUBLIC_KEY_FILE"),
			GatewaySigningPubPEM:     os.Getenv("HBL_GATEWAY_SIGNING_PUBLIC_KEY"),
			GatewaySigningPubFile:    os.Getenv("HBL_GATEWAY_SIGNING_PUBLIC_KEY_FILE"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string

	require := func(name, val string) {
		if val == "" {
			missing = append(missing, name)
		}
	}

	require("MONGO_URL", c.MongoURL)
	require("CONNECTIPS_MERCHANT_ID", c.ConnectIPS.MerchantID)
	require("CONNECTIPS_APP_ID", c.ConnectIPS.AppID)
	require("CONNECTIPS_APP_NAME", c.ConnectIPS.AppName)
	require("CONNECTIPS_BASIC_AUTH_PASSWORD", c.ConnectIPS.BasicAuthPassword)
	if c.ConnectIPS.PrivateKeyPEM == "" && c.ConnectIPS.PFXPath == "" {
		missing = append(missing, "CONNECTIPS_PRIVATE_KEY or CONNECTIPS_PFX_PATH")
	}

	require("HBL_API_KEY", c.HBL.APIKey)
	require("HBL_OFFICE_ID", c.HBL.OfficeID)
	require("HBL_MERCHANT_ID", c.HBL.MerchantID)
	if c.HBL.BaseURL == "" {
		missing = append(missing, "HBL_UAT_BASE_URL/HBL_PROD_BASE_URL")
	}
	if c.HBL.KeyID == "" {
		missing = append(missing, "HBL_UAT_KEY_ID/HBL_PROD_KEY_ID")
	}
	if c.HBL.SigningPrivateKeyPEM == "" && c.HBL.SigningPrivateKeyFile == "" {
		missing = append(missing, "HBL_SIGNING_PRIVATE_KEY")
	}
	if c.HBL.DecryptionPrivateKeyPEM == "" && c.HBL.DecryptionPrivateKeyFile == "" {
		missing = append(missing, "HBL_DECRYPTION_PRIVATE_KEY")
	}
	if c.HBL.GatewayEncryptionPubPEM == "" && c.HBL.GatewayEncryptionPubFile == "" {
		missing = append(missing, "HBL_GATEWAY_ENCRYPTION_PUBLIC_KEY")
	}
	if c.HBL.GatewaySigningPubPEM == "" && c.HBL.GatewaySigningPubFile == "" {
		missing = append(missing, "HBL_GATEWAY_SIGNING_PUBLIC_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func pickEnv(prod bool, prodKey, uatKey string) string {
	if prod {
		return os.Getenv(prodKey)
	}
	return os.Getenv(uatKey)
}
