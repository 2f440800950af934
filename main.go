package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"payment-gateway-service/config"
	"payment-gateway-service/controllers"
	"payment-gateway-service/database"
	"payment-gateway-service/kafka"
	"payment-gateway-service/logger"
	"payment-gateway-service/repository"
	"payment-gateway-service/routes"
	"payment-gateway-service/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[PaymentGateway] Failed to load config: ", err)
	}

	logger.Initialize(cfg.Env)
	defer logger.Log.Sync()

	keys, err := config.LoadKeyBundle(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to load gateway key material", zap.Error(err))
	}

	if err := database.ConnectWithConfig(cfg.MongoURL, cfg.MongoDB); err != nil {
		logger.Log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer database.Close()

	indexCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := database.EnsureIndexes(indexCtx); err != nil {
		cancel()
		logger.Log.Fatal("Failed to ensure indexes", zap.Error(err))
	}
	cancel()

	// Event publishing is optional; without brokers the reconciler runs
	// with a nil publisher.
	var events services.EventPublisher
	if cfg.KafkaBrokers != "" {
		producer := kafka.NewPaymentEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic, logger.Log)
		defer producer.Close()
		events = producer
	}

	userRepo := repository.NewUserRepository(database.DB, database.UsersCollection)
	walletRepo := repository.NewWalletRepository(database.DB, database.WalletTransactionsCollection)
	cipsTxnRepo := repository.NewTransactionRepository(database.DB, database.TransactionsCollection)
	hblTxnRepo := repository.NewTransactionRepository(database.DB, database.HBLTransactionsCollection)

	tokenEngine := services.NewConnectIPSTokenEngine(keys.ConnectIPS.SigningKey)
	cipsService := services.NewConnectIPSService(cfg.ConnectIPS, tokenEngine, cipsTxnRepo, userRepo, logger.Log)
	cipsRecon := services.NewReconciliationService(cipsTxnRepo, walletRepo, userRepo, events, "ConnectIPS Payment Gateway", logger.Log)

	joseCodec := services.NewHBLEnvelopeCodec(keys.HBL, cfg.HBL.APIKey, cfg.HBL.KeyID)
	hblService := services.NewHBLService(cfg.HBL, joseCodec, hblTxnRepo, userRepo, logger.Log)
	hblRecon := services.NewReconciliationService(hblTxnRepo, walletRepo, userRepo, events, "HBL Payment Gateway", logger.Log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	cipsController := &controllers.ConnectIPSController{
		Gateway:     cipsService,
		Txns:        cipsTxnRepo,
		Recon:       cipsRecon,
		FrontendURL: cfg.FrontendURL,
		Logger:      logger.Log,
	}
	hblController := &controllers.HBLController{
		Gateway:     hblService,
		Txns:        hblTxnRepo,
		Recon:       hblRecon,
		FrontendURL: cfg.FrontendURL,
		Logger:      logger.Log,
	}
	routes.RegisterPaymentRoutes(r, cipsController, hblController)

	logger.Log.Info("Payment gateway service running", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Log.Fatal("Server failed", zap.Error(err))
	}
}
