package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/amplifihq/coinswap/internal/aggregator"
	"github.com/amplifihq/coinswap/internal/ai"
	"github.com/amplifihq/coinswap/internal/cache"
	"github.com/amplifihq/coinswap/internal/config"
	"github.com/amplifihq/coinswap/internal/custodial"
	"github.com/amplifihq/coinswap/internal/flags"
	"github.com/amplifihq/coinswap/internal/quote"
	"github.com/amplifihq/coinswap/internal/registry"
	"github.com/amplifihq/coinswap/internal/relay"
	"github.com/amplifihq/coinswap/internal/server"
	"github.com/amplifihq/coinswap/internal/swap"
	"github.com/amplifihq/coinswap/internal/wallet"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	rclient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   0,
	})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	swapCache, err := cache.NewSwapCache(rclient, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create swap cache")
	}

	flagStore, err := flags.NewStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create flags store")
	}

	w, err := wallet.NewWalletFromEnv()
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize wallet")
	}

	reg, err := registry.Load(cfg.TokenConfigPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to build token registry")
	}

	aggClient := aggregator.NewClient(cfg.AggregatorBaseURL, cfg.AggregatorAPIKey)

	// Pool relay is optional; without it every leg goes to the aggregator.
	var relayClient *relay.Client
	var poolQuoter quote.PoolQuoter
	if cfg.RelayBaseURL != "" {
		relayClient = relay.NewClient(cfg.RelayBaseURL, cfg.RelayAPIKey)
		poolQuoter = relayClient
	}

	provider := quote.NewProvider(aggClient, poolQuoter, reg, swapCache, logger)

	engineCfg := swap.Config{
		Wallet:         w,
		Quoter:         provider,
		Instructions:   aggClient,
		State:          swapCache,
		Feed:           swapCache,
		Flags:          flagStore,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         logger,
	}
	if relayClient != nil {
		engineCfg.Relay = relayClient
	}

	// Custodial flows need the wallet key service to authorize transfers.
	if cfg.KeyServiceURL != "" {
		signer := custodial.NewKeyServiceSigner(cfg.KeyServiceURL, cfg.KeyServiceAPIKey)
		engineCfg.Custodian = custodial.NewService(signer, w, relayClient, logger)
	}

	// Telemetry sink is best-effort; the API still serves without it.
	if chStore, err := cache.NewClickHouseStore(cfg.ClickHouseAddr, cfg.ClickHouseDatabase, cfg.ClickHouseUsername, cfg.ClickHousePassword, logger); err != nil {
		logger.WithError(err).Warn("ClickHouse unavailable, execution telemetry disabled")
	} else {
		engineCfg.Telemetry = chStore
		defer chStore.Close()
	}

	engine, err := swap.NewEngine(engineCfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to create swap engine")
	}

	var agent *ai.Agent
	aiBase := ai.AgentConfig{
		ClickHouseAddr:     cfg.ClickHouseAddr,
		ClickHouseDatabase: cfg.ClickHouseDatabase,
		ClickHouseUsername: cfg.ClickHouseUsername,
		ClickHousePassword: cfg.ClickHousePassword,
		OpenRouterAPIKey:   cfg.OpenRouterAPIKey,
		Model:              "openai/gpt-4.1-mini",
		Logger:             logger,
	}
	if cfg.OpenRouterAPIKey != "" {
		a, err := ai.NewAgent(ctx, aiBase)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize ops agent")
		} else {
			agent = a
			defer func() {
				_ = agent.Close()
			}()
		}
	}

	h := &server.Handlers{
		Engine:       engine,
		Quotes:       provider,
		Cache:        swapCache,
		Flags:        flagStore,
		AI:           agent,
		AIBaseConfig: aiBase,
		DevMode:      cfg.DevMode,
		Logger:       logger,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
