package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/amplifihq/coinswap/internal/aggregator"
	"github.com/amplifihq/coinswap/internal/cache"
	"github.com/amplifihq/coinswap/internal/config"
	"github.com/amplifihq/coinswap/internal/custodial"
	"github.com/amplifihq/coinswap/internal/flags"
	"github.com/amplifihq/coinswap/internal/quote"
	"github.com/amplifihq/coinswap/internal/registry"
	"github.com/amplifihq/coinswap/internal/relay"
	"github.com/amplifihq/coinswap/internal/swap"
	"github.com/amplifihq/coinswap/internal/wallet"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

// resolveMint accepts a registry symbol (SOL, USDC, PLATFORM) or a raw mint
// address.
func resolveMint(reg *registry.Registry, v string) string {
	for _, t := range reg.Tokens() {
		if strings.EqualFold(t.Symbol, v) {
			return t.Mint
		}
	}
	return v
}

func main() {
	loadEnv()

	mode := flag.String("mode", "quote", "quote | execute")
	inTok := flag.String("in", "SOL", "input token symbol or mint address")
	outTok := flag.String("out", "PLATFORM", "output token symbol or mint address")
	amt := flag.Float64("amt", 0, "amount in human units (e.g. 0.1)")
	slippageBps := flag.Int("slippage-bps", 50, "slippage in bps (e.g. 50 = 0.5%)")
	owner := flag.String("owner", "", "owner wallet (ethereum address for custodial swaps)")
	custodialSrc := flag.Bool("custodial-source", false, "pull the input from the owner's custodial balance")
	custodialDst := flag.Bool("custodial-destination", false, "land the output in the owner's custodial balance")
	flag.Parse()

	if *amt <= 0 {
		fmt.Println("missing -amt (must be > 0)")
		os.Exit(2)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Println("invalid configuration:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	reg, err := registry.Load(cfg.TokenConfigPath)
	if err != nil {
		fmt.Println("failed to build token registry:", err)
		os.Exit(1)
	}

	inputMint := resolveMint(reg, *inTok)
	outputMint := resolveMint(reg, *outTok)

	aggClient := aggregator.NewClient(cfg.AggregatorBaseURL, cfg.AggregatorAPIKey)

	var relayClient *relay.Client
	var poolQuoter quote.PoolQuoter
	if cfg.RelayBaseURL != "" {
		relayClient = relay.NewClient(cfg.RelayBaseURL, cfg.RelayAPIKey)
		poolQuoter = relayClient
	}

	// Pool-state lookups come from the shared redis cache when reachable.
	var coins registry.CoinStateStore
	var flagStore *flags.Store
	rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rclient.Ping(ctx).Err(); err == nil {
		if c, err := cache.NewSwapCache(rclient, logger); err == nil {
			coins = c
		}
		flagStore, _ = flags.NewStore(rclient)
	}

	provider := quote.NewProvider(aggClient, poolQuoter, reg, coins, logger)

	switch *mode {
	case "quote":
		q, err := provider.GetQuote(ctx, inputMint, outputMint, *amt, uint16(*slippageBps))
		if err != nil {
			fmt.Println("quote failed:", err)
			os.Exit(1)
		}
		fmt.Printf("source=%s in=%s out=%s rate=%.6f impact=%.4f%%\n",
			q.Source, q.In.RawString(), q.Out.RawString(), q.Rate, q.PriceImpactPct)
		if q.FirstLeg != nil {
			fmt.Printf("  leg1 source=%s out=%s\n", q.FirstLeg.Source, q.FirstLeg.Out.RawString())
			fmt.Printf("  leg2 source=%s out=%s\n", q.SecondLeg.Source, q.SecondLeg.Out.RawString())
		}
	case "execute":
		w, err := wallet.NewWalletFromEnv()
		if err != nil {
			fmt.Println("failed to initialize wallet:", err)
			os.Exit(1)
		}

		engineCfg := swap.Config{
			Wallet:         w,
			Quoter:         provider,
			Instructions:   aggClient,
			ConfirmTimeout: cfg.ConfirmTimeout,
			Logger:         logger,
		}
		if relayClient != nil {
			engineCfg.Relay = relayClient
		}
		if flagStore != nil {
			engineCfg.Flags = flagStore
		}
		if cfg.KeyServiceURL != "" {
			signer := custodial.NewKeyServiceSigner(cfg.KeyServiceURL, cfg.KeyServiceAPIKey)
			engineCfg.Custodian = custodial.NewService(signer, w, relayClient, logger)
		}

		engine, err := swap.NewEngine(engineCfg)
		if err != nil {
			fmt.Println("failed to init swap engine:", err)
			os.Exit(1)
		}

		result, err := engine.ExecuteSwap(ctx, swap.SwapRequest{
			Owner:                *owner,
			InputMint:            inputMint,
			OutputMint:           outputMint,
			AmountUI:             *amt,
			SlippageBps:          uint16(*slippageBps),
			CustodialSource:      *custodialSrc,
			CustodialDestination: *custodialDst,
		})
		if err != nil {
			fmt.Printf("execute failed at stage=%s kind=%s: %v\n", result.Stage, result.ErrorKind, err)
			if result.Stranded != nil {
				fmt.Printf("stranded: mint=%s amount=%s (first leg %s)\n",
					result.Stranded.Mint, result.Stranded.Amount.RawString(), result.FirstLegSignature)
			}
			os.Exit(1)
		}
		fmt.Printf("status=%s route=%s sig=%s duration=%s\n",
			result.Status, result.Route, result.Signature, result.Duration)
		if result.FirstLegSignature != "" {
			fmt.Printf("first leg sig=%s\n", result.FirstLegSignature)
		}
	default:
		fmt.Println("invalid -mode (use quote|execute)")
		os.Exit(2)
	}
}
