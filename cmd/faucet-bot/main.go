package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"golang.org/x/sync/errgroup"

	"github.com/moonman-labs/toke-machine/pkg/bot"
	"github.com/moonman-labs/toke-machine/pkg/config"
	"github.com/moonman-labs/toke-machine/pkg/faucet"
	"github.com/moonman-labs/toke-machine/pkg/ledger"
	"github.com/moonman-labs/toke-machine/pkg/logger"
	"github.com/moonman-labs/toke-machine/pkg/store"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultMetricsAddr = "0.0.0.0:0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "Enable verbose (debug) logging")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", 60*time.Second, "Maximum time to wait for in-flight dispersals during graceful shutdown")
	flag.Parse()

	// Optional .env for local development.
	_ = godotenv.Load()

	log := logger.New(*verboseFlag)

	cfg, err := config.LoadFromEnv(*metricsAddrFlag, *verboseFlag)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		faucet.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", cfg.MetricsAddr)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Persistent store
	db, err := store.Connect(ctx, store.Config{
		Logger:  logger.WithComponent(log, "store"),
		ConnStr: cfg.Postgres.ConnStr(),
	}, cfg.Postgres.RunMigrations)
	if err != nil {
		return err
	}
	defer db.Close()

	// Ledger client
	treasury, err := ledger.ParseTreasuryKey(cfg.TreasurySecretKey)
	if err != nil {
		return err
	}
	mint, err := solana.PublicKeyFromBase58(cfg.TokenMint)
	if err != nil {
		return fmt.Errorf("invalid token mint: %w", err)
	}

	clock := clockwork.NewRealClock()
	ledgerClient, err := ledger.NewClient(ledger.ClientConfig{
		Logger:   logger.WithComponent(log, "ledger"),
		RPC:      solanarpc.New(cfg.RPCURL),
		Treasury: treasury,
		Mint:     mint,
		Clock:    clock,
	})
	if err != nil {
		return err
	}

	membership, err := ledger.NewMembershipChecker(
		logger.WithComponent(log, "membership"), cfg.DASURL, cfg.CreatorAllowList)
	if err != nil {
		return err
	}

	// Core
	calc, err := faucet.NewCalculator(faucet.CalculatorConfig{
		Logger:        logger.WithComponent(log, "calculator"),
		Store:         db,
		Ledger:        ledgerClient,
		Membership:    membership,
		Clock:         clock,
		ScaleConstant: cfg.ScaleConstant,
	})
	if err != nil {
		return err
	}

	orch, err := faucet.NewOrchestrator(faucet.OrchestratorConfig{
		Logger:     logger.WithComponent(log, "orchestrator"),
		Store:      db,
		Ledger:     ledgerClient,
		Calculator: calc,
		Clock:      clock,
	})
	if err != nil {
		return err
	}

	// Slack
	api := slack.New(cfg.SlackBotToken, slack.OptionAppLevelToken(cfg.SlackAppToken))
	authTest, err := api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test failed: %w", err)
	}
	log.Info("slack auth test successful", "user_id", authTest.UserID, "team", authTest.Team)

	socketClient := socketmode.New(api)
	sticky := bot.NewStickyManager(
		logger.WithComponent(log, "sticky"), api, cfg.FaucetChannelID, authTest.UserID)

	faucetBot, err := bot.New(bot.Config{
		Logger:            logger.WithComponent(log, "bot"),
		API:               api,
		Socket:            socketClient,
		Orchestrator:      orch,
		Sticky:            sticky,
		FaucetChannelID:   cfg.FaucetChannelID,
		AnnounceChannelID: cfg.AnnounceChannelID,
	})
	if err != nil {
		return err
	}

	publisher, err := faucet.NewPublisher(faucet.PublisherConfig{
		Logger:     logger.WithComponent(log, "status"),
		Calculator: calc,
		Sink:       sticky,
		Clock:      clock,
		Interval:   cfg.StatusInterval,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return socketClient.RunContext(gctx)
	})
	g.Go(func() error {
		return faucetBot.Run(gctx)
	})
	g.Go(func() error {
		publisher.Run(gctx)
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		log.Info("shutdown signal received, waiting for in-flight dispersals", "timeout", *shutdownTimeoutFlag)
		if faucetBot.WaitInFlight(*shutdownTimeoutFlag) {
			log.Info("all in-flight dispersals completed")
		} else {
			log.Warn("timeout waiting for in-flight dispersals, proceeding with shutdown")
		}
		log.Info("faucet bot shutting down")
		return nil
	}
	return err
}
