// Command dexsim runs the AMM exchange simulator: an in-memory
// constant-product exchange with a layered safety pipeline (balance
// check, fork risk gate, pool math, ledger settlement), a WAL trade
// journal and an SSE reporting stream.
//
// Usage:
//
//	dexsim --config config.yaml
//	dexsim --setup (interactive wizard, writes config.gen.yaml)
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/forkguard/dexsim/config"
	"github.com/forkguard/dexsim/internal/clients"
	"github.com/forkguard/dexsim/internal/events"
	"github.com/forkguard/dexsim/internal/services/exchange"
	"github.com/forkguard/dexsim/internal/services/ledger"
	"github.com/forkguard/dexsim/internal/services/pool"
	"github.com/forkguard/dexsim/internal/services/riskgate"
	"github.com/forkguard/dexsim/internal/setup"
	"github.com/forkguard/dexsim/internal/storage/trades"
	"github.com/forkguard/dexsim/internal/web"
)

func main() {
	runSetup := flag.Bool("setup", false, "run interactive configuration wizard")

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if *runSetup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		cfg, err = config.FromFile("config.gen.yaml")
		if err != nil {
			log.Fatal(err)
		}
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("simulator failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	gate := riskgate.New(cfg.Forks, riskgate.Policy{
		BlockForks:           cfg.BlockForks,
		UnknownRiskThreshold: cfg.UnknownRiskThreshold,
	}, logger)
	for _, identity := range cfg.Genuine {
		gate.MarkGenuine(identity)
	}

	journal, err := trades.NewWALStore(cfg.WalDir)
	if err != nil {
		return err
	}
	defer journal.Close()

	broadcaster := events.NewBroadcaster(64)

	ldgr := ledger.New()
	for account, balances := range cfg.Accounts {
		for token, amount := range balances {
			if err := ldgr.Credit(account, token, amount); err != nil {
				return err
			}
		}
	}

	registry := pool.NewRegistry(cfg.FeeBps)

	exch, err := exchange.New(registry, ldgr, gate, journal, broadcaster, logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.WebAddr != "" {
		server := web.NewServer(cfg.WebAddr, journal)
		g.Go(func() error {
			logger.Info("trade stream listening", zap.String("addr", cfg.WebAddr))
			return server.Start(ctx)
		})
	}

	if cfg.ForkFeedURL != "" {
		feed := clients.NewForkFeed(cfg.ForkFeedURL, cfg.MinTVL, logger)
		g.Go(func() error {
			return feed.RunRefresher(ctx, cfg.RefreshInterval, gate)
		})
	}

	sub := broadcaster.Subscribe()
	g.Go(func() error {
		defer broadcaster.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case event := <-sub:
				logger.Debug("event published",
					zap.String("id", event.EventID()),
					zap.String("kind", string(event.EventKind())))
			}
		}
	})

	g.Go(func() error {
		return runDemo(exch, gate, cfg, logger)
	})

	return g.Wait()
}

// runDemo seeds a market from the configured accounts and walks it
// through the full exchange surface: liquidity provision, a scripted
// swap sequence, a blocked trade against a known fork deployment, and
// a partial withdrawal.
func runDemo(exch *exchange.Exchange, gate *riskgate.Gate, cfg config.Config, logger *zap.Logger) error {
	accounts := make([]string, 0, len(cfg.Accounts))
	for account := range cfg.Accounts {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	if len(accounts) < 2 {
		logger.Info("demo needs at least two configured accounts, skipping")
		return nil
	}
	lp, trader := accounts[0], accounts[1]

	tokens := make([]string, 0, len(cfg.Accounts[lp]))
	for token := range cfg.Accounts[lp] {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	if len(tokens) < 2 {
		logger.Info("demo needs at least two tokens, skipping")
		return nil
	}
	token0, token1 := tokens[0], tokens[1]

	half := decimal.NewFromInt(2)
	shares, err := exch.ProvideLiquidity(lp, token0, token1,
		cfg.Accounts[lp][token0].Div(half), cfg.Accounts[lp][token1].Div(half))
	if err != nil {
		return err
	}

	// scripted swaps in both directions, 1% of the trader's balance each
	fraction := decimal.NewFromInt(100)
	for i := 0; i < 5; i++ {
		in, out := token0, token1
		if i%2 == 1 {
			in, out = token1, token0
		}
		amount := cfg.Accounts[trader][in].Div(fraction)
		if _, err := exch.SafeSwap(trader, in, out, amount); err != nil {
			return err
		}
	}

	demoForkPool(exch, gate, cfg, lp, trader, token0, logger)

	p, err := exch.Registry().Get(token0, token1)
	if err != nil {
		return err
	}
	if _, _, err := exch.RemoveLiquidity(lp, p.PairKey(), shares.Div(half)); err != nil {
		return err
	}

	for _, p := range exch.Registry().All() {
		state := p.State()
		logger.Info("final pool state",
			zap.String("pool", state.PairKey),
			zap.String("reserve0", state.Reserve0),
			zap.String("reserve1", state.Reserve1),
			zap.String("total_shares", state.TotalShares))
	}
	return nil
}

// demoForkPool stands up a pool whose identity matches a known fork
// prefix and shows the gate rejecting a funded trade against it.
func demoForkPool(exch *exchange.Exchange, gate *riskgate.Gate, cfg config.Config, lp, trader, token string, logger *zap.Logger) {
	const (
		forkToken    = "FRK"
		forkIdentity = "0x795065df4bc541a43b95e21e8d6a9b2b7a4e6e9c"
		forkPrefix   = "0x795065"
	)

	if !cfg.BlockForks {
		logger.Info("fork blocking disabled, skipping fork demo")
		return
	}

	seed := decimal.NewFromInt(1000)
	if err := exch.Ledger().Credit(lp, forkToken, seed); err != nil {
		logger.Warn("fork demo skipped", zap.Error(err))
		return
	}
	if err := exch.Ledger().Credit(trader, forkToken, seed); err != nil {
		logger.Warn("fork demo skipped", zap.Error(err))
		return
	}

	if _, err := exch.ProvideLiquidity(lp, token, forkToken,
		decimal.NewFromInt(1), decimal.NewFromInt(100)); err != nil {
		logger.Warn("fork demo skipped", zap.Error(err))
		return
	}

	p, err := exch.Registry().Get(token, forkToken)
	if err != nil {
		logger.Warn("fork demo skipped", zap.Error(err))
		return
	}
	p.SetIdentity(forkIdentity)

	table := riskgate.Table{
		forkPrefix: {Name: "SashimiSwap", ForkedFrom: "SushiSwap"},
	}
	for prefix, record := range cfg.Forks {
		table[prefix] = record
	}
	gate.UpdateTable(table)

	_, err = exch.SafeSwap(trader, forkToken, token, decimal.NewFromInt(10))
	if err != nil {
		logger.Info("fork trade rejected as expected", zap.Error(err))
		return
	}
	logger.Warn("fork trade unexpectedly passed the gate")
}
