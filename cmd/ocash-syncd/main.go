// ocash-syncd is the background wallet sync daemon: it opens a wallet
// session against a storage backend and runs internal/syncengine's
// scheduled loop across every configured chain until signalled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ocash-labs/sdk-core/internal/config"
	"github.com/ocash-labs/sdk-core/internal/entryclient"
	"github.com/ocash-labs/sdk-core/internal/eventbus"
	"github.com/ocash-labs/sdk-core/internal/obslog"
	"github.com/ocash-labs/sdk-core/internal/storage"
	"github.com/ocash-labs/sdk-core/internal/storage/memory"
	"github.com/ocash-labs/sdk-core/internal/storage/postgres"
	"github.com/ocash-labs/sdk-core/internal/syncengine"
	"github.com/ocash-labs/sdk-core/internal/wallet"
)

const (
	version = "0.1.0"
	banner  = `
   ____   _____           _       ____
  / __ \ / ____|         | |     / __ \
 | |  | | |     __ _  ___| |__  | |  | |_   _ _ __   ___ ___
 | |  | | |    / _` + "`" + ` |/ __| '_ \ | |  | | | | | '_ \ / __/ _ \
 | |__| | |___| (_| | (__| | | || |__| | |_| | | | | (_|  __/
  \____/ \_____\__,_|\___|_| |_| \____/ \__, |_| |_|\___\___|
                                         __/ |
  ocash sync daemon v%s                 |___/
`
)

// flagConfig holds the daemon's command-line configuration.
type flagConfig struct {
	ConfigPath  string
	RuntimePath string
	Seed        string
	Nonce       string
	WalletID    string
	RelayEvents bool
	RelayTopic  string
}

func main() {
	cfg := parseFlags()
	fmt.Printf(banner, version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down...")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() *flagConfig {
	cfg := &flagConfig{}
	flag.StringVar(&cfg.ConfigPath, "config", "./ocash.json", "path to the root chain/token configuration file")
	flag.StringVar(&cfg.RuntimePath, "runtime-config", "", "path to the daemon runtime settings file (optional)")
	flag.StringVar(&cfg.Seed, "seed", "", "wallet seed phrase (required)")
	flag.StringVar(&cfg.Nonce, "nonce", "default", "wallet derivation nonce")
	flag.StringVar(&cfg.WalletID, "wallet-id", "default", "storage namespace used until the wallet opens (opening re-initialises storage under the wallet's viewing address)")
	flag.BoolVar(&cfg.RelayEvents, "relay-events", false, "mirror this daemon's event bus onto a libp2p gossip topic for other local SDK processes to observe")
	flag.StringVar(&cfg.RelayTopic, "relay-topic", eventbus.DefaultTopic, "gossip topic name used when -relay-events is set")
	flag.Parse()
	return cfg
}

func run(ctx context.Context, cfg *flagConfig) error {
	if cfg.Seed == "" {
		return fmt.Errorf("ocash-syncd: -seed is required")
	}

	root, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("ocash-syncd: load config: %w", err)
	}

	runtime := config.DefaultRuntimeConfig()
	if cfg.RuntimePath != "" {
		runtime, err = config.LoadRuntimeConfig(cfg.RuntimePath)
		if err != nil {
			return fmt.Errorf("ocash-syncd: load runtime config: %w", err)
		}
	}

	log, err := obslog.New(&obslog.Config{Level: runtime.LogLevel, Production: true})
	if err != nil {
		return fmt.Errorf("ocash-syncd: logger: %w", err)
	}
	defer log.Sync()

	adapter, err := openAdapter(ctx, runtime)
	if err != nil {
		return err
	}
	if closer, ok := adapter.(interface{ Close(context.Context) error }); ok {
		defer closer.Close(ctx)
	}
	if err := adapter.Init(ctx, cfg.WalletID); err != nil {
		return fmt.Errorf("ocash-syncd: init storage: %w", err)
	}

	bus := eventbus.New()
	bus.Subscribe(eventbus.KindSyncProgress, func(ev eventbus.Event) {
		if ev.SyncProgress == nil {
			return
		}
		log.Infow("sync progress",
			"chain_id", ev.SyncProgress.ChainID,
			"resource", ev.SyncProgress.Resource,
			"status", ev.SyncProgress.Status,
			"rows", ev.SyncProgress.Rows,
		)
	})
	bus.Subscribe(eventbus.KindError, func(ev eventbus.Event) {
		if ev.Error == nil {
			return
		}
		log.Errorw("sync error", "code", ev.Error.Code, "stage", ev.Error.Stage, "message", ev.Error.Message)
	})

	if cfg.RelayEvents {
		relay, err := eventbus.NewRelay(ctx, bus, cfg.RelayTopic)
		if err != nil {
			return fmt.Errorf("ocash-syncd: start event relay: %w", err)
		}
		defer relay.Close()
		log.Infow("event relay started", "topic", cfg.RelayTopic)
	}

	registries := make(map[uint64]map[string]wallet.PoolInfo, len(root.Chains))
	for _, chainCfg := range root.Chains {
		reg, err := wallet.BuildRegistry(chainCfg)
		if err != nil {
			return fmt.Errorf("ocash-syncd: chain %d: build registry: %w", chainCfg.ChainID, err)
		}
		registries[chainCfg.ChainID] = reg
	}

	w := wallet.New(adapter, bus, nil)
	addr, err := w.Open(ctx, cfg.Seed, cfg.Nonce, registries)
	if err != nil {
		return fmt.Errorf("ocash-syncd: open wallet: %w", err)
	}
	defer w.Close(ctx)
	log.Infow("wallet opened", "address", addr.HexString())

	var sources []syncengine.ChainSource
	for _, chainCfg := range root.Chains {
		entry := entryclient.New(chainCfg.EntryURL, nil)
		sources = append(sources, syncengine.ChainSource{
			ChainID: chainCfg.ChainID,
			Address: addr,
			Entry:   syncengine.EntryClientSource{Client: entry},
		})
	}

	engine := syncengine.New(w, adapter, bus, sources)
	engine.Start(ctx, nil, float64(runtime.SyncPollMS), syncengine.Config{PageSize: runtime.SyncPageSize})
	log.Infow("sync engine started", "chains", len(sources), "poll_ms", runtime.SyncPollMS)

	fmt.Println("ocash-syncd running. Press Ctrl+C to stop.")
	<-ctx.Done()
	engine.Stop()
	log.Infow("sync engine stopped")
	return nil
}

func openAdapter(ctx context.Context, runtime *config.RuntimeConfig) (storage.Adapter, error) {
	if runtime.PostgresDSN == "" {
		return memory.New(), nil
	}
	pgCfg := postgres.DefaultConfig()
	pgCfg.DSN = runtime.PostgresDSN
	store, err := postgres.Connect(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("ocash-syncd: connect postgres: %w", err)
	}
	return store, nil
}
