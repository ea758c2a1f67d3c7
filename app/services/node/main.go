package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/statechain/app/services/node/handlers"
	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/genesis"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/backends"
	"github.com/ardanlabs/statechain/foundation/blockchain/state"
	"github.com/ardanlabs/statechain/foundation/blockchain/worker"
	"github.com/ardanlabs/statechain/foundation/events"
	"github.com/ardanlabs/statechain/foundation/logger"
	"github.com/ardanlabs/statechain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

// config is everything the node can be told at startup.
type config struct {
	conf.Version
	Web struct {
		ReadTimeout     time.Duration `conf:"default:5s"`
		WriteTimeout    time.Duration `conf:"default:10s"`
		IdleTimeout     time.Duration `conf:"default:120s"`
		ShutdownTimeout time.Duration `conf:"default:20s"`
		DebugHost       string        `conf:"default:0.0.0.0:7080"`
		PublicHost      string        `conf:"default:0.0.0.0:8080"`
		CORSOrigins     []string      `conf:"default:*"`
	}
	State struct {
		MinerName        string        `conf:"default:miner1"`
		DBKind           string        `conf:"default:pebble"`
		DBPath           string        `conf:"default:zblock/state.db"`
		CacheSize        int           `conf:"default:4096"`
		GenesisPath      string        `conf:"default:zblock/genesis.json"`
		AssembleInterval time.Duration `conf:"default:15s"`
	}
	NameService struct {
		Folder string `conf:"default:zblock/accounts/"`
	}
}

func main() {
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := config{
		Version: conf.Version{
			Build: build,
			Desc:  "state commitment node",
		},
	}

	help, err := conf.Parse("NODE", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service

	// Account names are the key file names in the accounts folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("loading name service: %w", err)
	}

	for accountID, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "account", accountID)
	}

	// =========================================================================
	// State

	// Every state event is logged and pushed to the websocket clients.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	st, err := openState(cfg, log, ev)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Shutdown(); err != nil {
			log.Errorw("shutdown", "status", "state shutdown", "ERROR", err)
		}
	}()

	// The worker registers itself with the state.
	worker.Run(st, cfg.State.AssembleInterval, ev)

	// =========================================================================
	// Debug Service

	go func() {
		log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)
		if err := http.ListenAndServe(cfg.Web.DebugHost, handlers.DebugMux(build, log, st)); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Public Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	public := http.Server{
		Addr: cfg.Web.PublicHost,
		Handler: handlers.PublicMux(handlers.MuxConfig{
			Shutdown: shutdown,
			Log:      log,
			State:    st,
			NS:       ns,
			Evts:     evts,
			Origins:  cfg.Web.CORSOrigins,
		}),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infow("startup", "status", "public router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Websocket clients hold their connections open until told to leave.
		evts.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// openState loads the miner key and the genesis file, opens the configured
// store and replays the chain it holds.
func openState(cfg config, log *zap.SugaredLogger, ev state.EventHandler) (*state.State, error) {
	keyPath := filepath.Join(cfg.NameService.Folder, cfg.State.MinerName+".ecdsa")
	privateKey, err := crypto.LoadECDSA(keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading miner key %s: %w", keyPath, err)
	}

	gen, err := genesis.Load(cfg.State.GenesisPath)
	if err != nil {
		return nil, fmt.Errorf("loading genesis: %w", err)
	}

	store, err := backends.Open(backends.Config{
		Kind:      cfg.State.DBKind,
		Path:      cfg.State.DBPath,
		CacheSize: cfg.State.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	log.Infow("startup", "status", "replaying chain", "kind", cfg.State.DBKind, "path", cfg.State.DBPath)

	st, err := state.New(context.Background(), state.Config{
		MinerAccountID: database.PublicKeyToAccountID(privateKey.PublicKey),
		Store:          store,
		Genesis:        gen,
		Log:            log,
		EvHandler:      ev,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("constructing state: %w", err)
	}

	return st, nil
}
