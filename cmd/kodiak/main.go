// kodiak runs the bear staking economy as a standalone daemon, exposing it
// over HTTP and websocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/kodiak-network/kodiak/api"
	"github.com/kodiak-network/kodiak/core"
	"github.com/kodiak-network/kodiak/internal/flags"
	"github.com/kodiak-network/kodiak/params"
	"github.com/kodiak-network/kodiak/staking"
	"github.com/kodiak-network/kodiak/store"
)

var (
	configFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: flags.NodeCategory,
	}
	dataDirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "Data directory for the state database",
		Category: flags.NodeCategory,
	}
	httpAddrFlag = &cli.StringFlag{
		Name:     "http.addr",
		Usage:    "HTTP-RPC server listening address",
		Category: flags.APICategory,
	}
	supplyFlag = &cli.StringFlag{
		Name:     "supply",
		Usage:    "Genesis fish supply in base units (ignored once state exists)",
		Category: flags.EconomyCategory,
	}
	startFlag = &cli.Uint64Flag{
		Name:     "start",
		Usage:    "Unix start time for epoch zero (ignored once state exists)",
		Category: flags.EconomyCategory,
	}
	verbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value:    3,
		Category: flags.LoggingCategory,
	}
)

func main() {
	app := flags.NewApp("the Kodiak staking economy daemon")
	app.Flags = []cli.Flag{configFlag, dataDirFlag, httpAddrFlag, supplyFlag, startFlag, verbosityFlag}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// systemClock is a monotonically non-decreasing unix-seconds clock: a
// backwards NTP step must not rewind epoch accounting.
type systemClock struct {
	mu   sync.Mutex
	last uint64
}

func (c *systemClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := uint64(time.Now().Unix())
	if now < c.last {
		return c.last
	}
	c.last = now
	return now
}

func run(ctx *cli.Context) error {
	setupLogging(ctx.Int(verbosityFlag.Name))

	cfg, err := loadConfig(ctx.String(configFlag.Name))
	if err != nil {
		return err
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(httpAddrFlag.Name) {
		cfg.HTTPAddr = ctx.String(httpAddrFlag.Name)
	}
	if ctx.IsSet(supplyFlag.Name) {
		cfg.InitialSupply = ctx.String(supplyFlag.Name)
	}
	if ctx.IsSet(startFlag.Name) {
		cfg.StartTime = ctx.Uint64(startFlag.Name)
	}

	db, err := store.OpenLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	clock := new(systemClock)
	scfg := staking.Config{
		Econ:    params.DefaultEconomy(),
		Clock:   clock,
		Bank:    &storeBank{db: db},
		Custody: &storeCustody{db: db},
	}

	ctrl, err := buildController(scfg, db, cfg, clock)
	if err != nil {
		return err
	}

	persist := func() error {
		snap, err := ctrl.Snapshot()
		if err != nil {
			return err
		}
		return store.WriteState(db, snap)
	}

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewServer(ctrl, persist).Handler(),
	}
	go func() {
		log.Info("http server started", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if err := persist(); err != nil {
		return fmt.Errorf("final state persistence: %w", err)
	}
	return nil
}

func buildController(scfg staking.Config, db store.KeyValueStore, cfg Config, clock core.Clock) (*staking.Controller, error) {
	snap, found, err := store.ReadState(db)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if found {
		log.Info("restored economy state", "supply", snap.Supply, "units", snap.TotalUnits,
			"paused", snap.Paused, "extinctions", len(snap.Extinctions))
		return staking.NewFromSnapshot(scfg, snap)
	}

	supply, ok := new(big.Int).SetString(cfg.InitialSupply, 10)
	if !ok {
		return nil, fmt.Errorf("invalid initial supply %q", cfg.InitialSupply)
	}
	start := cfg.StartTime
	if start == 0 {
		start = clock.Now()
	}
	log.Info("starting fresh economy", "supply", supply, "start", start)
	ctrl, err := staking.New(scfg, supply, start)
	if err != nil {
		return nil, err
	}
	// Write genesis immediately so a crash before the first operation does
	// not change the start time on the next boot.
	snap, err = ctrl.Snapshot()
	if err != nil {
		return nil, err
	}
	if err := store.WriteState(db, snap); err != nil {
		return nil, err
	}
	return ctrl, nil
}

func setupLogging(verbosity int) {
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(verbosity), useColor)
	log.SetDefault(log.NewLogger(handler))
}
