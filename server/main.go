package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configDir := flag.String("config", ".", "Directory holding "+ConfigFile)
	mode := flag.String("mode", "report", "Run mode: report or serve")
	hashPass := flag.String("hash-passphrase", "", "Print the bcrypt hash of a spectator passphrase and exit")
	flag.Parse()

	if *hashPass != "" {
		hash, err := HashPassphrase(*hashPass)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	sc := ReferenceScenario()
	if cfg.Scenario.Path != "" {
		sc, err = LoadScenario(cfg.Scenario.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Scenario.Path).Msg("load scenario")
		}
	}

	var db *DB
	if cfg.DB.Path != "" {
		db, err = OpenDB(cfg.DB.Path, log)
		if err != nil {
			log.Fatal().Err(err).Msg("open journal")
		}
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "report":
		err = runReport(ctx, sc, db, log)
	case "serve":
		err = serve(ctx, cfg, sc, db, log)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

// runReport plays sc to completion on stdout, journalling it if db is set
func runReport(ctx context.Context, sc *Scenario, db *DB, log zerolog.Logger) error {
	id := GenerateUUID()
	battle, err := NewBattle(id, sc, log)
	if err != nil {
		return err
	}
	if db != nil {
		if err := db.CreateBattle(id, sc); err != nil {
			return fmt.Errorf("journal battle: %w", err)
		}
	}

	rep := NewReporter(os.Stdout, battle)
	runErr := battle.Run(ctx, 0, func(ev Event) error {
		if err := rep.Event(ev); err != nil {
			return err
		}
		if db != nil {
			return db.RecordEvent(ev)
		}
		return nil
	})

	status := StatusFinished
	switch {
	case errors.Is(runErr, context.Canceled):
		status = StatusCancelled
	case runErr != nil:
		status = StatusFailed
	}
	if db != nil {
		if err := db.FinishBattle(id, status, battle.StepCount()); err != nil {
			log.Error().Err(err).Msg("journal battle end")
		}
	}
	if err := rep.Finish(status); err != nil {
		return err
	}
	return runErr
}

// serve runs the spectator service until ctx is cancelled
func serve(ctx context.Context, cfg *Config, sc *Scenario, db *DB, log zerolog.Logger) error {
	if db == nil {
		return errors.New("serve mode needs db.path")
	}

	hub := NewHub(log)
	go hub.Run()

	battles := NewBattleManager(db, hub, cfg.Replay.StepInterval, log)
	auth := NewAuth(db, cfg.Spectate.Secret, cfg.Spectate.PasswordHash, cfg.Spectate.TokenTTL, log)
	srv := NewServer(cfg, hub, battles, db, auth, sc, log)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Str("public", cfg.HTTP.PublicURL).Msg("server starting")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		hub.Stop()
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	battles.Shutdown()
	hub.Stop()
	return err
}
