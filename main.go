package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"showdown-arena/arena"
	"showdown-arena/auth"
	"showdown-arena/config"
	"showdown-arena/data"
	"showdown-arena/game"
	"showdown-arena/presence"
	"showdown-arena/server"
	"showdown-arena/session"
	"showdown-arena/storage"
	"showdown-arena/storage/sqlite"
	"showdown-arena/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("arena stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "showdown-arena", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("flush traces", "error", err)
		}
	}()

	catalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()
	if cfg.SeedDemo {
		if err := seedDemo(ctx, store, catalog, cfg, logger); err != nil {
			return err
		}
	}

	var sessions session.Store
	if cfg.RedisURL != "" {
		rs, err := session.NewRedisStore(ctx, cfg.RedisURL, "")
		if err != nil {
			return err
		}
		defer rs.Close()
		sessions = rs
		logger.Info("session store", "backend", "redis")
	} else {
		sessions = session.NewMemoryStore()
		logger.Warn("ARENA_REDIS_URL not set, using in-memory session store")
	}

	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	hub := server.NewHub(logger)
	orch := arena.New(presence.NewMemory(), sessions, store, catalog, hub, arena.Config{
		ActionTimeout:   cfg.ActionTimeout,
		DisconnectGrace: cfg.DisconnectGrace,
		ChallengeTTL:    cfg.ChallengeTTL,
		RoomTTL:         cfg.RoomTTL,
	}, arena.WithLogger(logger))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(hub, orch, verifier, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("arena listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.CloseAll()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}

func loadCatalog(path string) (*data.Catalog, error) {
	if path == "" {
		return data.Default()
	}
	c, err := data.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return c, nil
}

type demoPlayer struct {
	id      presence.Identity
	species string
	moves   []string
}

var demoPlayers = []demoPlayer{
	{presence.Identity{UserID: "demo-red", Username: "red"}, "charmander", []string{"ember", "scratch", "growl", "smokescreen"}},
	{presence.Identity{UserID: "demo-blue", Username: "blue"}, "squirtle", []string{"water-gun", "tackle", "bubble-beam"}},
	{presence.Identity{UserID: "demo-green", Username: "green"}, "bulbasaur", []string{"vine-whip", "razor-leaf", "growl"}},
}

// seedDemo writes a lead creature for each demo player and logs a day-long
// token for each so local clients can connect.
func seedDemo(ctx context.Context, store *sqlite.Store, catalog *data.Catalog, cfg config.Config, logger *slog.Logger) error {
	const level = 15
	for i, p := range demoPlayers {
		species, ok := catalog.Species(p.species)
		if !ok {
			return fmt.Errorf("demo species %s missing from catalog", p.species)
		}
		moves, err := catalog.Moves(p.moves)
		if err != nil {
			return err
		}
		slots := make([]storage.MoveSlot, 0, len(moves))
		for _, m := range moves {
			slots = append(slots, storage.MoveSlot{ID: m.ID, PP: m.PP})
		}
		hp := game.DeriveStat(species.Base.HP, level, true)
		if err := store.SeedCreature(ctx, 0, storage.LeadCreature{
			OwnerID:    p.id.UserID,
			CreatureID: fmt.Sprintf("demo-%d", i+1),
			SpeciesID:  species.ID,
			Level:      level,
			Experience: game.ExperienceForLevel(level),
			HP:         hp,
			MaxHP:      hp,
			BaseStats:  species.Base,
			Moves:      slots,
		}); err != nil {
			return err
		}
		token, err := auth.IssueToken(cfg.JWTSecret, cfg.JWTIssuer, p.id, 24*time.Hour, time.Now())
		if err != nil {
			return err
		}
		logger.Info("demo player", "user", p.id.UserID, "username", p.id.Username, "token", token)
	}
	return nil
}
