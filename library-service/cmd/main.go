package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/azaliaz/lms/library-service/internal/auth"
	"github.com/azaliaz/lms/library-service/internal/config"
	"github.com/azaliaz/lms/library-service/internal/logger"
	"github.com/azaliaz/lms/library-service/internal/server"
	"github.com/azaliaz/lms/library-service/internal/storage"
)

func main() {
	cfg, err := config.ReadConfig()
	if err != nil {
		log.Fatal(err)
	}
	log := logger.Get(cfg.Debug)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
		<-c

		log.Debug().Msg("ctx cancel; catch os signal")
		cancel()
	}()

	log.Debug().Any("cfg", cfg).Send()

	stor, closeStor := openStorage(ctx, cfg, log)
	defer closeStor()

	revoker, closeRevoker := openRevoker(ctx, cfg, log)
	defer closeRevoker()

	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL, revoker)
	serv := server.New(*cfg, stor, tokens)

	group, gCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return serv.Run(gCtx)
	})
	group.Go(func() error {
		<-gCtx.Done()
		return serv.ShutdownServer()
	})

	if err = group.Wait(); err != nil {
		log.Info().Str("stopping reason", err.Error()).Msg("server stopped")
		return
	}
	log.Info().Msg("server stopped")
}

// openStorage connects the backend named by the DSN scheme and falls back
// to memory when the database cannot be reached.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (server.Storage, func()) {
	switch storage.DriverFor(cfg.DBDsn) {
	case storage.DriverMongo:
		stor, err := storage.NewMongo(ctx, cfg.DBDsn)
		if err != nil {
			log.Error().Err(err).Msg("connecting to mongo failed, using in-memory storage")
			break
		}
		log.Info().Msg("using mongo storage")
		return stor, func() {
			if err := stor.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("closing mongo failed")
			}
		}
	case storage.DriverPostgres:
		if err := storage.Migrations(cfg.DBDsn, cfg.MigratePath); err != nil {
			log.Error().Err(err).Msg("migrations failed, using in-memory storage")
			break
		}
		stor, err := storage.NewDB(ctx, cfg.DBDsn)
		if err != nil {
			log.Error().Err(err).Msg("connecting to data base failed, using in-memory storage")
			break
		}
		log.Info().Msg("using postgres storage")
		return stor, stor.Close
	}
	log.Warn().Msg("using in-memory storage, data is lost on restart")
	return storage.New(), func() {}
}

func openRevoker(ctx context.Context, cfg *config.Config, log zerolog.Logger) (auth.TokenRevoker, func()) {
	if cfg.RedisAddr == "" {
		return auth.NewMemoryTokenRevoker(), func() {}
	}
	rdb := auth.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
	if err := rdb.Ping(ctx); err != nil {
		log.Error().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, revoked tokens kept in memory")
		_ = rdb.Close()
		return auth.NewMemoryTokenRevoker(), func() {}
	}
	return rdb, func() { _ = rdb.Close() }
}
