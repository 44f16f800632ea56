package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sketchmatch/server/internal/broadcast"
	"github.com/sketchmatch/server/internal/config"
	"github.com/sketchmatch/server/internal/game"
	"github.com/sketchmatch/server/internal/kv"
	"github.com/sketchmatch/server/internal/server"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	logger := log.With().Str("service", "sketchmatch").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
	}

	store := kv.NewRedis(client)
	coordinator := broadcast.NewCoordinator(broadcast.NewRedisPublisher(client), logger)

	words := game.NewStaticWords(time.Now().UnixNano())
	if cfg.WordsFile != "" {
		list, err := game.LoadWordsFile(cfg.WordsFile)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.WordsFile).Msg("load words file")
		}
		words = game.NewStaticWords(time.Now().UnixNano(), list...)
		logger.Info().Int("words", len(list)).Str("path", cfg.WordsFile).Msg("word list loaded")
	}

	svc := game.NewService(store, coordinator, words, game.Config{
		MinPlayers:      cfg.MinPlayers,
		MaxPlayers:      cfg.MaxPlayers,
		MaxRounds:       cfg.MaxRounds,
		RoundDuration:   cfg.RoundDuration,
		QuickStart:      cfg.QuickStart,
		QueueStaleAfter: cfg.QueueStaleAfter,
		RoomIdleAfter:   cfg.RoomIdleAfter,
		GuessAward:      cfg.GuessAward,
		DrawAward:       cfg.DrawAward,
	}, logger)

	sweeper := game.NewSweeper(svc, cfg.SweepInterval, logger)
	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(svc, broadcast.NewRedisSubscriber(client), logger).RegisterRoutes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	logger.Info().Str("addr", cfg.Addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited")
	}
	logger.Info().Msg("bye")
}
