// Package config reads the server configuration from the environment.
// Every knob has a default good enough for local development against a
// stock redis.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MinPlayers      int
	MaxPlayers      int
	MaxRounds       int
	RoundDuration   time.Duration
	QuickStart      time.Duration
	QueueStaleAfter time.Duration
	RoomIdleAfter   time.Duration
	SweepInterval   time.Duration

	GuessAward int
	DrawAward  int

	// WordsFile optionally replaces the built-in word list with a CSV file.
	WordsFile string
}

func Load() Config {
	return Config{
		Addr: getEnv("ADDR", ":8080"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinPlayers:      getEnvInt("MATCH_MIN_PLAYERS", 2),
		MaxPlayers:      getEnvInt("MATCH_MAX_PLAYERS", 8),
		MaxRounds:       getEnvInt("GAME_MAX_ROUNDS", 3),
		RoundDuration:   getEnvSeconds("GAME_ROUND_SECONDS", 90*time.Second),
		QuickStart:      getEnvSeconds("MATCH_QUICK_START_SECONDS", 15*time.Second),
		QueueStaleAfter: getEnvSeconds("MATCH_QUEUE_STALE_SECONDS", 30*time.Second),
		RoomIdleAfter:   getEnvSeconds("GAME_ROOM_IDLE_SECONDS", 600*time.Second),
		SweepInterval:   getEnvSeconds("SWEEP_INTERVAL_SECONDS", 5*time.Second),

		GuessAward: getEnvInt("SCORE_GUESS_AWARD", 100),
		DrawAward:  getEnvInt("SCORE_DRAW_AWARD", 50),

		WordsFile: getEnv("WORDS_FILE", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Second
}
