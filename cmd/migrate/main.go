// cmd/migrate applies the embedded SQL migrations.
//
//	go run ./cmd/migrate [up|down|reset|status|version]
package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"grimoire-backend/internal/config"
	"grimoire-backend/internal/infrastructure/database"
	"grimoire-backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("APP_ENV"))

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load database config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db := database.NewPostgresDB(dbConfig)
	if err := db.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx, command); err != nil {
		log.Error().Err(err).Str("command", command).Msg("Migration failed")
		db.Close()
		os.Exit(1)
	}

	log.Info().Str("command", command).Msg("Migration finished")
}
