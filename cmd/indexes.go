package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"chatlog/internal/pkg/mongodb"
)

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create MongoDB indexes",
	Long:  `Create the conversation and turn collection indexes in the configured MongoDB database.`,
	RunE:  runIndexes,
}

func init() {
	rootCmd.AddCommand(indexesCmd)
}

func runIndexes(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}

	client, err := mongodb.New(&cfg.Mongo)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	defer func() { _ = client.Close(context.Background()) }()

	if err := mongodb.EnsureIndexes(ctx, client.Database()); err != nil {
		return err
	}

	log.Info().Str("database", cfg.Mongo.Database).Msg("indexes created")
	return nil
}
