package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chatlog/internal/pkg/storefactory"
	"chatlog/internal/service"
	"chatlog/internal/service/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Print grouped chat sessions as JSON",
	Long: `Read legacy turn records from the configured store, group them into
chat sessions by day and idle gap, and print the result as JSON.`,
	RunE: runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)

	flags := sessionsCmd.Flags()
	flags.String("sender", "", "sender id to filter by (default: all senders)")
	flags.Int64("limit", service.DefaultTurnLimit, "maximum number of turns to read")
	flags.Duration("gap", 0, "idle gap that starts a new session (default: session.gap)")
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sender, _ := cmd.Flags().GetString("sender")
	limit, _ := cmd.Flags().GetInt64("limit")
	gap, _ := cmd.Flags().GetDuration("gap")
	if gap <= 0 {
		gap = cfg.Session.Gap
	}

	loc, err := cfg.Session.Location()
	if err != nil {
		return fmt.Errorf("load session timezone: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stores, err := storefactory.NewStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Type, err)
	}
	defer func() { _ = stores.Close(context.Background()) }()

	svc := service.NewTurnService(stores.Turns, session.NewGrouper(gap, loc))
	sessions, err := svc.ChatHistory(ctx, sender, limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"sessions": sessions})
}
