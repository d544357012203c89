package main

import (
	"encoding/json"
	"fmt"

	"github.com/FedeEstrubia/imanager-argentina/internal/config"
	"github.com/FedeEstrubia/imanager-argentina/internal/infra"
	"github.com/FedeEstrubia/imanager-argentina/internal/worker"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.Flags().Int64P("limit", "n", 20, "Cantidad máxima de entradas")
}

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Muestra las reconciliaciones de stock que agotaron sus reintentos",
	RunE:  runDLQ,
}

func runDLQ(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()

	limit, _ := cmd.Flags().GetInt64("limit")
	ctx := cmd.Context()
	total, err := worker.DLQLength(ctx, rdb, worker.QueueStockReconciliation)
	if err != nil {
		return err
	}
	entries, err := worker.PeekDLQ(ctx, rdb, worker.QueueStockReconciliation, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d entradas en %s%s\n", total, worker.DLQPrefix, worker.QueueStockReconciliation)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
