package main

import (
	"log"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"snaprpc/server/internal/broker"
	"snaprpc/server/internal/config"
	"snaprpc/server/internal/db"
	"snaprpc/server/internal/observability"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "snaprpc",
		Short: "snaprpc - permitted JSON-RPC methods for snaps and dapps",
		Long: `snaprpc dispatches the permitted wallet_ and snap_ JSON-RPC methods for
connected origins, enforcing snap-only access and merging snap permission
requests per origin.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			observability.Init()
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	cmd.AddCommand(newMethodsCommand())
	cmd.AddCommand(newReplayCommand(&configPath))
	cmd.AddCommand(newMigrateCommand(&configPath))

	return cmd
}

// newHost builds a host from the configuration. With a database URL the gorm
// store is used, otherwise state lives in memory for the process lifetime.
func newHost(cfg *config.Config) (*broker.Host, func(), error) {
	var store broker.Store
	cleanup := func() {}

	if cfg.Database.URL != "" {
		if err := db.InitEncryptionKey(cfg.Database.StateEncryptionKey); err != nil {
			return nil, nil, err
		}
		database, err := db.Open(cfg.Database.URL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open database")
		}
		s := db.NewStore(database)
		if err := s.HealthCheck(); err != nil {
			return nil, nil, errors.Wrap(err, "database health check")
		}
		if sqlDB, err := database.DB(); err == nil {
			cleanup = func() { sqlDB.Close() }
		}
		store = s
		log.Printf("Database connected")
	} else {
		store = broker.NewMemoryStore()
		log.Printf("Using in-memory store")
	}

	host := broker.NewHost(store, cfg.Approver(), broker.EchoExecutor{}, cfg.HostSettings())
	return host, func() {
		host.Close()
		cleanup()
	}, nil
}
