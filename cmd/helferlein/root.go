package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zupzup/helferlein/internal/config"
	"github.com/zupzup/helferlein/internal/export"
	"github.com/zupzup/helferlein/internal/record"
	"github.com/zupzup/helferlein/internal/record/store"
	"github.com/zupzup/helferlein/internal/render"
)

var (
	configPath string
	dataDir    string
)

var rootCmd = &cobra.Command{
	Use:           "helferlein",
	Short:         "Bookkeeping and invoicing on a plain data directory",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the config file (default: user config directory)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory, overrides the configured one")
}

// app wires the store and the services for one command invocation.
type app struct {
	cfg     *config.Config
	store   *store.Store
	records *record.Service
}

func newApp() (*app, error) {
	var (
		cfg *config.Config
		err error
	)

	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}

	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", cfg.DataDir, err)
	}

	return &app{cfg: cfg, store: st, records: record.NewService(st)}, nil
}

func (a *app) exporter() *export.Service {
	return export.NewService(a.records, a.store.Attachments(), render.NewPDF())
}
