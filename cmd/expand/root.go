package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agenthands/expand/internal/config"
	"github.com/agenthands/expand/internal/core"
	"github.com/agenthands/expand/internal/core/common"
	"github.com/agenthands/expand/internal/core/model"
	"github.com/agenthands/expand/internal/logger"
)

type app struct {
	cfgFile string
	logMode string

	cfg *config.Config
	log *logger.Logger
	out io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	rootCmd := &cobra.Command{
		Use:           "expand",
		Short:         "Answer one-hop query graphs against knowledge providers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default $CONFIG_PATH or config/config.toml)")
	rootCmd.PersistentFlags().StringVar(&a.logMode, "log-mode", "", "dev or prod; overrides the config file")

	rootCmd.AddCommand(newOneHopCmd(a))
	rootCmd.AddCommand(newSingleNodeCmd(a))
	rootCmd.AddCommand(newCheckCmd(a))
	return rootCmd
}

func (a *app) init() error {
	path := a.cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/config.toml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if a.logMode != "" {
		cfg.Logging.Mode = a.logMode
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(cfg.Logging.Mode)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	a.cfg = cfg
	a.log = lg
	return nil
}

func (a *app) expander(ctx context.Context) (*core.Expander, error) {
	return core.New(ctx, a.cfg, a.log)
}

// readQueryGraph accepts either a bare query graph or one wrapped as
// {"message": {"query_graph": ...}}. "-" reads stdin.
func readQueryGraph(path string) (model.QueryGraph, error) {
	data, err := readInput(path)
	if err != nil {
		return model.QueryGraph{}, err
	}
	req, err := common.ParseJSON[model.Request](data)
	if err == nil && req.Message.QueryGraph != nil {
		return *req.Message.QueryGraph, nil
	}
	qg, err := common.ParseJSON[model.QueryGraph](data)
	if err != nil {
		return model.QueryGraph{}, fmt.Errorf("failed to parse query graph from %s: %w", path, err)
	}
	return qg, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
