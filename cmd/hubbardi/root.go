// SPDX-License-Identifier: MIT
package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/katalvlaran/hubbardi/config"
)

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "hubbardi",
		Short: "Hubbard-I DMFT solver",
		Long: `Self-consistent DMFT with the Hubbard-I impurity solver.

Parameters are read from a YAML file (--config) and HUBBARDI_* environment
variables; results are checkpointed into a bbolt file and can be resumed.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "YAML run description")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	root.AddCommand(newRunCmd(g), newDOSCmd(g), newInspectCmd(g), newConfigCmd(g))

	return root
}

// load reads the configuration and builds the matching logger.
func (g *globals) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, err
	}
	if g.verbose {
		level = zapcore.DebugLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	log, err := zc.Build()
	if err != nil {
		return config.Config{}, nil, err
	}

	return cfg, log, nil
}
