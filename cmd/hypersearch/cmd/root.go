/*
 *     Copyright 2022 The Dragonfly Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"d7y.io/hypersearch/cmd/dependency"
	logger "d7y.io/hypersearch/internal/dflog"
	"d7y.io/hypersearch/pkg/dfpath"
	"d7y.io/hypersearch/pkg/types"
	"d7y.io/hypersearch/search/config"
	"d7y.io/hypersearch/search/metrics"
	"d7y.io/hypersearch/version"
)

var (
	// Subcommand flags take their defaults from cfg, so it is set before any init.
	cfg = config.New()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   types.HypersearchName,
	Short: "hyperparameter search for kernel classifiers",
	Long: `Hypersearch tunes the cost and gamma parameters of a kernel classifier.
The grid command evaluates every candidate pair against a validation set, the doe command
runs a cross validated pattern search that shrinks a stencil around the best pair.`,
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func init() {
	// Initialize command and config.
	dependency.InitCommandAndConfig(rootCmd, true, cfg)

	rootCmd.AddCommand(gridCmd, doeCmd)
}

// setup converts and validates the config, then initializes paths, logger,
// monitor and metrics. The returned function releases them.
func setup() (dfpath.Dfpath, func(), error) {
	// Convert config.
	if err := cfg.Convert(); err != nil {
		return nil, nil, err
	}

	// Validate config.
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	// Initialize dfpath.
	d, err := initDfpath(&cfg.Server)
	if err != nil {
		return nil, nil, err
	}
	rotateConfig := logger.LogRotateConfig{
		MaxSize:    cfg.Server.LogMaxSize,
		MaxAge:     cfg.Server.LogMaxAge,
		MaxBackups: cfg.Server.LogMaxBackups}

	// Initialize logger.
	if err := logger.InitHypersearch(cfg.Verbose, cfg.Console, d.LogDir(), rotateConfig); err != nil {
		return nil, nil, fmt.Errorf("init hypersearch logger: %w", err)
	}
	logger.RedirectStdoutAndStderr(cfg.Console, filepath.Join(d.LogDir(), types.HypersearchName))
	logger.Infof("version:\n%s", version.Version())
	logger.Infof("work home is %s, data directory is %s", d.WorkHome(), d.DataDir())

	ff := dependency.InitMonitor(cfg.Verbose, cfg.PProfPort)

	var metricsServer *http.Server
	if cfg.Metrics.Enable {
		metricsServer = metrics.New(&cfg.Metrics)
		go func() {
			logger.Infof("started metrics server at %s", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil {
				if errors.Is(err, http.ErrServerClosed) {
					return
				}
				logger.Fatalf("metrics server closed unexpect: %s", err.Error())
			}
		}()
	}

	return d, func() {
		if metricsServer != nil {
			if err := metricsServer.Shutdown(context.Background()); err != nil {
				logger.Errorf("metrics server failed to stop: %s", err.Error())
			} else {
				logger.Info("metrics server closed under request")
			}
		}

		ff()
	}, nil
}

func initDfpath(cfg *config.ServerConfig) (dfpath.Dfpath, error) {
	var options []dfpath.Option
	if cfg.WorkHome != "" {
		options = append(options, dfpath.WithWorkHome(cfg.WorkHome))
	}

	if cfg.LogDir != "" {
		options = append(options, dfpath.WithLogDir(cfg.LogDir))
	}

	if cfg.DataDir != "" {
		options = append(options, dfpath.WithDataDir(cfg.DataDir))
	}

	return dfpath.New(options...)
}
