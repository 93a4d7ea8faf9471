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

package dependency

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/mitchellh/mapstructure"
	"github.com/phayes/freeport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	logger "d7y.io/hypersearch/internal/dflog"
	"d7y.io/hypersearch/pkg/dfpath"
)

// InitCommandAndConfig initializes flags binding and common sub cmds.
// config is a pointer to configuration struct.
func InitCommandAndConfig(cmd *cobra.Command, useConfigFile bool, config any) {
	// Initialize cobra
	cobra.OnInitialize(func() { initConfig(useConfigFile, cmd.Name(), config) })

	if !cmd.HasParent() {
		// Add common flags
		flags := cmd.PersistentFlags()
		flags.Bool("console", false, "whether logger output records to the stdout")
		flags.Bool("verbose", false, "whether logger use debug level and enable pprof")
		flags.Int("pprof-port", 0, "listen port for pprof and statsview in verbose mode, 0 represents random port")
		flags.String("config", "", fmt.Sprintf("the path of configuration file with yaml extension name, default is %s, it can also be set by env var: %s", filepath.Join(dfpath.DefaultConfigDir, cmd.Name()+".yaml"), strings.ToUpper(cmd.Name()+"_config")))

		// Bind common flags
		for key, name := range map[string]string{
			"console":   "console",
			"verbose":   "verbose",
			"pprofPort": "pprof-port",
			"config":    "config",
		} {
			if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
				panic(fmt.Errorf("bind common flags to viper: %w", err))
			}
		}

		// Config for binding env
		viper.SetEnvPrefix(cmd.Name())
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
		_ = viper.BindEnv("config")

		// Add common cmds only on root cmd
		cmd.AddCommand(VersionCmd)
	}
}

// BindFlagsAndConfig binds command flags to config keys, like
// "dataset.training", and unmarshals the config again. It is called by the
// executing command since subcommands share config keys.
func BindFlagsAndConfig(cmd *cobra.Command, keys map[string]string, config any) error {
	for key, name := range keys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			return fmt.Errorf("flag %s not found", name)
		}

		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}

		if err := viper.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := viper.Unmarshal(config, initDecoderConfig); err != nil {
		return fmt.Errorf("unmarshal config to struct: %w", err)
	}

	return nil
}

// InitMonitor starts pprof and statsview in verbose mode, the returned
// function stops them.
func InitMonitor(verbose bool, pprofPort int) func() {
	if !verbose {
		return func() {}
	}

	logger.SetLevel(zapcore.DebugLevel)

	if pprofPort == 0 {
		pprofPort, _ = freeport.GetFreePort()
	}

	debugAddr := fmt.Sprintf("localhost:%d", pprofPort)
	viewer.SetConfiguration(viewer.WithAddr(debugAddr))

	logger.With("pprof", fmt.Sprintf("http://%s/debug/pprof", debugAddr),
		"statsview", fmt.Sprintf("http://%s/debug/statsview", debugAddr)).
		Infof("enable pprof at %s", debugAddr)

	vm := statsview.New()
	go func() {
		if err := vm.Start(); err != nil {
			logger.Warnf("serve pprof error: %s", err)
		}
	}()

	return func() {
		vm.Stop()
	}
}

// SetupQuitSignalHandler calls handler once on the first SIGINT or SIGTERM.
func SetupQuitSignalHandler(handler func()) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var done bool
		for sig := range signals {
			logger.Warnf("receive %s signal", sig)
			if !done {
				done = true
				handler()
				logger.Warnf("handle signal %s finish", sig)
			}
		}
	}()
}

func initConfig(useConfigFile bool, name string, config any) {
	// Use config file and read once.
	if useConfigFile {
		cfgFile := viper.GetString("config")
		if cfgFile != "" {
			// Use config file from the flag.
			viper.SetConfigFile(cfgFile)
		} else {
			viper.AddConfigPath(dfpath.DefaultConfigDir)
			viper.SetConfigName(name)
			viper.SetConfigType("yaml")
		}

		// If a config file is found, read it in.
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				panic(fmt.Errorf("viper read config: %w", err))
			}
		}
	}

	if err := viper.Unmarshal(config, initDecoderConfig); err != nil {
		panic(fmt.Errorf("unmarshal config to struct: %w", err))
	}
}

func initDecoderConfig(dc *mapstructure.DecoderConfig) {
	// Slices from the config replace the defaults instead of overlaying them.
	dc.ZeroFields = true
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}
