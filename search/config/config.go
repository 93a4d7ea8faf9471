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

package config

import (
	"errors"
	"math"

	"d7y.io/hypersearch/cmd/dependency/base"
	"d7y.io/hypersearch/pkg/slices"
	"d7y.io/hypersearch/search/evaluator"
)

type Config struct {
	// Base options.
	base.Options `yaml:",inline" mapstructure:",squash"`

	// Search configuration.
	Search SearchConfig `yaml:"search" mapstructure:"search"`

	// Grid search configuration.
	Grid GridConfig `yaml:"grid" mapstructure:"grid"`

	// Pattern search configuration.
	Pattern PatternConfig `yaml:"pattern" mapstructure:"pattern"`

	// Dataset configuration.
	Dataset DatasetConfig `yaml:"dataset" mapstructure:"dataset"`

	// Report configuration.
	Report ReportConfig `yaml:"report" mapstructure:"report"`

	// Metrics configuration.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// Server configuration.
	Server ServerConfig `yaml:"server" mapstructure:"server"`
}

type SearchConfig struct {
	// Workers is the number of concurrent training jobs, 0 means one per logical CPU.
	Workers int `yaml:"workers" mapstructure:"workers"`

	// JobQueueSize is the capacity of the worker job queue.
	JobQueueSize int `yaml:"jobQueueSize" mapstructure:"jobQueueSize"`

	// Evaluator is the scoring metric, like accuracy or precision:1.
	Evaluator string `yaml:"evaluator" mapstructure:"evaluator"`

	// Epochs is the number of training passes of every model.
	Epochs int `yaml:"epochs" mapstructure:"epochs"`
}

type GridConfig struct {
	// Costs are the cost candidates.
	Costs []float64 `yaml:"costs" mapstructure:"costs"`

	// Gammas are the gamma candidates.
	Gammas []float64 `yaml:"gammas" mapstructure:"gammas"`

	// TrainWhole retrains the best pair on training and validation data.
	TrainWhole bool `yaml:"trainWhole" mapstructure:"trainWhole"`
}

type PatternConfig struct {
	// Folds is the number of cross validation folds.
	Folds int `yaml:"folds" mapstructure:"folds"`

	// CostMin is the lower cost bound.
	CostMin float64 `yaml:"costMin" mapstructure:"costMin"`

	// CostMax is the upper cost bound.
	CostMax float64 `yaml:"costMax" mapstructure:"costMax"`

	// GammaMin is the lower gamma bound.
	GammaMin float64 `yaml:"gammaMin" mapstructure:"gammaMin"`

	// GammaMax is the upper gamma bound.
	GammaMax float64 `yaml:"gammaMax" mapstructure:"gammaMax"`

	// MaxIterations is the number of rounds.
	MaxIterations int `yaml:"maxIterations" mapstructure:"maxIterations"`

	// Log2Scale treats bounds as base 2 exponents.
	Log2Scale bool `yaml:"log2Scale" mapstructure:"log2Scale"`

	// RetrainWhole retrains the best pair on the undivided dataset.
	RetrainWhole bool `yaml:"retrainWhole" mapstructure:"retrainWhole"`

	// Shuffle permutes rows before splitting into folds.
	Shuffle bool `yaml:"shuffle" mapstructure:"shuffle"`

	// Seed is the shuffle seed.
	Seed int64 `yaml:"seed" mapstructure:"seed"`
}

type DatasetConfig struct {
	// Training is the path of the training csv.
	Training string `yaml:"training" mapstructure:"training"`

	// Validation is the path of the validation csv, grid search only.
	Validation string `yaml:"validation" mapstructure:"validation"`

	// HasHeaders reports whether the first csv line is a header.
	HasHeaders bool `yaml:"hasHeaders" mapstructure:"hasHeaders"`
}

type ReportConfig struct {
	// Output is the path of the score table csv, empty writes scores.csv under the data directory.
	Output string `yaml:"output" mapstructure:"output"`

	// Model is the path of the best model json, empty writes model.json under the data directory.
	Model string `yaml:"model" mapstructure:"model"`
}

type MetricsConfig struct {
	// Enable metrics service.
	Enable bool `yaml:"enable" mapstructure:"enable"`

	// Metrics service address.
	Addr string `yaml:"addr" mapstructure:"addr"`
}

type ServerConfig struct {
	// Work home directory.
	WorkHome string `yaml:"workHome" mapstructure:"workHome"`

	// Log directory.
	LogDir string `yaml:"logDir" mapstructure:"logDir"`

	// Maximum size in megabytes of log files before rotation (default: 1024)
	LogMaxSize int `yaml:"logMaxSize" mapstructure:"logMaxSize"`

	// Maximum number of days to retain old log files (default: 7)
	LogMaxAge int `yaml:"logMaxAge" mapstructure:"logMaxAge"`

	// Maximum number of old log files to keep (default: 20)
	LogMaxBackups int `yaml:"logMaxBackups" mapstructure:"logMaxBackups"`

	// Data directory.
	DataDir string `yaml:"dataDir" mapstructure:"dataDir"`
}

// New default configuration.
func New() *Config {
	return &Config{
		Search: SearchConfig{
			JobQueueSize: DefaultJobQueueSize,
			Evaluator:    DefaultEvaluator,
			Epochs:       DefaultEpochs,
		},
		Grid: GridConfig{
			Costs:  append([]float64(nil), DefaultGridCosts...),
			Gammas: append([]float64(nil), DefaultGridGammas...),
		},
		Pattern: PatternConfig{
			Folds:         DefaultPatternFolds,
			CostMin:       DefaultPatternCostMin,
			CostMax:       DefaultPatternCostMax,
			GammaMin:      DefaultPatternGammaMin,
			GammaMax:      DefaultPatternGammaMax,
			MaxIterations: DefaultPatternMaxIterations,
			Log2Scale:     true,
		},
		Dataset: DatasetConfig{
			HasHeaders: true,
		},
		Metrics: MetricsConfig{
			Enable: false,
			Addr:   DefaultMetricsAddr,
		},
		Server: ServerConfig{
			LogMaxSize:    DefaultLogRotateMaxSize,
			LogMaxAge:     DefaultLogRotateMaxAge,
			LogMaxBackups: DefaultLogRotateMaxBackups,
		},
	}
}

// Validate config parameters.
func (cfg *Config) Validate() error {
	if cfg.Search.Workers <= 0 {
		return errors.New("search requires parameter workers")
	}

	if cfg.Search.JobQueueSize <= 0 {
		return errors.New("search requires parameter jobQueueSize")
	}

	if _, err := evaluator.New(cfg.Search.Evaluator); err != nil {
		return errors.New("search requires parameter evaluator")
	}

	if cfg.Search.Epochs <= 0 {
		return errors.New("search requires parameter epochs")
	}

	if len(cfg.Grid.Costs) == 0 || !allFinite(cfg.Grid.Costs) {
		return errors.New("grid requires parameter costs")
	}

	if len(cfg.Grid.Gammas) == 0 || !allFinite(cfg.Grid.Gammas) {
		return errors.New("grid requires parameter gammas")
	}

	if _, ok := slices.FindDuplicate(cfg.Grid.Costs); ok {
		return errors.New("grid requires parameter costs without duplicates")
	}

	if _, ok := slices.FindDuplicate(cfg.Grid.Gammas); ok {
		return errors.New("grid requires parameter gammas without duplicates")
	}

	if cfg.Pattern.Folds < 2 {
		return errors.New("pattern requires parameter folds")
	}

	if !allFinite([]float64{cfg.Pattern.CostMin, cfg.Pattern.CostMax}) || cfg.Pattern.CostMin > cfg.Pattern.CostMax {
		return errors.New("pattern requires parameter costMin and costMax")
	}

	if !allFinite([]float64{cfg.Pattern.GammaMin, cfg.Pattern.GammaMax}) || cfg.Pattern.GammaMin > cfg.Pattern.GammaMax {
		return errors.New("pattern requires parameter gammaMin and gammaMax")
	}

	if cfg.Pattern.MaxIterations < 0 {
		return errors.New("pattern requires parameter maxIterations")
	}

	if cfg.Metrics.Enable {
		if cfg.Metrics.Addr == "" {
			return errors.New("metrics requires parameter addr")
		}
	}

	if cfg.Server.LogMaxSize <= 0 {
		return errors.New("server requires parameter logMaxSize")
	}

	if cfg.Server.LogMaxAge <= 0 {
		return errors.New("server requires parameter logMaxAge")
	}

	if cfg.Server.LogMaxBackups <= 0 {
		return errors.New("server requires parameter logMaxBackups")
	}

	return nil
}

// Convert fills derived values.
func (cfg *Config) Convert() error {
	if cfg.Search.Workers == 0 {
		cfg.Search.Workers = DefaultWorkerNum()
	}

	if cfg.Pattern.MaxIterations == 0 {
		cfg.Pattern.MaxIterations = DefaultPatternMaxIterations
	}

	return nil
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}
