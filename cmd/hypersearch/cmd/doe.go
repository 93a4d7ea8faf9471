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

	"github.com/spf13/cobra"

	"d7y.io/hypersearch/cmd/dependency"
	"d7y.io/hypersearch/pkg/types"
	"d7y.io/hypersearch/search"
	"d7y.io/hypersearch/search/config"
	"d7y.io/hypersearch/search/dataset"
	"d7y.io/hypersearch/search/evaluator"
	"d7y.io/hypersearch/search/trainer"
)

var doeCmd = &cobra.Command{
	Use:   "doe",
	Short: "cross validated pattern search over cost and gamma",
	Long: `Doe splits the training set into folds and evaluates a 13 point stencil
around the current center every round, moving the center to the best pair and shrinking
the stencil by the square root of two. Bounds are base 2 exponents unless log2Scale is off.`,
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := dependency.BindFlagsAndConfig(cmd, doeFlags, cfg); err != nil {
			return err
		}

		if cfg.Dataset.Training == "" {
			return errors.New("dataset requires parameter training")
		}

		return runSearch(cmd, types.PatternSearchMode, trainer.New(patternTrainerOptions(cfg)...), runPatternSearch)
	},
}

// doeFlags maps config keys to the flags of the doe command.
var doeFlags = map[string]string{
	"dataset.training":      "training",
	"report.output":         "output",
	"report.model":          "model",
	"search.workers":        "workers",
	"search.evaluator":      "evaluator",
	"pattern.folds":         "folds",
	"pattern.maxIterations": "max-iterations",
	"pattern.retrainWhole":  "retrain-whole",
	"pattern.shuffle":       "shuffle",
	"pattern.seed":          "seed",
}

func init() {
	flags := doeCmd.Flags()
	flags.String("training", cfg.Dataset.Training, "the path of the training csv")
	flags.String("output", cfg.Report.Output, "the path of the score table csv")
	flags.String("model", cfg.Report.Model, "the path of the best model json")
	flags.Int("workers", cfg.Search.Workers, "the number of concurrent training jobs, 0 represents one per logical cpu")
	flags.String("evaluator", cfg.Search.Evaluator, "the scoring metric, one of accuracy, geometric-mean, precision:<class>, recall:<class>, mse")
	flags.Int("folds", cfg.Pattern.Folds, "the number of cross validation folds")
	flags.Int("max-iterations", cfg.Pattern.MaxIterations, "the number of search rounds")
	flags.Bool("retrain-whole", cfg.Pattern.RetrainWhole, "retrain the best pair on the whole training set")
	flags.Bool("shuffle", cfg.Pattern.Shuffle, "shuffle rows before splitting into folds")
	flags.Int64("seed", cfg.Pattern.Seed, "the shuffle seed")
}

func runPatternSearch(ctx context.Context, s *search.Searcher, ev evaluator.Evaluator) (*search.Result, error) {
	data, err := dataset.Load(cfg.Dataset.Training, cfg.Dataset.HasHeaders)
	if err != nil {
		return nil, err
	}

	return s.PatternSearch(ctx, data, patternOptions(cfg, ev))
}

func patternOptions(conf *config.Config, ev evaluator.Evaluator) search.PatternOptions {
	var options []dataset.Option
	if conf.Pattern.Shuffle {
		options = append(options, dataset.WithShuffle(conf.Pattern.Seed))
	}

	return search.PatternOptions{
		Folds:         conf.Pattern.Folds,
		CostMin:       conf.Pattern.CostMin,
		CostMax:       conf.Pattern.CostMax,
		GammaMin:      conf.Pattern.GammaMin,
		GammaMax:      conf.Pattern.GammaMax,
		Evaluator:     ev,
		MaxIterations: conf.Pattern.MaxIterations,
		Splitter:      dataset.NewSplitter(options...),
		RetrainWhole:  conf.Pattern.RetrainWhole,
	}
}

// patternTrainerOptions maps bound exponents to parameters unless log2Scale is off.
func patternTrainerOptions(conf *config.Config) []trainer.Option {
	options := []trainer.Option{trainer.WithEpochs(conf.Search.Epochs)}
	if conf.Pattern.Log2Scale {
		options = append(options, trainer.WithLog2Scale())
	}

	return options
}
