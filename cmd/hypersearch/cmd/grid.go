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
	logger "d7y.io/hypersearch/internal/dflog"
	"d7y.io/hypersearch/pkg/types"
	"d7y.io/hypersearch/search"
	"d7y.io/hypersearch/search/config"
	"d7y.io/hypersearch/search/dataset"
	"d7y.io/hypersearch/search/evaluator"
	"d7y.io/hypersearch/search/report"
	"d7y.io/hypersearch/search/trainer"
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "evaluate every cost and gamma candidate pair",
	Long: `Grid trains one model per candidate pair on the training set and scores it
on the validation set. Candidates are read from the grid section of the config.`,
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := dependency.BindFlagsAndConfig(cmd, gridFlags, cfg); err != nil {
			return err
		}

		if cfg.Dataset.Training == "" {
			return errors.New("dataset requires parameter training")
		}

		if cfg.Dataset.Validation == "" {
			return errors.New("dataset requires parameter validation")
		}

		t := trainer.New(trainer.WithEpochs(cfg.Search.Epochs))
		return runSearch(cmd, types.GridSearchMode, t, runGridSearch)
	},
}

// gridFlags maps config keys to the flags of the grid command.
var gridFlags = map[string]string{
	"dataset.training":   "training",
	"dataset.validation": "validation",
	"report.output":      "output",
	"report.model":       "model",
	"search.workers":     "workers",
	"search.evaluator":   "evaluator",
	"grid.trainWhole":    "train-whole",
}

func init() {
	flags := gridCmd.Flags()
	flags.String("training", cfg.Dataset.Training, "the path of the training csv")
	flags.String("validation", cfg.Dataset.Validation, "the path of the validation csv")
	flags.String("output", cfg.Report.Output, "the path of the score table csv")
	flags.String("model", cfg.Report.Model, "the path of the best model json")
	flags.Int("workers", cfg.Search.Workers, "the number of concurrent training jobs, 0 represents one per logical cpu")
	flags.String("evaluator", cfg.Search.Evaluator, "the scoring metric, one of accuracy, geometric-mean, precision:<class>, recall:<class>, mse")
	flags.Bool("train-whole", cfg.Grid.TrainWhole, "retrain the best pair on training and validation data")
}

func runGridSearch(ctx context.Context, s *search.Searcher, ev evaluator.Evaluator) (*search.Result, error) {
	training, err := dataset.Load(cfg.Dataset.Training, cfg.Dataset.HasHeaders)
	if err != nil {
		return nil, err
	}

	validation, err := dataset.Load(cfg.Dataset.Validation, cfg.Dataset.HasHeaders)
	if err != nil {
		return nil, err
	}

	res, err := s.GridSearch(ctx, training, validation, gridOptions(cfg, ev))
	if err != nil {
		return res, err
	}

	if !logger.IsDebug() {
		return res, nil
	}

	matrix, err := report.Matrix(res.Table, cfg.Grid.Costs, cfg.Grid.Gammas)
	if err != nil {
		return res, err
	}

	for i, row := range matrix {
		logger.Debugf("cost = %g: %v", cfg.Grid.Costs[i], row)
	}

	return res, nil
}

func gridOptions(conf *config.Config, ev evaluator.Evaluator) search.GridOptions {
	return search.GridOptions{
		Costs:      conf.Grid.Costs,
		Gammas:     conf.Grid.Gammas,
		Evaluator:  ev,
		TrainWhole: conf.Grid.TrainWhole,
	}
}
