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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"d7y.io/hypersearch/cmd/dependency"
	logger "d7y.io/hypersearch/internal/dflog"
	"d7y.io/hypersearch/pkg/dfpath"
	"d7y.io/hypersearch/pkg/types"
	"d7y.io/hypersearch/search"
	"d7y.io/hypersearch/search/evaluator"
	"d7y.io/hypersearch/search/report"
	"d7y.io/hypersearch/search/trainer"
)

const (
	// DefaultReportFileName is the score table name under the data directory.
	DefaultReportFileName = "scores.csv"

	// DefaultModelFileName is the best model name under the data directory.
	DefaultModelFileName = "model.json"
)

// searchFunc runs one search with a started searcher.
type searchFunc func(ctx context.Context, s *search.Searcher, ev evaluator.Evaluator) (*search.Result, error)

// runSearch prepares the process, runs fn and writes the report and the model.
func runSearch(cmd *cobra.Command, mode types.SearchMode, t trainer.Trainer, fn searchFunc) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	d, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	// Cancel the search on SIGINT and SIGTERM, partial results are still reported.
	dependency.SetupQuitSignalHandler(cancel)

	ev, err := evaluator.New(cfg.Search.Evaluator)
	if err != nil {
		return err
	}

	rounds := 1
	if mode == types.PatternSearchMode {
		rounds = cfg.Pattern.MaxIterations
	}

	bar := progressbar.NewOptions(rounds,
		progressbar.OptionSetDescription(fmt.Sprintf("%s search", mode)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	s := search.New(t,
		search.WithWorkers(cfg.Search.Workers),
		search.WithJobQueueSize(cfg.Search.JobQueueSize),
		search.WithObserver(func(round search.Round) {
			log := logger.With("mode", mode.String(), "iteration", round.Iteration)
			if round.Found {
				log.Infof("round evaluated %d pairs, best pair %s scored %s", len(round.Pairs), round.Best.Pair, round.Best.Score)
			} else {
				log.Infof("round evaluated no pairs")
			}
			log.Debugf("next center is %s with resolution %s", round.NextCenter, round.NextResolution)

			if err := bar.Add(1); err != nil {
				log.Warnf("update progress failed: %s", err.Error())
			}
		}),
	)
	defer s.Close()

	res, err := fn(ctx, s, ev)
	if err := bar.Finish(); err != nil {
		logger.Warnf("finish progress failed: %s", err.Error())
	}

	if res != nil {
		if err := writeReport(d, res); err != nil {
			logger.Errorf("write report failed: %s", err.Error())
		}
	}

	if err != nil {
		return err
	}

	logger.Infof("%s search %s finished after %d rounds, best pair %s scored %s", mode, res.ID, res.Iterations, res.Best.Pair, res.Best.Score)
	return writeModel(d, res.Model)
}

// outputPath returns configured, or name under the data directory when it is empty.
func outputPath(configured string, d dfpath.Dfpath, name string) string {
	if configured != "" {
		return configured
	}

	return filepath.Join(d.DataDir(), name)
}

func writeReport(d dfpath.Dfpath, res *search.Result) error {
	output := outputPath(cfg.Report.Output, d, DefaultReportFileName)

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := report.WriteCSV(f, res.Table); err != nil {
		return err
	}

	summary, err := report.Summarize(res.Table)
	if err != nil {
		return err
	}

	logger.Infof("write %d scores to %s, %d failed, min %g max %g mean %g median %g stddev %g",
		summary.Count, output, summary.Sentinels, summary.Min, summary.Max, summary.Mean, summary.Median, summary.StdDev)
	return nil
}

func writeModel(d dfpath.Dfpath, model trainer.Model) error {
	output := outputPath(cfg.Report.Model, d, DefaultModelFileName)

	b, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}

	if err := os.WriteFile(output, b, d.DataDirMode()&0666); err != nil {
		return err
	}

	logger.Infof("write model to %s", output)
	return nil
}
