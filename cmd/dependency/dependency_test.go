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
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"d7y.io/hypersearch/search/config"
)

func TestBindFlagsAndConfig(t *testing.T) {
	defer viper.Reset()
	assert := assert.New(t)

	cfg := config.New()
	cmd := &cobra.Command{Use: "foo"}
	cmd.Flags().String("training", "", "")
	cmd.Flags().Int("workers", 0, "")
	assert.NoError(cmd.Flags().Set("training", "bar.csv"))
	viper.Set("grid.costs", []float64{1, 2})

	assert.NoError(BindFlagsAndConfig(cmd, map[string]string{
		"dataset.training": "training",
		"search.workers":   "workers",
	}, cfg))
	assert.Equal("bar.csv", cfg.Dataset.Training)
	assert.Equal(0, cfg.Search.Workers)
	assert.Equal([]float64{1, 2}, cfg.Grid.Costs)
	assert.Equal(config.DefaultGridGammas, cfg.Grid.Gammas)
	assert.Equal(config.DefaultPatternFolds, cfg.Pattern.Folds)

	assert.Error(BindFlagsAndConfig(cmd, map[string]string{"dataset.validation": "validation"}, cfg))
}

func TestInitMonitor(t *testing.T) {
	stop := InitMonitor(false, 0)
	assert.NotNil(t, stop)
	stop()
}
