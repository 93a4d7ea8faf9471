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
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"d7y.io/hypersearch/cmd/dependency"
	"d7y.io/hypersearch/search/config"
	"d7y.io/hypersearch/search/dataset"
	"d7y.io/hypersearch/search/evaluator"
)

func TestDoeFlags(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	assert := assert.New(t)

	flags := doeCmd.Flags()
	for _, name := range doeFlags {
		assert.NotNil(flags.Lookup(name), "flag %s", name)
	}

	assert.NoError(flags.Set("training", "train.csv"))
	assert.NoError(flags.Set("folds", "5"))
	assert.NoError(flags.Set("max-iterations", "4"))
	assert.NoError(flags.Set("retrain-whole", "true"))
	assert.NoError(flags.Set("shuffle", "true"))
	assert.NoError(flags.Set("seed", "7"))

	conf := config.New()
	assert.NoError(dependency.BindFlagsAndConfig(doeCmd, doeFlags, conf))
	assert.Equal("train.csv", conf.Dataset.Training)
	assert.Equal(5, conf.Pattern.Folds)
	assert.Equal(4, conf.Pattern.MaxIterations)
	assert.True(conf.Pattern.RetrainWhole)
	assert.True(conf.Pattern.Shuffle)
	assert.Equal(int64(7), conf.Pattern.Seed)
	assert.Equal(float64(config.DefaultPatternCostMin), conf.Pattern.CostMin)
	assert.True(conf.Pattern.Log2Scale)
}

func TestPatternOptions(t *testing.T) {
	ev, err := evaluator.New("accuracy")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		mock     func(conf *config.Config)
		splitter dataset.Splitter
	}{
		{
			name:     "contiguous folds",
			mock:     func(conf *config.Config) {},
			splitter: dataset.NewSplitter(),
		},
		{
			name: "shuffled folds",
			mock: func(conf *config.Config) {
				conf.Pattern.Shuffle = true
				conf.Pattern.Seed = 7
			},
			splitter: dataset.NewSplitter(dataset.WithShuffle(7)),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			conf := config.New()
			conf.Pattern.Folds = 3
			conf.Pattern.MaxIterations = 6
			conf.Pattern.RetrainWhole = true
			tc.mock(conf)

			opts := patternOptions(conf, ev)
			assert.Equal(3, opts.Folds)
			assert.Equal(float64(config.DefaultPatternCostMin), opts.CostMin)
			assert.Equal(float64(config.DefaultPatternCostMax), opts.CostMax)
			assert.Equal(float64(config.DefaultPatternGammaMin), opts.GammaMin)
			assert.Equal(float64(config.DefaultPatternGammaMax), opts.GammaMax)
			assert.Equal(6, opts.MaxIterations)
			assert.True(opts.RetrainWhole)
			assert.Equal(ev, opts.Evaluator)
			assert.Equal(tc.splitter, opts.Splitter)
		})
	}
}

func TestPatternTrainerOptions(t *testing.T) {
	assert := assert.New(t)
	conf := config.New()
	assert.Len(patternTrainerOptions(conf), 2)

	conf.Pattern.Log2Scale = false
	assert.Len(patternTrainerOptions(conf), 1)
}
