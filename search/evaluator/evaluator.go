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

//go:generate mockgen -destination mocks/evaluator_mock.go -source evaluator.go -package mocks

package evaluator

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/evaluation"
)

const (
	// AccuracyName is the overall accuracy evaluator, in percent.
	AccuracyName = "accuracy"

	// GeometricMeanName is the geometric mean of per class recall.
	GeometricMeanName = "geometric-mean"

	// PrecisionName is the precision of one class, written precision:<class>.
	PrecisionName = "precision"

	// RecallName is the recall of one class, written recall:<class>.
	RecallName = "recall"

	// MSEName is the mean squared error of a float class attribute.
	MSEName = "mse"

	// DefaultName is the evaluator used when none is configured.
	DefaultName = AccuracyName
)

var (
	// ErrUnknownEvaluator is returned by New for an unsupported name.
	ErrUnknownEvaluator = errors.New("unknown evaluator")

	// ErrInvalidScore is returned when a metric is not a finite number.
	ErrInvalidScore = errors.New("model NAN")
)

// Predictor produces a prediction grid aligned row by row with its input.
type Predictor interface {
	Predict(base.FixedDataGrid) (base.FixedDataGrid, error)
}

// Evaluator scores a model against a labelled dataset.
type Evaluator interface {
	// Name returns the registry name of the evaluator.
	Name() string

	// Order returns the direction in which scores improve.
	Order() Order

	// Evaluate predicts data with model and scores the predictions.
	Evaluate(model Predictor, data base.FixedDataGrid) (Score, error)
}

// New returns the evaluator registered under name.
func New(name string) (Evaluator, error) {
	kind, class, _ := strings.Cut(name, ":")
	switch kind {
	case AccuracyName:
		return newClassification(name, accuracy), nil
	case GeometricMeanName:
		return newClassification(name, geometricMean), nil
	case PrecisionName, RecallName:
		if class == "" {
			return nil, fmt.Errorf("%w: %s requires a class, like %s:1", ErrUnknownEvaluator, kind, kind)
		}

		metric := func(cm evaluation.ConfusionMatrix) float64 { return precision(cm, class) }
		if kind == RecallName {
			metric = func(cm evaluation.ConfusionMatrix) float64 { return recall(cm, class) }
		}

		return newClassification(name, metric), nil
	case MSEName:
		return &mse{}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEvaluator, name)
}

// classification scores the confusion matrix of a prediction.
type classification struct {
	name   string
	metric func(evaluation.ConfusionMatrix) float64
}

func newClassification(name string, metric func(evaluation.ConfusionMatrix) float64) Evaluator {
	return &classification{name: name, metric: metric}
}

func (c *classification) Name() string {
	return c.name
}

func (c *classification) Order() Order {
	return HigherIsBetter
}

func (c *classification) Evaluate(model Predictor, data base.FixedDataGrid) (Score, error) {
	predictions, err := predict(model, data)
	if err != nil {
		return Score{}, err
	}

	cm, err := evaluation.GetConfusionMatrix(data, predictions)
	if err != nil {
		return Score{}, err
	}

	return finite(c.metric(cm), HigherIsBetter)
}

// mse is the regression evaluator, lower is better.
type mse struct{}

func (m *mse) Name() string {
	return MSEName
}

func (m *mse) Order() Order {
	return LowerIsBetter
}

func (m *mse) Evaluate(model Predictor, data base.FixedDataGrid) (Score, error) {
	predictions, err := predict(model, data)
	if err != nil {
		return Score{}, err
	}

	expected, err := floatClass(data)
	if err != nil {
		return Score{}, err
	}

	actual, err := floatClass(predictions)
	if err != nil {
		return Score{}, err
	}

	var sum float64
	for i := range expected {
		sum += math.Pow(expected[i]-actual[i], 2)
	}

	return finite(sum/float64(len(expected)), LowerIsBetter)
}

func predict(model Predictor, data base.FixedDataGrid) (base.FixedDataGrid, error) {
	if model == nil {
		return nil, errors.New("no fitted model")
	}

	_, rows := data.Size()
	if rows == 0 {
		return nil, errors.New("empty evaluation dataset")
	}

	predictions, err := model.Predict(data)
	if err != nil {
		return nil, err
	}

	if predictions == nil {
		return nil, errors.New("model returned no predictions")
	}

	if _, predicted := predictions.Size(); predicted != rows {
		return nil, fmt.Errorf("model predicted %d rows, want %d", predicted, rows)
	}

	return predictions, nil
}

func floatClass(grid base.FixedDataGrid) ([]float64, error) {
	classAttrs := grid.AllClassAttributes()
	if len(classAttrs) != 1 {
		return nil, errors.New("only 1 class variable is permitted")
	}

	if _, ok := classAttrs[0].(*base.FloatAttribute); !ok {
		return nil, fmt.Errorf("%s requires a float class attribute", MSEName)
	}

	spec, err := grid.GetAttribute(classAttrs[0])
	if err != nil {
		return nil, err
	}

	_, rows := grid.Size()
	values := make([]float64, rows)
	for i := 0; i < rows; i++ {
		values[i] = base.UnpackBytesToFloat(grid.Get(spec, i))
	}

	return values, nil
}

func finite(value float64, order Order) (Score, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Score{}, ErrInvalidScore
	}

	return Score{Value: value, Order: order}, nil
}

// accuracy returns the percentage of correctly classified rows.
func accuracy(cm evaluation.ConfusionMatrix) float64 {
	if len(cm) == 0 {
		return 0
	}

	return 100 * evaluation.GetAccuracy(cm)
}

// geometricMean returns the geometric mean of the recall of every class
// present in the reference data.
func geometricMean(cm evaluation.ConfusionMatrix) float64 {
	classes := make([]string, 0, len(cm))
	for class := range cm {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	recalls := make(stats.Float64Data, 0, len(classes))
	for _, class := range classes {
		recalls = append(recalls, recall(cm, class))
	}

	gm, err := stats.GeometricMean(recalls)
	if err != nil {
		return 0
	}

	return gm
}

// precision returns TP / (TP + FP) of class, 0 when class was never predicted.
func precision(cm evaluation.ConfusionMatrix, class string) float64 {
	tp := evaluation.GetTruePositives(class, cm)
	fp := evaluation.GetFalsePositives(class, cm)
	if tp+fp == 0 {
		return 0
	}

	return evaluation.GetPrecision(class, cm)
}

// recall returns TP / (TP + FN) of class, 0 when class is absent.
func recall(cm evaluation.ConfusionMatrix, class string) float64 {
	tp := evaluation.GetTruePositives(class, cm)
	fn := evaluation.GetFalseNegatives(class, cm)
	if tp+fn == 0 {
		return 0
	}

	return evaluation.GetRecall(class, cm)
}
