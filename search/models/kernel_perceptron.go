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

package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/mitchellh/mapstructure"
	"github.com/sjwhitworth/golearn/base"

	logger "d7y.io/hypersearch/internal/dflog"
	pkgmath "d7y.io/hypersearch/pkg/math"
)

const (
	// DefaultEpochs is the default number of passes over the training data.
	DefaultEpochs = 20
)

var (
	// ErrInvalidParameters is returned for a non positive or NaN cost or gamma.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrNotFitted is returned when predicting with an untrained model.
	ErrNotFitted = errors.New("no fitted model")
)

// KernelPerceptron is a one-vs-rest budget kernel perceptron with an RBF
// kernel exp(-gamma * |x - y|^2). Every dual coefficient is capped at cost.
type KernelPerceptron struct {
	Fitted         bool                   `json:"fitted" mapstructure:"fitted"`
	Cost           float64                `json:"cost" mapstructure:"cost"`
	Gamma          float64                `json:"gamma" mapstructure:"gamma"`
	Epochs         int                    `json:"epochs" mapstructure:"epochs"`
	Classes        []string               `json:"classes" mapstructure:"classes"`
	SupportVectors [][]float64            `json:"support_vectors" mapstructure:"support_vectors"`
	Coefficients   [][]float64            `json:"coefficients" mapstructure:"coefficients"`
	Attrs          []*base.FloatAttribute `json:"attrs" mapstructure:"-"`
}

// NewKernelPerceptron returns an untrained model.
func NewKernelPerceptron(cost, gamma float64, epochs int) (*KernelPerceptron, error) {
	if !(cost > 0) || !(gamma > 0) || math.IsInf(cost, 0) || math.IsInf(gamma, 0) {
		return nil, fmt.Errorf("%w: cost %g, gamma %g", ErrInvalidParameters, cost, gamma)
	}

	if epochs <= 0 {
		epochs = DefaultEpochs
	}

	return &KernelPerceptron{
		Cost:   cost,
		Gamma:  gamma,
		Epochs: epochs,
	}, nil
}

// Fit trains the model on inst. ctx is checked between epochs.
func (kp *KernelPerceptron) Fit(ctx context.Context, inst base.FixedDataGrid) error {
	_, rows := inst.Size()
	if rows == 0 {
		return errors.New("empty training dataset")
	}

	classAttrs := inst.AllClassAttributes()
	if len(classAttrs) != 1 {
		return errors.New("only 1 class variable is permitted")
	}

	attrs := make([]*base.FloatAttribute, 0)
	for _, a := range base.NonClassAttributes(inst) {
		if f, ok := a.(*base.FloatAttribute); ok {
			attrs = append(attrs, f)
		}
	}

	if len(attrs) == 0 {
		return errors.New("no float attributes")
	}

	x, err := readRows(inst, attrs)
	if err != nil {
		return err
	}

	labels := make([]string, rows)
	seen := make(map[string]bool)
	for i := 0; i < rows; i++ {
		labels[i] = base.GetClass(inst, i)
		seen[labels[i]] = true
	}

	classes := make([]string, 0, len(seen))
	for class := range seen {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	kernel := make([][]float64, rows)
	for i := range kernel {
		kernel[i] = make([]float64, rows)
		for j := 0; j < i; j++ {
			kernel[i][j] = kernel[j][i]
		}
		for j := i; j < rows; j++ {
			kernel[i][j] = rbf(kp.Gamma, x[i], x[j])
		}
	}

	alphas := make([][]float64, len(classes))
	for c := range alphas {
		alphas[c] = make([]float64, rows)
	}

	sign := func(c, i int) float64 {
		if labels[i] == classes[c] {
			return 1
		}
		return -1
	}

	for epoch := 0; epoch < kp.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		mistakes := 0
		for i := 0; i < rows; i++ {
			for c := range classes {
				var f float64
				for j := 0; j < rows; j++ {
					if alphas[c][j] != 0 {
						f += alphas[c][j] * sign(c, j) * kernel[j][i]
					}
				}

				if sign(c, i)*f <= 0 {
					mistakes++
					alphas[c][i] = pkgmath.Clamp(alphas[c][i]+1, 0, kp.Cost)
				}
			}
		}

		if mistakes == 0 {
			logger.Debugf("kernel perceptron converged after %d epochs", epoch+1)
			break
		}
	}

	kp.SupportVectors = nil
	kp.Coefficients = make([][]float64, len(classes))
	for i := 0; i < rows; i++ {
		support := false
		for c := range classes {
			if alphas[c][i] != 0 {
				support = true
				break
			}
		}

		if !support {
			continue
		}

		kp.SupportVectors = append(kp.SupportVectors, x[i])
		for c := range classes {
			kp.Coefficients[c] = append(kp.Coefficients[c], alphas[c][i]*sign(c, i))
		}
	}

	kp.Classes = classes
	kp.Attrs = attrs
	kp.Fitted = true
	return nil
}

// Predict assigns every row of X the class with the highest decision value.
func (kp *KernelPerceptron) Predict(X base.FixedDataGrid) (base.FixedDataGrid, error) {
	if !kp.Fitted {
		return nil, ErrNotFitted
	}

	x, err := readRows(X, kp.Attrs)
	if err != nil {
		return nil, err
	}

	ret := base.GeneratePredictionVector(X)
	for i, row := range x {
		best, bestValue := 0, math.Inf(-1)
		for c := range kp.Classes {
			var f float64
			for s, sv := range kp.SupportVectors {
				f += kp.Coefficients[c][s] * rbf(kp.Gamma, sv, row)
			}

			if f > bestValue {
				best, bestValue = c, f
			}
		}

		base.SetClass(ret, i, kp.Classes[best])
	}

	return ret, nil
}

func rbf(gamma float64, a, b []float64) float64 {
	var d float64
	for i := range a {
		d += (a[i] - b[i]) * (a[i] - b[i])
	}

	return math.Exp(-gamma * d)
}

func readRows(inst base.FixedDataGrid, attrs []*base.FloatAttribute) ([][]float64, error) {
	specs := make([]base.AttributeSpec, len(attrs))
	for i, a := range attrs {
		spec, err := inst.GetAttribute(a)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", a.GetName(), err)
		}
		specs[i] = spec
	}

	_, rows := inst.Size()
	x := make([][]float64, rows)
	err := inst.MapOverRows(specs, func(row [][]byte, i int) (bool, error) {
		values := make([]float64, len(row))
		for j, r := range row {
			values[j] = base.UnpackBytesToFloat(r)
		}

		x[i] = values
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	return x, nil
}

func (kp *KernelPerceptron) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"fitted":          kp.Fitted,
		"cost":            kp.Cost,
		"gamma":           kp.Gamma,
		"epochs":          kp.Epochs,
		"classes":         kp.Classes,
		"support_vectors": kp.SupportVectors,
		"coefficients":    kp.Coefficients,
		"attrs":           kp.marshalFloatAttributes(),
	})
}

func marshalFloatAttribute(f *base.FloatAttribute) map[string]interface{} {
	return map[string]interface{}{
		"name":      f.Name,
		"precision": f.Precision,
	}
}

func (kp *KernelPerceptron) marshalFloatAttributes() []map[string]interface{} {
	ans := make([]map[string]interface{}, len(kp.Attrs))
	for idx, attr := range kp.Attrs {
		ans[idx] = marshalFloatAttribute(attr)
	}
	return ans
}

func (kp *KernelPerceptron) UnmarshalJSON(data []byte) error {
	var d map[string]interface{}
	err := json.Unmarshal(data, &d)
	if err != nil {
		return err
	}

	err = mapstructure.Decode(d, kp)
	if err != nil {
		return err
	}

	val, ok := d["attrs"]
	if ok {
		var attrs []struct {
			Name      string `mapstructure:"name"`
			Precision int    `mapstructure:"precision"`
		}
		err = mapstructure.Decode(val, &attrs)
		if err != nil {
			return err
		}

		kp.Attrs = make([]*base.FloatAttribute, len(attrs))
		for idx, a := range attrs {
			kp.Attrs[idx] = base.NewFloatAttribute(a.Name)
			kp.Attrs[idx].Precision = a.Precision
		}
	}
	return nil
}
