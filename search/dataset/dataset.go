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

package dataset

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sjwhitworth/golearn/base"
)

const (
	// ClassAttributeName is the name of the class attribute built by FromRows.
	ClassAttributeName = "class"

	// featurePrefix prefixes generated feature attribute names.
	featurePrefix = "feature"
)

var (
	// ErrEmptyDataset is returned for datasets without rows.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrIncompatible is returned when two datasets have different attributes.
	ErrIncompatible = errors.New("incompatible datasets")
)

// Load parses a CSV file whose last column is the class.
func Load(path string, hasHeaders bool) (*base.DenseInstances, error) {
	instances, err := base.ParseCSVToInstances(path, hasHeaders)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", path, err)
	}

	if _, rows := instances.Size(); rows == 0 {
		return nil, fmt.Errorf("load dataset %s: %w", path, ErrEmptyDataset)
	}

	return instances, nil
}

// FromRows builds a classification dataset with float features and a
// categorical class.
func FromRows(features [][]float64, labels []string) (*base.DenseInstances, error) {
	if len(features) != len(labels) {
		return nil, fmt.Errorf("%d feature rows but %d labels", len(features), len(labels))
	}

	class := base.NewCategoricalAttribute()
	class.SetName(ClassAttributeName)

	return fromRows(features, class, func(row int) []byte {
		return class.GetSysValFromString(labels[row])
	})
}

// FromTargets builds a regression dataset with float features and a float
// class.
func FromTargets(features [][]float64, targets []float64) (*base.DenseInstances, error) {
	if len(features) != len(targets) {
		return nil, fmt.Errorf("%d feature rows but %d targets", len(features), len(targets))
	}

	return fromRows(features, base.NewFloatAttribute(ClassAttributeName), func(row int) []byte {
		return base.PackFloatToBytes(targets[row])
	})
}

func fromRows(features [][]float64, class base.Attribute, classValue func(int) []byte) (*base.DenseInstances, error) {
	if len(features) == 0 {
		return nil, ErrEmptyDataset
	}

	width := len(features[0])
	instances := base.NewDenseInstances()
	attrs := make([]base.Attribute, width)
	for i := 0; i < width; i++ {
		attrs[i] = base.NewFloatAttribute(featurePrefix + strconv.Itoa(i))
		instances.AddAttribute(attrs[i])
	}

	instances.AddAttribute(class)
	if err := instances.AddClassAttribute(class); err != nil {
		return nil, err
	}

	if err := instances.Extend(len(features)); err != nil {
		return nil, err
	}

	specs := base.ResolveAttributes(instances, attrs)
	classSpec, err := instances.GetAttribute(class)
	if err != nil {
		return nil, err
	}

	for row, values := range features {
		if len(values) != width {
			return nil, fmt.Errorf("row %d has %d features, want %d", row, len(values), width)
		}

		for i, value := range values {
			instances.Set(specs[i], row, base.PackFloatToBytes(value))
		}
		instances.Set(classSpec, row, classValue(row))
	}

	return instances, nil
}

// Concat appends the rows of b to the rows of a. Attributes are matched by
// name and values are copied through their string form, so a and b may come
// from different sources.
func Concat(a, b base.FixedDataGrid) (*base.DenseInstances, error) {
	attrs := a.AllAttributes()
	classes := make(map[string]bool)
	for _, attr := range a.AllClassAttributes() {
		classes[attr.GetName()] = true
	}

	others := make(map[string]base.Attribute)
	for _, attr := range b.AllAttributes() {
		others[attr.GetName()] = attr
	}

	if len(others) != len(attrs) {
		return nil, fmt.Errorf("%w: %d attributes and %d attributes", ErrIncompatible, len(attrs), len(others))
	}

	out := base.NewDenseInstances()
	copies := make([]base.Attribute, len(attrs))
	for i, attr := range attrs {
		other, ok := others[attr.GetName()]
		if !ok || other.GetType() != attr.GetType() {
			return nil, fmt.Errorf("%w: attribute %s", ErrIncompatible, attr.GetName())
		}

		c, err := copyAttribute(attr)
		if err != nil {
			return nil, err
		}

		copies[i] = c
		out.AddAttribute(c)
	}

	for _, c := range copies {
		if classes[c.GetName()] {
			if err := out.AddClassAttribute(c); err != nil {
				return nil, err
			}
		}
	}

	_, rowsA := a.Size()
	_, rowsB := b.Size()
	if err := out.Extend(rowsA + rowsB); err != nil {
		return nil, err
	}

	offset := 0
	for _, src := range []base.FixedDataGrid{a, b} {
		_, rows := src.Size()
		for i, c := range copies {
			srcAttr := lookup(src, attrs[i].GetName())
			from, err := src.GetAttribute(srcAttr)
			if err != nil {
				return nil, err
			}

			to, err := out.GetAttribute(c)
			if err != nil {
				return nil, err
			}

			_, float := c.(*base.FloatAttribute)
			for row := 0; row < rows; row++ {
				value := src.Get(from, row)
				if !float {
					value = c.GetSysValFromString(srcAttr.GetStringFromSysVal(value))
				}
				out.Set(to, offset+row, value)
			}
		}
		offset += rows
	}

	return out, nil
}

func lookup(grid base.FixedDataGrid, name string) base.Attribute {
	for _, attr := range grid.AllAttributes() {
		if attr.GetName() == name {
			return attr
		}
	}

	return nil
}

func copyAttribute(attr base.Attribute) (base.Attribute, error) {
	switch a := attr.(type) {
	case *base.FloatAttribute:
		c := base.NewFloatAttribute(a.GetName())
		c.Precision = a.Precision
		return c, nil
	case *base.CategoricalAttribute:
		c := base.NewCategoricalAttribute()
		c.SetName(a.GetName())
		return c, nil
	}

	return nil, fmt.Errorf("%w: unsupported attribute type of %s", ErrIncompatible, attr.GetName())
}
