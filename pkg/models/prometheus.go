// Copyright 2022 Metrika Inc.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package models

import (
	"errors"
	"fmt"
)

// ErrLabelArity is returned when a sample's label values do not match
// the label names of the family it is added to.
var ErrLabelArity = errors.New("label values do not match family label names")

// MetricType is used for recognizing the metric type.
type MetricType int

const (
	Unknown MetricType = iota
	Gauge
	Counter
	Histogram
	Summary
)

// MetricMap maps exposition type names to a MetricType.
var MetricMap = map[string]MetricType{
	"counter":   Counter,
	"gauge":     Gauge,
	"histogram": Histogram,
	"summary":   Summary,
}

// String returns the exposition type name. Anything not known is "untyped".
func (t MetricType) String() string {
	switch t {
	case Gauge:
		return "gauge"
	case Counter:
		return "counter"
	case Summary:
		return "summary"
	case Histogram:
		return "histogram"
	default:
		return "untyped"
	}
}

// Sample is a single labeled observation. LabelNames and LabelValues
// are matched positionally.
type Sample struct {
	Name        string
	LabelNames  []string
	LabelValues []string
	Value       float64
	TimestampMs *int64
}

// Family groups samples sharing a name, help text, type and label schema.
type Family struct {
	Name       string
	Help       string
	Type       MetricType
	LabelNames []string
	Samples    []Sample
}

// NewGaugeFamily returns an empty gauge family with the given label schema.
func NewGaugeFamily(name, help string, labelNames ...string) *Family {
	return &Family{
		Name:       name,
		Help:       help,
		Type:       Gauge,
		LabelNames: labelNames,
	}
}

// AddMetric appends a sample named after the family. The label values
// must have the arity of the family's label names.
func (f *Family) AddMetric(labelValues []string, value float64) error {
	if len(labelValues) != len(f.LabelNames) {
		return fmt.Errorf("%w: %s expects %d, got %d", ErrLabelArity, f.Name, len(f.LabelNames), len(labelValues))
	}

	f.Samples = append(f.Samples, Sample{
		Name:        f.Name,
		LabelNames:  f.LabelNames,
		LabelValues: append([]string(nil), labelValues...),
		Value:       value,
	})

	return nil
}
