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

// Package csvfmt writes metric families in the line format served under
// the CSV content type. Lines follow the Prometheus exposition syntax:
//
//	name{label="value",label="value",} 42
//
// Text exposition format: https://github.com/prometheus/docs/blob/main/content/docs/instrumenting/exposition_formats.md
package csvfmt

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"ispnexporter/pkg/models"
)

// ContentType001 content type the format is served with. The body is
// line-oriented exposition text, not comma separated values; the value
// is kept for scrapers configured against it. Sample values use Go's
// shortest float form, so an integral value is written as 42 rather
// than 42.0; both parse to the same float.
const ContentType001 = "text/csv; version=0.0.1; charset=utf-8"

var (
	labelValueEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)
	helpEscaper       = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
)

// Options controls optional parts of the output.
type Options struct {
	// Metadata writes "# HELP" and "# TYPE" lines before each family's
	// samples and appends sample timestamps when present.
	Metadata bool
}

// Write001 writes families in the minimal variant: sample lines only.
func Write001(w io.Writer, families []models.Family) error {
	return Encode(w, families, Options{})
}

// Encode writes families to w. The first write error is returned.
func Encode(w io.Writer, families []models.Family, opts Options) error {
	bw := bufio.NewWriter(w)

	for _, f := range families {
		if opts.Metadata {
			writeMetadata(bw, f)
		}

		for _, s := range f.Samples {
			writeSample(bw, s, opts.Metadata)
		}
	}

	return bw.Flush()
}

func writeMetadata(bw *bufio.Writer, f models.Family) {
	bw.WriteString("# HELP ")
	bw.WriteString(f.Name)
	bw.WriteByte(' ')
	helpEscaper.WriteString(bw, f.Help)
	bw.WriteByte('\n')

	bw.WriteString("# TYPE ")
	bw.WriteString(f.Name)
	bw.WriteByte(' ')
	bw.WriteString(f.Type.String())
	bw.WriteByte('\n')
}

func writeSample(bw *bufio.Writer, s models.Sample, timestamp bool) {
	bw.WriteString(s.Name)
	bw.WriteByte('{')
	for i, name := range s.LabelNames {
		var value string
		if i < len(s.LabelValues) {
			value = s.LabelValues[i]
		}

		bw.WriteString(name)
		bw.WriteString(`="`)
		labelValueEscaper.WriteString(bw, value)
		bw.WriteString(`",`)
	}
	bw.WriteString("} ")
	bw.WriteString(FormatFloat(s.Value))

	if timestamp && s.TimestampMs != nil {
		bw.WriteByte(' ')
		bw.WriteString(strconv.FormatInt(*s.TimestampMs, 10))
	}
	bw.WriteByte('\n')
}

// EscapeLabelValue escapes backslash, double-quote and line feed.
func EscapeLabelValue(s string) string {
	return labelValueEscaper.Replace(s)
}

// EscapeHelp escapes backslash and line feed.
func EscapeHelp(s string) string {
	return helpEscaper.Replace(s)
}

// FormatFloat formats f the way exposition values are written: the
// shortest representation that round-trips, with +Inf, -Inf and NaN
// spelled out.
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, +1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	case math.IsNaN(f):
		return "NaN"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}
