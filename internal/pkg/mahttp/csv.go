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

package mahttp

import (
	"net/http"

	"ispnexporter/internal/pkg/global"
	"ispnexporter/pkg/csvfmt"
	"ispnexporter/pkg/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// FamiliesCollector returns an ordered snapshot of metric families.
type FamiliesCollector interface {
	CollectFamilies() []models.Family
}

// CSVHandlerOpts CSVHandler configuration.
type CSVHandlerOpts struct {
	// ContentType defaults to csvfmt.ContentType001.
	ContentType string
	Metadata    bool
}

// CSVHandler runs a collection per request and writes the result in
// the CSV line format.
func CSVHandler(c FamiliesCollector, opts CSVHandlerOpts) http.Handler {
	if opts.ContentType == "" {
		opts.ContentType = csvfmt.ContentType001
	}

	fn := func(w http.ResponseWriter, r *http.Request) {
		families := c.CollectFamilies()

		w.Header().Set("Content-Type", opts.ContentType)
		if err := csvfmt.Encode(w, families, csvfmt.Options{Metadata: opts.Metadata}); err != nil {
			zap.S().Errorw("error writing csv response", zap.Error(err))
		}
	}

	return http.HandlerFunc(fn)
}

// NewMux routes the Prometheus and CSV expositions, each behind
// ValidationMiddleware. Extra handlers are mounted as given.
func NewMux(gatherer prometheus.Gatherer, c FamiliesCollector, conf global.RuntimeConfig, extra map[string]http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	promHandler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	mux.Handle("/metrics", ValidationMiddleware(promHandler))

	csvPath := conf.CSVPath
	if csvPath == "" {
		csvPath = global.DefaultCSVPath
	}
	mux.Handle(csvPath, ValidationMiddleware(CSVHandler(c, CSVHandlerOpts{
		ContentType: conf.CSVContentType,
		Metadata:    conf.CSVMetadata,
	})))

	for path, h := range extra {
		mux.Handle(path, ValidationMiddleware(h))
	}

	return mux
}
