// Package collector exports cache statistics read from a management
// backend as Prometheus metrics.
package collector

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace defines the common namespace to be used by all metrics.
const namespace = "infinispan"

// CollectErr reports the collection pass that was aborted.
type CollectErr struct {
	Category string
	Pattern  string
	Err      error
}

func (c *CollectErr) Error() string {
	return fmt.Sprintf("error collecting %s caches (%s): %v", c.Category, c.Pattern, c.Err)
}

func (c *CollectErr) Unwrap() error {
	return c.Err
}

type typedDesc struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
}

func (d *typedDesc) newConstMetric(value float64, labels ...string) (prometheus.Metric, error) {
	return prometheus.NewConstMetric(d.desc, d.valueType, value, labels...)
}

var (
	initOnce sync.Once
	initErr  error
)

// Initialize registers c with reg the first time it is called. Later
// calls do nothing and return the result of the first registration.
func Initialize(reg prometheus.Registerer, c prometheus.Collector) error {
	initOnce.Do(func() {
		initErr = reg.Register(c)
	})

	return initErr
}
