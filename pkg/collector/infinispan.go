package collector

import (
	"context"
	"errors"

	"ispnexporter/internal/pkg/global"
	"ispnexporter/pkg/mbean"
	"ispnexporter/pkg/models"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	categoryRemote = "remote"
	categoryLocal  = "local"
	categoryObject = "object"
	categoryTx     = "tx"

	containerKey = "cache-container"
)

var (
	cacheAttributes = []string{
		"activations",
		"averageReadTime",
		"averageRemoveTime",
		"averageReplicationTime",
		"averageWriteTime",
		"evictions",
		"hitRatio",
		"hits",
		"invalidations",
		"misses",
		"numberOfEntries",
		"numberOfEntriesInMemory",
		"passivations",
		"readWriteRatio",
		"removeHits",
		"removeMisses",
		"replicationCount",
		"replicationFailures",
		"successRatio",
		"timeSinceReset",
		"timeSinceStart",
		"writes",
	}

	localCacheAttributes = []string{
		"activations",
		"averageReadTime",
		"averageWriteTime",
		"elapsedTime",
		"hitRatio",
		"hits",
		"invalidations",
		"misses",
		"numberOfEntries",
		"passivations",
		"readWriteRatio",
		"removeHits",
		"removeMisses",
		"stores",
	}

	// jboss.as:subsystem=infinispan,cache-container=keycloak,local-cache=users,memory=object
	objectAttributes = []string{"evictions", "maxEntries", "size"}

	// jboss.as:subsystem=infinispan,cache-container=keycloak,local-cache=users,component=transaction
	txAttributes = []string{"commits", "prepares", "rollbacks"}

	labelNames = []string{"container", "cache"}

	// DefaultSkipCaches caches whose attributes fail to read on Keycloak 9.
	DefaultSkipCaches = []string{"userRevisions", "realmRevisions", "authorizationRevisions"}

	// ProbePattern matches any object of the infinispan subsystem.
	ProbePattern = mbean.MustParseObjectName("jboss.as:subsystem=infinispan,*")
)

// catalog lists metric families in output order.
var catalog = []struct {
	category   string
	prefix     string
	help       string
	attributes []string
}{
	{categoryLocal, namespace + "_local_", "Local cache object statistics", localCacheAttributes},
	{categoryRemote, namespace + "_remote_", "Remote cache statistics", cacheAttributes},
	{categoryObject, namespace + "_local_statistic_", "Object statistics", objectAttributes},
	{categoryTx, namespace + "_local_transaction_", "Transaction statistics", txAttributes},
}

type query struct {
	category    string
	pattern     string
	keyProperty string
	attributes  []string
}

// queries run in this order on every collection.
var queries = []query{
	{categoryRemote, "jboss.as:subsystem=infinispan,cache-container=*,cache=*", "cache", cacheAttributes},
	{categoryLocal, "jboss.as:subsystem=infinispan,cache-container=*,local-cache=*", "local-cache", localCacheAttributes},
	{categoryObject, "jboss.as:subsystem=infinispan,cache-container=*,local-cache=*,memory=object", "local-cache", objectAttributes},
	{categoryTx, "jboss.as:subsystem=infinispan,cache-container=*,local-cache=*,component=transaction", "local-cache", txAttributes},
}

// CacheTypeKey identifies the family an attribute of a category belongs to.
type CacheTypeKey struct {
	Category  string
	Attribute string
}

// InfinispanCollector reads cache statistics from a management backend
// on every collection. It keeps no state between collections.
type InfinispanCollector struct {
	server mbean.Server
	skip   map[string]struct{}
	descs  map[string]*typedDesc
}

// Option configures an InfinispanCollector.
type Option func(*InfinispanCollector)

// WithSkipCaches adds caches to the list of caches never read.
func WithSkipCaches(caches ...string) Option {
	return func(c *InfinispanCollector) {
		for _, cache := range caches {
			c.skip[cache] = struct{}{}
		}
	}
}

// NewInfinispanCollector returns a collector reading from server.
func NewInfinispanCollector(server mbean.Server, opts ...Option) *InfinispanCollector {
	c := &InfinispanCollector{
		server: server,
		skip:   map[string]struct{}{},
		descs:  map[string]*typedDesc{},
	}

	for _, cache := range DefaultSkipCaches {
		c.skip[cache] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, def := range catalog {
		for _, attr := range def.attributes {
			name := def.prefix + attr
			c.descs[name] = &typedDesc{
				desc:      prometheus.NewDesc(name, def.help, labelNames, nil),
				valueType: prometheus.GaugeValue,
			}
		}
	}

	return c
}

// newFamilies builds the family catalog, returned both indexed by key
// and in output order.
func newFamilies() (map[CacheTypeKey]*models.Family, []*models.Family) {
	index := map[CacheTypeKey]*models.Family{}
	ordered := []*models.Family{}

	for _, def := range catalog {
		for _, attr := range def.attributes {
			f := models.NewGaugeFamily(def.prefix+attr, def.help, labelNames...)
			index[CacheTypeKey{def.category, attr}] = f
			ordered = append(ordered, f)
		}
	}

	return index, ordered
}

// Snapshot runs every query against the backend. On error the families
// populated so far are returned along with the error.
func (c *InfinispanCollector) Snapshot(ctx context.Context) ([]models.Family, error) {
	index, ordered := newFamilies()

	var err error
	for _, q := range queries {
		if err = c.process(ctx, index, q); err != nil {
			break
		}
	}

	families := make([]models.Family, 0, len(ordered))
	for _, f := range ordered {
		families = append(families, *f)
	}

	return families, err
}

func (c *InfinispanCollector) process(ctx context.Context, families map[CacheTypeKey]*models.Family, q query) error {
	log := zap.S()

	pattern, err := mbean.ParseObjectName(q.pattern)
	if err != nil {
		return &CollectErr{Category: q.category, Pattern: q.pattern, Err: err}
	}

	names, err := c.server.QueryNames(ctx, pattern)
	if err != nil {
		return &CollectErr{Category: q.category, Pattern: q.pattern, Err: err}
	}
	log.Debugw("found objects matching query", "count", len(names), "query", q.pattern)

	for _, name := range names {
		log.Debugw("checking object", "name", name.String())

		cache := name.KeyProperty(q.keyProperty)
		if _, ok := c.skip[cache]; ok {
			global.SkippedObjectsCnt.WithLabelValues(cache).Inc()
			continue
		}

		attrs, err := c.server.GetAttributes(ctx, name, q.attributes)
		if err != nil {
			return &CollectErr{Category: q.category, Pattern: q.pattern, Err: err}
		}

		labelValues := []string{name.KeyProperty(containerKey), cache}
		for _, attr := range q.attributes {
			raw, ok := attrs[attr]
			if !ok {
				continue
			}

			value, ok := mbean.ToFloat64(raw)
			if !ok {
				continue
			}

			family, ok := families[CacheTypeKey{q.category, attr}]
			if !ok {
				continue
			}

			if err := family.AddMetric(labelValues, value); err != nil {
				return &CollectErr{Category: q.category, Pattern: q.pattern, Err: err}
			}
		}
	}

	return nil
}

// CollectFamilies returns the families of a fresh collection. Backend
// errors are logged and whatever was collected before the error is
// returned.
func (c *InfinispanCollector) CollectFamilies() []models.Family {
	families, err := c.Snapshot(context.Background())
	if err != nil {
		zap.S().Warnw("could not collect metrics", zap.Error(err))

		category := "unknown"
		var cerr *CollectErr
		if errors.As(err, &cerr) {
			category = cerr.Category
		}
		global.CollectErrorsCnt.WithLabelValues(category).Inc()
		global.ExporterRuntimeState.SetBackendState(global.BackendStateDown)

		return families
	}

	global.ExporterRuntimeState.SetBackendState(global.BackendStateUp)

	return families
}

// Describe implements prometheus.Collector.
func (c *InfinispanCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, def := range catalog {
		for _, attr := range def.attributes {
			ch <- c.descs[def.prefix+attr].desc
		}
	}
}

// Collect implements prometheus.Collector.
func (c *InfinispanCollector) Collect(ch chan<- prometheus.Metric) {
	for _, f := range c.CollectFamilies() {
		d, ok := c.descs[f.Name]
		if !ok {
			continue
		}

		for _, s := range f.Samples {
			m, err := d.newConstMetric(s.Value, s.LabelValues...)
			if err != nil {
				zap.S().Errorw("invalid sample", "family", f.Name, zap.Error(err))
				continue
			}
			ch <- m
		}
	}
}
