package collstats_exporter //nolint:golint

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/grafana/collstats-exporter/pkg/collstats"
	"github.com/grafana/collstats-exporter/pkg/collstats/wtconfig"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace          = "mongodb"
	collstatsSubsystem = "collstats"
	oplogSubsystem     = "oplog"

	mebibyte = 1 << 20
)

var (
	specialCharsRe        = regexp.MustCompile(`[^a-zA-Z0-9_]+`)
	repeatedUnderscoresRe = regexp.MustCompile(`__+`)
)

// prometheusize turns a free-form statistic name such as
// "block-manager_file size in bytes" into a valid metric name fragment.
func prometheusize(s string) string {
	s = specialCharsRe.ReplaceAllString(s, "_")
	s = repeatedUnderscoresRe.ReplaceAllString(s, "_")
	return strings.ToLower(strings.Trim(s, "_"))
}

func collstatsName(name string) string {
	return prometheus.BuildFQName(namespace, collstatsSubsystem, name)
}

type label struct {
	name, value string
}

// metricSet accumulates const metrics sharing a set of base labels. Series
// that would repeat an already added name and label set are dropped and
// counted.
type metricSet struct {
	base    []label
	seen    map[string]struct{}
	dropped int
	metrics []prometheus.Metric
}

func newMetricSet(base ...label) *metricSet {
	return &metricSet{base: base, seen: make(map[string]struct{})}
}

func (m *metricSet) labels(extra []label) (names, values []string) {
	all := append(append([]label{}, m.base...), extra...)
	for _, l := range all {
		names = append(names, l.name)
		values = append(values, l.value)
	}
	return names, values
}

func (m *metricSet) add(name, help string, vt prometheus.ValueType, v float64, extra ...label) {
	names, values := m.labels(extra)

	key := name + "\xff" + strings.Join(values, "\xff")
	if _, dup := m.seen[key]; dup {
		m.dropped++
		return
	}
	m.seen[key] = struct{}{}

	desc := prometheus.NewDesc(name, help, names, nil)
	m.metrics = append(m.metrics, prometheus.MustNewConstMetric(desc, vt, v, values...))
}

// result returns the accumulated metrics, with a count of the dropped
// series when there were any.
func (m *metricSet) result() []prometheus.Metric {
	if m.dropped == 0 {
		return m.metrics
	}
	names, values := m.labels(nil)
	desc := prometheus.NewDesc(collstatsName("dropped_series"), "Number of statistics not exposed because their sanitized name matched an earlier one.", names, nil)
	return append(m.metrics, prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(m.dropped), values...))
}

func (m *metricSet) addOptional(name, help string, vt prometheus.ValueType, v *int64, scale func(int64) int64) {
	if v == nil {
		return
	}
	m.add(name, help, vt, float64(scale(*v)))
}

func (m *metricSet) invalid(name, help string, err error, extra ...label) {
	names, _ := m.labels(extra)
	desc := prometheus.NewDesc(name, help, names, nil)
	m.metrics = append(m.metrics, prometheus.NewInvalidMetric(desc, err))
}

func namespaceLabels(ns collstats.Namespace, shard string) []label {
	labels := []label{{"database", ns.Database}, {"collection", ns.Collection}}
	if shard != "" {
		labels = append(labels, label{"shard", shard})
	}
	return labels
}

func identity(v int64) int64 { return v }

// StatsMetrics converts a $collStats document into metrics. Blocks that are
// absent from s produce no series; opts further restricts the optional
// ones.
func StatsMetrics(s collstats.Stats, opts StatsOptions) ([]prometheus.Metric, error) {
	ns, err := s.ParsedNamespace()
	if err != nil {
		return nil, err
	}
	m := newMetricSet(namespaceLabels(ns, s.Shard)...)

	if l := s.LatencyStats; l != nil {
		l.Ops(func(t collstats.OpType, op collstats.OpLatency) {
			opLabel := label{"op_type", string(t)}
			m.add(collstatsName("latency_ops_total"), "Number of operations run against the collection.", prometheus.CounterValue, float64(op.Ops), opLabel)
			m.add(collstatsName("latency_micros_total"), "Cumulative latency of operations run against the collection, in microseconds.", prometheus.CounterValue, float64(op.Latency), opLabel)

			if !opts.Histograms {
				return
			}
			for _, b := range op.Histogram {
				m.add(collstatsName("latency_histogram_count"), "Number of operations in a latency bucket; micros is the inclusive upper bound of the bucket. Buckets are not cumulative.",
					prometheus.CounterValue, float64(b.Count), opLabel, label{"micros", strconv.FormatInt(b.Micros, 10)})
			}
		})
	}

	if st := s.StorageStats; st != nil {
		addStorageStats(m, st, opts)
	}

	if s.Count != nil {
		m.add(collstatsName("count"), "Number of documents reported by the count option of $collStats.", prometheus.GaugeValue, float64(*s.Count))
	}

	if q := s.QueryExecStats; q != nil {
		m.add(collstatsName("query_exec_collection_scans_total"), "Number of queries that performed a collection scan.", prometheus.CounterValue, float64(q.CollectionScans.Total))
		m.add(collstatsName("query_exec_collection_scans_non_tailable_total"), "Number of queries that performed a collection scan without a tailable cursor.", prometheus.CounterValue, float64(q.CollectionScans.NonTailable))
	}

	return m.result(), nil
}

func addStorageStats(m *metricSet, st *collstats.StorageStats, opts StatsOptions) {
	gauge := func(name, help string, v int64) {
		m.add(collstatsName("storage_"+name), help, prometheus.GaugeValue, float64(v))
	}

	gauge("size_bytes", "Uncompressed size of the documents in the collection.", st.Bytes(st.Size))
	gauge("count", "Number of documents in the collection.", st.Count)
	gauge("avg_obj_size_bytes", "Average size of a document.", st.AvgObjSize)
	gauge("storage_size_bytes", "Storage allocated for the collection.", st.Bytes(st.StorageSize))
	gauge("total_index_size_bytes", "Storage allocated for all indexes of the collection.", st.Bytes(st.TotalIndexSize))
	gauge("nindexes", "Number of indexes of the collection.", st.Nindexes)

	capped := int64(0)
	if st.Capped {
		capped = 1
	}
	gauge("capped", "Whether the collection is capped.", capped)

	m.addOptional(collstatsName("storage_free_storage_size_bytes"), "Storage available for reuse.", prometheus.GaugeValue, st.FreeStorageSize, st.Bytes)
	m.addOptional(collstatsName("storage_total_size_bytes"), "Sum of storageSize and totalIndexSize.", prometheus.GaugeValue, st.TotalSize, st.Bytes)
	m.addOptional(collstatsName("storage_max_documents"), "Maximum number of documents of a capped collection.", prometheus.GaugeValue, st.Max, identity)
	m.addOptional(collstatsName("storage_max_size_bytes"), "Maximum size of a capped collection.", prometheus.GaugeValue, st.MaxSize, st.Bytes)
	m.addOptional(collstatsName("storage_num_orphan_docs"), "Number of orphaned documents in the collection.", prometheus.GaugeValue, st.NumOrphanDocs, identity)
	m.addOptional(collstatsName("storage_sleep_count_total"), "Number of times a write to the capped collection slept to let others finish.", prometheus.CounterValue, st.SleepCount, identity)
	m.addOptional(collstatsName("storage_sleep_ms_total"), "Time spent sleeping by writes to the capped collection, in milliseconds.", prometheus.CounterValue, st.SleepMS, identity)

	for _, name := range st.IndexNames() {
		m.add(collstatsName("storage_index_size_bytes"), "Storage allocated for an index.", prometheus.GaugeValue, float64(st.Bytes(st.IndexSizes[name])), label{"index", name})
	}

	if opts.WiredTiger && st.WiredTiger != nil {
		addWiredTiger(m, collstatsName("storage_wt"), st.WiredTiger)
	}
	if opts.IndexDetails {
		for _, name := range sortedIndexDetails(st) {
			wt := st.IndexDetails[name]
			addWiredTiger(m, collstatsName("storage_idx"), &wt, label{"index", name})
		}
	}
}

func sortedIndexDetails(st *collstats.StorageStats) []string {
	names := make([]string, 0, len(st.IndexDetails))
	for name := range st.IndexDetails {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// addWiredTiger flattens every statistic of wt into a <prefix>_<section>_<name>
// series and describes its creation string with an info metric.
func addWiredTiger(m *metricSet, prefix string, wt *collstats.WiredTiger, extra ...label) {
	for _, section := range wt.SectionNames() {
		counters := wt.Sections[section]
		for _, name := range counters.Names() {
			m.add(prefix+"_"+prometheusize(section+"_"+name), "WiredTiger "+section+" statistic: "+strings.TrimSpace(name)+".",
				prometheus.UntypedValue, float64(counters[name]), extra...)
		}
	}

	infoName := prefix + "_info"
	infoHelp := "WiredTiger table configuration, from the creation string."
	infoLabels := []string{"type", "uri", "block_compressor", "format", "key_format", "value_format"}

	cfg, err := wtconfig.Parse(wt.CreationString)
	if err != nil {
		all := append([]label{}, extra...)
		for _, n := range infoLabels {
			all = append(all, label{n, ""})
		}
		m.invalid(infoName, infoHelp, err, all...)
		return
	}

	info := append([]label{}, extra...)
	info = append(info, label{"type", wt.Type}, label{"uri", wt.URI})
	for _, key := range infoLabels[2:] {
		v, _ := cfg.Get(key)
		info = append(info, label{key, v})
	}
	m.add(infoName, infoHelp, prometheus.GaugeValue, 1, info...)

	for _, key := range []string{"leaf_page_max", "internal_page_max"} {
		v, ok, err := cfg.Bytes(key)
		if err != nil || !ok {
			continue
		}
		m.add(prefix+"_"+key+"_bytes", "Configured "+key+" of the table.", prometheus.GaugeValue, float64(v), extra...)
	}
}

// IndexStatsMetrics converts $indexStats results of ns into metrics.
func IndexStatsMetrics(ns collstats.Namespace, accesses []IndexAccess) []prometheus.Metric {
	var res []prometheus.Metric
	for _, a := range accesses {
		m := newMetricSet(namespaceLabels(ns, a.Shard)...)
		m.add(collstatsName("index_accesses_ops_total"), "Number of operations that used the index since it was created or the server restarted.",
			prometheus.CounterValue, float64(a.Accesses.Ops), label{"index", a.Name})
		res = append(res, m.metrics...)
	}
	return res
}

// OplogMetrics returns the replication window metrics computed from the
// $collStats document of the oplog and its first and last entries, the
// same values db.getReplicationInfo() reports. Either argument may be nil.
func OplogMetrics(s *collstats.Stats, w *OplogWindow) []prometheus.Metric {
	m := newMetricSet()
	name := func(n string) string { return prometheus.BuildFQName(namespace, oplogSubsystem, n) }

	if s != nil && s.StorageStats != nil {
		st := s.StorageStats
		if st.MaxSize != nil {
			m.add(name("log_size_mb"), "Configured size of the oplog, in mebibytes.", prometheus.GaugeValue, toMB(st.Bytes(*st.MaxSize)))
		}
		m.add(name("used_size_mb"), "Space used by the oplog, in mebibytes.", prometheus.GaugeValue, toMB(st.Bytes(st.Size)))
	}

	if w != nil {
		m.add(name("time_diff_seconds"), "Time between the first and the last oplog entry.", prometheus.GaugeValue, w.Duration().Seconds())
		m.add(name("first_timestamp_seconds"), "Timestamp of the first oplog entry.", prometheus.GaugeValue, float64(w.First.Unix()))
		m.add(name("last_timestamp_seconds"), "Timestamp of the last oplog entry.", prometheus.GaugeValue, float64(w.Last.Unix()))
	}

	return m.metrics
}

// toMB converts bytes to mebibytes rounded to two decimals.
func toMB(v int64) float64 {
	return math.Round(float64(v)/mebibyte*100) / 100
}
