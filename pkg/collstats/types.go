// Package collstats models the documents returned by the MongoDB $collStats
// aggregation stage and converts them from and to Extended JSON.
package collstats

import (
	"sort"
	"time"
)

// Stats is a single document returned by the $collStats stage.
//
// Optional blocks are pointers: $collStats only returns the blocks that were
// requested in the stage options.
type Stats struct {
	Namespace      string          `bson:"ns"`
	Shard          string          `bson:"shard,omitempty"`
	Host           string          `bson:"host,omitempty"`
	LocalTime      time.Time       `bson:"localTime,omitempty"`
	LatencyStats   *LatencyStats   `bson:"latencyStats,omitempty"`
	StorageStats   *StorageStats   `bson:"storageStats,omitempty"`
	Count          *int64          `bson:"count,omitempty"`
	QueryExecStats *QueryExecStats `bson:"queryExecStats,omitempty"`

	// Extra holds top-level fields this package does not know about so they
	// survive a decode/encode cycle.
	Extra map[string]interface{} `bson:",inline"`
}

// LatencyStats holds the per operation class latencies, in microseconds.
type LatencyStats struct {
	Reads        OpLatency `bson:"reads"`
	Writes       OpLatency `bson:"writes"`
	Commands     OpLatency `bson:"commands"`
	Transactions OpLatency `bson:"transactions"`
}

// OpLatency is the cumulative latency and operation count of one operation
// class.
type OpLatency struct {
	Latency   int64             `bson:"latency"`
	Ops       int64             `bson:"ops"`
	Histogram []HistogramBucket `bson:"histogram,omitempty"`
}

// HistogramBucket is a latency histogram bucket. Count is the number of
// operations which took less than Micros microseconds but more than the
// previous bucket's bound.
type HistogramBucket struct {
	Micros int64 `bson:"micros"`
	Count  int64 `bson:"count"`
}

// OpType names an operation class of LatencyStats.
type OpType string

// Operation classes reported by latencyStats.
const (
	OpReads        OpType = "reads"
	OpWrites       OpType = "writes"
	OpCommands     OpType = "commands"
	OpTransactions OpType = "transactions"
)

// OpTypes lists the operation classes in the order MongoDB reports them.
var OpTypes = []OpType{OpReads, OpWrites, OpCommands, OpTransactions}

// Op returns the latency of the given operation class.
func (l *LatencyStats) Op(t OpType) (OpLatency, bool) {
	switch t {
	case OpReads:
		return l.Reads, true
	case OpWrites:
		return l.Writes, true
	case OpCommands:
		return l.Commands, true
	case OpTransactions:
		return l.Transactions, true
	}
	return OpLatency{}, false
}

// Ops calls fn for every operation class in a fixed order.
func (l *LatencyStats) Ops(fn func(OpType, OpLatency)) {
	for _, t := range OpTypes {
		op, _ := l.Op(t)
		fn(t, op)
	}
}

// StorageStats holds the storage block of $collStats. Sizes are expressed in
// units of ScaleFactor bytes, except AvgObjSize which is always in bytes.
type StorageStats struct {
	Size            int64  `bson:"size"`
	Count           int64  `bson:"count"`
	AvgObjSize      int64  `bson:"avgObjSize,truncate"`
	NumOrphanDocs   *int64 `bson:"numOrphanDocs,omitempty"`
	StorageSize     int64  `bson:"storageSize"`
	FreeStorageSize *int64 `bson:"freeStorageSize,omitempty"`
	Capped          bool   `bson:"capped"`
	Max             *int64 `bson:"max,omitempty"`
	MaxSize         *int64 `bson:"maxSize,omitempty"`
	SleepCount      *int64 `bson:"sleepCount,omitempty"`
	SleepMS         *int64 `bson:"sleepMS,omitempty"`

	WiredTiger *WiredTiger `bson:"wiredTiger,omitempty"`

	Nindexes       int64        `bson:"nindexes"`
	IndexDetails   IndexDetails `bson:"indexDetails,omitempty"`
	IndexBuilds    IndexBuilds  `bson:"indexBuilds,omitempty"`
	TotalIndexSize int64        `bson:"totalIndexSize"`
	TotalSize      *int64       `bson:"totalSize,omitempty"`
	IndexSizes     IndexSizes   `bson:"indexSizes,omitempty"`
	ScaleFactor    int64        `bson:"scaleFactor,truncate"`

	Extra map[string]interface{} `bson:",inline"`
}

// Index blocks are omitted when encoding only if they were absent from the
// decoded document. An empty block is kept.
type (
	// IndexDetails holds the WiredTiger block of every index, keyed by index
	// name.
	IndexDetails map[string]WiredTiger
	// IndexBuilds lists the indexes currently being built.
	IndexBuilds []string
	// IndexSizes holds the scaled size of every index, keyed by index name.
	IndexSizes map[string]int64
)

// IsZero implements bsoncodec.Zeroer.
func (d IndexDetails) IsZero() bool { return d == nil }

// IsZero implements bsoncodec.Zeroer.
func (b IndexBuilds) IsZero() bool { return b == nil }

// IsZero implements bsoncodec.Zeroer.
func (s IndexSizes) IsZero() bool { return s == nil }

// Bytes converts a scaled size of s back to bytes.
func (s *StorageStats) Bytes(v int64) int64 {
	if s.ScaleFactor <= 1 {
		return v
	}
	return v * s.ScaleFactor
}

// IndexNames returns the names of the indexes in IndexSizes, sorted.
func (s *StorageStats) IndexNames() []string {
	return sortedKeys(s.IndexSizes)
}

// Counters is a named set of WiredTiger statistics. Counter names are the
// free-form descriptions WiredTiger uses, e.g. "bytes currently in the cache".
type Counters map[string]int64

// WiredTiger is the storage engine block of a collection or an index.
type WiredTiger struct {
	Metadata       map[string]int64 `bson:"metadata,omitempty"`
	CreationString string           `bson:"creationString"`
	Type           string           `bson:"type"`
	URI            string           `bson:"uri"`

	// Sections holds the statistic groups, keyed by group name (LSM,
	// block-manager, btree, cache, ...).
	Sections map[string]Counters `bson:",inline"`
}

// Counter returns the value of a counter in a section.
func (w *WiredTiger) Counter(section, name string) (int64, bool) {
	c, ok := w.Sections[section]
	if !ok {
		return 0, false
	}
	v, ok := c[name]
	return v, ok
}

// SectionNames returns the names of all statistic groups, sorted.
func (w *WiredTiger) SectionNames() []string {
	return sortedKeys(w.Sections)
}

// Names returns the counter names of c, sorted.
func (c Counters) Names() []string {
	return sortedKeys(c)
}

// QueryExecStats holds query execution counters.
type QueryExecStats struct {
	CollectionScans CollectionScans `bson:"collectionScans"`
}

// CollectionScans counts the full collection scans run against a collection.
type CollectionScans struct {
	Total       int64 `bson:"total"`
	NonTailable int64 `bson:"nonTailable"`
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
