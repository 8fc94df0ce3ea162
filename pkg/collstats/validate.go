package collstats

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Validate checks the invariants MongoDB maintains for a stats document and
// returns every violation found. A nil error means the document is
// consistent.
func (s *Stats) Validate() error {
	var errs *multierror.Error

	if _, err := ParseNamespace(s.Namespace); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("ns: %w", err))
	}
	if s.Count != nil && *s.Count < 0 {
		errs = multierror.Append(errs, negative("count", *s.Count))
	}

	if l := s.LatencyStats; l != nil {
		l.Ops(func(t OpType, op OpLatency) {
			prefix := "latencyStats." + string(t)
			if op.Latency < 0 {
				errs = multierror.Append(errs, negative(prefix+".latency", op.Latency))
			}
			if op.Ops < 0 {
				errs = multierror.Append(errs, negative(prefix+".ops", op.Ops))
			}
			for _, b := range op.Histogram {
				if b.Count < 0 {
					errs = multierror.Append(errs, negative(fmt.Sprintf("%s.histogram[%d]", prefix, b.Micros), b.Count))
				}
			}
		})
	}

	if st := s.StorageStats; st != nil {
		for _, err := range st.validate() {
			errs = multierror.Append(errs, err)
		}
	}

	if q := s.QueryExecStats; q != nil {
		scans := q.CollectionScans
		if scans.Total < 0 {
			errs = multierror.Append(errs, negative("queryExecStats.collectionScans.total", scans.Total))
		}
		if scans.NonTailable < 0 {
			errs = multierror.Append(errs, negative("queryExecStats.collectionScans.nonTailable", scans.NonTailable))
		}
		if scans.NonTailable > scans.Total {
			errs = multierror.Append(errs, fmt.Errorf("queryExecStats.collectionScans.nonTailable (%d) exceeds total (%d)", scans.NonTailable, scans.Total))
		}
	}

	return errs.ErrorOrNil()
}

func (s *StorageStats) validate() []error {
	var errs []error

	checkNonNegative := func(name string, v int64) {
		if v < 0 {
			errs = append(errs, negative("storageStats."+name, v))
		}
	}
	checkOptional := func(name string, v *int64) {
		if v != nil {
			checkNonNegative(name, *v)
		}
	}

	checkNonNegative("size", s.Size)
	checkNonNegative("count", s.Count)
	checkNonNegative("avgObjSize", s.AvgObjSize)
	checkNonNegative("storageSize", s.StorageSize)
	checkNonNegative("nindexes", s.Nindexes)
	checkNonNegative("totalIndexSize", s.TotalIndexSize)
	checkOptional("numOrphanDocs", s.NumOrphanDocs)
	checkOptional("freeStorageSize", s.FreeStorageSize)
	checkOptional("max", s.Max)
	checkOptional("maxSize", s.MaxSize)
	checkOptional("sleepCount", s.SleepCount)
	checkOptional("sleepMS", s.SleepMS)
	checkOptional("totalSize", s.TotalSize)

	if s.ScaleFactor < 0 {
		errs = append(errs, negative("storageStats.scaleFactor", s.ScaleFactor))
	}

	// avgObjSize is the truncated quotient of the unscaled size by count, and
	// the scaled size loses up to one scale unit.
	switch {
	case s.Count == 0:
		if s.AvgObjSize != 0 {
			errs = append(errs, fmt.Errorf("storageStats.avgObjSize is %d for an empty collection", s.AvgObjSize))
		}
		if s.Size != 0 {
			errs = append(errs, fmt.Errorf("storageStats.size is %d for an empty collection", s.Size))
		}
	case s.Count > 0:
		scale := s.ScaleFactor
		if scale < 1 {
			scale = 1
		}
		expected := s.Bytes(s.Size)
		diff := s.Count*s.AvgObjSize - expected
		if diff < 0 {
			diff = -diff
		}
		if diff >= s.Count+scale {
			errs = append(errs, fmt.Errorf("storageStats.count * avgObjSize = %d, inconsistent with size %d", s.Count*s.AvgObjSize, expected))
		}
	}

	if s.Capped {
		if s.Max == nil {
			errs = append(errs, fmt.Errorf("storageStats.max is required for a capped collection"))
		}
		if s.MaxSize == nil {
			errs = append(errs, fmt.Errorf("storageStats.maxSize is required for a capped collection"))
		} else if s.Size > *s.MaxSize {
			errs = append(errs, fmt.Errorf("storageStats.size (%d) exceeds maxSize (%d) of a capped collection", s.Size, *s.MaxSize))
		}
	}

	if len(s.IndexSizes) > 0 {
		if int64(len(s.IndexSizes)) != s.Nindexes {
			errs = append(errs, fmt.Errorf("storageStats.nindexes is %d but indexSizes lists %d indexes", s.Nindexes, len(s.IndexSizes)))
		}
		var total int64
		for _, name := range s.IndexNames() {
			size := s.IndexSizes[name]
			if size < 0 {
				errs = append(errs, negative("storageStats.indexSizes."+name, size))
			}
			total += size
		}
		if total != s.TotalIndexSize {
			errs = append(errs, fmt.Errorf("storageStats.totalIndexSize is %d but indexSizes add up to %d", s.TotalIndexSize, total))
		}
	}

	if s.WiredTiger != nil {
		errs = append(errs, s.WiredTiger.validate("storageStats.wiredTiger")...)
	}
	for _, name := range sortedKeys(s.IndexDetails) {
		wt := s.IndexDetails[name]
		errs = append(errs, wt.validate("storageStats.indexDetails."+name)...)
	}

	return errs
}

func (w *WiredTiger) validate(prefix string) []error {
	var errs []error
	for _, section := range w.SectionNames() {
		counters := w.Sections[section]
		for _, name := range counters.Names() {
			if v := counters[name]; v < 0 {
				errs = append(errs, negative(fmt.Sprintf("%s.%s.%s", prefix, section, name), v))
			}
		}
	}
	return errs
}

func negative(field string, v int64) error {
	return fmt.Errorf("%s must be non-negative, got %d", field, v)
}
