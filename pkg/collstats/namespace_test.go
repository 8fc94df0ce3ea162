package collstats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNamespace(t *testing.T) {
	tt := []struct {
		input  string
		expect Namespace
		err    bool
	}{
		{input: "local.oplog.rs", expect: Namespace{Database: "local", Collection: "oplog.rs"}},
		{input: "db.coll", expect: Namespace{Database: "db", Collection: "coll"}},
		{input: "db.system.buckets.weather", expect: Namespace{Database: "db", Collection: "system.buckets.weather"}},
		{input: "nodot", err: true},
		{input: ".coll", err: true},
		{input: "db.", err: true},
		{input: "", err: true},
	}
	for _, tc := range tt {
		t.Run(tc.input, func(t *testing.T) {
			ns, err := ParseNamespace(tc.input)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expect, ns)
			require.Equal(t, tc.input, ns.String())
		})
	}
}

func TestMustParseNamespace(t *testing.T) {
	require.Equal(t, "local", MustParseNamespace("local.oplog.rs").Database)
	require.Panics(t, func() { MustParseNamespace("invalid") })
}

func TestLatencyStats_Ops(t *testing.T) {
	l := LatencyStats{
		Reads:        OpLatency{Latency: 1, Ops: 2},
		Writes:       OpLatency{Latency: 3, Ops: 4},
		Commands:     OpLatency{Latency: 5, Ops: 6},
		Transactions: OpLatency{Latency: 7, Ops: 8},
	}

	var (
		order []OpType
		ops   int64
	)
	l.Ops(func(t OpType, op OpLatency) {
		order = append(order, t)
		ops += op.Ops
	})
	require.Equal(t, OpTypes, order)
	require.Equal(t, int64(20), ops)

	_, ok := l.Op("updates")
	require.False(t, ok)
}

func TestStorageStats_Bytes(t *testing.T) {
	require.Equal(t, int64(10), (&StorageStats{ScaleFactor: 1}).Bytes(10))
	require.Equal(t, int64(10), (&StorageStats{}).Bytes(10))
	require.Equal(t, int64(10240), (&StorageStats{ScaleFactor: 1024}).Bytes(10))
}
