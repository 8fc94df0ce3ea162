package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/grafana/collstats-exporter/pkg/collstats"
	"github.com/stretchr/testify/require"
)

const fixture = "../../pkg/collstats/testdata/collstats-oplog.rs.json"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDecode(t *testing.T) {
	out, err := execute(t, "decode", "--indent", fixture)
	require.NoError(t, err)

	decoded, err := collstats.Decode([]byte(out))
	require.NoError(t, err)
	expect, err := collstats.DecodeFile(fixture)
	require.NoError(t, err)
	require.Equal(t, expect, decoded)
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", fixture)
	require.NoError(t, err)
	require.Contains(t, out, "1 document(s) OK")

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "invalid.json")
		doc := `{
  "ns": "orders",
  "host": "db-1:27017",
  "localTime": {"$date": "2024-07-01T20:00:00Z"},
  "queryExecStats": {"collectionScans": {"total": 1, "nonTailable": 2}}
}`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

		out, err := execute(t, "validate", path)
		require.EqualError(t, err, "found 2 problem(s) in 1 document(s)")
		require.Contains(t, out, `document 0 (orders): ns: invalid namespace "orders"`)
		require.Contains(t, out, "document 0 (orders): queryExecStats.collectionScans.nonTailable (2) exceeds total (1)")
	})
}

func TestInspect(t *testing.T) {
	out, err := execute(t, "inspect", fixture)
	require.NoError(t, err)
	require.Contains(t, out, "NAMESPACE")
	require.Contains(t, out, "local.oplog.rs")
	require.Contains(t, out, "4341")
	require.Contains(t, out, "907806")
	require.NotContains(t, out, "block_compressor")

	t.Run("wiredtiger settings", func(t *testing.T) {
		out, err := execute(t, "inspect", "--wiredtiger", fixture)
		require.NoError(t, err)
		require.Regexp(t, `block_compressor\s+\|\s+snappy`, out)
		require.Contains(t, out, "app_metadata.formatVersion")
	})
}

func TestMetrics(t *testing.T) {
	out, err := execute(t, "metrics", "--include-wiredtiger=false", fixture)
	require.NoError(t, err)
	require.Contains(t, out, `mongodb_collstats_storage_count{collection="oplog.rs",database="local"} 4341`)
	require.Contains(t, out, `mongodb_collstats_latency_ops_total{collection="oplog.rs",database="local",op_type="reads"} 10`)
	require.Contains(t, out, "mongodb_oplog_log_size_mb 16")
	require.Contains(t, out, "mongodb_oplog_used_size_mb 0.87")
	require.NotContains(t, out, "mongodb_collstats_storage_wt_")
	require.NotContains(t, out, "mongodb_oplog_time_diff_seconds")
	require.Contains(t, out, "collstats_exporter_build_info")
}

func TestConfigCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := `
collstats_exporter:
  mongodb_uri: mongodb://db-1:27017
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	out, err := execute(t, "config-check", path)
	require.NoError(t, err)
	require.Contains(t, out, "config OK")
	require.Contains(t, out, "instance: db-1:27017")
	require.Contains(t, out, "__metrics_path__: /integrations/collstats_exporter/metrics")

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("collstats_exporter:\n  max_concurrency: 0\n"), 0o644))

		_, err := execute(t, "config-check", path)
		require.ErrorContains(t, err, "mongodb_uri is required")
	})
}

func TestServe_RequiresConfigFile(t *testing.T) {
	_, err := execute(t, "serve")
	require.EqualError(t, err, "--config.file flag required")
}
