package instrumentation

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLoadMetrics(t *testing.T) {
	m := newLoadMetrics(prometheus.NewRegistry())
	hashOf := func(s string) string { return fmt.Sprintf("%x", sha256.Sum256([]byte(s))) }

	m.ObserveLoad(FormatYAML, []byte("first"), nil)
	m.ObserveLoad(FormatRiver, []byte("second"), errors.New("bad attribute"))
	require.Equal(t, 1, testutil.CollectAndCount(m.hash))
	require.Equal(t, 1.0, testutil.ToFloat64(m.hash.WithLabelValues(hashOf("second"), FormatRiver)))
	require.Equal(t, 0.0, testutil.ToFloat64(m.lastSuccess))

	t.Run("unreadable file keeps the hash", func(t *testing.T) {
		m.ObserveLoad(FormatYAML, nil, errors.New("no such file"))
		require.Equal(t, 1, testutil.CollectAndCount(m.hash))
		require.Equal(t, 1.0, testutil.ToFloat64(m.hash.WithLabelValues(hashOf("second"), FormatRiver)))
	})

	m.ObserveLoad(FormatYAML, []byte("third"), nil)
	require.Equal(t, 1.0, testutil.ToFloat64(m.lastSuccess))
	require.Equal(t, 2, testutil.CollectAndCount(m.lastLoad))

	require.Equal(t, 2.0, testutil.ToFloat64(m.loads.WithLabelValues(FormatYAML, "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues(FormatYAML, "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues(FormatRiver, "failure")))
	require.Equal(t, 3, testutil.CollectAndCount(m.loads))
}
