package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/0xmhha/foldersync/pkg/logger"
	"github.com/0xmhha/foldersync/pkg/mirror"
	"github.com/0xmhha/foldersync/pkg/watcher"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource mirror.Stats

func (s staticSource) Stats() mirror.Stats { return mirror.Stats(s) }

var sample = staticSource{
	Roots:   2,
	Nodes:   40,
	Watched: 7,
	Resyncs: 1,
	Watcher: watcher.Metrics{
		State:     watcher.StateRunning,
		Pending:   3,
		RawEvents: 120,
		Coalesced: 100,
		Overflows: 2,
	},
}

func TestCollectorExportsStats(t *testing.T) {
	c := NewCollector(sample)

	expected := `
# HELP foldersync_watcher_overflows_total Lost-notification reports.
# TYPE foldersync_watcher_overflows_total counter
foldersync_watcher_overflows_total 2
# HELP foldersync_tree_nodes Number of files and folders in the tree.
# TYPE foldersync_tree_nodes gauge
foldersync_tree_nodes 40
# HELP foldersync_mirror_resyncs_total Full resynchronizations.
# TYPE foldersync_mirror_resyncs_total counter
foldersync_mirror_resyncs_total 1
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"foldersync_watcher_overflows_total",
		"foldersync_tree_nodes",
		"foldersync_mirror_resyncs_total")
	assert.NoError(t, err)
}

func TestCollectorStateGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(sample)))

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "foldersync_watcher_state" {
			continue
		}
		found = true
		assert.Len(t, mf.GetMetric(), 5)
		for _, m := range mf.GetMetric() {
			want := 0.0
			if m.GetLabel()[0].GetValue() == "RUNNING" {
				want = 1
			}
			assert.Equal(t, want, m.GetGauge().GetValue())
		}
	}
	assert.True(t, found)
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(sample)
	require.NoError(t, err)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "foldersync_watcher_registered_folders 7")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestServeStopsWithContext(t *testing.T) {
	reg, err := NewRegistry(sample)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- serve(ctx, listener, reg, logger.Noop()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/metrics")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeInvalidAddress(t *testing.T) {
	reg := prometheus.NewRegistry()
	err := Serve(context.Background(), "invalid-address", reg, logger.Noop())
	assert.Error(t, err)
}
