package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"FeedSummarizer/internal/config"
	"FeedSummarizer/internal/infrastructure/search"
	"FeedSummarizer/internal/logging"
)

func TestNewAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	write("storage:\n  path: " + filepath.Join(dir, "app.db") + "\nqueue:\n  driver: none\nsettings:\n  contextPrompt: first\n")
	t.Setenv("FEED_SUMMARIZER_CONFIG", path)

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	application, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.db.Close() })
	require.Nil(t, application.worker)

	write("settings:\n  contextPrompt: second\n  scheduleTime: \"07:45\"\n")
	require.NoError(t, application.Reload())
	require.Equal(t, "second", application.settings.Settings().ContextPrompt)
	require.Equal(t, "07:45", application.settings.Settings().ScheduleTime)

	write("settings:\n  scheduleTime: \"99:00\"\n")
	require.Error(t, application.Reload())
	require.Equal(t, "07:45", application.settings.Settings().ScheduleTime)
}

func TestNewSinkPingsElasticsearch(t *testing.T) {
	var pings atomic.Int32
	es := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		if r.URL.Path == "/" {
			pings.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer es.Close()

	var logs bytes.Buffer
	cfg := config.PublishConfig{Sink: "elasticsearch", ElasticAddr: es.URL, ElasticIndex: "posts"}
	sink, err := newSink(cfg, nil, logging.NewWithWriter(&logs, "info", "text"))
	require.NoError(t, err)
	require.IsType(t, &search.PostIndex{}, sink)
	require.EqualValues(t, 1, pings.Load())
	require.Contains(t, logs.String(), "connected to elasticsearch")

	es.Close()
	logs.Reset()
	_, err = newSink(cfg, nil, logging.NewWithWriter(&logs, "info", "text"))
	require.NoError(t, err, "an unreachable index does not block startup")
	require.Contains(t, logs.String(), "elasticsearch unreachable at startup")
}
