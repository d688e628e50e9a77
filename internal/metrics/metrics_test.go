package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/techdigest/internal/news"
)

func TestMetrics_RecordCollect(t *testing.T) {
	m := New()
	m.RecordCollect(news.Result{
		Items: make([]news.Item, 3),
		Stats: news.Stats{
			SourcesOK:      4,
			SourcesFailed:  1,
			EntriesScanned: 30,
			Irrelevant:     20,
			Duplicates:     5,
			PageLookups:    2,
		},
	})

	assert.Equal(t, 4.0, testutil.ToFloat64(m.sourcesFetched.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sourcesFetched.WithLabelValues("error")))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.entriesScanned))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.entriesDropped.WithLabelValues("irrelevant")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.entriesDropped.WithLabelValues("duplicate")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pageLookups))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.itemsCollected))
}

func TestMetrics_RecordDelivery(t *testing.T) {
	m := New()
	m.RecordDelivery(nil)
	m.RecordDelivery(errors.New("boom"))
	m.RecordDelivery(errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesSent))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveryFailures))
}

func TestMetrics_RegistryGathersAll(t *testing.T) {
	m := New()
	m.RecordDelivery(nil)

	n, err := testutil.GatherAndCount(m.Registry(),
		"techdigest_telegram_messages_sent_total",
		"techdigest_telegram_delivery_failures_total",
		"techdigest_last_run_success",
	)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.SetLedgerSize(42)
	m.Finish(1500*time.Millisecond, true)

	path := filepath.Join(t.TempDir(), "techdigest.prom")
	require.NoError(t, m.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, "techdigest_seen_ledger_ids 42")
	assert.Contains(t, out, "techdigest_last_run_success 1")
	assert.Contains(t, out, "techdigest_last_run_duration_seconds 1.5")
}
