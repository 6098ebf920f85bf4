package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/tangocommunity/crawler/internal/model"
)

func TestObserveCrawl(t *testing.T) {
	m := NewMetrics()

	m.ObserveCrawl(model.CrawlResult{Lane: model.LaneEvents, Created: 2, Updated: 1, Duration: 3 * time.Second})
	m.ObserveCrawl(model.CrawlResult{Lane: model.LaneEvents, Failed: true, Errors: []string{"fetch: [transient] timeout"}})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Records.WithLabelValues("events", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Records.WithLabelValues("events", "updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceCrawls.WithLabelValues("events", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceCrawls.WithLabelValues("events", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SourceDuration))
}

func TestSetLaneRunning(t *testing.T) {
	m := NewMetrics()

	m.SetLaneRunning(model.LaneHotels, true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LaneRunning.WithLabelValues("hotels")))

	m.SetLaneRunning(model.LaneHotels, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LaneRunning.WithLabelValues("hotels")))
}
