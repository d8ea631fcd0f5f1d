package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_RecordComponent(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())

	c.RecordComponent("news", StatusOK, 10*time.Millisecond)
	c.RecordComponent("news", StatusOK, 20*time.Millisecond)
	c.RecordComponent("news", StatusError, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.componentRenders.WithLabelValues("news", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.componentRenders.WithLabelValues("news", StatusError)))
	assert.Equal(t, 1, testutil.CollectAndCount(c.componentDuration))
}

func TestCollector_RecordStore(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())

	c.RecordStoreLoad("feed", nil, time.Millisecond)
	c.RecordStoreLoad("feed", errors.New("down"), time.Millisecond)
	c.RecordStoreCache("feed", true)
	c.RecordStoreCache("feed", false)
	c.RecordStoreCache("feed", false)
	c.RecordShared("feed")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeLoads.WithLabelValues("feed", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeLoads.WithLabelValues("feed", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeCache.WithLabelValues("feed", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.storeCache.WithLabelValues("feed", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sharedLoads.WithLabelValues("feed")))
}

func TestCollector_RecordResponse(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())

	c.RecordResponse(OutcomeOK)
	c.RecordResponse(OutcomeRedirect)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.responses.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.responses.WithLabelValues(OutcomeRedirect)))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.responses.WithLabelValues(OutcomeNotFound)))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordComponent("x", StatusOK, 0)
		c.RecordStoreLoad("x", nil, 0)
		c.RecordStoreCache("x", true)
		c.RecordShared("x")
		c.RecordResponse(OutcomeOK)
	})
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector("dup", reg)
	assert.Panics(t, func() { NewCollector("dup", reg) })
}
