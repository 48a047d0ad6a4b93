package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics

	// None of these may panic
	m.RecordGrpcRequest("/svc/Method", "success", time.Millisecond)
	m.RecordLookup(OpTypeMetadata, ResultHit)
	m.RecordBuild(OpTypeMetadata, time.Millisecond)
	m.SetCachedTypes(3)
	m.RecordResolution("types", 2, nil)
	m.RecordPublish("changed")
	m.RequestStarted()()
	m.StartUptime(t.Context(), time.Second)
}

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordLookup(OpTypeMetadata, ResultMiss)
	m.RecordLookup(OpTypeMetadata, ResultHit)
	m.RecordLookup(OpTypeMetadata, ResultHit)
	if got := testutil.ToFloat64(m.LookupsTotal.WithLabelValues(OpTypeMetadata, ResultHit)); got != 2 {
		t.Errorf("Expected 2 hits, got %v", got)
	}

	m.SetCachedTypes(4)
	if got := testutil.ToFloat64(m.CachedTypes); got != 4 {
		t.Errorf("Expected 4 cached types, got %v", got)
	}

	m.RecordResolution("instances", 3, nil)
	m.RecordResolution("instances", 0, errors.New("boom"))
	if got := testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("instances", "error")); got != 1 {
		t.Errorf("Expected 1 failed resolution, got %v", got)
	}
	if got := testutil.CollectAndCount(m.AffectedEntities); got != 1 {
		t.Errorf("Expected the affected histogram to be collected, got %d", got)
	}

	done := m.RequestStarted()
	if got := testutil.ToFloat64(m.GrpcRequestsInFlight); got != 1 {
		t.Errorf("Expected 1 request in flight, got %v", got)
	}
	done()
	if got := testutil.ToFloat64(m.GrpcRequestsInFlight); got != 0 {
		t.Errorf("Expected no requests in flight, got %v", got)
	}
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic registering metrics twice")
		}
	}()
	New(reg)
}
