package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(FilterVerdicts.WithLabelValues("sms", "BLACK_LIST"))
	FilterVerdicts.WithLabelValues("sms", "BLACK_LIST").Inc()
	if got := testutil.ToFloat64(FilterVerdicts.WithLabelValues("sms", "BLACK_LIST")); got != before+1 {
		t.Fatalf("verdict counter = %v; want %v", got, before+1)
	}

	before = testutil.ToFloat64(ContactLookups.WithLabelValues(PathCacheHit))
	ContactLookups.WithLabelValues(PathCacheHit).Add(2)
	if got := testutil.ToFloat64(ContactLookups.WithLabelValues(PathCacheHit)); got != before+2 {
		t.Fatalf("lookup counter = %v; want %v", got, before+2)
	}
}

func TestCollectorsRegistered(t *testing.T) {
	FilterEvaluationLatency.WithLabelValues("call").Observe(0.001)
	if n := testutil.CollectAndCount(FilterEvaluationLatency); n == 0 {
		t.Fatalf("expected histogram series to be collected")
	}
	FilterCapabilityUnknown.WithLabelValues("address_book").Inc()
	ContactMutations.WithLabelValues("add").Inc()
	DispatchErrors.WithLabelValues("journal").Inc()
	for name, c := range map[string]int{
		"capability": testutil.CollectAndCount(FilterCapabilityUnknown),
		"mutations":  testutil.CollectAndCount(ContactMutations),
		"dispatch":   testutil.CollectAndCount(DispatchErrors),
	} {
		if c == 0 {
			t.Fatalf("%s collector has no series", name)
		}
	}
}
