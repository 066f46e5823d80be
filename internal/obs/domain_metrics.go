package obs

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	domainOnce sync.Once

	// ReconcileItemsTotal counts reconciled items by resolution source.
	ReconcileItemsTotal *prometheus.CounterVec
	// ZeroPriceItemsTotal counts priced lines that carried a zero price.
	ZeroPriceItemsTotal prometheus.Counter
	// DraftsTotal counts draft submissions by result.
	DraftsTotal *prometheus.CounterVec
	// GeolocationOutcomesTotal counts acquisition outcomes by status and failure code.
	GeolocationOutcomesTotal *prometheus.CounterVec

	accuracyOnce sync.Once
	accuracyHist metric.Float64Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ReconcileItemsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_items_total",
			Help:      "Count of reconciled selection items by resolution source.",
		}, []string{"source"}))
		ZeroPriceItemsTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_zero_price_items_total",
			Help:      "Number of priced items whose price resolved to zero.",
		}))
		DraftsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_drafts_total",
			Help:      "Count of order draft submissions by result.",
		}, []string{"result"}))
		GeolocationOutcomesTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geolocation_outcomes_total",
			Help:      "Count of geolocation acquisition outcomes.",
		}, []string{"status", "failure"}))
	})
}

// RecordReconciledItem increments the reconcile counter when registered.
func RecordReconciledItem(source string) {
	if ReconcileItemsTotal != nil {
		ReconcileItemsTotal.WithLabelValues(source).Inc()
	}
}

// RecordZeroPriceItems adds n zero-priced items.
func RecordZeroPriceItems(n int) {
	if ZeroPriceItemsTotal != nil && n > 0 {
		ZeroPriceItemsTotal.Add(float64(n))
	}
}

// RecordDraft increments the draft counter for result.
func RecordDraft(result string) {
	if DraftsTotal != nil {
		DraftsTotal.WithLabelValues(result).Inc()
	}
}

// RecordGeolocation increments the geolocation outcome counter.
func RecordGeolocation(status, failure string) {
	if GeolocationOutcomesTotal != nil {
		if failure == "" {
			failure = "none"
		}
		GeolocationOutcomesTotal.WithLabelValues(status, failure).Inc()
	}
}

const fixAccuracyInstrument = "geolocation.fix.accuracy"

// RecordFixAccuracy reports the accuracy of a position fix, in meters, on the
// global OpenTelemetry meter. See InitMeter.
func RecordFixAccuracy(ctx context.Context, meters float64, precision string) {
	accuracyOnce.Do(func() {
		h, err := otel.Meter("github.com/noah-isme/backend-pressing/geolocation").Float64Histogram(
			fixAccuracyInstrument,
			metric.WithUnit("m"),
			metric.WithDescription("Reported accuracy of position fixes."),
		)
		if err == nil {
			accuracyHist = h
		}
	})
	if accuracyHist == nil || meters < 0 {
		return
	}
	accuracyHist.Record(ctx, meters, metric.WithAttributes(attribute.String("precision", precision)))
}
