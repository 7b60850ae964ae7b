// FILE: wxsdr/src/internal/metric/metric.go
package metric

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "wxsdr_"

var (
	registerOnce sync.Once

	linesTotal     prometheus.Counter
	recordsTotal   *prometheus.CounterVec
	unknownTotal   prometheus.Counter
	unmappedTotal  prometheus.Counter
	updatesTotal   prometheus.Counter
	batchesTotal   prometheus.Counter
	restartsTotal  prometheus.Counter
	snapshotFields prometheus.Gauge
)

// Init registers the pipeline collectors on the default registry
func Init() {
	registerOnce.Do(func() {
		linesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "lines_total",
			Help: "Raw lines read from the decoder process",
		})
		recordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "records_total",
			Help: "Decoded sensor records by family",
		}, []string{"family"})
		unknownTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "unknown_blocks_total",
			Help: "Blocks matching no known packet shape",
		})
		unmappedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "unmapped_values_total",
			Help: "Decoded values dropped for lack of a sensor map entry",
		})
		updatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "updates_total",
			Help: "Mapped values applied to the snapshot",
		})
		batchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "batches_total",
			Help: "Snapshot batches emitted",
		})
		restartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "process_restarts_total",
			Help: "Decoder process restarts",
		})
		snapshotFields = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "snapshot_fields",
			Help: "Output fields currently held in the snapshot",
		})

		prometheus.MustRegister(
			linesTotal, recordsTotal, unknownTotal, unmappedTotal,
			updatesTotal, batchesTotal, restartsTotal, snapshotFields,
		)
	})
}

func ObserveLine() {
	if linesTotal != nil {
		linesTotal.Inc()
	}
}

func ObserveRecord(family string) {
	if recordsTotal != nil {
		recordsTotal.WithLabelValues(family).Inc()
	}
}

func ObserveUnknown() {
	if unknownTotal != nil {
		unknownTotal.Inc()
	}
}

func ObserveUnmapped() {
	if unmappedTotal != nil {
		unmappedTotal.Inc()
	}
}

func ObserveUpdate() {
	if updatesTotal != nil {
		updatesTotal.Inc()
	}
}

func ObserveBatch(fields int) {
	if batchesTotal != nil {
		batchesTotal.Inc()
		snapshotFields.Set(float64(fields))
	}
}

func ObserveRestart() {
	if restartsTotal != nil {
		restartsTotal.Inc()
	}
}
