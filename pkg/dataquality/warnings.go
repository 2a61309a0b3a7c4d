package dataquality

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	reasonUnknownAttributeType = "unknown_attribute_type"
	reasonMissingProperties    = "missing_properties"
)

var metric = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "neptune",
	Subsystem: "fetcher",
	Name:      "decode_warnings_total",
	Help:      "The total number of backend values skipped during decoding per wire type with reason.",
}, []string{"type", "reason"})

// WarnUnknownAttributeType counts a value or definition skipped because the
// backend reported a type tag this client does not know.
func WarnUnknownAttributeType(wireType string) {
	metric.WithLabelValues(wireType, reasonUnknownAttributeType).Inc()
}

// WarnMissingProperties counts a value skipped because its payload for the
// declared type was absent.
func WarnMissingProperties(wireType string) {
	metric.WithLabelValues(wireType, reasonMissingProperties).Inc()
}
