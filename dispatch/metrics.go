package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var probeCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "binform",
		Subsystem: "carve",
		Name:      "probes_total",
		Help:      "Total number of parser probes attempted, by format and outcome.",
	},
	[]string{"format", "outcome"},
)

const (
	outcomeMatched = "matched"
	outcomeDecline = "declined"
	outcomeFatal   = "fatal"
)
