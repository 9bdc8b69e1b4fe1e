package explorer

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wallet",
		Subsystem: "explorer",
		Name:      "requests_total",
		Help:      "Number of requests made to the indexer, retries included.",
	}, []string{"method"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wallet",
		Subsystem: "explorer",
		Name:      "failures_total",
		Help:      "Number of failed requests to the indexer by error kind.",
	}, []string{"method", "kind"})

	if registerer == nil {
		return &metrics{requests, failures}, nil
	}

	var err error
	if requests, err = register(registerer, requests); err != nil {
		return nil, err
	}
	if failures, err = register(registerer, failures); err != nil {
		return nil, err
	}
	return &metrics{requests, failures}, nil
}

// register returns the already registered collector if one with the same
// description exists.
func register(
	registerer prometheus.Registerer, c *prometheus.CounterVec,
) (*prometheus.CounterVec, error) {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}
