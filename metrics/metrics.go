// SPDX-License-Identifier: GPL-3.0-only

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "accountd"

var (
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Authentication attempts by method and outcome.",
	}, []string{"method", "outcome"})

	APIKeyEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_key_events_total",
		Help:      "API key lifecycle events.",
	}, []string{"event"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification dispatches by provider and outcome.",
	}, []string{"provider", "outcome"})
)

func AuthOutcome(method, outcome string) {
	AuthAttempts.WithLabelValues(method, outcome).Inc()
}

func APIKeyEvent(event string) {
	APIKeyEvents.WithLabelValues(event).Inc()
}

func NotificationOutcome(provider string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	Notifications.WithLabelValues(provider, outcome).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
