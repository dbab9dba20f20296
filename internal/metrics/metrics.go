// Package metrics exposes the bot's Prometheus collectors and the HTTP
// endpoint serving them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "radiobot"

var (
	ChatMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_messages_total",
		Help:      "Chat messages received, by transport",
	}, []string{"transport"})

	CommandErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "command_errors_total",
		Help:      "Handler errors swallowed by the registry, by handler and phase",
	}, []string{"handler", "phase"})

	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "song_requests_total",
		Help:      "Song requests by outcome",
	}, []string{"outcome"})

	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetches_total",
		Help:      "Fetcher calls by outcome (ledger_hit, downloaded, failed)",
	}, []string{"outcome"})

	TracksLoadedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tracks_loaded_total",
		Help:      "Tracks loaded into the audio sink, by source",
	}, []string{"source"})

	SkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "skips_total",
		Help:      "Tracks skipped from chat or media keys",
	})

	MediaEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "media_events_total",
		Help:      "OS media-control events consumed, by kind",
	}, []string{"event"})

	MediaEventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "media_events_dropped_total",
		Help:      "OS media-control events dropped because the channel was full",
	})

	QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_length",
		Help:      "Songs in the playback queue, including the one playing",
	})

	LibrarySize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "library_songs",
		Help:      "Songs available locally for random selection",
	})

	EditorClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "editor_clients",
		Help:      "Editor plugins connected to the theme server",
	})
)

// IncRequest records the outcome of a song request.
func IncRequest(outcome string) {
	RequestsTotal.WithLabelValues(outcome).Inc()
}

// IncFetch records the outcome of a fetch.
func IncFetch(outcome string) {
	FetchesTotal.WithLabelValues(outcome).Inc()
}

// IncTrackLoaded records a track entering the sink.
func IncTrackLoaded(source string) {
	TracksLoadedTotal.WithLabelValues(source).Inc()
}

// IncCommandError records a swallowed handler error.
func IncCommandError(handler, phase string) {
	if handler == "" {
		handler = "unknown"
	}
	CommandErrorsTotal.WithLabelValues(handler, phase).Inc()
}
