// Package diag implements the engine's diagnostics surface: the
// `diagnostic{type,key,value}` event of spec.md §6 backed by real
// Prometheus collectors, one set per EngineContext so that multiple
// concurrent players don't collide on global metric state. Grounded on
// starsinc1708-TorrX's torrent-engine internal/metrics package for the
// Namespace/CounterVec/Gauge/Histogram layout and the Register(reg)
// pattern; values here cover playback rather than torrent/HLS concerns.
package diag

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors bundles every metric the engine updates over a playback
// session's lifetime. Each EngineContext owns one, registered against
// its own prometheus.Registry so sessions can be torn down cleanly on
// dispose.
type Collectors struct {
	Swaps       prometheus.Counter
	Drops       prometheus.CounterVec
	Holds       prometheus.Counter
	HardResyncs prometheus.Counter

	VideoQueueDepth prometheus.Gauge
	AudioQueueDepth prometheus.Gauge
	VideoQueueBytes prometheus.Gauge
	AudioQueueBytes prometheus.Gauge

	DriftSeconds   prometheus.Histogram
	SeekLatency    prometheus.Histogram
	StallsTotal    prometheus.Counter
	AudioStallsTotal prometheus.Counter

	DecodeErrorsTotal *prometheus.CounterVec
}

// New builds a fresh Collectors set and registers it with reg.
// Namespace "avplay" per the engine's module name.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Swaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avplay",
			Name:      "frame_swaps_total",
			Help:      "Total number of video frames presented to the surface.",
		}),
		Holds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avplay",
			Name:      "frame_holds_total",
			Help:      "Total number of scheduler ticks that held the previous frame.",
		}),
		HardResyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avplay",
			Name:      "hard_resyncs_total",
			Help:      "Total number of hard-resync events triggered by excessive drift.",
		}),
		VideoQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "avplay",
			Name:      "video_queue_frames",
			Help:      "Current number of decoded frames buffered in the video frame queue.",
		}),
		AudioQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "avplay",
			Name:      "audio_queue_frames",
			Help:      "Current number of decoded frames buffered in the audio frame queue.",
		}),
		VideoQueueBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "avplay",
			Name:      "video_packet_queue_bytes",
			Help:      "Current byte size of the video packet queue.",
		}),
		AudioQueueBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "avplay",
			Name:      "audio_packet_queue_bytes",
			Help:      "Current byte size of the audio packet queue.",
		}),
		DriftSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "avplay",
			Name:      "av_drift_seconds",
			Help:      "Observed audio/video drift at each video frame swap, in seconds (signed).",
			Buckets:   []float64{-0.8, -0.4, -0.15, -0.04, 0, 0.04, 0.15, 0.4, 0.8},
		}),
		SeekLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "avplay",
			Name:      "seek_latency_seconds",
			Help:      "Latency from seek request to firstFrameAfterSeek, in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2},
		}),
		StallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avplay",
			Name:      "stalls_total",
			Help:      "Total number of stall-watchdog firings.",
		}),
		AudioStallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avplay",
			Name:      "audio_stalls_total",
			Help:      "Total number of audio-renderer stall detections.",
		}),
		DecodeErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avplay",
			Name:      "decode_errors_total",
			Help:      "Total decode errors by stream kind (video, audio).",
		}, []string{"stream"}),
	}
	c.Drops = *prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avplay",
		Name:      "frame_drops_total",
		Help:      "Total number of video frames dropped by the scheduler, by reason.",
	}, []string{"reason"})

	reg.MustRegister(
		c.Swaps,
		&c.Drops,
		c.Holds,
		c.HardResyncs,
		c.VideoQueueDepth,
		c.AudioQueueDepth,
		c.VideoQueueBytes,
		c.AudioQueueBytes,
		c.DriftSeconds,
		c.SeekLatency,
		c.StallsTotal,
		c.AudioStallsTotal,
		c.DecodeErrorsTotal,
	)
	return c
}

// DropReason enumerates why a frame was dropped, used as the `reason`
// label on Drops.
type DropReason string

const (
	DropReasonLate         DropReason = "late"
	DropReasonStaleEpoch   DropReason = "stale_epoch"
	DropReasonSeek         DropReason = "seek"
	DropReasonHardResync   DropReason = "hard_resync"
	DropReasonBackpressure DropReason = "backpressure"
)

// ObserveDrop increments the drop counter for reason.
func (c *Collectors) ObserveDrop(reason DropReason) {
	if c == nil {
		return
	}
	c.Drops.WithLabelValues(string(reason)).Inc()
}

// ObserveDecodeError increments the decode-error counter for a stream
// kind ("video" or "audio").
func (c *Collectors) ObserveDecodeError(stream string) {
	if c == nil {
		return
	}
	c.DecodeErrorsTotal.WithLabelValues(stream).Inc()
}
