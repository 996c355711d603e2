// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CapturePacketsTotal counts packets read from a capture source
	CapturePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dofuswire_capture_packets_total",
			Help: "Total number of packets read from the capture source",
		},
		[]string{"source"},
	)

	// CaptureDropsTotal counts packets skipped before reaching a decoder
	CaptureDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dofuswire_capture_drops_total",
			Help: "Total number of packets dropped before decoding",
		},
		[]string{"reason"},
	)

	// MessagesDecodedTotal counts messages enqueued by the reassembly engine
	MessagesDecodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dofuswire_messages_decoded_total",
			Help: "Total number of fully decoded protocol messages",
		},
		[]string{"source"},
	)

	// SplitMessagesTotal counts frames buffered across chunk boundaries
	SplitMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dofuswire_split_messages_total",
			Help: "Total number of messages split across several chunks",
		},
	)

	// FrameSlipsTotal counts frames whose decoder consumed a different length than declared
	FrameSlipsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dofuswire_frame_slips_total",
			Help: "Total number of frames realigned after a length mismatch",
		},
	)

	// UnknownMessagesTotal counts chunks abandoned on an unregistered message id
	UnknownMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dofuswire_unknown_messages_total",
			Help: "Total number of unregistered message ids encountered",
		},
	)

	// DecodeErrorsTotal counts failed decode attempts by stage
	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dofuswire_decode_errors_total",
			Help: "Total number of decode failures",
		},
		[]string{"stage"},
	)

	// StreamsActive tracks streams currently held by trackers
	StreamsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dofuswire_streams_active",
			Help: "Current number of tracked streams",
		},
		[]string{"worker"},
	)

	// StreamsEvictedTotal counts streams dropped after their idle timeout
	StreamsEvictedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dofuswire_streams_evicted_total",
			Help: "Total number of idle streams evicted",
		},
		[]string{"state"},
	)

	// SinkBatchSize tracks the number of messages flushed per sink write
	SinkBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dofuswire_sink_batch_size",
			Help:    "Number of messages written per sink flush",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1, 2, 4, ..., 2048
		},
		[]string{"sink"},
	)

	// SinkErrorsTotal counts sink write failures
	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dofuswire_sink_errors_total",
			Help: "Total number of sink write errors",
		},
		[]string{"sink"},
	)
)

// Decode error stages
const (
	StageHeader = "header"
	StageBody   = "body"
)
