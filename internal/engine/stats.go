package engine

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// stats holds engine metrics. The audio callbacks only touch atomics on the
// stream pair; the worker harvests them into these collectors.
type stats struct {
	reg *prometheus.Registry

	overflows       prometheus.Counter
	underflows      prometheus.Counter
	frames          prometheus.Counter
	recordedSamples prometheus.Counter
	restarts        prometheus.Counter
	cmdFailures     *prometheus.CounterVec

	running   prometheus.Gauge
	recording prometheus.Gauge
	latency   prometheus.Gauge
}

func newStats() *stats {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	return &stats{
		reg: reg,

		overflows: f.NewCounter(prometheus.CounterOpts{
			Name: "ezdaw_ring_overflows_total",
			Help: "Input samples dropped because the latency buffer was full",
		}),
		underflows: f.NewCounter(prometheus.CounterOpts{
			Name: "ezdaw_ring_underflows_total",
			Help: "Output samples replaced by silence because the latency buffer was empty",
		}),
		frames: f.NewCounter(prometheus.CounterOpts{
			Name: "ezdaw_output_frames_total",
			Help: "Frames written to the output device",
		}),
		recordedSamples: f.NewCounter(prometheus.CounterOpts{
			Name: "ezdaw_recorded_samples_total",
			Help: "Samples appended to recorded clips",
		}),
		restarts: f.NewCounter(prometheus.CounterOpts{
			Name: "ezdaw_engine_restarts_total",
			Help: "Successful engine starts and restarts",
		}),
		cmdFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ezdaw_command_failures_total",
			Help: "Engine requests that failed, by operation",
		}, []string{"op"}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Name: "ezdaw_engine_running",
			Help: "1 while an engine worker is running",
		}),
		recording: f.NewGauge(prometheus.GaugeOpts{
			Name: "ezdaw_engine_recording",
			Help: "1 while a clip is being recorded",
		}),
		latency: f.NewGauge(prometheus.GaugeOpts{
			Name: "ezdaw_latency_samples",
			Help: "Size of the latency offset in interleaved samples",
		}),
	}
}

func (s *stats) handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		s.reg, promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}),
	)
}

// harvest moves the counters accumulated by the stream pair callbacks into
// the collectors.
type harvest struct {
	overflows, underflows, frames, recorded uint64
	dt                                      time.Duration
}

func (s *stats) add(h harvest) {
	s.overflows.Add(float64(h.overflows))
	s.underflows.Add(float64(h.underflows))
	s.frames.Add(float64(h.frames))
	s.recordedSamples.Add(float64(h.recorded))
}
