package sched

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are registered on a per-kernel registry so several kernels can
// live in one process (tests create many).
type Metrics struct {
	registry *prometheus.Registry

	// load is the CPU utilization sampled at each release of the sampling task.
	load        prometheus.Gauge
	ready       prometheus.Gauge
	taskRuntime *prometheus.CounterVec
	overruns    *prometheus.CounterVec
	switches    prometheus.Counter
	ticks       prometheus.Counter
	wraps       prometheus.Counter
	anomalies   prometheus.Counter
}

func newMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		load: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rtedf_cpu_load_percent",
			Help: "CPU utilization sampled at each release of the load-sampling task",
		}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rtedf_ready_tasks",
			Help: "Tasks in the ready set after the last tick",
		}),
		taskRuntime: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtedf_task_runtime_counts_total",
			Help: "Timer counts attributed to each task by the switch hooks",
		}, []string{"task"}),
		overruns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtedf_task_overruns_total",
			Help: "Releases that found the previous instance unfinished",
		}, []string{"task"}),
		switches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtedf_context_switches_total",
			Help: "Context switches, idle included",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtedf_ticks_total",
			Help: "Tick interrupts processed",
		}),
		wraps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtedf_timer_wraps_total",
			Help: "Accounting intervals that crossed a counter wrap",
		}),
		anomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtedf_accounting_anomalies_total",
			Help: "Utilization readings outside [0, 100]",
		}),
	}
	m.registry.MustRegister(m.load, m.ready, m.taskRuntime, m.overruns, m.switches, m.ticks, m.wraps, m.anomalies)
	return m
}

// Registry exposes the kernel metrics for a /metrics handler.
func (k *Kernel) Registry() *prometheus.Registry { return k.metrics.registry }
