// internal/sched/utilization.go

package sched

import (
	"fmt"
)

// LoadTolerance is the rounding slack, in percent, above 100 that is still
// accepted as a full load.
const LoadTolerance = 0.5

// CPULoad returns busy/elapsed as a percentage. A reading above
// 100+LoadTolerance is an accounting defect and is returned with
// ErrAccountingAnomaly alongside the raw value.
func CPULoad(busy, elapsed uint64) (float64, error) {
	if elapsed == 0 {
		if busy > 0 {
			return 100, fmt.Errorf("%w: %d busy counts in zero elapsed time", ErrAccountingAnomaly, busy)
		}
		return 0, nil
	}
	pct := float64(busy) / float64(elapsed) * 100
	if pct > 100+LoadTolerance {
		return pct, fmt.Errorf("%w: load %.2f%% (busy=%d elapsed=%d)", ErrAccountingAnomaly, pct, busy, elapsed)
	}
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}

// reporter keeps the load figure refreshed at each release of the sampling task.
type reporter struct {
	sampler *Task
	load    float64
	samples uint64
	at      Tick
}

// pickSampler returns the configured sampling task, or the least urgent
// periodic task (longest period on ties).
func (k *Kernel) pickSampler() *Task {
	if k.cfg.LoadSamplerTag != 0 {
		if t, ok := k.reg.lookup(k.cfg.LoadSamplerTag); ok {
			return t
		}
		k.log.Warn().Uint16("tag", uint16(k.cfg.LoadSamplerTag)).Msg("load sampler tag not registered, picking least urgent task")
	}
	var pick *Task
	k.reg.each(func(t *Task) {
		if pick == nil || t.Priority > pick.Priority ||
			(t.Priority == pick.Priority && t.Period > pick.Period) {
			pick = t
		}
	})
	return pick
}

// loadLocked computes the current load. Anomalies panic in strict mode and
// are clamped and reported otherwise.
func (k *Kernel) loadLocked() float64 {
	k.sampleLocked()
	pct, err := CPULoad(k.acc.Busy, k.acc.Elapsed)
	if err != nil {
		k.metrics.anomalies.Inc()
		if k.cfg.Strict {
			panic(err)
		}
		if k.anomalyLog.Allow() {
			k.log.Error().Err(err).Msg("utilization out of range, clamping")
		}
		pct = 100
	}
	return pct
}

// refreshLoadLocked records a new sampled load figure.
func (k *Kernel) refreshLoadLocked() {
	k.rep.load = k.loadLocked()
	k.rep.samples++
	k.rep.at = k.tick
	k.metrics.load.Set(k.rep.load)
	k.emitLoad(k.rep.load)
}
