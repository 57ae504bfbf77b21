// Package healthtracker reports repeated failures of a background
// activity on the health endpoint: a single failed upstream request is
// normal, a streak of them is not.
package healthtracker

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wojas/go-healthz"
	"go.uber.org/atomic"
)

// HealthConfig sets when a failure streak turns into a warning and
// when into an error, both by count and by duration.
type HealthConfig struct {
	EvaluationInterval time.Duration `yaml:"interval"`
	WarnDuration       time.Duration `yaml:"warn_duration"`
	ErrorDuration      time.Duration `yaml:"error_duration"`
	WarnSequence       uint32        `yaml:"warn_sequence"`
	ErrorSequence      uint32        `yaml:"error_sequence"`
}

// MinEvaluationInterval is the minimum interval between healthz
// evaluations.
const MinEvaluationInterval = time.Second

// Validated returns the config with out-of-range values clamped.
func (hc HealthConfig) Validated() HealthConfig {
	if hc.EvaluationInterval < MinEvaluationInterval {
		hc.EvaluationInterval = MinEvaluationInterval
	}
	return hc
}

// HealthTracker tracks consecutive failures of one activity and
// registers two healthz checks for it: one on the streak length, one
// on its duration.
type HealthTracker struct {
	config   HealthConfig
	sequence atomic.Uint32
	since    atomic.Time
	logger   logrus.FieldLogger
}

// New registers a tracker under the given healthz prefix. activity is
// used in the failure messages, e.g. "forward transaction upstream".
func New(hc HealthConfig, prefix string, activity string) *HealthTracker {
	hc = hc.Validated()
	ht := &HealthTracker{
		config: hc,
		logger: logrus.WithField("healthtracker", prefix),
	}

	healthz.Register(prefix+"_failed_attempts", hc.EvaluationInterval, func() error {
		streak := ht.sequence.Load()
		switch {
		case hc.ErrorSequence > 0 && streak >= hc.ErrorSequence:
			return fmt.Errorf("failed to %s %d consecutive times", activity, streak)
		case hc.WarnSequence > 0 && streak >= hc.WarnSequence:
			return healthz.Warnf("failed to %s %d consecutive times", activity, streak)
		}
		return nil
	})

	healthz.Register(prefix+"_failed_duration", hc.EvaluationInterval, func() error {
		if ht.sequence.Load() == 0 {
			return nil
		}
		failingFor := time.Since(ht.since.Load()).Round(time.Second)
		switch {
		case hc.ErrorDuration > 0 && failingFor >= hc.ErrorDuration:
			return fmt.Errorf("failed to %s for %s", activity, failingFor)
		case hc.WarnDuration > 0 && failingFor >= hc.WarnDuration:
			return healthz.Warnf("failed to %s for %s", activity, failingFor)
		}
		return nil
	})

	return ht
}

// AddFailure extends the current failure streak, starting one if
// needed.
func (ht *HealthTracker) AddFailure() {
	if ht.sequence.Load() == 0 {
		ht.since.Store(time.Now())
	}
	streak := ht.sequence.Inc()
	ht.logger.WithField("consecutive_failures", streak).Debug("Tracked failed attempt")
}

// AddSuccess ends the failure streak.
func (ht *HealthTracker) AddSuccess() {
	ht.sequence.Store(0)
	ht.logger.Debug("Tracked successful attempt")
}
