package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

// AdmissionController gates queries before any workflow runs.
//
// Two token buckets apply. The throttle smooths bursts: a query over its rate
// waits for a token, up to a maximum delay. The rate limit bounds volume over
// a rolling period: a query over it is rejected at once. Every refusal is
// reported as domain.ErrAdmissionRejected.
type AdmissionController struct {
	throttle *rate.Limiter
	limit    *rate.Limiter
	maxWait  time.Duration
	period   time.Duration

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

// NewAdmissionController creates a controller from settings.
func NewAdmissionController(settings domain.AdmissionSettings) *AdmissionController {
	period := settings.RatePeriod / time.Duration(settings.RateLimit)
	return &AdmissionController{
		throttle: rate.NewLimiter(rate.Limit(settings.ThrottleRate), settings.ThrottleBurst),
		limit:    rate.NewLimiter(rate.Every(period), settings.RateLimit),
		maxWait:  settings.ThrottleMaxWait,
		period:   settings.RatePeriod,
		now:      time.Now,
		wait:     sleepContext,
	}
}

// Admit returns nil once the request may proceed.
// It may block for up to the throttle's maximum wait.
func (a *AdmissionController) Admit(ctx context.Context) error {
	now := a.now()

	lr := a.limit.ReserveN(now, 1)
	if !lr.OK() || lr.DelayFrom(now) > 0 {
		lr.CancelAt(now)
		return fmt.Errorf("%w: rate limit of %d per %s exceeded",
			domain.ErrAdmissionRejected, a.limit.Burst(), a.period)
	}

	tr := a.throttle.ReserveN(now, 1)
	delay := tr.DelayFrom(now)
	if !tr.OK() || delay > a.maxWait {
		tr.CancelAt(now)
		lr.CancelAt(now)
		return fmt.Errorf("%w: throttled, next slot in %s exceeds %s",
			domain.ErrAdmissionRejected, delay.Round(time.Millisecond), a.maxWait)
	}

	if delay > 0 {
		logger.Debug("admission: throttled, waiting %s", delay)
		if err := a.wait(ctx, delay); err != nil {
			tr.Cancel()
			lr.Cancel()
			return err
		}
	}
	return nil
}
