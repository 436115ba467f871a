package usecase

import (
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/internal/service/ratelimit"
	applogger "SignalForge/pkg/logger"
)

// RejectionLogger counts every rejected event and logs at most perSecond
// lines per key, so one misbehaving source cannot flood the log.
type RejectionLogger struct {
	limiter   *ratelimit.Limiter
	l         *applogger.Logger
	metrics   domrepo.Metrics
	perSecond float64
}

func NewRejectionLogger(l *applogger.Logger, metrics domrepo.Metrics, perSecond float64, limiter *ratelimit.Limiter) *RejectionLogger {
	if limiter == nil {
		limiter = ratelimit.New()
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &RejectionLogger{limiter: limiter, l: l, metrics: metrics, perSecond: perSecond}
}

// Reject records a rejected event of kind from key.
func (r *RejectionLogger) Reject(kind, key string, err error) {
	r.metrics.RecordRejected(kind)
	if r.perSecond <= 0 {
		return
	}
	ok, suppressed := r.limiter.Take(kind+"|"+key, r.perSecond, r.perSecond)
	if !ok {
		return
	}
	fields := []applogger.Field{
		applogger.String("kind", kind),
		applogger.String("key", key),
		applogger.Error(err),
	}
	if suppressed > 0 {
		fields = append(fields, applogger.Int64("suppressed", suppressed))
	}
	r.l.Warn("ingest.rejected", fields...)
}
