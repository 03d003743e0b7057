package metrics

import (
	"github.com/dailyyoga/regstats/logger"
	"go.uber.org/zap"
)

// Log implements Collector by writing every observation as a debug entry.
// It is used when no metrics backend is configured but the operator still
// wants the numbers in the log stream.
type Log struct {
	log logger.Logger
}

var _ Collector = (*Log)(nil)

// NewLog creates a logger-backed collector. A nil logger discards output.
func NewLog(log logger.Logger) *Log {
	if log == nil {
		log = logger.NewNop()
	}
	return &Log{log: log}
}

func (l *Log) IncCounter(name string, delta int64) {
	l.log.Debug("counter", zap.String("metric", name), zap.Int64("delta", delta))
}

func (l *Log) SetGauge(name string, value float64) {
	l.log.Debug("gauge", zap.String("metric", name), zap.Float64("value", value))
}

func (l *Log) ObserveHistogram(name string, value float64) {
	l.log.Debug("histogram", zap.String("metric", name), zap.Float64("value", value))
}
