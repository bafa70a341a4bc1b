package logging

import (
	"go.uber.org/zap"
)

// EarlyLog covers the window before configuration has been read and the
// configured logger exists. It logs through zap's production preset.
type EarlyLog struct {
	log *zap.SugaredLogger
}

func NewEarlyLog(service string) *EarlyLog {
	base, err := zap.NewProduction()
	if err != nil {
		base = zap.NewNop()
	}
	return newEarlyLog(base, service)
}

func newEarlyLog(base *zap.Logger, service string) *EarlyLog {
	return &EarlyLog{log: base.With(zap.String("service_name", service)).Sugar()}
}

func (l *EarlyLog) Error(msg string, args ...interface{}) {
	l.log.Errorf(msg, args...)
	_ = l.log.Sync()
}

func (l *EarlyLog) Info(msg string, args ...interface{}) {
	l.log.Infof(msg, args...)
}
