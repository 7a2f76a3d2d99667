package wa

import (
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
)

// zapLog routes whatsmeow's printf-style logging into zap.
type zapLog struct {
	l *zap.SugaredLogger
}

func newLog(logger *zap.Logger) waLog.Logger {
	return zapLog{l: logger.Sugar()}
}

func (z zapLog) Errorf(msg string, args ...any) { z.l.Errorf(msg, args...) }
func (z zapLog) Warnf(msg string, args ...any)  { z.l.Warnf(msg, args...) }
func (z zapLog) Infof(msg string, args ...any)  { z.l.Infof(msg, args...) }
func (z zapLog) Debugf(msg string, args ...any) { z.l.Debugf(msg, args...) }

func (z zapLog) Sub(module string) waLog.Logger {
	return zapLog{l: z.l.Named(module)}
}
