package jobs

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapts zap.Logger to the cron.Logger interface.
type cronLogger struct {
	zl *zap.Logger
}

// NewCronLogger creates a new cronLogger.
func NewCronLogger(zl *zap.Logger) cron.Logger {
	return &cronLogger{zl: zl}
}

// Info logs routine scheduler messages at debug level; cron emits one per tick.
func (cl *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	cl.zl.Debug(msg, toFields(keysAndValues)...)
}

// Error logs error messages from cron.
func (cl *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(toFields(keysAndValues), zap.Error(err))
	cl.zl.Error(msg, fields...)
}

func toFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(key, "MISSING_VALUE"))
		}
	}
	return fields
}
