package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// debugKeyField is attached to CDebugw lines that were forced on by a debug mode context.
const debugKeyField = "debug_key"

type impl struct {
	name  string
	level AtomicLevel
	inUTC bool

	appenders []Appender
}

func (imp *impl) AddAppender(appender Appender) { imp.appenders = append(imp.appenders, appender) }
func (imp *impl) SetLevel(level Level)          { imp.level.Set(level) }
func (imp *impl) GetLevel() Level               { return imp.level.Get() }

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.GetLevel()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

func (imp *impl) enabled(level Level) bool {
	return level >= imp.level.Get()
}

// entry must only be called from the print helpers so the caller depth stays fixed.
func (imp *impl) entry(level Level, msg string) zapcore.Entry {
	now := time.Now()
	if imp.inUTC {
		now = now.UTC()
	}
	return zapcore.Entry{
		Level:      level.AsZap(),
		Time:       now,
		LoggerName: imp.name,
		Message:    msg,
		Caller:     callerOfLogger(),
	}
}

func (imp *impl) write(entry zapcore.Entry, fields []zapcore.Field) {
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			//nolint:errcheck
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (imp *impl) print(level Level, args ...interface{}) {
	if imp.enabled(level) {
		imp.write(imp.entry(level, fmt.Sprint(args...)), nil)
	}
}

func (imp *impl) printf(level Level, template string, args ...interface{}) {
	if imp.enabled(level) {
		imp.write(imp.entry(level, fmt.Sprintf(template, args...)), nil)
	}
}

func (imp *impl) printw(level Level, msg string, keysAndValues ...interface{}) {
	if imp.enabled(level) {
		imp.write(imp.entry(level, msg), pairsToFields(keysAndValues))
	}
}

// pairsToFields reads keysAndValues as alternating keys and values. A trailing key with no
// value is kept with an error as its value.
func pairsToFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		var key string
		switch k := keysAndValues[i].(type) {
		case string:
			key = k
		case fmt.Stringer:
			key = k.String()
		default:
			key = fmt.Sprint(k)
		}
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) { imp.print(DEBUG, args...) }
func (imp *impl) Info(args ...interface{})  { imp.print(INFO, args...) }
func (imp *impl) Warn(args ...interface{})  { imp.print(WARN, args...) }
func (imp *impl) Error(args ...interface{}) { imp.print(ERROR, args...) }

func (imp *impl) Debugf(template string, args ...interface{}) { imp.printf(DEBUG, template, args...) }
func (imp *impl) Infof(template string, args ...interface{})  { imp.printf(INFO, template, args...) }
func (imp *impl) Warnf(template string, args ...interface{})  { imp.printf(WARN, template, args...) }
func (imp *impl) Errorf(template string, args ...interface{}) { imp.printf(ERROR, template, args...) }

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.printw(DEBUG, msg, keysAndValues...)
}
func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.printw(INFO, msg, keysAndValues...)
}
func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.printw(WARN, msg, keysAndValues...)
}
func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.printw(ERROR, msg, keysAndValues...)
}

// CDebugw logs at debug level, or unconditionally when ctx is in debug mode.
func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.printw(DEBUG, msg, keysAndValues...)
		return
	}
	if key, ok := DebugKey(ctx); ok {
		imp.forcew(key, msg, keysAndValues...)
	}
}

func (imp *impl) forcew(debugKey, msg string, keysAndValues ...interface{}) {
	fields := append(pairsToFields(keysAndValues), zap.String(debugKeyField, debugKey))
	imp.write(imp.entry(DEBUG, msg), fields)
}

// callerOfLogger locates the code that called a Logger method, e.g. "logging/impl_test.go:36".
func callerOfLogger() zapcore.EntryCaller {
	// callerOfLogger <- entry <- print* <- Logger method <- caller.
	const skip = 4
	var caller zapcore.EntryCaller
	var ok bool
	caller.PC, caller.File, caller.Line, ok = runtime.Caller(skip)
	if !ok {
		return caller
	}
	caller.Defined = true
	if fn := runtime.FuncForPC(caller.PC); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}
