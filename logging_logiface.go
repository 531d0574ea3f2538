package lame

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// LogifaceLogger adapts a github.com/joeycumines/logiface logger backed
// by stumpy's JSON writer to the Logger interface, so production callers
// get structured JSON records (one field per LogEntry field) in addition
// to the legacy bracketed text the [WriterLogger] emits for the lamelog
// analyzer.
type LogifaceLogger struct {
	logger *logiface.Logger[*stumpy.Event]
}

// NewLogifaceLogger constructs a Logger writing JSON lines via stumpy.
// Passing nil options uses stumpy's defaults (os.Stderr, "lvl"/"msg"/"err"
// fields).
func NewLogifaceLogger(options ...stumpy.Option) *LogifaceLogger {
	return &LogifaceLogger{
		logger: logiface.New[*stumpy.Event](stumpy.WithStumpy(options...)),
	}
}

func (l *LogifaceLogger) IsEnabled(level LogLevel) bool {
	return l.logger.Level() >= logifaceLevel(level)
}

func (l *LogifaceLogger) Log(entry LogEntry) {
	b := l.logger.Build(logifaceLevel(entry.Level))
	if b == nil {
		return
	}
	b = b.Str("category", entry.Category).Int("worker_id", entry.WorkerID)
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}

func logifaceLevel(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}
