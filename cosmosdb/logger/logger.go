//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package logger provides leveled logging for the Cosmos DB client.
//
// A Logger is a thin leveled front end over a zap core. Applications that
// already use zap can hand their logger to NewWithZap so that client messages
// end up in the same sink.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel defines a set of logging levels that used to control logging output.
//
// The logging levels are ordered. The available levels in ascending order are:
//
//	Fine
//	Debug
//	Info
//	Warn
//	Error
//
// Enabling logging at a given level also enables logging at all higher levels.
// For example, if desired logging level for the logger is set to Debug, the
// messages of Debug level, as well as Info, Warn and Error levels are all logged.
//
// In addition there is a level Off that can be used to turn off logging.
type LogLevel int

const (
	// Fine represents a level used to log tracing messages such as the
	// per-request events emitted by the HTTP pipeline.
	Fine LogLevel = 10

	// Debug represents a level used to log debug messages.
	Debug LogLevel = 20

	// Info represents a level used to log informative messages.
	Info LogLevel = 30

	// Warn represents a level used to log warning messages.
	Warn LogLevel = 40

	// Error represents a level used to log error messages.
	Error LogLevel = 50

	// Off turns off logging.
	Off LogLevel = 99
)

// zapFine is the zap level that Fine messages are written at. zap has no
// level below Debug, so Fine sits one step under it.
const zapFine = zapcore.DebugLevel - 1

// String returns a string representation for the log level.
//
// This implements the fmt.Stringer interface.
func (level LogLevel) String() string {
	switch level {
	case Fine:
		return "Fine"
	case Debug:
		return "Debug"
	case Info:
		return "Info"
	case Warn:
		return "Warn"
	case Error:
		return "Error"
	case Off:
		return "Off"
	default:
		return "N/A"
	}
}

// ParseLogLevel returns the LogLevel named by s, ignoring case.
func ParseLogLevel(s string) (LogLevel, error) {
	for _, l := range []LogLevel{Fine, Debug, Info, Warn, Error, Off} {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}
	return Off, fmt.Errorf("unknown log level %q", s)
}

func (level LogLevel) zapLevel() zapcore.Level {
	switch level {
	case Fine:
		return zapFine
	case Debug:
		return zapcore.DebugLevel
	case Info:
		return zapcore.InfoLevel
	case Warn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func fromZapLevel(l zapcore.Level) LogLevel {
	switch {
	case l <= zapFine:
		return Fine
	case l == zapcore.DebugLevel:
		return Debug
	case l == zapcore.InfoLevel:
		return Info
	case l == zapcore.WarnLevel:
		return Warn
	default:
		return Error
	}
}

// Logger represents a logging object that wraps a zap logger, adding
// capabilities to control the desired level of messages to log and whether the
// log entry time is displayed in local time zone or UTC.
type Logger struct {
	zl *zap.Logger

	// level specifies the desired logging level.
	level LogLevel

	// timezone specifies the suffix that is displayed for log entry time.
	// This is an empty string if using local time zone, is "UTC" if using UTC time.
	timezone string
}

// New creates a logger that writes messages of the specified logging level to the specified io.Writer.
// If useLocalTime is set to false, the log entry displays UTC time.
//
// If specified level is set to Off or a not available value, returns nil that
// represents logging is disabled.
func New(out io.Writer, level LogLevel, useLocalTime bool) *Logger {
	if out == nil || !validLevel(level) {
		return nil
	}

	var tz string
	if !useLocalTime {
		tz = "UTC"
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       timeEncoder(tz),
		EncodeLevel:      levelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(out),
		zap.NewAtomicLevelAt(level.zapLevel()),
	)

	return &Logger{
		zl:       zap.New(core),
		level:    level,
		timezone: tz,
	}
}

// NewWithZap creates a logger that forwards messages of the specified logging
// level and above to zl. It returns nil if zl is nil or level is Off.
func NewWithZap(zl *zap.Logger, level LogLevel) *Logger {
	if zl == nil || !validLevel(level) {
		return nil
	}

	return &Logger{
		zl:    zl.WithOptions(zap.IncreaseLevel(level.zapLevel())),
		level: level,
	}
}

func validLevel(level LogLevel) bool {
	switch level {
	case Fine, Debug, Info, Warn, Error:
		return true
	default:
		return false
	}
}

// Level returns the desired logging level of the logger, or Off for a nil logger.
func (l *Logger) Level() LogLevel {
	if l == nil {
		return Off
	}
	return l.level
}

// Enabled reports whether a message at the specified level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	return l != nil && level != Off && l.level <= level
}

// Fine writes the specified message to the logger if the desired logging level is set to Fine.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Fine(messageFormat string, messageArgs ...interface{}) {
	l.Log(Fine, messageFormat, messageArgs...)
}

// Debug writes the specified message to the logger if the desired logging level
// is set to Debug or a value lower than Debug such as Fine.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Debug(messageFormat string, messageArgs ...interface{}) {
	l.Log(Debug, messageFormat, messageArgs...)
}

// Info writes the specified message to the logger if the desired logging level
// is set to Info or a value lower than Info such as Debug or Fine.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Info(messageFormat string, messageArgs ...interface{}) {
	l.Log(Info, messageFormat, messageArgs...)
}

// Warn writes the specified message to the logger if the desired logging level
// is set to Warn or a value lower than Warn such as Info, Debug or Fine.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Warn(messageFormat string, messageArgs ...interface{}) {
	l.Log(Warn, messageFormat, messageArgs...)
}

// Error writes the specified message to the logger if the desired logging level
// is set to Error or a value lower than Error such as Warn, Info, Debug or Fine.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Error(messageFormat string, messageArgs ...interface{}) {
	l.Log(Error, messageFormat, messageArgs...)
}

// Log writes the specified message to logger if the specified logging level is
// the same as or higher than logger's desired level.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Log(level LogLevel, messageFormat string, messageArgs ...interface{}) {
	if !l.Enabled(level) {
		return
	}

	l.write(level, fmt.Sprintf(messageFormat, messageArgs...))
}

// LogWithFn calls the function fn if the specified logging level is the same as
// or higher than logger's desired level, writes the message returned from fn to
// the logger.
func (l *Logger) LogWithFn(level LogLevel, fn func() string) {
	if !l.Enabled(level) {
		return
	}

	l.write(level, fn())
}

// With returns a logger that attaches the specified fields to every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	if l == nil {
		return nil
	}

	return &Logger{
		zl:       l.zl.With(fields...),
		level:    l.level,
		timezone: l.timezone,
	}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.zl.Sync()
}

func (l *Logger) write(level LogLevel, msg string) {
	if ce := l.zl.Check(level.zapLevel(), msg); ce != nil {
		ce.Write()
	}
}

// label returns a label for the specified logging level used to display in log entry.
func label(level LogLevel) string {
	switch level {
	case Fine:
		return "[FINE] "
	case Debug:
		return "[DEBUG]"
	case Info:
		return "[INFO] "
	case Warn:
		return "[WARN] "
	case Error:
		return "[ERROR]"
	default:
		return ""
	}
}

func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(label(fromZapLevel(l)))
}

func timeEncoder(timezone string) zapcore.TimeEncoder {
	const layout = "2006/01/02 15:04:05.000000"
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		if timezone == "" {
			enc.AppendString(t.Local().Format(layout))
			return
		}
		enc.AppendString(t.UTC().Format(layout) + " " + timezone)
	}
}

// DefaultLogger represents a default logger that writes warning and higher priority events to stderr.
var DefaultLogger *Logger = New(os.Stderr, Warn, false)
