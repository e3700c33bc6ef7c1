package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPattern = "%time [%level] %caller %func: %msg %field\n"
	DefaultTime    = "2006-01-02 15:04:05.000"
)

// LoggerConfig configures the global logger.
type LoggerConfig struct {
	Pattern string           `mapstructure:"pattern" yaml:"pattern"`
	Time    string           `mapstructure:"time" yaml:"time"`
	Level   string           `mapstructure:"level" yaml:"level"`
	Caller  bool             `mapstructure:"caller" yaml:"caller"`
	File    *FileAppenderOpt `mapstructure:"file" yaml:"file,omitempty"`
}

type logrusAdapter struct {
	entry *logrus.Entry
}

func newDefaultLogger() Logger {
	l := logrus.New()
	l.SetFormatter(&formatter{pattern: DefaultPattern, time: DefaultTime})
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	return &logrusAdapter{entry: logrus.NewEntry(l)}
}

func initByConfig(cfg *LoggerConfig) (Logger, error) {
	if cfg == nil {
		return newDefaultLogger(), nil
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	out, err := buildWriter(cfg, os.Stdout)
	if err != nil {
		return nil, err
	}
	return newLogger(cfg, level, out), nil
}

// NewWithWriter builds a logger from cfg that writes only to out.
func NewWithWriter(cfg *LoggerConfig, out io.Writer) (Logger, error) {
	if cfg == nil {
		cfg = &LoggerConfig{Level: "info"}
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	return newLogger(cfg, level, out), nil
}

// buildWriter fans out to stdout plus the optional rotating file.
func buildWriter(cfg *LoggerConfig, stdout io.Writer) (io.Writer, error) {
	w := NewMultiWriter().Add(stdout)
	if cfg.File != nil && cfg.File.Filename != "" {
		if strings.HasSuffix(cfg.File.Filename, "/") {
			return nil, fmt.Errorf("log file %q is a directory", cfg.File.Filename)
		}
		w.AddFileAppender(*cfg.File)
	}
	return w, nil
}

func newLogger(cfg *LoggerConfig, level logrus.Level, out io.Writer) Logger {
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	timeFormat := cfg.Time
	if timeFormat == "" {
		timeFormat = DefaultTime
	}

	l := logrus.New()
	l.SetFormatter(&formatter{
		pattern: pattern,
		time:    timeFormat,
	})
	l.SetLevel(level)
	l.SetReportCaller(cfg.Caller)
	l.SetOutput(out)

	return &logrusAdapter{
		entry: logrus.NewEntry(l),
	}
}

func (l *logrusAdapter) Print(args ...interface{})                 { l.entry.Print(args...) }
func (l *logrusAdapter) Printf(format string, args ...interface{}) { l.entry.Printf(format, args...) }

func (l *logrusAdapter) Trace(args ...interface{})                 { l.entry.Trace(args...) }
func (l *logrusAdapter) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }

func (l *logrusAdapter) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusAdapter) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusAdapter) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusAdapter) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusAdapter) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusAdapter) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusAdapter) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusAdapter) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusAdapter) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *logrusAdapter) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logrusAdapter) Panic(args ...interface{})                 { l.entry.Panic(args...) }
func (l *logrusAdapter) Panicf(format string, args ...interface{}) { l.entry.Panicf(format, args...) }

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithField(field, value)}
}
func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}
func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}

func (l *logrusAdapter) IsTraceEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.TraceLevel)
}
func (l *logrusAdapter) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
func (l *logrusAdapter) IsInfoEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.InfoLevel)
}

func (l *logrusAdapter) GetEntry() interface{} {
	return l.entry
}
