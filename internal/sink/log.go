package sink

import (
	"firestige.xyz/icom/internal/core"
	"firestige.xyz/icom/internal/log"
)

const TypeLog = "log"

func init() {
	Register(TypeLog, func(options map[string]any) (Sink, error) {
		var opts LogOptions
		if err := decodeOptions(options, &opts); err != nil {
			return nil, err
		}
		return NewLog(opts, log.GetLogger()), nil
	})
}

// LogOptions configures the log sink.
type LogOptions struct {
	RewrittenOnly bool `mapstructure:"rewritten_only"`
}

// LogSink writes one debug line per frame.
type LogSink struct {
	opts   LogOptions
	logger log.Logger
}

func NewLog(opts LogOptions, logger log.Logger) *LogSink {
	return &LogSink{opts: opts, logger: logger.WithField("sink", TypeLog)}
}

func (s *LogSink) Name() string {
	return TypeLog
}

func (s *LogSink) Write(pkt core.RawPacket) error {
	if s.opts.RewrittenOnly && !pkt.Rewritten {
		return nil
	}
	if !s.logger.IsDebugEnabled() {
		return nil
	}
	s.logger.WithFields(map[string]interface{}{
		"len":       len(pkt.Data),
		"orig_len":  pkt.OrigLen,
		"ts":        pkt.Timestamp.UnixNano(),
		"rewritten": pkt.Rewritten,
	}).Debug("frame")
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
