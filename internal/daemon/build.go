package daemon

import (
	"fmt"

	"firestige.xyz/icom/internal/config"
	"firestige.xyz/icom/internal/core/filter"
	"firestige.xyz/icom/internal/log"
	"firestige.xyz/icom/internal/pipeline"
	"firestige.xyz/icom/internal/sink"
	"firestige.xyz/icom/plugins/parser/sip"
)

// buildProgram compiles the filter from the match constants.
func buildProgram(cfg *config.Config) (*filter.Program, error) {
	fc, err := cfg.FilterConfig()
	if err != nil {
		return nil, err
	}
	return filter.New(fc)
}

// buildSinks creates every configured sink. On failure the sinks already
// created are closed.
func buildSinks(cfg *config.Config) ([]sink.Sink, error) {
	sinks := make([]sink.Sink, 0, len(cfg.Sinks))
	for i, sc := range cfg.Sinks {
		s, err := sink.New(sc.Type, sc.Options)
		if err != nil {
			sink.CloseAll(sinks)
			return nil, fmt.Errorf("sinks[%d]: %w", i, err)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// newInspector returns a SIP inspector when inspection is enabled. Each
// pipeline gets its own parser.
func newInspector(cfg *config.Config) pipeline.Inspector {
	if !cfg.Inspect.Enabled {
		return nil
	}
	return sip.New(log.GetLogger())
}
