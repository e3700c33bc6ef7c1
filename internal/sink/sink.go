// Package sink defines where frames leave a pipeline after filtering.
package sink

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/icom/internal/core"
)

// Sink consumes every frame a pipeline forwards, rewritten or not. Sinks may
// be shared by several pipelines and must be safe for concurrent Write.
// Write must not retain pkt.Data after it returns.
type Sink interface {
	Name() string
	Write(pkt core.RawPacket) error
	Close() error
}

// Factory builds a sink from its raw options.
type Factory func(options map[string]any) (Sink, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a sink type available to New. Registering a type twice
// replaces the earlier factory.
func Register(typ string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typ] = factory
}

// Types lists the registered sink types in sorted order.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// New builds a sink of the given type.
func New(typ string, options map[string]any) (Sink, error) {
	registryMu.RLock()
	factory, ok := registry[typ]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", core.ErrUnknownSink, typ, Types())
	}
	s, err := factory(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s sink: %w", typ, err)
	}
	return s, nil
}

// decodeOptions decodes raw options into out, rejecting unknown keys.
func decodeOptions(options map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(options); err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	return nil
}

// CloseAll closes every sink and returns the first error.
func CloseAll(sinks []Sink) error {
	var first error
	for _, s := range sinks {
		if err := s.Close(); err != nil && first == nil {
			first = fmt.Errorf("failed to close sink %s: %w", s.Name(), err)
		}
	}
	return first
}
