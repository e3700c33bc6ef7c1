package pipeline

import (
	"firestige.xyz/icom/internal/core/filter"
	"firestige.xyz/icom/internal/sink"
	"firestige.xyz/icom/internal/source"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{
		config: Config{
			BufferSize: 1024,
		},
	}
}

// WithID sets the pipeline ID.
func (b *Builder) WithID(id int) *Builder {
	b.config.ID = id
	return b
}

// WithSource sets the frame source.
func (b *Builder) WithSource(s source.Source) *Builder {
	b.config.Source = s
	return b
}

// WithProgram sets the filter program.
func (b *Builder) WithProgram(p *filter.Program) *Builder {
	b.config.Program = p
	return b
}

// WithSinks sets the sinks every frame is written to.
func (b *Builder) WithSinks(sinks ...sink.Sink) *Builder {
	b.config.Sinks = sinks
	return b
}

// WithInspector sets the inspector run on rewritten frames.
func (b *Builder) WithInspector(i Inspector) *Builder {
	b.config.Inspector = i
	return b
}

// WithBufferSize sets the raw packet channel buffer size.
func (b *Builder) WithBufferSize(size int) *Builder {
	b.config.BufferSize = size
	return b
}

// WithBlocking makes the capture loop wait instead of dropping.
func (b *Builder) WithBlocking(blocking bool) *Builder {
	b.config.Blocking = blocking
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	return New(b.config)
}
