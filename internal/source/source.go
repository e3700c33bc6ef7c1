// Package source defines where frames enter a pipeline.
package source

import (
	"context"

	"firestige.xyz/icom/internal/core"
)

// Source yields raw frames one at a time.
//
// ReadPacket blocks until a frame is available, ctx is done (ctx.Err() is
// returned) or the source is exhausted (io.EOF). The returned Data may alias
// an internal buffer and is only valid until the next ReadPacket call.
// ReadPacket and Close must be called from the same goroutine.
type Source interface {
	Name() string
	ReadPacket(ctx context.Context) (core.RawPacket, error)
	Close() error
}

// DropCounter is implemented by sources that can report frames lost before
// they were read, such as kernel ring drops.
type DropCounter interface {
	Drops() uint64
}
