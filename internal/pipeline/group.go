package pipeline

import (
	"context"
	"errors"
)

// Group runs several pipelines that share sinks, typically one per member
// of an AF_PACKET fanout group.
type Group struct {
	pipelines []*Pipeline
}

// NewGroup creates a group from already built pipelines.
func NewGroup(pipelines ...*Pipeline) *Group {
	return &Group{pipelines: pipelines}
}

// Pipelines returns the group members.
func (g *Group) Pipelines() []*Pipeline {
	return g.pipelines
}

// Start starts every pipeline. If one fails to start, those already
// started are stopped.
func (g *Group) Start(ctx context.Context) error {
	for i, p := range g.pipelines {
		if err := p.Start(ctx); err != nil {
			for _, started := range g.pipelines[:i] {
				started.Stop()
			}
			return err
		}
	}
	return nil
}

// Wait blocks until every pipeline has ended and joins their errors.
func (g *Group) Wait() error {
	var errs []error
	for _, p := range g.pipelines {
		if err := p.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop stops every pipeline and joins their errors.
func (g *Group) Stop() error {
	var errs []error
	for _, p := range g.pipelines {
		if err := p.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns the sum of all pipeline statistics.
func (g *Group) Stats() Stats {
	var total Stats
	for _, p := range g.pipelines {
		total = total.Add(p.Stats())
	}
	return total
}
