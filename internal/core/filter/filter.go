// Package filter is the per-frame entry point: classify, then rewrite.
package filter

import (
	"firestige.xyz/icom/internal/core"
	"firestige.xyz/icom/internal/core/decoder"
	"firestige.xyz/icom/internal/core/rewriter"
)

// Config is the load-time configuration of a Program.
type Config struct {
	Match   decoder.MatchConfig
	ScanCap int // 0 selects rewriter.DefaultScanCap
}

// Result describes what Inspect did to a frame.
type Result struct {
	Verdict    core.Verdict
	Reason     decoder.Reason
	Rewritten  bool
	Match      decoder.Match // header offsets, set when Reason is ReasonMatched
	FoldOffset int           // payload offset of the fold's SP, rewriter.NotFound if none
}

// Program runs the classifier and the rewriter over one frame at a time.
// It holds no mutable state and may be shared by any number of goroutines,
// each working on its own frame.
type Program struct {
	classifier *decoder.Classifier
	rewriter   *rewriter.Rewriter
}

// New validates cfg and builds a Program.
func New(cfg Config) (*Program, error) {
	c, err := decoder.NewClassifier(cfg.Match)
	if err != nil {
		return nil, err
	}
	r, err := rewriter.New(cfg.ScanCap)
	if err != nil {
		return nil, err
	}
	return &Program{classifier: c, rewriter: r}, nil
}

// Config returns the effective configuration.
func (p *Program) Config() Config {
	return Config{
		Match:   p.classifier.Config(),
		ScanCap: p.rewriter.ScanCap(),
	}
}

// Run processes frame in place and returns its verdict, which is always
// core.VerdictPass.
func (p *Program) Run(frame []byte) core.Verdict {
	return p.Inspect(frame).Verdict
}

// Inspect is Run with the details the host runtime counts.
func (p *Program) Inspect(frame []byte) Result {
	res := Result{
		Verdict:    core.VerdictPass,
		FoldOffset: rewriter.NotFound,
	}

	m, reason := p.classifier.Classify(frame)
	res.Reason = reason
	if reason != decoder.ReasonMatched {
		return res
	}
	res.Match = m

	sp, ok := p.rewriter.Rewrite(frame, m)
	if !ok {
		return res
	}
	res.Rewritten = true
	res.FoldOffset = sp
	return res
}
