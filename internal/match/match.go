// Package match runs atomic marker patterns over normalized chunks.
package match

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/leandeep/marker-engine/internal/catalog"
	"github.com/leandeep/marker-engine/internal/marker"
	"github.com/leandeep/marker-engine/internal/textproc"
)

// Hit is a single pattern match, reported in original-stream byte
// coordinates. Hits below the marker's confidence threshold are
// already filtered out.
type Hit struct {
	MarkerID   string
	Span       marker.Span
	Confidence float64
}

// Options tune the matcher.
type Options struct {
	// BaseConfidence is assigned to every pattern match.
	BaseConfidence float64
	// Parallelism bounds the number of patterns matched concurrently.
	Parallelism int
}

// DefaultOptions returns the default matcher settings.
func DefaultOptions() Options {
	return Options{
		BaseConfidence: 1.0,
		Parallelism:    4,
	}
}

// Matcher matches every atomic definition of a catalog against chunks.
// A Matcher is stateless and safe for concurrent use.
type Matcher struct {
	opts Options
}

// New creates a matcher. Zero option fields fall back to defaults.
func New(opts Options) *Matcher {
	def := DefaultOptions()
	if opts.BaseConfidence <= 0 {
		opts.BaseConfidence = def.BaseConfidence
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = def.Parallelism
	}
	return &Matcher{opts: opts}
}

// Match runs all ATO patterns of cat over the normalized chunk and
// returns hits ordered by (span start, catalog order, span length).
// base is the chunk's byte offset in the original stream; spans are
// reported relative to the stream.
func (m *Matcher) Match(ctx context.Context, cat *catalog.Catalog, norm *textproc.Normalized, base int) ([]Hit, error) {
	defs := cat.ByLevel(marker.LevelATO)
	if len(defs) == 0 || norm.Text == "" {
		return nil, nil
	}

	perDef := make([][]Hit, len(defs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Parallelism)

	for i, d := range defs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if m.opts.BaseConfidence < d.ConfidenceThreshold {
				return nil
			}
			re := cat.Pattern(d.MarkerID)
			locs := re.FindAllStringIndex(norm.Text, -1)
			if len(locs) == 0 {
				return nil
			}
			hits := make([]Hit, 0, len(locs))
			for _, loc := range locs {
				if loc[0] == loc[1] {
					continue
				}
				origStart, origEnd := norm.OrigSpan(loc[0], loc[1])
				hits = append(hits, Hit{
					MarkerID:   d.MarkerID,
					Span:       marker.Span{Start: base + origStart, Length: origEnd - origStart},
					Confidence: m.opts.BaseConfidence,
				})
			}
			perDef[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge in catalog order, then make the final order independent of
	// scheduling: span start first, catalog order breaking ties.
	var merged []hitOrd
	for i, hits := range perDef {
		for _, h := range hits {
			merged = append(merged, hitOrd{Hit: h, ord: i})
		}
	}
	sort.SliceStable(merged, func(a, b int) bool {
		ha, hb := merged[a], merged[b]
		if ha.Span.Start != hb.Span.Start {
			return ha.Span.Start < hb.Span.Start
		}
		if ha.ord != hb.ord {
			return ha.ord < hb.ord
		}
		return ha.Span.Length < hb.Span.Length
	})

	out := make([]Hit, len(merged))
	for i, h := range merged {
		out[i] = h.Hit
	}
	return out, nil
}

type hitOrd struct {
	Hit
	ord int
}
