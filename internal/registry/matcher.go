package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
)

// SourceMatcher applies the lookup priority over a RecordSource: the problem
// set first, then the valid set by plate.
type SourceMatcher struct {
	name    Name
	source  RecordSource
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

type MatcherOption func(*SourceMatcher)

// WithClock sets the clock used for expiry checks.
func WithClock(now func() time.Time) MatcherOption {
	return func(m *SourceMatcher) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLookupTimeout bounds each lookup; 0 leaves the caller's deadline alone.
func WithLookupTimeout(d time.Duration) MatcherOption {
	return func(m *SourceMatcher) {
		if d >= 0 {
			m.timeout = d
		}
	}
}

func NewMatcher(name Name, source RecordSource, logger *slog.Logger, opts ...MatcherOption) *SourceMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	m := &SourceMatcher{
		name:    name,
		source:  source,
		timeout: 10 * time.Second,
		now:     time.Now,
		logger:  logger,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *SourceMatcher) Name() Name { return m.name }

func (m *SourceMatcher) Lookup(ctx context.Context, c Claim) (MatchResult, error) {
	c = c.Normalized()
	if c.Empty() {
		return notFound(), nil
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	hits, err := m.source.Find(ctx, c)
	if err != nil {
		m.logger.Error("registry.lookup.failed", "registry", m.name, "plate", c.PlateNumber, "error", err)
		return MatchResult{}, fmt.Errorf("%s registry lookup: %w", m.name, err)
	}
	res := m.evaluate(hits)
	m.logger.Info("registry.lookup.ok",
		"registry", m.name,
		"plate", c.PlateNumber,
		"status", res.Status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (m *SourceMatcher) evaluate(h Hits) MatchResult {
	if h.Problem != nil {
		return MatchResult{
			Found:      true,
			Status:     constants.RecordFlagged,
			CanApprove: false,
			Record:     h.Problem,
			Message:    problemMessage(h.Problem.Status),
		}
	}
	if h.Valid == nil {
		return notFound()
	}
	if exp, ok := h.Valid.Expiry(); ok && exp.Before(startOfDay(m.now())) {
		return MatchResult{
			Found:      true,
			Status:     constants.RecordExpired,
			CanApprove: false,
			Record:     h.Valid,
			Message:    fmt.Sprintf("Record expired on %s", exp.Format("2006-01-02")),
		}
	}
	return MatchResult{
		Found:      true,
		Status:     constants.RecordValid,
		CanApprove: true,
		Record:     h.Valid,
		Message:    "Record found and valid",
	}
}

func notFound() MatchResult {
	return MatchResult{
		Status:     constants.RecordNotFound,
		CanApprove: true,
		Message:    "No matching record found",
	}
}

func problemMessage(status string) string {
	switch status {
	case ProblemFailed:
		return "Record shows a failed test or inspection"
	case ProblemExpired:
		return "Record is listed as expired"
	case ProblemTampered:
		return "Record shows signs of tampering"
	case ProblemStolen:
		return "Vehicle is reported stolen"
	case ProblemFraudulent:
		return "Record is marked fraudulent"
	case "":
		return "Record flagged"
	default:
		return "Record flagged: " + status
	}
}

func startOfDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

// NewRegistries wraps each source in a SourceMatcher. A missing source gets
// an empty RecordSet, so every lookup against it is NOT_FOUND.
func NewRegistries(sources map[Name]RecordSource, logger *slog.Logger, opts ...MatcherOption) Registries {
	build := func(n Name) Matcher {
		src, ok := sources[n]
		if !ok || src == nil {
			src = &RecordSet{}
		}
		return NewMatcher(n, src, logger, opts...)
	}
	return Registries{
		Insurance: build(Insurance),
		Emission:  build(Emission),
		HPG:       build(HPG),
	}
}
