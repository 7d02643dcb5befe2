package related

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rndhub/go-rnd-hub/internal/types"
)

// Result is what a notification's related reference resolves to. Exactly
// one of the three states holds: no reference, a live summary, or a target
// that no longer exists. Deletion of the target is an expected outcome, not
// an error.
type Result struct {
	None     bool                  `json:"none,omitempty"`
	NotFound bool                  `json:"not_found,omitempty"`
	Summary  *types.RelatedSummary `json:"summary,omitempty"`
}

var _ RelatedResolver = (*Resolver)(nil)

// RelatedResolver turns tagged references into display summaries.
type RelatedResolver interface {
	Resolve(ctx context.Context, ref types.RelatedRef) (Result, error)
}

// Resolver dispatches on the reference kind and memoizes live summaries for
// a short window. Missing targets are never cached; a NotFound answer must
// stay current with deletions and restores.
type Resolver struct {
	logger    *slog.Logger
	projects  EntityReader
	documents EntityReader
	users     EntityReader
	cache     *cache.Cache
}

const (
	summaryTTL      = 30 * time.Second
	cleanupInterval = 5 * time.Minute
)

func NewResolver(projects, documents, users EntityReader, logger *slog.Logger) *Resolver {
	return &Resolver{
		logger:    logger,
		projects:  projects,
		documents: documents,
		users:     users,
		cache:     cache.New(summaryTTL, cleanupInterval),
	}
}

func cacheKey(ref types.RelatedRef) string {
	return string(ref.Kind) + ":" + ref.ID.String()
}

func (r *Resolver) Resolve(ctx context.Context, ref types.RelatedRef) (Result, error) {
	ctx, span := otel.Tracer("RelatedResolver").Start(ctx, "Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("related.kind", string(ref.Kind)))

	if ref.None() {
		span.SetStatus(codes.Ok, "no reference")
		return Result{None: true}, nil
	}

	var reader EntityReader
	switch ref.Kind {
	case types.RelatedProject:
		reader = r.projects
	case types.RelatedDocument:
		reader = r.documents
	case types.RelatedUser:
		reader = r.users
	default:
		// Unknown kinds degrade to "no reference" so old rows written by
		// newer versions still render.
		r.logger.WarnContext(ctx, "Unknown related kind",
			slog.String("method", "Resolve"), slog.String("kind", string(ref.Kind)))
		span.SetStatus(codes.Ok, "unknown kind")
		return Result{None: true}, nil
	}

	key := cacheKey(ref)
	if cached, found := r.cache.Get(key); found {
		if summary, ok := cached.(*types.RelatedSummary); ok {
			span.SetStatus(codes.Ok, "cache hit")
			return Result{Summary: summary}, nil
		}
	}

	summary, err := reader.Summary(ctx, ref.ID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			span.SetStatus(codes.Ok, "target gone")
			return Result{NotFound: true}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return Result{}, fmt.Errorf("resolve %s reference: %w", ref.Kind, err)
	}

	r.cache.SetDefault(key, summary)
	span.SetStatus(codes.Ok, "resolved")
	return Result{Summary: summary}, nil
}
