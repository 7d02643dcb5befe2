package related

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rndhub/go-rnd-hub/internal/api"
	"github.com/rndhub/go-rnd-hub/internal/types"
)

// EntityReader fetches the display summary for one entity kind. All readers
// report types.ErrNotFound for missing rows so the resolver can fold
// deletion into a first-class result.
type EntityReader interface {
	Summary(ctx context.Context, id uuid.UUID) (*types.RelatedSummary, error)
}

var (
	_ EntityReader = (*ProjectReader)(nil)
	_ EntityReader = (*DocumentReader)(nil)
	_ EntityReader = (*UserReader)(nil)
)

type ProjectReader struct {
	logger *slog.Logger
	pgpool api.PGXPool
}

func NewProjectReader(pgpool api.PGXPool, logger *slog.Logger) *ProjectReader {
	return &ProjectReader{logger: logger, pgpool: pgpool}
}

func (r *ProjectReader) Summary(ctx context.Context, id uuid.UUID) (*types.RelatedSummary, error) {
	s := &types.RelatedSummary{Kind: types.RelatedProject, ID: id}
	err := r.pgpool.QueryRow(ctx,
		`SELECT title, description, status FROM projects WHERE id = $1`, id).
		Scan(&s.Title, &s.Snippet, &s.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("query project summary: %w", err)
	}
	return s, nil
}

type DocumentReader struct {
	logger *slog.Logger
	pgpool api.PGXPool
}

func NewDocumentReader(pgpool api.PGXPool, logger *slog.Logger) *DocumentReader {
	return &DocumentReader{logger: logger, pgpool: pgpool}
}

func (r *DocumentReader) Summary(ctx context.Context, id uuid.UUID) (*types.RelatedSummary, error) {
	s := &types.RelatedSummary{Kind: types.RelatedDocument, ID: id}
	err := r.pgpool.QueryRow(ctx,
		`SELECT title, description, status FROM documents WHERE id = $1`, id).
		Scan(&s.Title, &s.Snippet, &s.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("query document summary: %w", err)
	}
	return s, nil
}

type UserReader struct {
	logger *slog.Logger
	pgpool api.PGXPool
}

func NewUserReader(pgpool api.PGXPool, logger *slog.Logger) *UserReader {
	return &UserReader{logger: logger, pgpool: pgpool}
}

func (r *UserReader) Summary(ctx context.Context, id uuid.UUID) (*types.RelatedSummary, error) {
	var firstname, lastname, username, email string
	err := r.pgpool.QueryRow(ctx,
		`SELECT firstname, lastname, username, email FROM users WHERE id = $1`, id).
		Scan(&firstname, &lastname, &username, &email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("query user summary: %w", err)
	}

	name := firstname + " " + lastname
	if firstname == "" && lastname == "" {
		name = username
	}
	return &types.RelatedSummary{
		Kind:    types.RelatedUser,
		ID:      id,
		Title:   name,
		Snippet: email,
	}, nil
}
