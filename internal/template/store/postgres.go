package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"patrol/internal/template/models"
	id "patrol/pkg/domain"
	"patrol/pkg/platform/sentinel"
)

// Postgres persists templates in PostgreSQL. Scope and questions are stored as
// JSONB documents; lifecycle transitions run inside transactions with status
// guards in the UPDATE predicates, so the draft-only and one-published rules
// hold under concurrency. A partial unique index backs the publish invariant
// as a second line of defense.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed template store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const templateSchema = `
CREATE TABLE IF NOT EXISTS form_templates (
	id          UUID PRIMARY KEY,
	lineage_id  UUID NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	version     INT  NOT NULL,
	status      TEXT NOT NULL,
	scope       JSONB NOT NULL,
	questions   JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	created_by  TEXT NOT NULL DEFAULT '',
	updated_by  TEXT NOT NULL DEFAULT '',
	UNIQUE (lineage_id, version)
);
CREATE UNIQUE INDEX IF NOT EXISTS form_templates_one_published
	ON form_templates (lineage_id) WHERE status = 'published';
`

// EnsureSchema creates the template table and indexes.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, templateSchema); err != nil {
		return fmt.Errorf("ensure template schema: %w", err)
	}
	return nil
}

const templateColumns = `id, lineage_id, name, description, version, status, scope, questions, created_at, updated_at, created_by, updated_by`

func (s *Postgres) Create(ctx context.Context, t *models.FormTemplate) error {
	scopeJSON, questionsJSON, err := marshalDocs(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO form_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID.String(), t.LineageID.String(), t.Name, t.Description, t.Version, t.Status,
		scopeJSON, questionsJSON, t.CreatedAt, t.UpdatedAt, t.CreatedBy, t.UpdatedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}

func (s *Postgres) Get(ctx context.Context, templateID id.TemplateID) (*models.FormTemplate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+templateColumns+` FROM form_templates WHERE id = $1
	`, templateID.String())
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.FormTemplate, error) {
	return s.listWhere(ctx, ``)
}

func (s *Postgres) ListPublished(ctx context.Context) ([]*models.FormTemplate, error) {
	return s.listWhere(ctx, `WHERE status = 'published'`)
}

func (s *Postgres) listWhere(ctx context.Context, where string) ([]*models.FormTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+templateColumns+` FROM form_templates `+where+` ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []*models.FormTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Postgres) NextVersion(ctx context.Context, lineageID id.LineageID) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1 FROM form_templates WHERE lineage_id = $1
	`, lineageID.String()).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next template version: %w", err)
	}
	return next, nil
}

func (s *Postgres) UpdateDraft(ctx context.Context, t *models.FormTemplate) error {
	scopeJSON, questionsJSON, err := marshalDocs(t)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE form_templates
		SET name = $2, description = $3, scope = $4, questions = $5, updated_at = $6, updated_by = $7
		WHERE id = $1 AND status = 'draft'
	`, t.ID.String(), t.Name, t.Description, scopeJSON, questionsJSON, t.UpdatedAt, t.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	if affected == 0 {
		return s.classifyMiss(ctx, t.ID, sentinel.ErrImmutable)
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, templateID id.TemplateID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM form_templates WHERE id = $1`, templateID.String())
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PublishExclusive archives the lineage's published sibling and flips the
// draft to published inside one transaction. The status predicates make the
// operation a compare-and-swap: a concurrent publish that already consumed the
// draft leaves zero affected rows here and the transaction rolls back.
func (s *Postgres) PublishExclusive(ctx context.Context, templateID id.TemplateID, scope *models.Scope, now time.Time, actor string) (*models.FormTemplate, *models.FormTemplate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	archivedRow := tx.QueryRowContext(ctx, `
		UPDATE form_templates
		SET status = 'archived', updated_at = $2, updated_by = CASE WHEN $3 = '' THEN updated_by ELSE $3 END
		WHERE lineage_id = (SELECT lineage_id FROM form_templates WHERE id = $1)
		  AND status = 'published'
		RETURNING `+templateColumns+`
	`, templateID.String(), now, actor)
	archived, err := scanTemplate(archivedRow)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("archive published sibling: %w", err)
	}

	var scopeJSON []byte
	if scope != nil {
		scopeJSON, err = json.Marshal(scope)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal scope: %w", err)
		}
	}

	publishedRow := tx.QueryRowContext(ctx, `
		UPDATE form_templates
		SET status = 'published',
		    scope = COALESCE($2, scope),
		    updated_at = $3,
		    updated_by = CASE WHEN $4 = '' THEN updated_by ELSE $4 END
		WHERE id = $1 AND status = 'draft'
		RETURNING `+templateColumns+`
	`, templateID.String(), nullableJSON(scopeJSON), now, actor)
	published, err := scanTemplate(publishedRow)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, s.classifyMiss(ctx, templateID, sentinel.ErrInvalidState)
		}
		// The one-published-per-lineage partial index trips when a
		// concurrent publish for the same lineage wins the race.
		if isUniqueViolation(err) {
			return nil, nil, sentinel.ErrConflict
		}
		return nil, nil, fmt.Errorf("publish draft: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, nil, sentinel.ErrConflict
		}
		return nil, nil, fmt.Errorf("commit publish tx: %w", err)
	}
	return published, archived, nil
}

// Archive flips a published template to archived with a status guard.
func (s *Postgres) Archive(ctx context.Context, templateID id.TemplateID, now time.Time, actor string) (*models.FormTemplate, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE form_templates
		SET status = 'archived', updated_at = $2, updated_by = CASE WHEN $3 = '' THEN updated_by ELSE $3 END
		WHERE id = $1 AND status = 'published'
		RETURNING `+templateColumns+`
	`, templateID.String(), now, actor)
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.classifyMiss(ctx, templateID, sentinel.ErrInvalidState)
		}
		return nil, fmt.Errorf("archive template: %w", err)
	}
	return t, nil
}

// classifyMiss distinguishes "row absent" from "row in the wrong status" after
// a guarded UPDATE affected nothing.
func (s *Postgres) classifyMiss(ctx context.Context, templateID id.TemplateID, wrongState error) error {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM form_templates WHERE id = $1`, templateID.String()).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("classify template state: %w", err)
	}
	return wrongState
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*models.FormTemplate, error) {
	var t models.FormTemplate
	var idStr, lineageStr string
	var scopeJSON, questJSON []byte
	err := row.Scan(&idStr, &lineageStr, &t.Name, &t.Description, &t.Version, &t.Status,
		&scopeJSON, &questJSON, &t.CreatedAt, &t.UpdatedAt, &t.CreatedBy, &t.UpdatedBy)
	if err != nil {
		return nil, err
	}
	if t.ID, err = id.ParseTemplateID(idStr); err != nil {
		return nil, err
	}
	if t.LineageID, err = id.ParseLineageID(lineageStr); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scopeJSON, &t.Scope); err != nil {
		return nil, fmt.Errorf("unmarshal scope: %w", err)
	}
	if err := json.Unmarshal(questJSON, &t.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	return &t, nil
}

func marshalDocs(t *models.FormTemplate) ([]byte, []byte, error) {
	scopeJSON, err := json.Marshal(t.Scope)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal scope: %w", err)
	}
	questionsJSON, err := json.Marshal(t.Questions)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal questions: %w", err)
	}
	return scopeJSON, questionsJSON, nil
}

// nullableJSON converts a possibly-nil JSON document into a driver value that
// COALESCE can fall through.
func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}
