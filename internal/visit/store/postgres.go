package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"patrol/internal/visit/models"
	id "patrol/pkg/domain"
	"patrol/pkg/platform/sentinel"
)

// Postgres persists visit logs in PostgreSQL. Answers are stored as a JSONB
// document with the evaluated statuses baked in; the table carries no update
// path, so recorded history is immutable at the schema level too.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed visit store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const visitSchema = `
CREATE TABLE IF NOT EXISTS visit_logs (
	id               UUID PRIMARY KEY,
	store_id         UUID NOT NULL,
	form_template_id UUID NOT NULL,
	route_id         UUID,
	assignee_id      UUID,
	status           TEXT NOT NULL,
	visit_date       TIMESTAMPTZ NOT NULL,
	compliance_score NUMERIC(5,2) NOT NULL,
	summary          JSONB NOT NULL,
	answers          JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	created_by       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS visit_logs_store_idx ON visit_logs (store_id, visit_date DESC);
`

// EnsureSchema creates the visit table and indexes.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, visitSchema); err != nil {
		return fmt.Errorf("ensure visit schema: %w", err)
	}
	return nil
}

const visitColumns = `id, store_id, form_template_id, route_id, assignee_id, status, visit_date, compliance_score, summary, answers, created_at, created_by`

func (s *Postgres) Create(ctx context.Context, v *models.VisitLog) error {
	answersJSON, err := json.Marshal(v.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	summaryJSON, err := json.Marshal(v.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	var routeID, assigneeID any
	if v.RouteID != nil {
		routeID = v.RouteID.String()
	}
	if v.AssigneeID != nil {
		assigneeID = v.AssigneeID.String()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO visit_logs (`+visitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, v.ID.String(), v.StoreID.String(), v.TemplateID.String(), routeID, assigneeID,
		v.Status, v.VisitDate, v.ComplianceScore, summaryJSON, answersJSON, v.CreatedAt, v.CreatedBy)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, visitID id.VisitID) (*models.VisitLog, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+visitColumns+` FROM visit_logs WHERE id = $1
	`, visitID.String())
	v, err := scanVisit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get visit: %w", err)
	}
	return v, nil
}

func (s *Postgres) ListByStore(ctx context.Context, storeID id.StoreID) ([]*models.VisitLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+visitColumns+` FROM visit_logs WHERE store_id = $1 ORDER BY visit_date DESC, id
	`, storeID.String())
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	var out []*models.VisitLog
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(row rowScanner) (*models.VisitLog, error) {
	var v models.VisitLog
	var idStr, storeStr, templateStr string
	var routeStr, assigneeStr sql.NullString
	var summaryJSON, answersJSON []byte
	err := row.Scan(&idStr, &storeStr, &templateStr, &routeStr, &assigneeStr, &v.Status,
		&v.VisitDate, &v.ComplianceScore, &summaryJSON, &answersJSON, &v.CreatedAt, &v.CreatedBy)
	if err != nil {
		return nil, err
	}
	if v.ID, err = id.ParseVisitID(idStr); err != nil {
		return nil, err
	}
	if v.StoreID, err = id.ParseStoreID(storeStr); err != nil {
		return nil, err
	}
	if v.TemplateID, err = id.ParseTemplateID(templateStr); err != nil {
		return nil, err
	}
	if routeStr.Valid {
		routeID, err := id.ParseRouteID(routeStr.String)
		if err != nil {
			return nil, err
		}
		v.RouteID = &routeID
	}
	if assigneeStr.Valid {
		assigneeID, err := id.ParseUserID(assigneeStr.String)
		if err != nil {
			return nil, err
		}
		v.AssigneeID = &assigneeID
	}
	if err := json.Unmarshal(summaryJSON, &v.Summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	if err := json.Unmarshal(answersJSON, &v.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	return &v, nil
}
