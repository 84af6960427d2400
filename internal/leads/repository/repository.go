package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sales_portal_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("lead not found")
	// ErrStale is returned when a guarded status update matched no row because
	// another writer changed the lead's status first.
	ErrStale = errors.New("lead status changed concurrently")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID              uuid.UUID
	CompanyName     string
	ContactName     *string
	ContactEmail    *string
	ContactPhone    *string
	Source          *string
	EstimatedBudget *float64
	Priority        domain.Priority
	Status          domain.Status
	AssignedTo      *uuid.UUID
	Score           *int
	Notes           *string
	LastContactAt   *time.Time
	NextActionAt    *time.Time
	StatusChangedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const leadColumns = `id, company_name, contact_name, contact_email, contact_phone, source,
	estimated_budget, priority, status, assigned_to, score, notes,
	last_contact_at, next_action_at, status_changed_at, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.CompanyName, &lead.ContactName, &lead.ContactEmail, &lead.ContactPhone, &lead.Source,
		&lead.EstimatedBudget, &lead.Priority, &lead.Status, &lead.AssignedTo, &lead.Score, &lead.Notes,
		&lead.LastContactAt, &lead.NextActionAt, &lead.StatusChangedAt, &lead.CreatedAt, &lead.UpdatedAt,
	)
	return lead, err
}

type CreateLeadParams struct {
	CompanyName     string
	ContactName     *string
	ContactEmail    *string
	ContactPhone    *string
	Source          *string
	EstimatedBudget *float64
	Priority        domain.Priority
	Status          domain.Status
	AssignedTo      *uuid.UUID
	Score           *int
	Notes           *string
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO leads (
			company_name, contact_name, contact_email, contact_phone, source,
			estimated_budget, priority, status, assigned_to, score, notes, status_changed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		RETURNING %s
	`, leadColumns),
		params.CompanyName, params.ContactName, params.ContactEmail, params.ContactPhone, params.Source,
		params.EstimatedBudget, params.Priority, params.Status, params.AssignedTo, params.Score, params.Notes,
	))
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM leads WHERE id = $1
	`, leadColumns), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

type UpdateLeadParams struct {
	CompanyName        *string
	ContactName        *string
	ContactNameSet     bool
	ContactEmail       *string
	ContactEmailSet    bool
	ContactPhone       *string
	ContactPhoneSet    bool
	Source             *string
	SourceSet          bool
	EstimatedBudget    *float64
	EstimatedBudgetSet bool
	Priority           *domain.Priority
	Notes              *string
	NotesSet           bool
	Score              *int
	ScoreSet           bool
	Status             *domain.Status
	StatusChangedAt    *time.Time
	AssignedTo         *uuid.UUID
	AssignedToSet      bool
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	fields := []struct {
		enabled bool
		column  string
		value   interface{}
	}{
		{params.CompanyName != nil, "company_name", params.CompanyName},
		{params.ContactNameSet, "contact_name", params.ContactName},
		{params.ContactEmailSet, "contact_email", params.ContactEmail},
		{params.ContactPhoneSet, "contact_phone", params.ContactPhone},
		{params.SourceSet, "source", params.Source},
		{params.EstimatedBudgetSet, "estimated_budget", params.EstimatedBudget},
		{params.Priority != nil, "priority", params.Priority},
		{params.NotesSet, "notes", params.Notes},
		{params.ScoreSet, "score", params.Score},
		{params.Status != nil, "status", params.Status},
		{params.StatusChangedAt != nil, "status_changed_at", params.StatusChangedAt},
		{params.AssignedToSet, "assigned_to", params.AssignedTo},
	}

	for _, field := range fields {
		if !field.enabled {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field.column, argIdx))
		args = append(args, field.value)
		argIdx++
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE leads SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(setClauses, ", "), argIdx, leadColumns)

	lead, err := scanLead(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// TransitionPatch is the full side-effect set of one accepted status change.
// It is applied in a single guarded UPDATE so concurrent transitions on the
// same lead cannot interleave.
type TransitionPatch struct {
	Status           domain.Status
	StatusChangedAt  *time.Time
	LastContactAt    *time.Time
	LastContactAtSet bool
	NextActionAt     *time.Time
	NextActionAtSet  bool
	Score            *int
	ScoreSet         bool
}

// CommitTransition applies the patch only when the lead is still in the
// expected status. A no-row result on an existing lead means another writer
// won the race; callers reload and retry.
func (r *Repository) CommitTransition(ctx context.Context, id uuid.UUID, expected domain.Status, patch TransitionPatch) (Lead, error) {
	setClauses := []string{"status = $1"}
	args := []interface{}{patch.Status}
	argIdx := 2

	optional := []struct {
		enabled bool
		column  string
		value   interface{}
	}{
		{patch.StatusChangedAt != nil, "status_changed_at", patch.StatusChangedAt},
		{patch.LastContactAtSet, "last_contact_at", patch.LastContactAt},
		{patch.NextActionAtSet, "next_action_at", patch.NextActionAt},
		{patch.ScoreSet, "score", patch.Score},
	}
	for _, field := range optional {
		if !field.enabled {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field.column, argIdx))
		args = append(args, field.value)
		argIdx++
	}

	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id, expected)

	query := fmt.Sprintf(`
		UPDATE leads SET %s
		WHERE id = $%d AND status = $%d
		RETURNING %s
	`, strings.Join(setClauses, ", "), argIdx, argIdx+1, leadColumns)

	lead, err := scanLead(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return Lead{}, getErr
		}
		return Lead{}, ErrStale
	}
	return lead, err
}

// UpdateAssignment reassigns a lead, recording who it moved to.
func (r *Repository) UpdateAssignment(ctx context.Context, id uuid.UUID, assignedTo *uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE leads SET assigned_to = $2, updated_at = now()
		WHERE id = $1
		RETURNING %s
	`, leadColumns), id, assignedTo))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// TouchLastContact stamps last_contact_at without a status change.
func (r *Repository) TouchLastContact(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET last_contact_at = $2, updated_at = now()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type ListParams struct {
	Status     *domain.Status
	AssignedTo *uuid.UUID
	Search     string
	Offset     int
	Limit      int
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Lead, int, error) {
	whereClauses := []string{"true"}
	args := []interface{}{}
	argIdx := 1

	if params.Status != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.AssignedTo != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("assigned_to = $%d", argIdx))
		args = append(args, *params.AssignedTo)
		argIdx++
	}
	if strings.TrimSpace(params.Search) != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(company_name ILIKE $%d OR contact_name ILIKE $%d OR contact_email ILIKE $%d)", argIdx, argIdx, argIdx))
		args = append(args, "%"+strings.TrimSpace(params.Search)+"%")
		argIdx++
	}

	where := strings.Join(whereClauses, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM leads WHERE %s", where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, params.Offset)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM leads
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, leadColumns, where, argIdx, argIdx+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return leads, total, nil
}

// ListOpen returns every lead still in the pipeline (not WON or LOST).
// Sweeps and the alerts read model iterate over this set.
func (r *Repository) ListOpen(ctx context.Context) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM leads
		WHERE status NOT IN ($1, $2)
		ORDER BY created_at ASC
	`, leadColumns), domain.StatusWon, domain.StatusLost)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return leads, nil
}

// FindByEmail matches leads on a case-insensitive trimmed email.
func (r *Repository) FindByEmail(ctx context.Context, email string, excludeID *uuid.UUID) ([]Lead, error) {
	return r.findWhere(ctx, "lower(trim(contact_email)) = lower(trim($1))", email, excludeID)
}

// FindByCompany matches leads on a case-insensitive trimmed company name.
func (r *Repository) FindByCompany(ctx context.Context, company string, excludeID *uuid.UUID) ([]Lead, error) {
	return r.findWhere(ctx, "lower(trim(company_name)) = lower(trim($1))", company, excludeID)
}

// FindByPhoneDigits matches leads whose phone reduces to the same digit
// string. Normalization to digits happens in SQL so stored formatting does
// not matter.
func (r *Repository) FindByPhoneDigits(ctx context.Context, digits string, excludeID *uuid.UUID) ([]Lead, error) {
	return r.findWhere(ctx, `regexp_replace(coalesce(contact_phone, ''), '\D', '', 'g') = $1`, digits, excludeID)
}

func (r *Repository) findWhere(ctx context.Context, condition, value string, excludeID *uuid.UUID) ([]Lead, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM leads
		WHERE %s
	`, leadColumns, condition)
	args := []interface{}{value}
	if excludeID != nil {
		query += " AND id != $2"
		args = append(args, *excludeID)
	}
	query += " ORDER BY created_at DESC LIMIT 10"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return leads, nil
}

// CountByStatus returns pipeline totals for reporting.
func (r *Repository) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM leads GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status domain.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return counts, nil
}
