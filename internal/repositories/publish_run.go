package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/playdeploy/internal/models"
	"github.com/desertthunder/playdeploy/internal/shared"
)

const publishRunColumns = `id, sequence, package_name, track, binary_path, user_fraction, edit_id, version_code, state,
	failed_step, error_message, rollback_error, started_at, completed_at, created_at, updated_at, deleted_at`

// PublishRunRepository implements models.Repository[*models.PublishRun] for the publish audit log.
type PublishRunRepository struct {
	db *sql.DB
}

// NewPublishRunRepository creates a new PublishRunRepository with the given database connection
func NewPublishRunRepository(db *sql.DB) *PublishRunRepository {
	return &PublishRunRepository{db: db}
}

// Create inserts a new run into the database with generated ID and sequence
func (r *PublishRunRepository) Create(run *models.PublishRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "publish_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if run.ID() == "" {
		run.SetID(shared.GenerateID())
	}
	run.SetSequence(sequence)

	out := run.Outcome()
	query := `
		INSERT INTO publish_runs (` + publishRunColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	_, err = r.db.Exec(query,
		run.ID(),
		sequence,
		run.PackageName(),
		run.Track(),
		run.BinaryPath(),
		run.UserFraction(),
		nullString(out.EditID),
		nullInt64(out.VersionCode),
		out.State,
		nullString(out.FailedStep),
		nullString(out.Error),
		nullString(out.RollbackError),
		run.StartedAt(),
		nullTime(out.CompletedAt),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert publish run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *PublishRunRepository) Get(id string) (*models.PublishRun, error) {
	query := `SELECT ` + publishRunColumns + ` FROM publish_runs WHERE id = ? AND deleted_at IS NULL`

	run, err := scanPublishRun(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("publish run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan publish run: %w", err)
	}
	return run, nil
}

// Update rewrites the outcome of an existing run
func (r *PublishRunRepository) Update(run *models.PublishRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	out := run.Outcome()
	query := `
		UPDATE publish_runs
		SET edit_id = ?, version_code = ?, state = ?, failed_step = ?, error_message = ?, rollback_error = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		nullString(out.EditID),
		nullInt64(out.VersionCode),
		out.State,
		nullString(out.FailedStep),
		nullString(out.Error),
		nullString(out.RollbackError),
		nullTime(out.CompletedAt),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update publish run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("publish run not found or already deleted: %s", run.ID())
	}

	return nil
}

// Delete soft-deletes a run by ID
func (r *PublishRunRepository) Delete(id string) error {
	query := `
		UPDATE publish_runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete publish run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("publish run not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves runs matching the given criteria, newest first, excluding soft-deleted runs.
//
// Supported criteria: "package_name" (string), "state" (string), "limit" (int).
func (r *PublishRunRepository) List(criteria map[string]any) ([]*models.PublishRun, error) {
	query := `SELECT ` + publishRunColumns + ` FROM publish_runs WHERE deleted_at IS NULL`
	args := []any{}

	if pkg, ok := criteria["package_name"].(string); ok && pkg != "" {
		query += " AND package_name = ?"
		args = append(args, pkg)
	}

	if state, ok := criteria["state"].(string); ok && state != "" {
		query += " AND state = ?"
		args = append(args, state)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query publish runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.PublishRun
	for rows.Next() {
		run, err := scanPublishRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan publish run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// Record stores a finished run; it satisfies the engine's run recorder.
func (r *PublishRunRepository) Record(run *models.PublishRun) error {
	return r.Create(run)
}

type scanner interface {
	Scan(dest ...any) error
}

// scanPublishRun scans a single row from [sql.Row] or [sql.Rows] into a [models.PublishRun]
func scanPublishRun(s scanner) (*models.PublishRun, error) {
	var (
		id            string
		sequence      int
		packageName   string
		track         string
		binaryPath    string
		userFraction  float64
		editID        sql.NullString
		versionCode   sql.NullInt64
		state         string
		failedStep    sql.NullString
		errorMessage  sql.NullString
		rollbackError sql.NullString
		startedAt     time.Time
		completedAt   sql.NullTime
		createdAt     time.Time
		updatedAt     time.Time
		deletedAt     sql.NullTime
	)

	err := s.Scan(&id, &sequence, &packageName, &track, &binaryPath, &userFraction, &editID, &versionCode, &state,
		&failedStep, &errorMessage, &rollbackError, &startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	outcome := models.RunOutcome{
		EditID:        editID.String,
		VersionCode:   versionCode.Int64,
		State:         state,
		FailedStep:    failedStep.String,
		Error:         errorMessage.String,
		RollbackError: rollbackError.String,
		CompletedAt:   completedAt.Time,
	}

	var deleted *time.Time
	if deletedAt.Valid {
		deleted = &deletedAt.Time
	}

	return models.RestorePublishRun(id, sequence, packageName, track, binaryPath, userFraction, outcome,
		startedAt, createdAt, updatedAt, deleted), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
