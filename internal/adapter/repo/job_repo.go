package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"aieditor/internal/domain"
	"aieditor/internal/infra"
	"aieditor/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	bounds, err := nullableJSON(job.Bounds)
	if err != nil {
		return err
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertJob,
		job.ID,
		job.UserID,
		job.Handle,
		string(job.Kind),
		string(job.State),
		job.Progress,
		job.Attempts,
		job.Inline,
		bounds,
		job.SourceURL,
	)
	return row.Scan(&job.CreatedAt, &job.UpdatedAt)
}

// Update persists the latest state, progress and outcome of a job.
func (r *JobRepositoryPG) Update(ctx context.Context, job *domain.Job) error {
	result, err := nullableJSON(job.Result)
	if err != nil {
		return err
	}
	row := r.sql.QueryRow(ctx, sqlinline.QUpdateJob,
		job.ID,
		string(job.State),
		job.Progress,
		job.Attempts,
		result,
		job.ErrorDetail,
	)
	if err := row.Scan(&job.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

// GetForUser fetches a job owned by userID.
func (r *JobRepositoryPG) GetForUser(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectJobForUser, jobID, userID)
	var (
		job         domain.Job
		kind, state string
		result      []byte
		bounds      []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Handle,
		&kind,
		&state,
		&job.Progress,
		&job.Attempts,
		&result,
		&job.ErrorDetail,
		&bounds,
		&job.Inline,
		&job.SourceURL,
		&job.LateStatus,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Kind = domain.OperationKind(kind)
	job.State = domain.JobState(state)
	if len(result) > 0 {
		var artifact domain.Artifact
		if err := json.Unmarshal(result, &artifact); err != nil {
			return nil, err
		}
		job.Result = &artifact
	}
	if len(bounds) > 0 {
		var b domain.Bounds
		if err := json.Unmarshal(bounds, &b); err != nil {
			return nil, err
		}
		job.Bounds = &b
	}
	return &job, nil
}

// ListUncheckedTimedOut returns timed-out jobs whose provider status has not
// been re-read since the local deadline expired.
func (r *JobRepositoryPG) ListUncheckedTimedOut(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectUncheckedTimedOutJobs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		var (
			job         domain.Job
			kind, state string
		)
		if err := rows.Scan(&job.ID, &job.UserID, &job.Handle, &kind, &state, &job.Progress, &job.Attempts, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, err
		}
		job.Kind = domain.OperationKind(kind)
		job.State = domain.JobState(state)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// SetLateStatus records the provider status observed after the local timeout.
func (r *JobRepositoryPG) SetLateStatus(ctx context.Context, jobID, status string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpdateJobLateStatus, jobID, status)
	return err
}

// ExpireStale moves non-terminal jobs that have not been updated for
// staleAfter to timedOut and returns how many rows changed.
func (r *JobRepositoryPG) ExpireStale(ctx context.Context, staleAfter time.Duration, detail string) (int64, error) {
	secs := int64(staleAfter / time.Second)
	if secs <= 0 {
		return 0, errors.New("expire stale: staleAfter must be at least one second")
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QExpireStaleJobs, secs, detail)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullableJSON(v any) ([]byte, error) {
	switch t := v.(type) {
	case *domain.Artifact:
		if t == nil {
			return nil, nil
		}
	case *domain.Bounds:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
