package postgres

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/repository"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"
)

var _ repository.JobArchive = (*archiveRepo)(nil)

// archiveRepo keeps a long-term row per terminal job outcome. The row id
// is a ULID so listings sort by insertion time without an extra index.
//
// Schema:
//
//	CREATE TABLE IF NOT EXISTS job_archive (
//	  id          TEXT PRIMARY KEY,
//	  job_id      TEXT NOT NULL,
//	  attempt     INT  NOT NULL,
//	  status      TEXT NOT NULL,
//	  filepath    TEXT NOT NULL,
//	  scene_path  TEXT,
//	  last_error  TEXT,
//	  created_at  TIMESTAMPTZ NOT NULL,
//	  finished_at TIMESTAMPTZ NOT NULL,
//	  UNIQUE (job_id, attempt, status)
//	);
type archiveRepo struct {
	pool    *pgxpool.Pool
	entropy *ulid.MonotonicEntropy
}

func NewArchiveRepo(pool *pgxpool.Pool) *archiveRepo {
	return &archiveRepo{
		pool:    pool,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (r *archiveRepo) RecordTerminal(ctx context.Context, job *model.Job) error {
	finished := time.Now()
	if job.FailedAt != nil {
		finished = job.FailedAt.Time()
	} else if job.FinishedAt != nil {
		finished = job.FinishedAt.Time()
	}

	const q = `
INSERT INTO job_archive (id, job_id, attempt, status, filepath, scene_path, last_error, created_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`

	id := ulid.MustNew(ulid.Timestamp(finished), r.entropy).String()
	_, err := r.pool.Exec(ctx, q,
		id, job.ID, job.Attempt(), string(job.Status), job.Filepath,
		job.ScenePath, job.LastError, job.CreatedAt.Time(), finished)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Same terminal outcome recorded twice (worker retried the
			// write); the first row wins.
			return nil
		}
		return err
	}
	return nil
}

func (r *archiveRepo) ListRecent(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT job_id, attempt, status, filepath, COALESCE(scene_path,''), COALESCE(last_error,''), created_at, finished_at
  FROM job_archive
 ORDER BY id DESC
 LIMIT $1;`

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		var (
			j        model.Job
			attempt  int
			status   string
			created  time.Time
			finished time.Time
		)
		if err := rows.Scan(&j.ID, &attempt, &status, &j.Filepath, &j.ScenePath, &j.LastError, &created, &finished); err != nil {
			return nil, err
		}
		j.Status = model.JobStatus(status)
		j.Retries = attempt - 1
		j.CreatedAt = model.UnixTime(created)
		ft := model.UnixTime(finished)
		if j.Status == model.JobStatusFailed {
			j.FailedAt = &ft
		} else {
			j.FinishedAt = &ft
		}
		cp := j
		jobs = append(jobs, &cp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}
