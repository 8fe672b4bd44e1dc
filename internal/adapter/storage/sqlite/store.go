package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"

	"github.com/mlagae/vidpipe/internal/domain"
	"github.com/mlagae/vidpipe/internal/port"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA foreign_keys = ON",
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

func NewStore(dataDir string) (*Store, error) {
	registerHook()

	dbPath := filepath.Join(dataDir, "vidpipe.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite (WAL allows concurrent reads but only one writer)
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Videos

const videoColumns = `id, title, original_path, status, processing_pct, processing_error,
	duration_seconds, width, height, frame_rate, codec, bitrate, created_at, updated_at`

func (s *Store) SaveVideo(ctx context.Context, v *domain.Video) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Title, v.OriginalPath, string(v.Status), v.ProcessingPct, v.ProcessingErr,
		v.DurationSeconds, v.Width, v.Height, v.FrameRate, v.Codec, v.Bitrate,
		v.CreatedAt, v.UpdatedAt)
	return err
}

func (s *Store) GetVideo(ctx context.Context, id string) (*domain.Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	return scanVideo(row)
}

func (s *Store) UpdateVideo(ctx context.Context, v *domain.Video) error {
	v.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE videos SET title = ?, original_path = ?, status = ?, processing_pct = ?,
			processing_error = ?, duration_seconds = ?, width = ?, height = ?,
			frame_rate = ?, codec = ?, bitrate = ?, updated_at = ?
		WHERE id = ?`,
		v.Title, v.OriginalPath, string(v.Status), v.ProcessingPct,
		v.ProcessingErr, v.DurationSeconds, v.Width, v.Height,
		v.FrameRate, v.Codec, v.Bitrate, v.UpdatedAt, v.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) ListVideosByStatus(ctx context.Context, status domain.VideoStatus) ([]*domain.Video, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE status = ? ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*domain.Video, error) {
	var v domain.Video
	var status string
	err := row.Scan(&v.ID, &v.Title, &v.OriginalPath, &status, &v.ProcessingPct, &v.ProcessingErr,
		&v.DurationSeconds, &v.Width, &v.Height, &v.FrameRate, &v.Codec, &v.Bitrate,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	v.Status = domain.VideoStatus(status)
	return &v, nil
}

// Jobs

const jobColumns = `id, video_id, type, status, priority, params, result, error_message,
	progress, retry_count, max_retries, created_at, scheduled_at, started_at, completed_at,
	worker_id, estimated_duration_ms, actual_duration_ms`

func (s *Store) SaveJob(ctx context.Context, j *domain.Job) error {
	params, result, err := encodeJobPayloads(j)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO processing_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.VideoID, string(j.Type), string(j.Status), int(j.Priority), params, result,
		j.Error, j.Progress, j.RetryCount, j.MaxRetries, j.CreatedAt, j.ScheduledAt,
		nullTime(j.StartedAt), nullTime(j.CompletedAt), j.WorkerID,
		j.EstimatedDuration.Milliseconds(), j.ActualDuration.Milliseconds())
	return err
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM processing_jobs WHERE id = ?`, id)
	return scanJob(row)
}

func (s *Store) UpdateJob(ctx context.Context, j *domain.Job) error {
	params, result, err := encodeJobPayloads(j)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE processing_jobs SET status = ?, priority = ?, params = ?, result = ?,
			error_message = ?, progress = ?, retry_count = ?, max_retries = ?,
			scheduled_at = ?, started_at = ?, completed_at = ?, worker_id = ?,
			estimated_duration_ms = ?, actual_duration_ms = ?
		WHERE id = ?`,
		string(j.Status), int(j.Priority), params, result,
		j.Error, j.Progress, j.RetryCount, j.MaxRetries,
		j.ScheduledAt, nullTime(j.StartedAt), nullTime(j.CompletedAt), j.WorkerID,
		j.EstimatedDuration.Milliseconds(), j.ActualDuration.Milliseconds(), j.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) UpdateJobProgress(ctx context.Context, id string, progress float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE processing_jobs SET progress = ? WHERE id = ?`, progress, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) ListJobs(ctx context.Context) ([]*domain.Job, error) {
	return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM processing_jobs ORDER BY created_at`)
}

func (s *Store) ListJobsByVideo(ctx context.Context, videoID string) ([]*domain.Job, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM processing_jobs WHERE video_id = ? ORDER BY created_at`, videoID)
}

func (s *Store) ListQueuedJobs(ctx context.Context) ([]*domain.Job, error) {
	return s.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM processing_jobs
		WHERE status = 'queued'
		ORDER BY priority DESC, created_at ASC`)
}

func (s *Store) ListProcessingStartedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Job, error) {
	return s.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM processing_jobs
		WHERE status = 'processing' AND started_at < ?`, cutoff)
}

func (s *Store) ListRetryingDue(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	return s.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM processing_jobs
		WHERE status = 'retrying' AND scheduled_at <= ?
		ORDER BY scheduled_at ASC LIMIT ?`, now, limit)
}

func (s *Store) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM processing_jobs WHERE status = 'completed' AND completed_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	var jobType, status string
	var priority int
	var params, result string
	var startedAt, completedAt sql.NullTime
	var estimatedMs, actualMs int64
	err := row.Scan(&j.ID, &j.VideoID, &jobType, &status, &priority, &params, &result,
		&j.Error, &j.Progress, &j.RetryCount, &j.MaxRetries, &j.CreatedAt, &j.ScheduledAt,
		&startedAt, &completedAt, &j.WorkerID, &estimatedMs, &actualMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	j.Type = domain.JobType(jobType)
	j.Status = domain.JobStatus(status)
	j.Priority = domain.Priority(priority)
	if params != "" && params != "{}" {
		if err := json.Unmarshal([]byte(params), &j.Params); err != nil {
			return nil, fmt.Errorf("decode job params: %w", err)
		}
	}
	if result != "" && result != "{}" {
		if err := json.Unmarshal([]byte(result), &j.Result); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	j.EstimatedDuration = time.Duration(estimatedMs) * time.Millisecond
	j.ActualDuration = time.Duration(actualMs) * time.Millisecond
	return &j, nil
}

func encodeJobPayloads(j *domain.Job) (params string, result string, err error) {
	params, err = encodeJSON(j.Params)
	if err != nil {
		return "", "", fmt.Errorf("encode job params: %w", err)
	}
	result, err = encodeJSON(j.Result)
	if err != nil {
		return "", "", fmt.Errorf("encode job result: %w", err)
	}
	return params, result, nil
}

func encodeJSON(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Variants

const variantColumns = `id, video_id, quality, format, status, path, file_size, width, height,
	bitrate, progress, error_message, created_at`

func (s *Store) SaveVariant(ctx context.Context, v *domain.Variant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO video_variants (`+variantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.VideoID, string(v.Quality), string(v.Format), string(v.Status), v.Path,
		v.FileSize, v.Width, v.Height, v.Bitrate, v.Progress, v.ErrorMessage, v.CreatedAt)
	return err
}

func (s *Store) UpdateVariant(ctx context.Context, v *domain.Variant) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE video_variants SET status = ?, path = ?, file_size = ?, width = ?, height = ?,
			bitrate = ?, progress = ?, error_message = ?
		WHERE id = ?`,
		string(v.Status), v.Path, v.FileSize, v.Width, v.Height,
		v.Bitrate, v.Progress, v.ErrorMessage, v.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) GetVariantByVideoQualityFormat(ctx context.Context, videoID string, quality domain.Quality, format domain.Format) (*domain.Variant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+variantColumns+` FROM video_variants
		WHERE video_id = ? AND quality = ? AND format = ?`,
		videoID, string(quality), string(format))
	return scanVariant(row)
}

func (s *Store) ListVariantsByVideo(ctx context.Context, videoID string) ([]*domain.Variant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+variantColumns+` FROM video_variants
		WHERE video_id = ? ORDER BY created_at`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVariant(row rowScanner) (*domain.Variant, error) {
	var v domain.Variant
	var quality, format, status string
	err := row.Scan(&v.ID, &v.VideoID, &quality, &format, &status, &v.Path, &v.FileSize,
		&v.Width, &v.Height, &v.Bitrate, &v.Progress, &v.ErrorMessage, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	v.Quality = domain.Quality(quality)
	v.Format = domain.Format(format)
	v.Status = domain.VariantStatus(status)
	return &v, nil
}

// Queues

func (s *Store) SaveQueue(ctx context.Context, q *domain.Queue) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_queues (name, priority, max_concurrent, active, status)
		VALUES (?, ?, ?, ?, ?)`,
		q.Name, q.Priority, q.MaxConcurrent, q.Active, string(q.Status))
	return err
}

func (s *Store) GetQueue(ctx context.Context, name string) (*domain.Queue, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, priority, max_concurrent, active, status
		FROM processing_queues WHERE name = ?`, name)
	return scanQueue(row)
}

func (s *Store) ListQueues(ctx context.Context) ([]*domain.Queue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, priority, max_concurrent, active, status
		FROM processing_queues ORDER BY priority DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Queue
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) UpdateQueue(ctx context.Context, q *domain.Queue) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE processing_queues SET priority = ?, max_concurrent = ?, active = ?, status = ?
		WHERE name = ?`,
		q.Priority, q.MaxConcurrent, q.Active, string(q.Status), q.Name)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanQueue(row rowScanner) (*domain.Queue, error) {
	var q domain.Queue
	var status string
	err := row.Scan(&q.Name, &q.Priority, &q.MaxConcurrent, &q.Active, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	q.Status = domain.QueueStatus(status)
	return &q, nil
}

var _ port.Repository = (*Store)(nil)
