package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"infleval/internal/errors"
	"infleval/ports"
)

// assessmentRepository implements ports.ResultStore on PostgreSQL.
type assessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository creates a new assessment repository.
func NewAssessmentRepository(db *sqlx.DB) ports.ResultStore {
	return &assessmentRepository{db: db}
}

// Connect opens and pings a PostgreSQL connection from a DSN.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// EnsureSchema creates the assessments table if it does not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `CREATE TABLE IF NOT EXISTS assessments (
		id UUID PRIMARY KEY,
		filename TEXT NOT NULL UNIQUE,
		estimator_tag TEXT NOT NULL,
		resampler_tag TEXT NOT NULL,
		trend_tag TEXT NOT NULL,
		population_tag TEXT NOT NULL,
		replications INTEGER NOT NULL,
		train_cutoff TIMESTAMPTZ NOT NULL,
		measure_name TEXT NOT NULL,
		measure_params TEXT,
		metrics JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "creating assessments table")
	}
	return nil
}

// Save inserts an assessment record, replacing any earlier row with the same
// result filename.
func (r *assessmentRepository) Save(ctx context.Context, rec *ports.AssessmentRecord) error {
	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return errors.Wrap(err, "marshaling metrics")
	}

	query := `INSERT INTO assessments (
		id, filename, estimator_tag, resampler_tag, trend_tag, population_tag,
		replications, train_cutoff, measure_name, measure_params, metrics, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
	) ON CONFLICT (filename) DO UPDATE SET
		id = EXCLUDED.id,
		estimator_tag = EXCLUDED.estimator_tag,
		resampler_tag = EXCLUDED.resampler_tag,
		trend_tag = EXCLUDED.trend_tag,
		population_tag = EXCLUDED.population_tag,
		replications = EXCLUDED.replications,
		train_cutoff = EXCLUDED.train_cutoff,
		measure_name = EXCLUDED.measure_name,
		measure_params = EXCLUDED.measure_params,
		metrics = EXCLUDED.metrics,
		created_at = EXCLUDED.created_at`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.Filename, rec.EstimatorTag, rec.ResamplerTag, rec.TrendTag, rec.PopulationTag,
		rec.Replications, rec.TrainCutoff, rec.MeasureName, rec.MeasureParams, metricsJSON, rec.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "inserting assessment")
	}
	return nil
}

// Exists reports whether a result with this filename has been saved.
func (r *assessmentRepository) Exists(ctx context.Context, filename string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM assessments WHERE filename = $1`, filename).Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "checking assessment existence")
	}
	return count > 0, nil
}

// Load retrieves an assessment record by its result filename.
func (r *assessmentRepository) Load(ctx context.Context, filename string) (*ports.AssessmentRecord, error) {
	query := `SELECT
		id, filename, estimator_tag, resampler_tag, trend_tag, population_tag,
		replications, train_cutoff, measure_name, COALESCE(measure_params, '') as measure_params,
		metrics, created_at
	FROM assessments WHERE filename = $1`

	var rec ports.AssessmentRecord
	var metricsJSON []byte

	err := r.db.QueryRowContext(ctx, query, filename).Scan(
		&rec.ID, &rec.Filename, &rec.EstimatorTag, &rec.ResamplerTag, &rec.TrendTag, &rec.PopulationTag,
		&rec.Replications, &rec.TrainCutoff, &rec.MeasureName, &rec.MeasureParams,
		&metricsJSON, &rec.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound(fmt.Sprintf("no assessment named %s", filename))
		}
		return nil, errors.Wrap(err, "loading assessment")
	}

	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &rec.Metrics); err != nil {
			return nil, errors.Wrap(err, "unmarshaling metrics")
		}
	}
	return &rec, nil
}
