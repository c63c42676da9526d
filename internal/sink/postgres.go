package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Jeykison03/Leo-monitor/internal/models"
	"go.uber.org/zap"
)

const createObservationsTable = `
	CREATE TABLE IF NOT EXISTS heart_rate_observations (
		id           UUID PRIMARY KEY,
		patient_id   TEXT        NOT NULL,
		device_id    TEXT,
		effective_at TIMESTAMPTZ NOT NULL,
		heart_rate   INTEGER     NOT NULL,
		resource     JSONB       NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_heart_rate_observations_effective_at
		ON heart_rate_observations (effective_at);
`

// PostgresRepository 心率观测仓库（PostgreSQL），完整 FHIR 资源以 JSONB 保存
type PostgresRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresRepository 创建心率观测仓库
func NewPostgresRepository(db *sql.DB, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

// Name 后端名称
func (r *PostgresRepository) Name() string {
	return "postgres"
}

// EnsureSchema 创建表与索引（幂等）
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createObservationsTable); err != nil {
		return fmt.Errorf("failed to create heart_rate_observations: %w", err)
	}
	return nil
}

// Insert 插入一条观测；重复 ID 忽略
func (r *PostgresRepository) Insert(ctx context.Context, obs *models.HeartRateObservation) error {
	resource, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("failed to marshal observation: %w", err)
	}

	var deviceID sql.NullString
	if id := obs.DeviceID(); id != "" {
		deviceID = sql.NullString{String: id, Valid: true}
	}

	query := `
		INSERT INTO heart_rate_observations (
			id, patient_id, device_id, effective_at, heart_rate, resource
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx, query,
		obs.ID,
		obs.PatientID(),
		deviceID,
		obs.EffectiveDateTime,
		obs.HeartRate(),
		resource,
	)
	if err != nil {
		return fmt.Errorf("failed to insert heart_rate_observations: %w", err)
	}
	return nil
}

// QueryRange 查询时间范围内的观测
func (r *PostgresRepository) QueryRange(ctx context.Context, start, end time.Time) ([]*models.HeartRateObservation, error) {
	query := `
		SELECT resource
		FROM heart_rate_observations
		WHERE effective_at >= $1 AND effective_at <= $2
		ORDER BY effective_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query heart_rate_observations: %w", err)
	}
	defer rows.Close()

	var results []*models.HeartRateObservation
	for rows.Next() {
		var resource []byte
		if err := rows.Scan(&resource); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		obs := &models.HeartRateObservation{}
		if err := json.Unmarshal(resource, obs); err != nil {
			r.logger.Warn("Skipping malformed observation resource", zap.Error(err))
			continue
		}
		results = append(results, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return results, nil
}
