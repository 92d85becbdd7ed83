package queries

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/OldStager01/heartrisk/pkg/models"
)

type PredictionRepository struct {
	db *sql.DB
}

func NewPredictionRepository(db *sql.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// Insert stores record and returns the new id. record.ID is set as well.
func (r *PredictionRepository) Insert(ctx context.Context, record *models.PredictionRecord) (int64, error) {
	data, err := json.Marshal(record.Result)
	if err != nil {
		return 0, fmt.Errorf("failed to encode prediction: %w", err)
	}

	query := `
		INSERT INTO predictions (user_id, prediction_data, model_type, timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err = r.db.QueryRowContext(ctx, query,
		record.UserID,
		string(data),
		record.ModelType.String(),
		record.Timestamp.UTC(),
	).Scan(&record.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert prediction: %w", err)
	}
	return record.ID, nil
}

const selectRecords = `
	SELECT p.id, p.user_id, u.username, p.prediction_data, p.model_type, p.timestamp
	FROM predictions p
	JOIN users u ON u.id = p.user_id`

// ListByUser returns the user's records newest first.
func (r *PredictionRepository) ListByUser(ctx context.Context, userID int) ([]*models.PredictionRecord, error) {
	query := selectRecords + `
	WHERE p.user_id = $1
	ORDER BY p.timestamp DESC, p.id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListAll returns every record newest first, with usernames.
func (r *PredictionRepository) ListAll(ctx context.Context) ([]*models.PredictionRecord, error) {
	query := selectRecords + `
	ORDER BY p.timestamp DESC, p.id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Delete removes the record only if userID owns it.
func (r *PredictionRepository) Delete(ctx context.Context, recordID int64, userID int) (bool, error) {
	query := `DELETE FROM predictions WHERE id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, recordID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete prediction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete prediction: %w", err)
	}
	return n > 0, nil
}

func scanRecords(rows *sql.Rows) ([]*models.PredictionRecord, error) {
	records := []*models.PredictionRecord{}
	for rows.Next() {
		var (
			rec       models.PredictionRecord
			data      string
			modelType string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Username, &data, &modelType, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}

		variant, ok := models.ParseModelVariant(modelType)
		if !ok {
			return nil, fmt.Errorf("%w: record %d has model type %q", ErrCorruptRecord, rec.ID, modelType)
		}
		if err := json.Unmarshal([]byte(data), &rec.Result); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrCorruptRecord, rec.ID, err)
		}
		if err := rec.Result.Validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrCorruptRecord, rec.ID, err)
		}
		rec.ModelType = variant
		rec.Timestamp = rec.Timestamp.UTC()
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read predictions: %w", err)
	}
	return records, nil
}
