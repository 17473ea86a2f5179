package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IdentificationLog records one successful identification.
type IdentificationLog struct {
	ID             uint      `gorm:"primaryKey"`
	RequestID      string    `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID         string    `gorm:"column:user_id;index;size:64"`
	Filename       string    `gorm:"column:filename;size:255"`
	ImageURL       string    `gorm:"column:image_url;size:512"`
	ScientificName string    `gorm:"column:scientific_name;size:255"`
	Confidence     float64   `gorm:"column:confidence"`
	CreatedAt      time.Time `gorm:"column:created_at;index"`
}

// TableName overrides the default table name.
func (IdentificationLog) TableName() string {
	return "identification_logs"
}

// HistoryAggregation summarises a user's identification logs.
type HistoryAggregation struct {
	TotalCount         int64
	LowConfidenceCount int64
	AverageConfidence  float64
}

// IdentificationRepository persists identification history.
type IdentificationRepository struct {
	db *gorm.DB
	retrier
}

// NewIdentificationRepository creates a new repository instance.
func NewIdentificationRepository(db *gorm.DB, logger *zap.Logger) *IdentificationRepository {
	return &IdentificationRepository{db: db, retrier: newRetrier(logger.Named("identification_repository"))}
}

// AutoMigrate ensures the schema is available.
func (r *IdentificationRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&IdentificationLog{})
}

// SaveLog persists an identification log entry.
func (r *IdentificationRepository) SaveLog(ctx context.Context, log *IdentificationLog) error {
	return r.executeWithRetry(ctx, "repository.save_identification", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// ListByUser returns the user's most recent logs, newest first.
func (r *IdentificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*IdentificationLog, error) {
	var logs []*IdentificationLog
	err := r.executeWithRetry(ctx, "repository.list_identifications", "", func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Order("created_at DESC, id DESC").
			Limit(limit).
			Find(&logs).Error
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// AggregateByUser computes history totals for a user. threshold marks the
// confidence below which an identification counts as low confidence.
func (r *IdentificationRepository) AggregateByUser(ctx context.Context, userID string, threshold float64) (*HistoryAggregation, error) {
	var row struct {
		TotalCount         int64
		LowConfidenceCount int64
		AverageConfidence  float64
	}
	err := r.executeWithRetry(ctx, "repository.aggregate_identifications", "", func() error {
		return r.db.WithContext(ctx).
			Model(&IdentificationLog{}).
			Select(
				"COUNT(*) AS total_count, "+
					"COALESCE(SUM(CASE WHEN confidence < ? THEN 1 ELSE 0 END), 0) AS low_confidence_count, "+
					"COALESCE(AVG(confidence), 0) AS average_confidence",
				threshold,
			).
			Where("user_id = ?", userID).
			Scan(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &HistoryAggregation{
		TotalCount:         row.TotalCount,
		LowConfidenceCount: row.LowConfidenceCount,
		AverageConfidence:  row.AverageConfidence,
	}, nil
}
