package usecase

import (
	"context"

	"github.com/example/plantid/internal/report"
	"github.com/example/plantid/internal/repository"
)

// HistoryLimit caps the number of entries shown on the history page.
const HistoryLimit = 50

// HistorySummary is a user's recent identifications plus totals.
type HistorySummary struct {
	Entries            []*repository.IdentificationLog
	TotalCount         int64
	LowConfidenceCount int64
	AverageConfidence  float64
}

// GetHistory loads the user's identification history.
func (uc *IdentificationUseCase) GetHistory(ctx context.Context, userID string) (*HistorySummary, error) {
	if uc.repo == nil {
		return &HistorySummary{}, nil
	}

	entries, err := uc.repo.ListByUser(ctx, userID, HistoryLimit)
	if err != nil {
		return nil, err
	}
	aggregation, err := uc.repo.AggregateByUser(ctx, userID, report.LowConfidenceThreshold)
	if err != nil {
		return nil, err
	}

	return &HistorySummary{
		Entries:            entries,
		TotalCount:         aggregation.TotalCount,
		LowConfidenceCount: aggregation.LowConfidenceCount,
		AverageConfidence:  report.RoundPercent(aggregation.AverageConfidence),
	}, nil
}
