package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/plantid/internal/apperrors"
	"github.com/example/plantid/internal/logging"
	"github.com/example/plantid/internal/media"
	"github.com/example/plantid/internal/plantnet"
	"github.com/example/plantid/internal/report"
	"github.com/example/plantid/internal/repository"
)

// MissingImageMessage is the validation notice for a form without an image.
const MissingImageMessage = "No image file was uploaded"

// IdentificationRepository defines the persistence operations needed by the
// identification flow.
type IdentificationRepository interface {
	SaveLog(ctx context.Context, log *repository.IdentificationLog) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*repository.IdentificationLog, error)
	AggregateByUser(ctx context.Context, userID string, threshold float64) (*repository.HistoryAggregation, error)
}

// Identification is the outcome handed to the result page.
type Identification struct {
	RequestID string
	Image     *media.StoredImage
	Match     plantnet.Match
	Report    report.Report
}

// IdentificationUseCase runs the upload → identify → format pipeline.
type IdentificationUseCase struct {
	store      media.Store
	identifier plantnet.Identifier
	repo       IdentificationRepository
	logger     *zap.Logger
	now        func() time.Time
}

// NewIdentificationUseCase constructs a new use case instance.
func NewIdentificationUseCase(store media.Store, identifier plantnet.Identifier, repo IdentificationRepository, logger *zap.Logger) *IdentificationUseCase {
	return &IdentificationUseCase{
		store:      store,
		identifier: identifier,
		repo:       repo,
		logger:     logger.Named("identification_usecase"),
		now:        time.Now,
	}
}

// Identify stores the upload, asks the identification service about it and
// formats the top match. Stages run strictly in order and the first failure
// ends the flow; a stored image is left in place when a later stage fails.
func (uc *IdentificationUseCase) Identify(ctx context.Context, userID string, upload *media.UploadedImage) (*Identification, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.identify", requestID)

	if upload == nil || upload.Body == nil || upload.Filename == "" {
		return nil, apperrors.NewValidationError(MissingImageMessage, nil)
	}

	stored, err := uc.store.Save(ctx, requestID, *upload)
	if err != nil {
		opLogger.Error("storing upload failed", zap.Error(err))
		return nil, err
	}

	match, err := uc.identifier.Identify(ctx, requestID, stored.Path, stored.Filename, stored.ContentType)
	if err != nil {
		opLogger.Error("identification failed", zap.Error(err), zap.String("image", stored.URL))
		return nil, err
	}

	rep := report.Build(*match)
	opLogger.Info("plant identified",
		zap.String("image", stored.URL),
		zap.Float64("confidence", rep.Confidence),
		zap.Bool("low_confidence", rep.LowConfidence),
	)

	if uc.repo != nil {
		entry := &repository.IdentificationLog{
			RequestID:      requestID,
			UserID:         userID,
			Filename:       stored.Filename,
			ImageURL:       stored.URL,
			ScientificName: scientificName(*match),
			Confidence:     rep.Confidence,
			CreatedAt:      uc.now().UTC(),
		}
		if err := uc.repo.SaveLog(ctx, entry); err != nil {
			opLogger.Warn("failed to record identification history", zap.Error(err))
		}
	}

	return &Identification{
		RequestID: requestID,
		Image:     stored,
		Match:     *match,
		Report:    rep,
	}, nil
}

func scientificName(m plantnet.Match) string {
	if m.ScientificName == nil {
		return "Unknown"
	}
	return *m.ScientificName
}
