package billing

import (
	"context"

	"quiz-forge/internal/domain"
	"quiz-forge/internal/util"

	"go.uber.org/zap"
)

// noopBillingService implements domain.BillingService without an external
// ledger. Reservations are minted locally and every settlement is logged,
// which keeps the reserve/commit/release flow exercised end to end until
// a real billing backend is wired in.
type noopBillingService struct {
	logger *zap.Logger
}

// NewNoopBillingService creates a new instance of noopBillingService.
func NewNoopBillingService(logger *zap.Logger) domain.BillingService {
	return &noopBillingService{logger: logger}
}

// Reserve implements domain.BillingService
func (s *noopBillingService) Reserve(ctx context.Context, userID string, estimatedCost int64) (string, error) {
	reservationID := util.NewULID()
	s.logger.Info("Billing reservation created",
		zap.String("user_id", userID),
		zap.String("reservation_id", reservationID),
		zap.Int64("estimated_cost", estimatedCost))
	return reservationID, nil
}

// Commit implements domain.BillingService
func (s *noopBillingService) Commit(ctx context.Context, reservationID string, actualCost int64) error {
	s.logger.Info("Billing reservation committed",
		zap.String("reservation_id", reservationID),
		zap.Int64("actual_cost", actualCost))
	return nil
}

// Release implements domain.BillingService
func (s *noopBillingService) Release(ctx context.Context, reservationID string) error {
	s.logger.Info("Billing reservation released",
		zap.String("reservation_id", reservationID))
	return nil
}
