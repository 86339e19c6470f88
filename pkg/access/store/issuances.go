package store

import (
	"context"
	"time"

	"github.com/blulok/blulok-cloud/pkg/access/models"
)

// RecordIssuance appends a Route Pass issuance audit row. Rows are
// append-only; the jti primary key makes duplicates impossible.
func (s *GORMStore) RecordIssuance(ctx context.Context, issuance *models.RoutePassIssuance) error {
	return s.db.WithContext(ctx).Create(issuance).Error
}

// GetIssuance returns an issuance record by jti.
func (s *GORMStore) GetIssuance(ctx context.Context, jti string) (*models.RoutePassIssuance, error) {
	return getByField[models.RoutePassIssuance](s.db, ctx, "jti", jti, models.ErrIssuanceNotFound)
}

// HasLiveIssuance reports whether the user holds at least one recorded Route
// Pass that is still valid at the given instant. Consulted by the denylist
// optimizer: a user with no live pass cannot present a token to any lock.
func (s *GORMStore) HasLiveIssuance(ctx context.Context, userID string, now time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.RoutePassIssuance{}).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
