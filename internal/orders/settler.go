package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/affiliatez-backend/pkg/errors"
)

type paidMarker interface {
	MarkPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) (bool, error)
}

// Settler flips orders to paid. The worker uses it directly so settlement
// does not need the ingestion dependencies.
type Settler struct {
	repo paidMarker
	now  func() time.Time
}

func NewSettler(repo paidMarker, now func() time.Time) (*Settler, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &Settler{repo: repo, now: now}, nil
}

// MarkPaid settles one order. Settling an already paid order is a no-op that reports false.
func (s *Settler) MarkPaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	changed, err := s.repo.MarkPaid(ctx, orderID, s.now().UTC())
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "mark order paid")
	}
	return changed, nil
}
