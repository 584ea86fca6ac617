package stats

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/affiliatez-backend/pkg/errors"
)

// Range selects calendar days in UTC. Both ends are inclusive and either may be nil.
type Range struct {
	From *time.Time
	To   *time.Time
}

// Stats summarizes a merchant's orders.
type Stats struct {
	Count           int64           `json:"count"`
	Revenue         decimal.Decimal `json:"revenue"`
	CommissionsOwed decimal.Decimal `json:"commissions_owed"`
}

type totalsRepository interface {
	Totals(ctx context.Context, merchantID uuid.UUID, start, end *time.Time) (Stats, error)
}

type Service interface {
	Stats(ctx context.Context, merchantID uuid.UUID, r Range) (Stats, error)
}

type service struct {
	repo totalsRepository
}

func NewService(repo totalsRepository) (Service, error) {
	if repo == nil {
		return nil, errors.New("stats repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Stats(ctx context.Context, merchantID uuid.UUID, r Range) (Stats, error) {
	if merchantID == uuid.Nil {
		return Stats{}, pkgerrors.New(pkgerrors.CodeValidation, "merchant id is required")
	}
	var start, end *time.Time
	if r.From != nil {
		day := startOfDay(*r.From)
		start = &day
	}
	if r.To != nil {
		day := startOfDay(*r.To).AddDate(0, 0, 1)
		end = &day
	}
	if start != nil && end != nil && !start.Before(*end) {
		return Stats{}, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to")
	}

	totals, err := s.repo.Totals(ctx, merchantID, start, end)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate merchant orders")
	}
	return totals, nil
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
