package orders

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/internal/affiliates"
	"github.com/angelmondragon/affiliatez-backend/pkg/db"
	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/affiliatez-backend/pkg/errors"
	"github.com/angelmondragon/affiliatez-backend/pkg/logger"
	"github.com/angelmondragon/affiliatez-backend/pkg/metrics"
)

const (
	orderExternalIDConstraint = "ux_orders_external_order_id"
	maxAttributionAttempts    = 3
)

const (
	metricRecorded          = "recorded"
	metricDuplicate         = "duplicate"
	metricIgnoredMerchant   = "ignored_unknown_merchant"
	metricInvalidPayload    = "invalid_payload"
	metricAttributionFailed = "attribution_failed"
	metricPersistenceFailed = "persistence_failed"
)

var payloadValidator = newPayloadValidator()

type merchantDirectory interface {
	FindByDomain(ctx context.Context, domain string) (*models.Merchant, error)
}

type affiliateDirectory interface {
	Attribute(ctx context.Context, merchant *models.Merchant, email, name string) (*affiliates.Attribution, error)
	SaveWithTx(tx *gorm.DB, attribution *affiliates.Attribution) error
	Announce(ctx context.Context, merchant *models.Merchant, attribution *affiliates.Attribution)
}

type orderRepository interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	CreateWithTx(tx *gorm.DB, order *models.Order) error
	ListPayableByAffiliate(ctx context.Context, affiliateID uuid.UUID, staleBefore time.Time) ([]models.Order, error)
	AffiliatesWithPayable(ctx context.Context, staleBefore time.Time, limit int) ([]uuid.UUID, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) (bool, error)
}

// Service ingests order webhooks and exposes the payout bookkeeping reads and writes.
type Service interface {
	Ingest(ctx context.Context, payload Payload) (Result, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListPayableByAffiliate(ctx context.Context, affiliateID uuid.UUID, staleBefore time.Time) ([]models.Order, error)
	AffiliatesWithPayable(ctx context.Context, staleBefore time.Time, limit int) ([]uuid.UUID, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type ServiceParams struct {
	Repo       orderRepository
	Merchants  merchantDirectory
	Affiliates affiliateDirectory
	Tx         db.TxRunner
	Metrics    *metrics.IngestionMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo       orderRepository
	merchants  merchantDirectory
	affiliates affiliateDirectory
	tx         db.TxRunner
	metrics    *metrics.IngestionMetrics
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Merchants == nil {
		return nil, fmt.Errorf("merchant directory required")
	}
	if params.Affiliates == nil {
		return nil, fmt.Errorf("affiliate directory required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	svc := &service{
		repo:       params.Repo,
		merchants:  params.Merchants,
		affiliates: params.Affiliates,
		tx:         params.Tx,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        params.Now,
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// Ingest maps one webhook payload to at most one order and at most one new
// affiliate. Replays of a known order id are reported as duplicates.
func (s *service) Ingest(ctx context.Context, payload Payload) (Result, error) {
	in, err := normalizePayload(payload)
	if err != nil {
		s.metrics.Observe(metricInvalidPayload)
		return Result{}, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"external_order_id": in.externalID,
		"merchant_domain":   in.domain,
	})

	merchant, err := s.merchants.FindByDomain(ctx, in.domain)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			s.metrics.Observe(metricIgnoredMerchant)
			s.logg.Warn(ctx, "order webhook ignored: unknown merchant domain")
			return Result{Outcome: OutcomeIgnored}, nil
		}
		s.metrics.Observe(metricPersistenceFailed)
		return Result{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "resolve merchant")
	}
	ctx = s.logg.WithMerchantID(ctx, merchant.ID.String())

	existing, err := s.repo.FindByExternalID(ctx, in.externalID)
	if err == nil {
		s.metrics.Observe(metricDuplicate)
		s.logg.Info(ctx, "order webhook replayed")
		return Result{Outcome: OutcomeDuplicate, Order: existing}, nil
	}
	if !db.IsNotFound(err) {
		s.metrics.Observe(metricPersistenceFailed)
		return Result{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "check existing order")
	}

	for attempt := 1; attempt <= maxAttributionAttempts; attempt++ {
		attribution, err := s.affiliates.Attribute(ctx, merchant, in.email, in.name)
		if err != nil {
			return Result{}, s.attributionFailed(ctx, err)
		}

		var order *models.Order
		attributed := false
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.affiliates.SaveWithTx(tx, attribution); err != nil {
				return err
			}
			attributed = true
			order = newOrder(in, merchant, attribution.Affiliate)
			return s.repo.CreateWithTx(tx, order)
		})
		switch {
		case err == nil:
			s.affiliates.Announce(ctx, merchant, attribution)
			s.metrics.Observe(metricRecorded)
			s.logg.Info(s.logg.WithAffiliateID(ctx, attribution.Affiliate.ID.String()), "order recorded")
			return Result{Outcome: OutcomeCreated, Order: order}, nil
		case errors.Is(err, affiliates.ErrCreateConflict):
			s.logg.Debug(s.logg.WithField(ctx, "attempt", attempt), "affiliate insert lost a race, retrying order")
			continue
		case !attributed:
			return Result{}, s.attributionFailed(ctx, err)
		case db.IsUniqueViolation(err, orderExternalIDConstraint):
			return s.resolveConcurrentDuplicate(ctx, in.externalID, err)
		default:
			s.metrics.Observe(metricPersistenceFailed)
			return Result{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "store order")
		}
	}
	return Result{}, s.attributionFailed(ctx, errors.New("affiliate creation kept conflicting"))
}

func (s *service) attributionFailed(ctx context.Context, err error) error {
	s.metrics.Observe(metricAttributionFailed)
	s.logg.Error(ctx, "order attribution failed", err)
	return pkgerrors.Wrap(pkgerrors.CodeAttributionFailed, err, "attribute order")
}

// newOrder snapshots the affiliate's rate onto the order.
func newOrder(in ingestInput, merchant *models.Merchant, affiliate *models.Affiliate) *models.Order {
	affiliateID := affiliate.ID
	return &models.Order{
		ExternalOrderID: in.externalID,
		MerchantID:      merchant.ID,
		AffiliateID:     &affiliateID,
		CustomerEmail:   in.email,
		Subtotal:        in.subtotal,
		CommissionRate:  affiliate.CommissionRate,
		CommissionOwed:  in.subtotal.Mul(affiliate.CommissionRate),
		DiscountCode:    in.discountCode,
	}
}

// resolveConcurrentDuplicate handles a writer that won the insert race.
func (s *service) resolveConcurrentDuplicate(ctx context.Context, externalID string, cause error) (Result, error) {
	winner, err := s.repo.FindByExternalID(ctx, externalID)
	if err != nil {
		s.metrics.Observe(metricPersistenceFailed)
		return Result{}, pkgerrors.Wrap(pkgerrors.CodePersistence, multierr.Combine(cause, err), "reload concurrent order")
	}
	s.metrics.Observe(metricDuplicate)
	s.logg.Info(ctx, "order webhook delivered concurrently")
	return Result{Outcome: OutcomeDuplicate, Order: winner}, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListPayableByAffiliate(ctx context.Context, affiliateID uuid.UUID, staleBefore time.Time) ([]models.Order, error) {
	rows, err := s.repo.ListPayableByAffiliate(ctx, affiliateID, staleBefore)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payable orders")
	}
	return rows, nil
}

func (s *service) AffiliatesWithPayable(ctx context.Context, staleBefore time.Time, limit int) ([]uuid.UUID, error) {
	ids, err := s.repo.AffiliatesWithPayable(ctx, staleBefore, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list affiliates with payable orders")
	}
	return ids, nil
}

func (s *service) MarkPaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return (&Settler{repo: s.repo, now: s.now}).MarkPaid(ctx, orderID)
}

func normalizePayload(p Payload) (ingestInput, error) {
	if err := payloadValidator.Struct(p); err != nil {
		return ingestInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order payload").
			WithDetails(fieldErrors(err))
	}
	in := ingestInput{
		externalID:   strings.TrimSpace(*p.OrderID),
		subtotal:     p.SubtotalPrice.Decimal,
		domain:       models.NormalizeDomain(*p.MerchantDomain),
		discountCode: strings.TrimSpace(*p.DiscountCode),
		email:        models.NormalizeEmail(*p.CustomerEmail),
		name:         strings.TrimSpace(*p.CustomerName),
	}
	details := map[string]string{}
	if in.externalID == "" {
		details["order_id"] = "required"
	}
	if in.domain == "" {
		details["merchant_domain"] = "required"
	}
	if in.subtotal.IsNegative() {
		details["subtotal_price"] = "must be non-negative"
	}
	if len(details) > 0 {
		return ingestInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid order payload").WithDetails(details)
	}
	return in, nil
}

func fieldErrors(err error) map[string]string {
	details := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
	}
	return details
}

func newPayloadValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]; name != "" {
			return name
		}
		return f.Name
	})
	return v
}
