package affiliates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/pkg/config"
	"github.com/angelmondragon/affiliatez-backend/pkg/db"
	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/affiliatez-backend/pkg/errors"
	"github.com/angelmondragon/affiliatez-backend/pkg/logger"
	"github.com/angelmondragon/affiliatez-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/affiliatez-backend/pkg/security"
)

const (
	maxCreateAttempts  = 3
	tempPasswordLength = 16

	defaultIssueTimeout  = 3 * time.Second
	defaultNotifyTimeout = 2 * time.Second
)

// ErrEmailConflict means the customer email belongs to a merchant account.
var ErrEmailConflict = errors.New("email is registered as a merchant account")

// ErrCreateConflict means another writer inserted the same affiliate or
// discount code first. The surrounding transaction has to be retried.
var ErrCreateConflict = errors.New("affiliate created concurrently")

// Attribution is the affiliate an order is credited to. A new affiliate is not
// stored until SaveWithTx runs inside the caller's transaction.
type Attribution struct {
	Affiliate *models.Affiliate
	account   *models.AffiliateAccount
	name      string
}

// IsNew reports whether the affiliate was drafted by this attribution rather
// than loaded.
func (a *Attribution) IsNew() bool { return a != nil && a.account != nil }

// CodeIssuer hands out merchant-scoped discount codes.
type CodeIssuer interface {
	IssueCode(ctx context.Context, merchantID uuid.UUID) (string, error)
}

// Notifier is told about new affiliates after their rows are committed.
type Notifier interface {
	AffiliateCreated(ctx context.Context, event payloads.AffiliateCreatedEvent) error
}

type merchantDirectory interface {
	EmailRegisteredAsMerchant(ctx context.Context, email string) (bool, error)
}

type affiliateRepository interface {
	FindByMerchantAndEmail(ctx context.Context, merchantID uuid.UUID, email string) (*models.Affiliate, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Affiliate, error)
	CreateWithTx(tx *gorm.DB, account *models.AffiliateAccount, affiliate *models.Affiliate) error
}

// Service is the affiliate directory.
type Service interface {
	FindByMerchantAndEmail(ctx context.Context, merchantID uuid.UUID, email string) (*models.Affiliate, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Affiliate, error)
	FindOrCreate(ctx context.Context, merchant *models.Merchant, email, name string) (*models.Affiliate, error)
	Register(ctx context.Context, merchant *models.Merchant, input RegisterInput) (*models.Affiliate, error)

	Attribute(ctx context.Context, merchant *models.Merchant, email, name string) (*Attribution, error)
	SaveWithTx(tx *gorm.DB, attribution *Attribution) error
	Announce(ctx context.Context, merchant *models.Merchant, attribution *Attribution)
}

// RegisterInput creates an affiliate explicitly. A nil rate uses the merchant default.
type RegisterInput struct {
	Email          string
	Name           string
	CommissionRate *decimal.Decimal
}

type ServiceParams struct {
	Repo          affiliateRepository
	Merchants     merchantDirectory
	Tx            db.TxRunner
	Issuer        CodeIssuer
	Notifier      Notifier
	PasswordCfg   config.PasswordConfig
	IssueTimeout  time.Duration
	NotifyTimeout time.Duration
	Logger        *logger.Logger
}

type service struct {
	repo          affiliateRepository
	merchants     merchantDirectory
	tx            db.TxRunner
	issuer        CodeIssuer
	notifier      Notifier
	passwordCfg   config.PasswordConfig
	issueTimeout  time.Duration
	notifyTimeout time.Duration
	logg          *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("affiliate repository required")
	}
	if params.Merchants == nil {
		return nil, fmt.Errorf("merchant directory required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Issuer == nil {
		return nil, fmt.Errorf("discount code issuer required")
	}
	svc := &service{
		repo:          params.Repo,
		merchants:     params.Merchants,
		tx:            params.Tx,
		issuer:        params.Issuer,
		notifier:      params.Notifier,
		passwordCfg:   params.PasswordCfg,
		issueTimeout:  params.IssueTimeout,
		notifyTimeout: params.NotifyTimeout,
		logg:          params.Logger,
	}
	if svc.issueTimeout <= 0 {
		svc.issueTimeout = defaultIssueTimeout
	}
	if svc.notifyTimeout <= 0 {
		svc.notifyTimeout = defaultNotifyTimeout
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	return svc, nil
}

func (s *service) FindByMerchantAndEmail(ctx context.Context, merchantID uuid.UUID, email string) (*models.Affiliate, error) {
	affiliate, err := s.repo.FindByMerchantAndEmail(ctx, merchantID, email)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "affiliate not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load affiliate")
	}
	return affiliate, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error) {
	affiliate, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "affiliate not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load affiliate")
	}
	return affiliate, nil
}

func (s *service) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Affiliate, error) {
	rows, err := s.repo.ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list affiliates")
	}
	return rows, nil
}

// FindOrCreate returns the affiliate for (merchant, email), creating it with the
// merchant's default rate on a miss. Existing rows are returned unchanged.
func (s *service) FindOrCreate(ctx context.Context, merchant *models.Merchant, email, name string) (*models.Affiliate, error) {
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		attribution, err := s.Attribute(ctx, merchant, email, name)
		if err != nil {
			return nil, err
		}
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.SaveWithTx(tx, attribution)
		})
		if errors.Is(err, ErrCreateConflict) {
			s.logg.Debug(s.logg.WithField(ctx, "attempt", attempt), "affiliate insert lost a race, re-reading")
			continue
		}
		if err != nil {
			return nil, err
		}
		s.Announce(ctx, merchant, attribution)
		return attribution.Affiliate, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeAttributionFailed, "affiliate creation kept conflicting")
}

// Attribute resolves the affiliate for (merchant, email) without writing. On a
// miss the returned attribution carries an unsaved affiliate with its discount
// code already issued.
func (s *service) Attribute(ctx context.Context, merchant *models.Merchant, email, name string) (*Attribution, error) {
	if merchant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant is required")
	}
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	existing, err := s.repo.FindByMerchantAndEmail(ctx, merchant.ID, email)
	if err == nil {
		return &Attribution{Affiliate: existing}, nil
	}
	if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeAttributionFailed, err, "load affiliate")
	}
	return s.draft(ctx, merchant, email, name, merchant.DefaultCommissionRate)
}

// SaveWithTx inserts a new attribution's account and affiliate. It returns
// ErrCreateConflict when another writer got there first; tx is then unusable.
func (s *service) SaveWithTx(tx *gorm.DB, attribution *Attribution) error {
	if !attribution.IsNew() {
		return nil
	}
	if err := s.repo.CreateWithTx(tx, attribution.account, attribution.Affiliate); err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrCreateConflict
		}
		return pkgerrors.Wrap(pkgerrors.CodeAttributionFailed, err, "create affiliate")
	}
	return nil
}

func (s *service) Register(ctx context.Context, merchant *models.Merchant, input RegisterInput) (*models.Affiliate, error) {
	if merchant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant is required")
	}
	email := models.NormalizeEmail(input.Email)
	if !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email")
	}
	rate := merchant.DefaultCommissionRate
	if input.CommissionRate != nil {
		rate = *input.CommissionRate
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be between 0 and 1")
		}
	}

	_, err := s.repo.FindByMerchantAndEmail(ctx, merchant.ID, email)
	if err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "affiliate already exists for this email")
	}
	if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load affiliate")
	}

	attribution, err := s.draft(ctx, merchant, email, input.Name, rate)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.SaveWithTx(tx, attribution)
	})
	if errors.Is(err, ErrCreateConflict) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "affiliate already exists for this email")
	}
	if err != nil {
		return nil, err
	}
	s.Announce(ctx, merchant, attribution)
	return attribution.Affiliate, nil
}

func (s *service) draft(ctx context.Context, merchant *models.Merchant, email, name string, rate decimal.Decimal) (*Attribution, error) {
	isMerchant, err := s.merchants.EmailRegisteredAsMerchant(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeAttributionFailed, err, "check merchant email")
	}
	if isMerchant {
		return nil, pkgerrors.Wrap(pkgerrors.CodeEmailConflict, ErrEmailConflict, "affiliate email collides with a merchant account")
	}

	code, err := s.issueCode(ctx, merchant.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeAttributionFailed, err, "issue discount code")
	}

	password, err := security.TempPassword(tempPasswordLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate temp password")
	}
	hash, err := security.Hash(password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	name = strings.TrimSpace(name)
	return &Attribution{
		Affiliate: &models.Affiliate{
			MerchantID:     merchant.ID,
			Email:          email,
			CommissionRate: rate,
			DiscountCode:   code,
		},
		account: &models.AffiliateAccount{Credentials: models.Credentials{
			Email:        email,
			Name:         name,
			PasswordHash: hash,
		}},
		name: name,
	}, nil
}

func (s *service) issueCode(ctx context.Context, merchantID uuid.UUID) (string, error) {
	issueCtx, cancel := context.WithTimeout(ctx, s.issueTimeout)
	defer cancel()
	code, err := s.issuer.IssueCode(issueCtx, merchantID)
	if err != nil {
		return "", err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", errors.New("issuer returned an empty code")
	}
	return code, nil
}

// Announce tells the notifier about an affiliate inserted by SaveWithTx. Call it
// only after the transaction commits; failures are logged and dropped.
func (s *service) Announce(ctx context.Context, merchant *models.Merchant, attribution *Attribution) {
	if s.notifier == nil || !attribution.IsNew() || merchant == nil {
		return
	}
	affiliate := attribution.Affiliate
	notifyCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	err := s.notifier.AffiliateCreated(notifyCtx, payloads.AffiliateCreatedEvent{
		AffiliateID:  affiliate.ID,
		AccountID:    affiliate.AccountID,
		MerchantID:   merchant.ID,
		MerchantName: merchant.DisplayName,
		Email:        affiliate.Email,
		Name:         attribution.name,
		DiscountCode: affiliate.DiscountCode,
	})
	if err != nil {
		logCtx := s.logg.WithAffiliateID(ctx, affiliate.ID.String())
		s.logg.Error(logCtx, "affiliate welcome notification failed", err)
	}
}
