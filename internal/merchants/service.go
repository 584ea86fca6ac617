package merchants

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/pkg/auth"
	"github.com/angelmondragon/affiliatez-backend/pkg/config"
	"github.com/angelmondragon/affiliatez-backend/pkg/db"
	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
	"github.com/angelmondragon/affiliatez-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/affiliatez-backend/pkg/errors"
	"github.com/angelmondragon/affiliatez-backend/pkg/security"
)

type merchantRepository interface {
	FindByDomain(ctx context.Context, domain string) (*models.Merchant, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
	FindByAccountID(ctx context.Context, accountID uuid.UUID) (*models.Merchant, error)
	FindByEmail(ctx context.Context, email string) (*models.Merchant, error)
	AccountExistsWithEmail(ctx context.Context, email string) (bool, error)
	CreateWithTx(tx *gorm.DB, account *models.MerchantAccount, merchant *models.Merchant) error
	FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Merchant, error)
	UpdateWithTx(tx *gorm.DB, id uuid.UUID, updates map[string]any) error
	UpdateAccountWithTx(tx *gorm.DB, accountID uuid.UUID, updates map[string]any) error
}

// Service is the merchant directory.
type Service interface {
	FindByDomain(ctx context.Context, domain string) (*models.Merchant, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
	FindByAccountID(ctx context.Context, accountID uuid.UUID) (*models.Merchant, error)
	FindByEmail(ctx context.Context, email string) (*models.Merchant, error)
	EmailRegisteredAsMerchant(ctx context.Context, email string) (bool, error)
	Register(ctx context.Context, input RegisterInput) (*RegisterResult, error)
	Update(ctx context.Context, merchantID uuid.UUID, input UpdateInput) (*MerchantDTO, error)
	UpdateDefaultCommissionRate(ctx context.Context, merchantID uuid.UUID, rate decimal.Decimal) (*MerchantDTO, error)
}

// ServiceParams groups the merchant service dependencies.
type ServiceParams struct {
	Repo        merchantRepository
	Tx          db.TxRunner
	PasswordCfg config.PasswordConfig
	JWTCfg      config.JWTConfig
	Now         func() time.Time
}

type service struct {
	repo        merchantRepository
	tx          db.TxRunner
	passwordCfg config.PasswordConfig
	jwtCfg      config.JWTConfig
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("merchant repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		passwordCfg: params.PasswordCfg,
		jwtCfg:      params.JWTCfg,
		now:         now,
	}, nil
}

func (s *service) FindByDomain(ctx context.Context, domain string) (*models.Merchant, error) {
	normalized := models.NormalizeDomain(domain)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant domain is required")
	}
	return lookup(s.repo.FindByDomain(ctx, normalized))
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	return lookup(s.repo.FindByID(ctx, id))
}

func (s *service) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*models.Merchant, error) {
	return lookup(s.repo.FindByAccountID(ctx, accountID))
}

func (s *service) FindByEmail(ctx context.Context, email string) (*models.Merchant, error) {
	return lookup(s.repo.FindByEmail(ctx, email))
}

func (s *service) EmailRegisteredAsMerchant(ctx context.Context, email string) (bool, error) {
	exists, err := s.repo.AccountExistsWithEmail(ctx, email)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check merchant email")
	}
	return exists, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	domain := models.NormalizeDomain(input.Domain)
	email := models.NormalizeEmail(input.Email)
	name := strings.TrimSpace(input.DisplayName)
	switch {
	case domain == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "domain is required")
	case !strings.Contains(email, "@"):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email")
	case name == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "display name is required")
	case strings.TrimSpace(input.APIKey) == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "api key is required")
	}
	if err := ValidateRate(input.DefaultCommissionRate); err != nil {
		return nil, err
	}

	hash, err := security.Hash(input.APIKey, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash api key")
	}

	account := &models.MerchantAccount{Credentials: models.Credentials{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}}
	merchant := &models.Merchant{
		Domain:                domain,
		DisplayName:           name,
		DefaultCommissionRate: input.DefaultCommissionRate,
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.CreateWithTx(tx, account, merchant)
	}); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "domain or email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create merchant")
	}

	token, err := auth.MintAccessToken(s.jwtCfg, s.now().UTC(), auth.AccessTokenPayload{
		AccountID:  account.ID,
		MerchantID: &merchant.ID,
		Role:       enums.AccountRoleMerchant,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &RegisterResult{Merchant: FromModel(merchant), AccessToken: token}, nil
}

// Update changes mutable merchant fields and rotates the owning account's
// email or API key. Existing affiliates and orders keep the rate they captured.
func (s *service) Update(ctx context.Context, merchantID uuid.UUID, input UpdateInput) (*MerchantDTO, error) {
	updates := map[string]any{}
	if input.DisplayName != nil {
		name := strings.TrimSpace(*input.DisplayName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "display name cannot be empty")
		}
		updates["display_name"] = name
	}
	if input.DefaultCommissionRate != nil {
		if err := ValidateRate(*input.DefaultCommissionRate); err != nil {
			return nil, err
		}
		updates["default_commission_rate"] = *input.DefaultCommissionRate
	}
	accountUpdates, err := s.credentialUpdates(input)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 && len(accountUpdates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	var updated *models.Merchant
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		merchant, err := s.repo.FindByIDWithTx(tx, merchantID)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := s.repo.UpdateWithTx(tx, merchantID, updates); err != nil {
				return err
			}
		}
		if len(accountUpdates) > 0 {
			if err := s.repo.UpdateAccountWithTx(tx, merchant.AccountID, accountUpdates); err != nil {
				return err
			}
		}
		updated, err = s.repo.FindByIDWithTx(tx, merchantID)
		return err
	})
	if err != nil {
		switch {
		case db.IsNotFound(err):
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "merchant not found")
		case db.IsUniqueViolation(err, ""):
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update merchant")
	}
	dto := FromModel(updated)
	return &dto, nil
}

func (s *service) credentialUpdates(input UpdateInput) (map[string]any, error) {
	updates := map[string]any{}
	if input.Email != nil {
		email := models.NormalizeEmail(*input.Email)
		if !strings.Contains(email, "@") {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email")
		}
		updates["email"] = email
	}
	if input.APIKey != nil {
		if strings.TrimSpace(*input.APIKey) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "api key cannot be empty")
		}
		hash, err := security.Hash(*input.APIKey, s.passwordCfg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash api key")
		}
		updates["password_hash"] = hash
	}
	return updates, nil
}

func (s *service) UpdateDefaultCommissionRate(ctx context.Context, merchantID uuid.UUID, rate decimal.Decimal) (*MerchantDTO, error) {
	return s.Update(ctx, merchantID, UpdateInput{DefaultCommissionRate: &rate})
}

// ValidateRate enforces a commission fraction in [0, 1].
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be between 0 and 1")
	}
	return nil
}

func lookup(m *models.Merchant, err error) (*models.Merchant, error) {
	if err == nil {
		return m, nil
	}
	if db.IsNotFound(err) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "merchant not found")
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
}
