package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/affiliatez-backend/pkg/enums"
)

type contextKey string

const (
	ctxAccountID  contextKey = "account_id"
	ctxRole       contextKey = "account_role"
	ctxMerchantID contextKey = "merchant_id"
)

func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	v, ok := ctx.Value(ctxAccountID).(uuid.UUID)
	return v, ok
}

func RoleFromContext(ctx context.Context) enums.AccountRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.AccountRole); ok {
		return v
	}
	return ""
}

// MerchantIDFromContext returns the merchant the caller's token is scoped to.
func MerchantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	v, ok := ctx.Value(ctxMerchantID).(uuid.UUID)
	return v, ok && v != uuid.Nil
}

// WithMerchant seeds the context the way Auth does for a merchant token.
func WithMerchant(ctx context.Context, accountID, merchantID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxAccountID, accountID)
	ctx = context.WithValue(ctx, ctxRole, enums.AccountRoleMerchant)
	return context.WithValue(ctx, ctxMerchantID, merchantID)
}
