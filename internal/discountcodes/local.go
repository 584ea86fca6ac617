package discountcodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"

	"github.com/angelmondragon/affiliatez-backend/pkg/config"
)

// Ambiguous glyphs (0/O, 1/I) are left out since customers type these codes.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// LocalIssuer generates <PREFIX>-<random> codes in process.
type LocalIssuer struct {
	prefix   string
	generate func() string
}

func NewLocalIssuer(prefix string, length int) (*LocalIssuer, error) {
	if length <= 0 {
		return nil, fmt.Errorf("discount code length must be positive")
	}
	generate, err := nanoid.CustomASCII(codeAlphabet, length)
	if err != nil {
		return nil, fmt.Errorf("build code generator: %w", err)
	}
	return &LocalIssuer{
		prefix:   strings.ToUpper(strings.TrimSpace(prefix)),
		generate: generate,
	}, nil
}

func (l *LocalIssuer) IssueCode(ctx context.Context, _ uuid.UUID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	code := l.generate()
	if l.prefix == "" {
		return code, nil
	}
	return l.prefix + "-" + code, nil
}

// Issuer is satisfied by both implementations.
type Issuer interface {
	IssueCode(ctx context.Context, merchantID uuid.UUID) (string, error)
}

// New picks the HTTP issuer when a base URL is configured and the local one otherwise.
func New(cfg config.DiscountCodesConfig) (Issuer, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return NewLocalIssuer(cfg.LocalPrefix, cfg.LocalLen)
	}
	return NewHTTPIssuer(cfg.BaseURL, WithAPIKey(cfg.APIKey), WithTimeout(cfg.Timeout))
}
