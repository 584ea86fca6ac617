package discountcodes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/affiliatez-backend/pkg/errors"
)

const (
	defaultTimeout              = 3 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("discount code service base url is required")

// HTTPIssuer requests codes from the external discount code service.
type HTTPIssuer struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional issuer behavior.
type Option func(*HTTPIssuer)

func WithHTTPClient(client *http.Client) Option {
	return func(i *HTTPIssuer) {
		if client != nil {
			i.httpClient = client
		}
	}
}

func WithAPIKey(key string) Option {
	return func(i *HTTPIssuer) {
		i.apiKey = strings.TrimSpace(key)
	}
}

// WithTimeout bounds every request made by the default client.
func WithTimeout(timeout time.Duration) Option {
	return func(i *HTTPIssuer) {
		if timeout > 0 {
			i.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

func NewHTTPIssuer(baseURL string, opts ...Option) (*HTTPIssuer, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid discount code base url: %w", err)
	}

	issuer := &HTTPIssuer{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(issuer)
		}
	}
	return issuer, nil
}

type issueRequest struct {
	MerchantID string `json:"merchant_id"`
}

type issueResponse struct {
	Code string `json:"code"`
}

// IssueCode calls POST {base}/merchants/{merchant_id}/discount-codes.
func (i *HTTPIssuer) IssueCode(ctx context.Context, merchantID uuid.UUID) (string, error) {
	if i == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "discount code issuer not configured")
	}

	payload, err := json.Marshal(issueRequest{MerchantID: merchantID.String()})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal discount code request")
	}

	endpoint := fmt.Sprintf("%s/merchants/%s/discount-codes", i.baseURL, url.PathEscape(merchantID.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build discount code request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if i.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+i.apiKey)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute discount code request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"discount code request failed")
	}

	var body issueResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseBodyReadLimit)).Decode(&body); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode discount code response")
	}
	code := strings.TrimSpace(body.Code)
	if code == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "discount code service returned an empty code")
	}
	return code, nil
}
