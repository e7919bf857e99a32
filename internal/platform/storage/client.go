package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/instrugate/api/internal/platform/auth"
)

const (
	defaultUploadExpiry   = 15 * time.Minute
	defaultDownloadExpiry = 5 * time.Minute
	maxDownloadExpiry     = 15 * time.Minute
)

var (
	errNoSigner           = errors.New("storage: signer is required")
	errInvalidOptions     = errors.New("storage: either upload or download options must be provided")
	errBothIntents        = errors.New("storage: upload and download options cannot be used together")
	errInvalidBucket      = errors.New("storage: bucket name is required")
	errInvalidObject      = errors.New("storage: object name is required")
	errMethodNotAllowed   = errors.New("storage: HTTP method not allowed for intent")
	errContentTypeMissing = errors.New("storage: content type is required for uploads")
	errContentTypeDenied  = errors.New("storage: content type not allowed")
	errExpiryTooLong      = errors.New("storage: expiry exceeds permitted maximum")
)

// Client generates V4 signed URLs for instrument image objects, backed by a
// service-account Signer.
type Client struct {
	signer Signer
	scheme storage.SigningScheme
	now    func() time.Time
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithSigningScheme overrides the signing scheme (defaults to V4).
func WithSigningScheme(scheme storage.SigningScheme) ClientOption {
	return func(c *Client) {
		if scheme != 0 {
			c.scheme = scheme
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewClient constructs a new storage signed URL client.
func NewClient(signer Signer, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}

	client := &Client{
		signer: signer,
		scheme: storage.SigningSchemeV4,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// SignedURLOptions select the signing intent: exactly one of Upload or
// Download must be set.
type SignedURLOptions struct {
	Upload   *UploadOptions
	Download *DownloadOptions
}

// UploadOptions control upload-specific validation.
type UploadOptions struct {
	Method              string
	ContentType         string
	AllowedContentTypes []string
	MaxSize             int64
	ExpiresIn           time.Duration
}

// DownloadOptions control download authorization and expiry. Identity and
// OwnerID feed AuthorizeDownload unless AllowAnonymous is set.
type DownloadOptions struct {
	ExpiresIn      time.Duration
	OwnerID        string
	Identity       *auth.Identity
	AllowAnonymous bool
}

// SignedURLResult describes the generated signed URL details.
type SignedURLResult struct {
	URL       string
	Method    string
	ExpiresAt time.Time
	Headers   map[string]string
}

// SignedURL creates a signed URL according to the provided options.
func (c *Client) SignedURL(ctx context.Context, bucket, object string, opts SignedURLOptions) (SignedURLResult, error) {
	if c == nil {
		return SignedURLResult{}, errNoSigner
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return SignedURLResult{}, errInvalidBucket
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return SignedURLResult{}, errInvalidObject
	}

	switch {
	case opts.Upload != nil && opts.Download != nil:
		return SignedURLResult{}, errBothIntents
	case opts.Upload != nil:
		return c.signUpload(ctx, bucket, object, opts.Upload)
	case opts.Download != nil:
		return c.signDownload(ctx, bucket, object, opts.Download)
	default:
		return SignedURLResult{}, errInvalidOptions
	}
}

func (c *Client) signUpload(ctx context.Context, bucket, object string, upload *UploadOptions) (SignedURLResult, error) {
	method, err := normaliseUploadMethod(upload.Method)
	if err != nil {
		return SignedURLResult{}, err
	}

	contentType := strings.TrimSpace(upload.ContentType)
	if contentType == "" {
		return SignedURLResult{}, errContentTypeMissing
	}
	if len(upload.AllowedContentTypes) > 0 && !contentTypeAllowed(contentType, upload.AllowedContentTypes) {
		return SignedURLResult{}, errContentTypeDenied
	}

	expiry := upload.ExpiresIn
	if expiry <= 0 {
		expiry = defaultUploadExpiry
	}
	expiryTime := c.now().Add(expiry)

	headers := map[string]string{"Content-Type": contentType}
	urlOpts := storage.SignedURLOptions{
		GoogleAccessID: c.signer.Email(),
		Scheme:         c.scheme,
		Method:         method,
		ContentType:    contentType,
		Expires:        expiryTime,
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	}

	// The size cap is enforced by GCS itself when the range header is part
	// of the signature.
	if upload.MaxSize > 0 {
		sizeRange := fmt.Sprintf("0,%d", upload.MaxSize)
		urlOpts.Headers = []string{fmt.Sprintf("x-goog-content-length-range:%s", sizeRange)}
		headers["x-goog-content-length-range"] = sizeRange
	}

	signedURL, err := storage.SignedURL(bucket, object, &urlOpts)
	if err != nil {
		return SignedURLResult{}, fmt.Errorf("storage: sign upload url: %w", err)
	}

	return SignedURLResult{
		URL:       signedURL,
		Method:    method,
		ExpiresAt: expiryTime,
		Headers:   headers,
	}, nil
}

func (c *Client) signDownload(ctx context.Context, bucket, object string, download *DownloadOptions) (SignedURLResult, error) {
	expiry := download.ExpiresIn
	if expiry <= 0 {
		expiry = defaultDownloadExpiry
	}
	if expiry > maxDownloadExpiry {
		return SignedURLResult{}, errExpiryTooLong
	}

	if err := AuthorizeDownload(download.Identity, download.OwnerID, download.AllowAnonymous); err != nil {
		return SignedURLResult{}, err
	}

	expiryTime := c.now().Add(expiry)
	urlOpts := storage.SignedURLOptions{
		GoogleAccessID: c.signer.Email(),
		Scheme:         c.scheme,
		Method:         httpMethodGet,
		Expires:        expiryTime,
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	}

	signedURL, err := storage.SignedURL(bucket, object, &urlOpts)
	if err != nil {
		return SignedURLResult{}, fmt.Errorf("storage: sign download url: %w", err)
	}

	return SignedURLResult{
		URL:       signedURL,
		Method:    httpMethodGet,
		ExpiresAt: expiryTime,
	}, nil
}

const (
	httpMethodPut  = "PUT"
	httpMethodPost = "POST"
	httpMethodGet  = "GET"
)

func normaliseUploadMethod(method string) (string, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = httpMethodPut
	}
	switch method {
	case httpMethodPut, httpMethodPost:
		return method, nil
	default:
		return "", errMethodNotAllowed
	}
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if candidate == "*" {
			return true
		}
		if strings.HasSuffix(candidate, "/*") {
			if strings.HasPrefix(normalized, strings.TrimSuffix(candidate, "*")) {
				return true
			}
			continue
		}
		if normalized == candidate {
			return true
		}
	}
	return false
}
