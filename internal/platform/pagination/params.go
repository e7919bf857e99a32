// Package pagination parses the page_size and page_token query parameters
// shared by the list endpoints and provides the opaque cursor token codec
// used by the Firestore repositories. Handlers treat tokens as opaque; only
// the storage layer knows what a cursor points at.
package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize applies when the caller omits page_size and the
	// endpoint declares no default of its own.
	DefaultPageSize = 20
	// DefaultMaxPageSize caps page_size to keep queries bounded.
	DefaultMaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid page_size")
	ErrInvalidPageToken = errors.New("pagination: invalid page_token")
)

// Params carries the normalised pagination values for one list request.
// A zero PageSize means the endpoint's default applies downstream.
type Params struct {
	PageSize  int
	PageToken string
}

// Options control parsing per endpoint.
type Options struct {
	// DefaultPageSize is applied when page_size is absent. Zero leaves the
	// decision to the storage layer.
	DefaultPageSize int
	// MaxPageSize clamps oversized requests. Zero falls back to
	// DefaultMaxPageSize.
	MaxPageSize int
}

// FromRequest parses pagination parameters from the request query string.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse consumes the provided query values and returns normalised Params.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	params := Params{
		PageSize:  opts.DefaultPageSize,
		PageToken: strings.TrimSpace(values.Get("page_token")),
	}

	raw := strings.TrimSpace(values.Get("page_size"))
	if raw == "" {
		return params, nil
	}

	size, err := strconv.Atoi(raw)
	if err != nil {
		return Params{}, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
	}
	if size <= 0 {
		return Params{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
	}
	params.PageSize = Clamp(size, opts)
	return params, nil
}

// Clamp bounds a requested page size by the endpoint options.
func Clamp(size int, opts Options) int {
	max := opts.MaxPageSize
	if max <= 0 {
		max = DefaultMaxPageSize
	}
	if size <= 0 {
		if opts.DefaultPageSize > 0 {
			size = opts.DefaultPageSize
		} else {
			size = DefaultPageSize
		}
	}
	if size > max {
		size = max
	}
	return size
}
