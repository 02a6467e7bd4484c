// Package middleware provides endpoint.Processor implementations for RPC
// hosts: response headers, request logging and body limits.
package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/mnehpets/rpcserve/endpoint"
)

// HeadersProcessor sets security and caching headers suited to a JSON API
// and, optionally, CORS headers for browser clients.
//
// NewAPIHeaders returns the defaults:
//   - X-Content-Type-Options: nosniff
//   - Cache-Control: no-store
//   - Content-Security-Policy: default-src 'none'; frame-ancestors 'none'
//   - Referrer-Policy: no-referrer
//
// Fields set to "" are not sent.
type HeadersProcessor struct {
	ContentTypeOptions    bool
	CacheControl          string
	ContentSecurityPolicy string
	ReferrerPolicy        string

	// CORS is nil unless cross-origin calls are allowed.
	CORS *CORSConfig
}

// CORSConfig configures Cross-Origin Resource Sharing.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call the API. "*" allows any
	// origin unless AllowCredentials is set.
	AllowedOrigins []string
	// AllowedHeaders defaults to Content-Type.
	AllowedHeaders []string
	// ExposedHeaders lists response headers readable by the caller.
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is how long, in seconds, a preflight result may be cached.
	MaxAge int
}

// HeadersOption configures a HeadersProcessor.
type HeadersOption func(*HeadersProcessor)

// NewAPIHeaders creates a HeadersProcessor with API defaults.
func NewAPIHeaders(opts ...HeadersOption) *HeadersProcessor {
	p := &HeadersProcessor{
		ContentTypeOptions:    true,
		CacheControl:          "no-store",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithCacheControl overrides Cache-Control.
func WithCacheControl(v string) HeadersOption {
	return func(p *HeadersProcessor) {
		p.CacheControl = v
	}
}

// WithCSP overrides Content-Security-Policy.
func WithCSP(policy string) HeadersOption {
	return func(p *HeadersProcessor) {
		p.ContentSecurityPolicy = policy
	}
}

// WithReferrerPolicy overrides Referrer-Policy.
func WithReferrerPolicy(policy string) HeadersOption {
	return func(p *HeadersProcessor) {
		p.ReferrerPolicy = policy
	}
}

// WithCORS enables CORS.
func WithCORS(config *CORSConfig) HeadersOption {
	return func(p *HeadersProcessor) {
		p.CORS = config
	}
}

func (p *HeadersProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	h := w.Header()
	if p.ContentTypeOptions {
		h.Set("X-Content-Type-Options", "nosniff")
	}
	setIf(h, "Cache-Control", p.CacheControl)
	setIf(h, "Content-Security-Policy", p.ContentSecurityPolicy)
	setIf(h, "Referrer-Policy", p.ReferrerPolicy)

	if p.CORS != nil {
		p.CORS.apply(h, r)

		// Preflight: answer without running the endpoint, which would
		// reject OPTIONS.
		if r.Method == http.MethodOptions &&
			r.Header.Get("Origin") != "" &&
			r.Header.Get("Access-Control-Request-Method") != "" {
			return endpoint.Error(http.StatusNoContent, "", nil)
		}
	}
	return next(w, r)
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}

// apply sets CORS headers for cross-origin requests. Requests without an
// Origin header are left alone.
func (c *CORSConfig) apply(h http.Header, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	switch {
	case slices.Contains(c.AllowedOrigins, origin):
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	case slices.Contains(c.AllowedOrigins, "*") && !c.AllowCredentials:
		// The wildcard is never combined with credentials.
		h.Set("Access-Control-Allow-Origin", "*")
	default:
		return
	}

	if c.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(c.ExposedHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(c.ExposedHeaders, ", "))
	}

	if r.Method == http.MethodOptions {
		// JSON-RPC over HTTP only uses POST.
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		allowed := c.AllowedHeaders
		if len(allowed) == 0 {
			allowed = []string{"Content-Type"}
		}
		h.Set("Access-Control-Allow-Headers", strings.Join(allowed, ", "))
		if c.MaxAge > 0 {
			h.Set("Access-Control-Max-Age", strconv.Itoa(c.MaxAge))
		}
	}
}

var _ endpoint.Processor = (*HeadersProcessor)(nil)
