package handler

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const apiKeyHeader = "api_key"

var (
	errUnauthorized = apperr.Unauthorized("authentication credentials were not provided or are invalid")
	errNotStaff     = apperr.Forbidden("you do not have permission to perform this action")
)

// SecurityHandler authenticates API requests with either a customer bearer
// token or an HMAC-SHA256 hashed API key.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
	tokens  *auth.TokenManager
}

// NewSecurityHandler creates a SecurityHandler. A nil tokens disables bearer
// authentication.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte, tokens *auth.TokenManager) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
		tokens:  tokens,
	}
}

// Authenticate resolves the principal of r.
func (s *SecurityHandler) Authenticate(r *http.Request) (auth.Principal, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || s.tokens == nil {
			return auth.Principal{}, errUnauthorized
		}
		p, err := s.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			zctx.From(r.Context()).Debug("Bearer token rejected", zap.Error(err))
			return auth.Principal{}, errUnauthorized
		}
		return p, nil
	}
	if key := r.Header.Get(apiKeyHeader); key != "" {
		return s.apiKey(r, key)
	}
	return auth.Principal{}, errUnauthorized
}

// apiKey looks the key up by its hash and compares the stored hash in
// constant time.
func (s *SecurityHandler) apiKey(r *http.Request, key string) (auth.Principal, error) {
	hexHash := auth.HashAPIKey(key, s.pepper)
	info, err := s.apikeys.FindByHash(r.Context(), hexHash)
	if err != nil {
		zctx.From(r.Context()).Debug("API key rejected", zap.Error(err))
		return auth.Principal{}, errUnauthorized
	}

	hash, err := hex.DecodeString(hexHash)
	if err != nil {
		return auth.Principal{}, errUnauthorized
	}
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return auth.Principal{}, errUnauthorized
	}
	if subtle.ConstantTimeCompare(hash, stored) != 1 {
		return auth.Principal{}, errUnauthorized
	}

	return auth.Principal{
		Subject:  "apikey:" + info.ID,
		Staff:    info.HasScope(auth.ScopeAdmin),
		APIKeyID: info.ID,
	}, nil
}

// Require returns a middleware rejecting unauthenticated requests with 401
// and, when staff is set, non-staff principals with 403. The principal is
// stored in the request context.
func (s *SecurityHandler) Require(staff bool) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := s.Authenticate(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if staff && !p.Staff {
				writeError(w, r, errNotStaff)
				return
			}
			ctx := auth.WithPrincipal(r.Context(), p)
			ctx = zctx.With(ctx, zap.String("subject", p.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
