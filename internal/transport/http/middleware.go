// Copyright 2026 The MSPDeck Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mspdeck/mspdeck/internal/audit"
	"github.com/mspdeck/mspdeck/internal/authz"
	"github.com/mspdeck/mspdeck/internal/observability/logger"
	"github.com/mspdeck/mspdeck/internal/session"
)

// Authorization Principles:
// 1. Every decision denies by default; no route is implicitly open.
// 2. Principal context is derived EXCLUSIVELY from the verified session
//    token. Identity headers from clients are never trusted.
// 3. Hardcoded role checks are forbidden; routes gate on permission keys.

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Log request start
			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthMiddleware verifies the bearer session token and adds principal_id
// to context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		claims, err := h.sessions.Verify(token)
		if err != nil {
			if errors.Is(err, session.ErrTokenExpired) {
				respondError(w, http.StatusUnauthorized, "session expired")
				return
			}
			respondError(w, http.StatusUnauthorized, "invalid session token")
			return
		}

		// Security hardening: reject principal-identity headers.
		// Principal context MUST be derived exclusively from the token.
		if r.Header.Get("X-Principal-ID") != "" {
			slog.WarnContext(r.Context(), "principal header spoofing attempt detected on authenticated route",
				logger.SessionID(claims.SessionID),
			)
			respondError(w, http.StatusBadRequest, "X-Principal-ID header is not allowed; principal is derived from the session token")
			return
		}

		ctx := context.WithValue(r.Context(), principalIDKey, claims.PrincipalID)
		ctx = context.WithValue(ctx, sessionIDKey, claims.SessionID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission gates a route on a flat permission key. Resolution
// failures deny; the route never proceeds on an indeterminate decision.
func (h *Handler) RequirePermission(key authz.PermissionKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principalID := GetPrincipalID(r.Context())
			if principalID == "" {
				respondError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			allowed, err := h.permissions.HasPermission(r.Context(), principalID, key)
			if err != nil {
				slog.ErrorContext(r.Context(), "permission check failed",
					logger.PrincipalID(principalID),
					logger.Permission(string(key)),
					logger.Error(err),
				)
				respondError(w, http.StatusInternalServerError, "authorization check failed")
				return
			}
			if !allowed {
				h.auditLogger.Log(r.Context(), audit.Event{
					Type:        audit.TypePermissionDenied,
					PrincipalID: principalID,
					Resource:    string(key),
					IPAddress:   getIPAddress(r),
					UserAgent:   r.UserAgent(),
				})
				respondError(w, http.StatusForbidden, "permission denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
