// @title MSPDeck Authorization API
// @version 1.0.0
// @description Permission and hierarchical access resolution for the MSPDeck platform
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mspdeck/mspdeck/internal/audit"
	"github.com/mspdeck/mspdeck/internal/authz"
	"github.com/mspdeck/mspdeck/internal/observability/logger"
	"github.com/mspdeck/mspdeck/internal/observability/metrics"
	"github.com/mspdeck/mspdeck/internal/session"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	permissions *authz.PermissionService
	access      *authz.AccessResolver
	scope       *authz.ScopeResolver
	sessions    *session.Service
	auditLogger audit.Logger
	decisions   *metrics.DecisionMetrics
}

// NewHandler creates a new HTTP handler
func NewHandler(
	permissions *authz.PermissionService,
	access *authz.AccessResolver,
	scope *authz.ScopeResolver,
	sessions *session.Service,
	auditLogger audit.Logger,
	decisions *metrics.DecisionMetrics,
) *Handler {
	return &Handler{
		permissions: permissions,
		access:      access,
		scope:       scope,
		sessions:    sessions,
		auditLogger: auditLogger,
		decisions:   decisions,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Every authorization endpoint requires an authenticated principal.
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Route("/authz", func(r chi.Router) {
				// Flat permission checks for the calling principal
				r.Post("/check", h.CheckPermission)
				r.Post("/check/bulk", h.CheckPermissions)
				r.Get("/permissions", h.GetEffectivePermissions)

				// Hierarchical access resolution
				r.Post("/access", h.ResolveAccess)
				r.Post("/access/batch", h.ResolveAccessBatch)

				// Organization visibility
				r.Get("/orgs", h.GetAllowedOrgs)
			})

			// Inspecting another principal's permissions is a user-management
			// action and gates on its key.
			r.With(h.RequirePermission(authz.PermUsersView)).
				Get("/principals/{principalID}/permissions", h.GetPrincipalPermissions)
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "mspdeck",
	})
}

// CheckPermissionRequest is the body for a single permission check
type CheckPermissionRequest struct {
	Permission string `json:"permission"`
}

// CheckPermissionResponse reports one permission decision
type CheckPermissionResponse struct {
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}

// CheckPermission decides one flat permission for the calling principal
// @Summary Check Permission
// @Description Resolves a single permission key for the authenticated principal
// @Tags Authorization
// @Accept json
// @Produce json
// @Param request body CheckPermissionRequest true "Permission to check"
// @Success 200 {object} CheckPermissionResponse
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /authz/check [post]
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	principalID := GetPrincipalID(r.Context())

	var req CheckPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Permission == "" {
		respondError(w, http.StatusBadRequest, "permission is required")
		return
	}

	start := time.Now()
	key := authz.PermissionKey(req.Permission)
	allowed, err := h.permissions.HasPermission(r.Context(), principalID, key)
	if err != nil {
		slog.ErrorContext(r.Context(), "permission check failed",
			logger.PrincipalID(principalID),
			logger.Permission(req.Permission),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	h.decisions.RecordCheck(r.Context(), "permission", allowed, time.Since(start))

	if !allowed {
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:        audit.TypePermissionDenied,
			PrincipalID: principalID,
			Resource:    req.Permission,
			IPAddress:   getIPAddress(r),
			UserAgent:   r.UserAgent(),
		})
	}

	respondJSON(w, http.StatusOK, CheckPermissionResponse{
		Permission: req.Permission,
		Allowed:    allowed,
	})
}

// CheckPermissionsRequest is the body for a bulk permission check
type CheckPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// CheckPermissionsResponse maps each requested key to its decision
type CheckPermissionsResponse struct {
	Results map[string]bool `json:"results"`
}

// CheckPermissions decides many flat permissions in one call
// @Summary Check Permissions (bulk)
// @Description Resolves multiple permission keys with a bounded number of store reads
// @Tags Authorization
// @Accept json
// @Produce json
// @Param request body CheckPermissionsRequest true "Permissions to check"
// @Success 200 {object} CheckPermissionsResponse
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /authz/check/bulk [post]
func (h *Handler) CheckPermissions(w http.ResponseWriter, r *http.Request) {
	principalID := GetPrincipalID(r.Context())

	var req CheckPermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Permissions) == 0 {
		respondError(w, http.StatusBadRequest, "permissions is required and must be non-empty")
		return
	}

	keys := make([]authz.PermissionKey, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		keys = append(keys, authz.PermissionKey(p))
	}

	start := time.Now()
	decisions, err := h.permissions.HasPermissions(r.Context(), principalID, keys)
	if err != nil {
		slog.ErrorContext(r.Context(), "bulk permission check failed",
			logger.PrincipalID(principalID),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	elapsed := time.Since(start)

	results := make(map[string]bool, len(decisions))
	for key, allowed := range decisions {
		results[string(key)] = allowed
		h.decisions.RecordCheck(r.Context(), "permission", allowed, elapsed)
	}

	respondJSON(w, http.StatusOK, CheckPermissionsResponse{Results: results})
}

// EffectivePermissionsResponse lists every registry key with its decision
type EffectivePermissionsResponse struct {
	Permissions []authz.EffectivePermission `json:"permissions"`
}

// GetEffectivePermissions reports the full permission map of the caller
// @Summary Effective Permissions
// @Description Resolves every registered permission key for the authenticated principal with source attribution
// @Tags Authorization
// @Produce json
// @Success 200 {object} EffectivePermissionsResponse
// @Security BearerAuth
// @Router /authz/permissions [get]
func (h *Handler) GetEffectivePermissions(w http.ResponseWriter, r *http.Request) {
	principalID := GetPrincipalID(r.Context())

	perms, err := h.permissions.EffectivePermissions(r.Context(), principalID)
	if err != nil {
		slog.ErrorContext(r.Context(), "effective permission resolution failed",
			logger.PrincipalID(principalID),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}

	respondJSON(w, http.StatusOK, EffectivePermissionsResponse{Permissions: perms})
}

// GetPrincipalPermissions reports the full permission map of another
// principal. Gated on users.view.
// @Summary Principal Permissions
// @Description Resolves every registered permission key for the named principal
// @Tags Authorization
// @Produce json
// @Param principalID path string true "Principal ID"
// @Success 200 {object} EffectivePermissionsResponse
// @Failure 403 {object} map[string]string
// @Security BearerAuth
// @Router /principals/{principalID}/permissions [get]
func (h *Handler) GetPrincipalPermissions(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "principalID")
	if subjectID == "" {
		respondError(w, http.StatusBadRequest, "principal id is required")
		return
	}

	perms, err := h.permissions.EffectivePermissions(r.Context(), subjectID)
	if err != nil {
		slog.ErrorContext(r.Context(), "effective permission resolution failed",
			logger.PrincipalID(subjectID),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}

	respondJSON(w, http.StatusOK, EffectivePermissionsResponse{Permissions: perms})
}

// AccessRequest identifies one resource context to resolve
type AccessRequest struct {
	OrgID      string `json:"org_id"`
	Section    string `json:"section,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
	AssetID    string `json:"asset_id,omitempty"`
}

// AccessResponse reports one hierarchical access decision
type AccessResponse struct {
	Allowed     bool   `json:"allowed"`
	Mode        string `json:"mode"`
	Matched     bool   `json:"matched"`
	GroupID     string `json:"group_id,omitempty"`
	GroupName   string `json:"group_name,omitempty"`
	Specificity int    `json:"specificity,omitempty"`
}

func toAccessResponse(res authz.AccessResult) AccessResponse {
	out := AccessResponse{
		Allowed: res.Allowed,
		Mode:    res.Mode.String(),
		Matched: res.Matched,
	}
	if res.Matched {
		out.GroupID = res.GroupID
		out.GroupName = res.GroupName
		out.Specificity = int(res.Specificity)
	}
	return out
}

func toRequestContext(req AccessRequest) authz.RequestContext {
	return authz.RequestContext{
		OrgID:      req.OrgID,
		Section:    authz.Section(req.Section),
		CategoryID: req.CategoryID,
		AssetID:    req.AssetID,
	}
}

// ResolveAccess decides hierarchical access for one resource context
// @Summary Resolve Access
// @Description Resolves the calling principal's access mode for a resource context
// @Tags Authorization
// @Accept json
// @Produce json
// @Param request body AccessRequest true "Resource context"
// @Success 200 {object} AccessResponse
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /authz/access [post]
func (h *Handler) ResolveAccess(w http.ResponseWriter, r *http.Request) {
	principalID := GetPrincipalID(r.Context())

	var req AccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrgID == "" {
		respondError(w, http.StatusBadRequest, "org_id is required")
		return
	}

	start := time.Now()
	result, err := h.access.Resolve(r.Context(), principalID, toRequestContext(req))
	if err != nil {
		slog.ErrorContext(r.Context(), "access resolution failed",
			logger.PrincipalID(principalID),
			logger.OrgID(req.OrgID),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	h.decisions.RecordCheck(r.Context(), "access", result.Allowed, time.Since(start))

	if !result.Allowed {
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:        audit.TypeAccessDenied,
			PrincipalID: principalID,
			OrgID:       req.OrgID,
			Resource:    accessResource(req),
			IPAddress:   getIPAddress(r),
			UserAgent:   r.UserAgent(),
			Metadata: map[string]any{
				"section":     req.Section,
				"category_id": req.CategoryID,
				"asset_id":    req.AssetID,
			},
		})
	}

	respondJSON(w, http.StatusOK, toAccessResponse(result))
}

// AccessBatchRequest carries many resource contexts to resolve at once
type AccessBatchRequest struct {
	Contexts []AccessRequest `json:"contexts"`
}

// AccessBatchResponse maps asset ids to their decisions
type AccessBatchResponse struct {
	Results map[string]AccessResponse `json:"results"`
}

// ResolveAccessBatch decides hierarchical access for many contexts
// @Summary Resolve Access (batch)
// @Description Resolves many resource contexts with two store reads total
// @Tags Authorization
// @Accept json
// @Produce json
// @Param request body AccessBatchRequest true "Resource contexts"
// @Success 200 {object} AccessBatchResponse
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /authz/access/batch [post]
func (h *Handler) ResolveAccessBatch(w http.ResponseWriter, r *http.Request) {
	principalID := GetPrincipalID(r.Context())

	var req AccessBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Contexts) == 0 {
		respondError(w, http.StatusBadRequest, "contexts is required and must be non-empty")
		return
	}
	for _, c := range req.Contexts {
		if c.OrgID == "" {
			respondError(w, http.StatusBadRequest, "org_id is required for every context")
			return
		}
	}

	contexts := make([]authz.RequestContext, 0, len(req.Contexts))
	for _, c := range req.Contexts {
		contexts = append(contexts, toRequestContext(c))
	}

	start := time.Now()
	results, err := h.access.ResolveBatch(r.Context(), principalID, contexts)
	if err != nil {
		slog.ErrorContext(r.Context(), "batch access resolution failed",
			logger.PrincipalID(principalID),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}
	elapsed := time.Since(start)

	out := make(map[string]AccessResponse, len(results))
	for assetID, result := range results {
		out[assetID] = toAccessResponse(result)
		h.decisions.RecordCheck(r.Context(), "access", result.Allowed, elapsed)
	}

	respondJSON(w, http.StatusOK, AccessBatchResponse{Results: out})
}

// AllowedOrgsResponse lists the organizations visible to the caller
type AllowedOrgsResponse struct {
	OrgIDs []string `json:"org_ids"`
}

// GetAllowedOrgs reports the caller's organization-level visibility
// @Summary Allowed Organizations
// @Description Lists every organization the principal has org-level access to; wildcard rules expand to the full catalog
// @Tags Authorization
// @Produce json
// @Success 200 {object} AllowedOrgsResponse
// @Security BearerAuth
// @Router /authz/orgs [get]
func (h *Handler) GetAllowedOrgs(w http.ResponseWriter, r *http.Request) {
	principalID := GetPrincipalID(r.Context())

	orgIDs, err := h.scope.AllowedOrgIDs(r.Context(), principalID)
	if err != nil {
		slog.ErrorContext(r.Context(), "allowed scope resolution failed",
			logger.PrincipalID(principalID),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:        audit.TypeScopeResolved,
		PrincipalID: principalID,
		Resource:    "organizations",
		IPAddress:   getIPAddress(r),
		UserAgent:   r.UserAgent(),
		Metadata: map[string]any{
			"org_count": len(orgIDs),
		},
	})

	respondJSON(w, http.StatusOK, AllowedOrgsResponse{OrgIDs: orgIDs})
}

// Helper functions
func accessResource(req AccessRequest) string {
	resource := req.OrgID
	if req.Section != "" {
		resource += "/" + req.Section
	}
	if req.CategoryID != "" {
		resource += "/" + req.CategoryID
	}
	if req.AssetID != "" {
		resource += "/" + req.AssetID
	}
	return resource
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
