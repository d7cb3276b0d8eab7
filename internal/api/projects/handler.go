package projects

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/biscicol/bcid/internal/api/middleware"
	"github.com/biscicol/bcid/internal/minter"
	"github.com/biscicol/bcid/internal/models"
)

// Response helpers (local to avoid import cycle with api package)
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeForbidden        = "FORBIDDEN"
	errCodeNotFound         = "NOT_FOUND"
	errCodeConflict         = "CONFLICT"
	errCodeInternalError    = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}})
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeMintError maps minting layer errors onto HTTP responses. Anything
// unrecognized is logged and surfaced as a generic 500.
func writeMintError(w http.ResponseWriter, op string, err error) {
	var invalid *minter.InvalidCodeError
	switch {
	case errors.As(err, &invalid):
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, invalid.Error())
	case errors.Is(err, minter.ErrDuplicateCode):
		jsonError(w, http.StatusConflict, errCodeConflict, "code already exists")
	case errors.Is(err, minter.ErrUnauthorized):
		jsonError(w, http.StatusForbidden, errCodeForbidden, "insufficient permissions")
	case errors.Is(err, minter.ErrNotFound):
		jsonError(w, http.StatusNotFound, errCodeNotFound, "not found")
	default:
		log.Printf("%s error: %v", op, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
	}
}

// Response types
type ProjectResponse struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	Title     string `json:"title"`
	Public    bool   `json:"public"`
	UserID    int64  `json:"user_id"`
	CreatedAt string `json:"created_at"`
}

type MemberResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type ResourceResponse struct {
	ID           int64  `json:"id"`
	Prefix       string `json:"prefix"`
	ResourceType string `json:"resource_type"`
	WebAddress   string `json:"web_address,omitempty"`
}

type Handler struct {
	minter *minter.ProjectMinter
}

func NewHandler(m *minter.ProjectMinter) *Handler {
	return &Handler{minter: m}
}

// Request types
type CreateRequest struct {
	Code   string `json:"code"`
	Title  string `json:"title"`
	Public bool   `json:"public"`
}

type AddMemberRequest struct {
	UserID int64 `json:"user_id"`
}

type ConfigUpdateRequest struct {
	Title         *string `json:"title,omitempty"`
	Public        *bool   `json:"public,omitempty"`
	ValidationRef *string `json:"validation_ref,omitempty"`
}

type CreateResourceRequest struct {
	Prefix       string `json:"prefix"`
	ResourceType string `json:"resource_type"`
	WebAddress   string `json:"web_address"`
}

// List returns projects visible to the caller: public projects, plus
// private projects the caller is a member of. Anonymous callers see only
// public projects.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var userID *int64
	if id := middleware.GetUserID(ctx); id != 0 {
		userID = &id
	}

	projects, err := h.minter.List(ctx, userID)
	if err != nil {
		log.Printf("list projects error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := make([]*ProjectResponse, len(projects))
	for i, p := range projects {
		resp[i] = projectToResponse(p)
	}
	jsonOK(w, resp)
}

// ListAdmin returns the projects the caller administers.
func (h *Handler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	projects, err := h.minter.ListAdmin(ctx, userID)
	if err != nil {
		log.Printf("list admin projects error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := make([]*ProjectResponse, len(projects))
	for i, p := range projects {
		resp[i] = projectToResponse(p)
	}
	jsonOK(w, resp)
}

// Create creates a new project owned by the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	req.Code = strings.TrimSpace(req.Code)
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "title is required")
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	project, err := h.minter.Create(ctx, req.Code, req.Title, req.Public, userID)
	if err != nil {
		writeMintError(w, "create project", err)
		return
	}

	log.Printf("project created: %s (id=%d) by user %d", project.Code, project.ID, userID)
	jsonCreated(w, projectToResponse(project))
}

// Members returns the member list of a project. Restricted to project
// administrators.
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlID(w, r, "projectID")
	if !ok {
		return
	}

	ctx := r.Context()
	if !h.requireProjectAdmin(w, ctx, projectID) {
		return
	}

	members, err := h.minter.Members(ctx, projectID)
	if err != nil {
		log.Printf("list members error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := make([]*MemberResponse, len(members))
	for i, m := range members {
		resp[i] = &MemberResponse{UserID: m.UserID, Username: m.Username, Email: m.Email}
	}
	jsonOK(w, resp)
}

// AddMember adds a user to a project. Restricted to project administrators.
// Adding an existing member is a no-op.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlID(w, r, "projectID")
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if req.UserID == 0 {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "user_id is required")
		return
	}

	ctx := r.Context()
	if !h.requireProjectAdmin(w, ctx, projectID) {
		return
	}

	if err := h.minter.AddMember(ctx, projectID, req.UserID); err != nil {
		writeMintError(w, "add member", err)
		return
	}

	log.Printf("user %d added to project %d", req.UserID, projectID)
	jsonNoContent(w)
}

// RemoveMember removes a user from a project. Restricted to project
// administrators.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlID(w, r, "projectID")
	if !ok {
		return
	}
	userID, ok := urlID(w, r, "userID")
	if !ok {
		return
	}

	ctx := r.Context()
	if !h.requireProjectAdmin(w, ctx, projectID) {
		return
	}

	if err := h.minter.RemoveMember(ctx, projectID, userID); err != nil {
		writeMintError(w, "remove member", err)
		return
	}

	log.Printf("user %d removed from project %d", userID, projectID)
	jsonNoContent(w)
}

// Config returns the mutable configuration of a project. The minting layer
// enforces that only project administrators may read it.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlID(w, r, "projectID")
	if !ok {
		return
	}

	ctx := r.Context()
	config, err := h.minter.Config(ctx, projectID, middleware.GetUserID(ctx))
	if err != nil {
		writeMintError(w, "get project config", err)
		return
	}

	jsonOK(w, config)
}

// UpdateConfig applies a partial update to a project's configuration.
// Restricted to project administrators.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlID(w, r, "projectID")
	if !ok {
		return
	}

	var req ConfigUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	fields := make(map[string]any)
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "title must not be empty")
			return
		}
		fields["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Public != nil {
		fields["public"] = *req.Public
	}
	if req.ValidationRef != nil {
		fields["validation_ref"] = *req.ValidationRef
	}
	if len(fields) == 0 {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "no fields to update")
		return
	}

	ctx := r.Context()
	if !h.requireProjectAdmin(w, ctx, projectID) {
		return
	}

	if err := h.minter.UpdateConfig(ctx, projectID, fields); err != nil {
		writeMintError(w, "update project config", err)
		return
	}

	log.Printf("project %d config updated", projectID)
	jsonNoContent(w)
}

// CreateResource registers a resource concept (admin only, enforced by the
// router).
func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req CreateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	req.Prefix = strings.TrimSpace(req.Prefix)
	if req.Prefix == "" || req.ResourceType == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "prefix and resource_type are required")
		return
	}

	resource, err := h.minter.CreateResource(r.Context(), req.Prefix, req.ResourceType, req.WebAddress)
	if err != nil {
		writeMintError(w, "create resource", err)
		return
	}

	log.Printf("resource created: %s (id=%d)", resource.Prefix, resource.ID)
	jsonCreated(w, resourceToResponse(resource))
}

// requireProjectAdmin writes a 403 and returns false unless the caller
// administers the project. Non-existent projects produce the same 403 so
// callers cannot probe for private project ids.
func (h *Handler) requireProjectAdmin(w http.ResponseWriter, ctx context.Context, projectID int64) bool {
	userID := middleware.GetUserID(ctx)

	admin, err := h.minter.IsAdmin(ctx, userID, projectID)
	if err != nil {
		log.Printf("project admin check error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return false
	}
	if !admin {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "insufficient permissions")
		return false
	}
	return true
}

func projectToResponse(p *models.Project) *ProjectResponse {
	return &ProjectResponse{
		ID:        p.ID,
		Code:      p.Code,
		Title:     p.Title,
		Public:    p.Public,
		UserID:    p.UserID,
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func resourceToResponse(res *models.Resource) *ResourceResponse {
	return &ResourceResponse{
		ID:           res.ID,
		Prefix:       res.Prefix,
		ResourceType: res.ResourceType,
		WebAddress:   res.WebAddress,
	}
}

// urlID parses a numeric chi URL parameter, writing a 400 on failure.
func urlID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, param+" must be a positive integer")
		return 0, false
	}
	return id, true
}
