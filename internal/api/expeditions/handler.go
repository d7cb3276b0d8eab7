package expeditions

import (
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
type MintResponse struct {
	ID int64 `json:"id"`
}

type MetadataResponse struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	Title        string `json:"title"`
	Abstract     string `json:"abstract,omitempty"`
	Username     string `json:"username"`
	ProjectID    int64  `json:"project_id"`
	ProjectCode  string `json:"project_code"`
	ProjectTitle string `json:"project_title"`
	CreatedAt    string `json:"created_at"`
}

type ResourceResponse struct {
	ID           int64  `json:"id"`
	Prefix       string `json:"prefix"`
	ResourceType string `json:"resource_type"`
	WebAddress   string `json:"web_address,omitempty"`
}

type Handler struct {
	minter   *minter.ExpeditionMinter
	resolver *minter.Resolver
}

func NewHandler(m *minter.ExpeditionMinter, r *minter.Resolver) *Handler {
	return &Handler{minter: m, resolver: r}
}

// Request types
type MintRequest struct {
	Code     string `json:"code"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
}

type AttachResourceRequest struct {
	Prefix string `json:"prefix"`
}

// Mint creates a new expedition inside a project and returns the assigned
// identifier. The caller must be a member of the project.
func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlID(w, r, "projectID")
	if !ok {
		return
	}

	var req MintRequest
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

	id, err := h.minter.Mint(ctx, minter.MintRequest{
		Code:      req.Code,
		Title:     req.Title,
		Abstract:  req.Abstract,
		UserID:    userID,
		ProjectID: projectID,
	})
	if err != nil {
		writeMintError(w, "mint expedition", err)
		return
	}

	log.Printf("expedition minted: %s (id=%d) project=%d user=%d", req.Code, id, projectID, userID)
	jsonCreated(w, MintResponse{ID: id})
}

// GetByCode resolves an expedition code within a project to its metadata.
func (h *Handler) GetByCode(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlID(w, r, "projectID")
	if !ok {
		return
	}
	code := chi.URLParam(r, "code")

	meta, err := h.resolver.ByCode(r.Context(), code, projectID)
	if err != nil {
		writeMintError(w, "resolve expedition", err)
		return
	}

	jsonOK(w, metadataToResponse(meta))
}

// GetByID resolves a numeric expedition identifier to its metadata.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	meta, err := h.minter.Metadata(r.Context(), id)
	if err != nil {
		writeMintError(w, "get expedition", err)
		return
	}

	jsonOK(w, metadataToResponse(meta))
}

// ListMine returns the expeditions owned by the caller, across projects.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	metas, err := h.minter.ListForUser(ctx, userID)
	if err != nil {
		log.Printf("list expeditions error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := make([]*MetadataResponse, len(metas))
	for i, m := range metas {
		resp[i] = metadataToResponse(m)
	}
	jsonOK(w, resp)
}

// AttachResource associates a registered resource with an expedition. The
// caller must own the expedition.
func (h *Handler) AttachResource(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlID(w, r, "projectID")
	if !ok {
		return
	}
	code := chi.URLParam(r, "code")

	var req AttachResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if req.Prefix == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "prefix is required")
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	owns, err := h.minter.UserOwns(ctx, userID, code, projectID)
	if err != nil {
		log.Printf("attach resource error: ownership check: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if !owns {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "insufficient permissions")
		return
	}

	if err := h.minter.AttachResource(ctx, code, projectID, req.Prefix); err != nil {
		writeMintError(w, "attach resource", err)
		return
	}

	log.Printf("resource %s attached to expedition %s in project %d", req.Prefix, code, projectID)
	w.WriteHeader(http.StatusNoContent)
}

// Resources lists the resources attached to an expedition.
func (h *Handler) Resources(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlID(w, r, "projectID")
	if !ok {
		return
	}
	code := chi.URLParam(r, "code")

	resources, err := h.resolver.ExpeditionResources(r.Context(), code, projectID)
	if err != nil {
		writeMintError(w, "list expedition resources", err)
		return
	}

	resp := make([]*ResourceResponse, len(resources))
	for i, res := range resources {
		resp[i] = resourceToResponse(res)
	}
	jsonOK(w, resp)
}

// Resolve is the public resolution endpoint. Exactly one of the query
// parameters must be supplied:
//
//	token  — opaque allocation token, resolves to the numeric identifier
//	prefix — resource identifier prefix, resolves to the resource record
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	prefix := r.URL.Query().Get("prefix")

	switch {
	case token != "" && prefix == "":
		id, err := h.resolver.ByToken(r.Context(), token)
		if err != nil {
			writeMintError(w, "resolve token", err)
			return
		}
		jsonOK(w, MintResponse{ID: id})
	case prefix != "" && token == "":
		resource, err := h.resolver.Resource(r.Context(), prefix)
		if err != nil {
			writeMintError(w, "resolve resource", err)
			return
		}
		jsonOK(w, resourceToResponse(resource))
	default:
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "exactly one of token or prefix is required")
	}
}

func metadataToResponse(m *models.ExpeditionMetadata) *MetadataResponse {
	return &MetadataResponse{
		ID:           m.ID,
		Code:         m.Code,
		Title:        m.Title,
		Abstract:     m.Abstract,
		Username:     m.Username,
		ProjectID:    m.ProjectID,
		ProjectCode:  m.ProjectCode,
		ProjectTitle: m.ProjectTitle,
		CreatedAt:    m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
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

func urlID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, param+" must be a positive integer")
		return 0, false
	}
	return id, true
}
