package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/biscicol/bcid/internal/minter"
	"github.com/biscicol/bcid/internal/models"
	"github.com/biscicol/bcid/internal/storage"
)

// testServer creates a server backed by a temp-file SQLite database.
func testServer(t *testing.T) (*Server, storage.Storage, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "bcid-test-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	tmpFile.Close()

	store := storage.NewSQLiteStorage(tmpFile.Name())
	if err := store.Open(); err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("open storage: %v", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		os.Remove(tmpFile.Name())
		t.Fatalf("migrate storage: %v", err)
	}

	cfg := &Config{
		Address:        ":0",
		JWTSecret:      []byte("test-jwt-secret-32-bytes-long!!"),
		AccessTokenTTL: 15 * time.Minute,
		RateLimitPerIP: 1000,
		Verbose:        false,
	}

	projects := minter.NewProjectMinter(store)
	expeditions := minter.NewExpeditionMinter(store, nil, minter.ExpeditionConfig{})
	resolver := minter.NewResolver(store)

	srv, err := New(cfg, store, projects, expeditions, resolver)
	if err != nil {
		store.Close()
		os.Remove(tmpFile.Name())
		t.Fatalf("create server: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.Remove(tmpFile.Name())
	}

	return srv, store, cleanup
}

// createTestUser creates a user in the database for testing.
func createTestUser(t *testing.T, store storage.Storage, username, password string, role models.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	user := models.NewUser(username, username+"@test.com", role)
	user.PasswordHash = string(hash)

	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	return user
}

// handler returns the HTTP handler for the server.
func handler(srv *Server) http.Handler {
	return srv.server.Handler
}

// login authenticates and returns the bearer token.
func login(t *testing.T, srv *Server, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data LoginResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Data.AccessToken == "" {
		t.Fatal("empty access token")
	}
	return resp.Data.AccessToken
}

// doJSON performs a request with an optional bearer token and JSON body.
func doJSON(t *testing.T, srv *Server, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler(srv).ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, cleanup := testServer(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestLogin_Success(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	createTestUser(t, store, "testuser", "TestPassword123!", models.RoleViewer)

	token := login(t, srv, "testuser", "TestPassword123!")
	if token == "" {
		t.Fatal("expected token")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	createTestUser(t, store, "testuser", "TestPassword123!", models.RoleViewer)

	rec := doJSON(t, srv, "POST", "/api/v1/auth/login", "", map[string]string{
		"username": "testuser", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	// Unknown user answers identically
	rec = doJSON(t, srv, "POST", "/api/v1/auth/login", "", map[string]string{
		"username": "nobody", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown user status = %d, want 401", rec.Code)
	}
}

func TestProtectedEndpoint_NoToken(t *testing.T) {
	srv, _, cleanup := testServer(t)
	defer cleanup()

	rec := doJSON(t, srv, "GET", "/api/v1/users/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestUsersList_RequiresAdmin(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	createTestUser(t, store, "viewer", "TestPassword123!", models.RoleViewer)
	token := login(t, srv, "viewer", "TestPassword123!")

	rec := doJSON(t, srv, "GET", "/api/v1/users/", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestMintFlow(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	createTestUser(t, store, "curator", "TestPassword123!", models.RoleCurator)
	token := login(t, srv, "curator", "TestPassword123!")

	// Create a project
	rec := doJSON(t, srv, "POST", "/api/v1/projects/", token, map[string]any{
		"code": "BALI", "title": "Bali reef survey", "public": true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project status = %d: %s", rec.Code, rec.Body.String())
	}
	var projResp struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &projResp); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	projectID := projResp.Data.ID

	// Mint an expedition
	rec = doJSON(t, srv, "POST", fmt.Sprintf("/api/v1/projects/%d/expeditions", projectID), token, map[string]any{
		"code": "DEMO1", "title": "Demo expedition",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("mint status = %d: %s", rec.Code, rec.Body.String())
	}
	var mintResp struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &mintResp); err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	if mintResp.Data.ID == 0 {
		t.Fatal("expected non-zero expedition id")
	}

	// Public resolution by code, no authentication
	rec = doJSON(t, srv, "GET", fmt.Sprintf("/api/v1/projects/%d/expeditions/DEMO1", projectID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve status = %d: %s", rec.Code, rec.Body.String())
	}
	var metaResp struct {
		Data struct {
			ID       int64  `json:"id"`
			Code     string `json:"code"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &metaResp); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if metaResp.Data.ID != mintResp.Data.ID || metaResp.Data.Code != "DEMO1" || metaResp.Data.Username != "curator" {
		t.Errorf("metadata = %+v", metaResp.Data)
	}

	// Duplicate mint conflicts
	rec = doJSON(t, srv, "POST", fmt.Sprintf("/api/v1/projects/%d/expeditions", projectID), token, map[string]any{
		"code": "DEMO1", "title": "Again",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate mint status = %d, want 409", rec.Code)
	}

	// Bad code is a validation failure
	rec = doJSON(t, srv, "POST", fmt.Sprintf("/api/v1/projects/%d/expeditions", projectID), token, map[string]any{
		"code": "A", "title": "Too short",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid code status = %d, want 400", rec.Code)
	}
}

func TestMint_ViewerForbidden(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	curator := createTestUser(t, store, "curator", "TestPassword123!", models.RoleCurator)
	createTestUser(t, store, "viewer", "TestPassword123!", models.RoleViewer)

	ctx := context.Background()
	project := models.NewProject("BALI", "Bali", true, curator.ID)
	if err := store.Projects().Create(ctx, project); err != nil {
		t.Fatalf("create project: %v", err)
	}

	token := login(t, srv, "viewer", "TestPassword123!")
	rec := doJSON(t, srv, "POST", fmt.Sprintf("/api/v1/projects/%d/expeditions", project.ID), token, map[string]any{
		"code": "DEMO1", "title": "t",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer mint status = %d, want 403", rec.Code)
	}
}

func TestMint_NonMemberForbidden(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	owner := createTestUser(t, store, "owner", "TestPassword123!", models.RoleCurator)
	createTestUser(t, store, "outsider", "TestPassword123!", models.RoleCurator)

	ctx := context.Background()
	project := models.NewProject("BALI", "Bali", true, owner.ID)
	if err := store.Projects().Create(ctx, project); err != nil {
		t.Fatalf("create project: %v", err)
	}

	// outsider has write role but no membership
	token := login(t, srv, "outsider", "TestPassword123!")
	rec := doJSON(t, srv, "POST", fmt.Sprintf("/api/v1/projects/%d/expeditions", project.ID), token, map[string]any{
		"code": "DEMO1", "title": "t",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-member mint status = %d, want 403", rec.Code)
	}
}

func TestProjectConfig_AdminOnly(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	createTestUser(t, store, "owner", "TestPassword123!", models.RoleCurator)
	createTestUser(t, store, "other", "TestPassword123!", models.RoleCurator)

	ownerToken := login(t, srv, "owner", "TestPassword123!")
	otherToken := login(t, srv, "other", "TestPassword123!")

	rec := doJSON(t, srv, "POST", "/api/v1/projects/", ownerToken, map[string]any{
		"code": "CFG1", "title": "Config project",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project status = %d: %s", rec.Code, rec.Body.String())
	}
	var projResp struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &projResp)
	projectID := projResp.Data.ID

	// Owner reads config
	rec = doJSON(t, srv, "GET", fmt.Sprintf("/api/v1/projects/%d/config", projectID), ownerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner config status = %d: %s", rec.Code, rec.Body.String())
	}

	// Non-admin is denied
	rec = doJSON(t, srv, "GET", fmt.Sprintf("/api/v1/projects/%d/config", projectID), otherToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin config status = %d, want 403", rec.Code)
	}

	// Owner updates config
	rec = doJSON(t, srv, "PUT", fmt.Sprintf("/api/v1/projects/%d/config", projectID), ownerToken, map[string]any{
		"title": "Renamed", "public": true,
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("update config status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProjectList_Visibility(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	owner := createTestUser(t, store, "owner", "TestPassword123!", models.RoleCurator)

	ctx := context.Background()
	public := models.NewProject("PUB1", "Public", true, owner.ID)
	if err := store.Projects().Create(ctx, public); err != nil {
		t.Fatalf("create public: %v", err)
	}
	private := models.NewProject("PRIV1", "Private", false, owner.ID)
	if err := store.Projects().Create(ctx, private); err != nil {
		t.Fatalf("create private: %v", err)
	}
	if err := store.Projects().AddMember(ctx, private.ID, owner.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}

	// Anonymous sees only the public project
	rec := doJSON(t, srv, "GET", "/api/v1/projects/", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous list status = %d", rec.Code)
	}
	var listResp struct {
		Data []struct {
			Code string `json:"code"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &listResp)
	if len(listResp.Data) != 1 || listResp.Data[0].Code != "PUB1" {
		t.Errorf("anonymous list = %+v", listResp.Data)
	}

	// The member sees both
	token := login(t, srv, "owner", "TestPassword123!")
	rec = doJSON(t, srv, "GET", "/api/v1/projects/", token, nil)
	json.Unmarshal(rec.Body.Bytes(), &listResp)
	if len(listResp.Data) != 2 {
		t.Errorf("member list = %+v, want 2 projects", listResp.Data)
	}
}

func TestResolveEndpoint(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	// Both or neither parameter is a bad request
	rec := doJSON(t, srv, "GET", "/api/v1/resolve", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("no params status = %d, want 400", rec.Code)
	}
	rec = doJSON(t, srv, "GET", "/api/v1/resolve?token=x&prefix=y", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("both params status = %d, want 400", rec.Code)
	}

	// Unknown token is a miss
	rec = doJSON(t, srv, "GET", "/api/v1/resolve?token=no-such-token", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown token status = %d, want 404", rec.Code)
	}

	// A registered resource resolves by prefix
	res := &models.Resource{Prefix: "ark:/21547/R2", ResourceType: "PhysicalObject", CreatedAt: time.Now()}
	if err := store.Resources().Create(context.Background(), res); err != nil {
		t.Fatalf("create resource: %v", err)
	}
	rec = doJSON(t, srv, "GET", "/api/v1/resolve?prefix=ark:/21547/R2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve prefix status = %d: %s", rec.Code, rec.Body.String())
	}
}
