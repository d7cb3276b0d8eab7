package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/biscicol/bcid/internal/models"
)

func setupTestDB(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "bcid-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")

	store := NewSQLiteStorage(dbPath)
	if err := store.Open(); err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("open database: %v", err)
	}

	if err := store.Migrate(); err != nil {
		store.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("migrate database: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

func createTestUser(t *testing.T, store *SQLiteStorage, username string) *models.User {
	t.Helper()

	user := models.NewUser(username, username+"@example.org", models.RoleCurator)
	user.PasswordHash = "$2a$10$fakehashfortestingonly..............."
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func createTestProject(t *testing.T, store *SQLiteStorage, code string, public bool, ownerID int64) *models.Project {
	t.Helper()

	project := models.NewProject(code, "Project "+code, public, ownerID)
	if err := store.Projects().Create(context.Background(), project); err != nil {
		t.Fatalf("create project %s: %v", code, err)
	}
	return project
}

func insertTestExpedition(t *testing.T, store *SQLiteStorage, code string, userID, projectID int64) *models.Expedition {
	t.Helper()

	exp := &models.Expedition{
		Token:     uuid.New().String(),
		Code:      code,
		Title:     "Expedition " + code,
		UserID:    userID,
		ProjectID: projectID,
		CreatedAt: time.Now(),
	}
	if err := store.Expeditions().Insert(context.Background(), exp); err != nil {
		t.Fatalf("insert expedition %s: %v", code, err)
	}
	return exp
}

func TestSQLiteStorage_OpenClose(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	if store.db == nil {
		t.Fatal("database should be open")
	}
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tables := []string{"users", "projects", "project_users", "expeditions", "resources", "expedition_resources", "schema_migrations"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s should exist: %v", table, err)
		}
	}
}

func TestUserRepository_CRUD(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice")
	if user.ID == 0 {
		t.Fatal("expected assigned user id")
	}

	got, err := store.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got == nil || got.Username != "alice" {
		t.Fatalf("get user = %+v, want alice", got)
	}

	got, err = store.Users().GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if got == nil || got.ID != user.ID {
		t.Fatalf("get by username = %+v, want id %d", got, user.ID)
	}

	// Miss returns nil, nil
	got, err = store.Users().GetByUsername(ctx, "nobody")
	if err != nil {
		t.Fatalf("get missing user: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing user, got %+v", got)
	}

	// Update
	user.Email = "new@example.org"
	user.Role = models.RoleAdmin
	if err := store.Users().Update(ctx, user); err != nil {
		t.Fatalf("update user: %v", err)
	}
	got, _ = store.Users().GetByID(ctx, user.ID)
	if got.Email != "new@example.org" || got.Role != models.RoleAdmin {
		t.Errorf("update not persisted: %+v", got)
	}

	count, err := store.Users().Count(ctx)
	if err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestUserRepository_UniqueConstraints(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	createTestUser(t, store, "alice")

	dup := models.NewUser("alice", "other@example.org", models.RoleViewer)
	dup.PasswordHash = "x"
	err := store.Users().Create(ctx, dup)
	if err == nil {
		t.Fatal("expected unique constraint failure for duplicate username")
	}
	if !IsConstraintViolation(err) {
		t.Errorf("IsConstraintViolation = false for %v", err)
	}
}

func TestProjectRepository_CRUD(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	project := createTestProject(t, store, "BALI", true, owner.ID)
	if project.ID == 0 {
		t.Fatal("expected assigned project id")
	}

	got, err := store.Projects().GetByCode(ctx, "BALI")
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if got == nil || got.ID != project.ID {
		t.Fatalf("get by code = %+v, want id %d", got, project.ID)
	}

	// Duplicate project code
	dup := models.NewProject("BALI", "Other", false, owner.ID)
	if err := store.Projects().Create(ctx, dup); !IsConstraintViolation(err) {
		t.Errorf("expected constraint violation for duplicate code, got %v", err)
	}
}

func TestProjectRepository_Visibility(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	member := createTestUser(t, store, "member")

	public := createTestProject(t, store, "PUB1", true, owner.ID)
	private := createTestProject(t, store, "PRIV1", false, owner.ID)

	if err := store.Projects().AddMember(ctx, private.ID, member.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}

	// Anonymous sees only public
	visible, err := store.Projects().ListVisible(ctx, nil)
	if err != nil {
		t.Fatalf("list visible: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != public.ID {
		t.Fatalf("anonymous visible = %+v, want only public project", visible)
	}

	// Member sees public plus their private project
	visible, err = store.Projects().ListVisible(ctx, &member.ID)
	if err != nil {
		t.Fatalf("list visible for member: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("member visible count = %d, want 2", len(visible))
	}

	all, err := store.Projects().ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("list all count = %d, want 2", len(all))
	}
}

func TestProjectRepository_Membership(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	member := createTestUser(t, store, "member")
	project := createTestProject(t, store, "MEMB1", false, owner.ID)

	ok, err := store.Projects().IsMember(ctx, member.ID, project.ID)
	if err != nil {
		t.Fatalf("is member: %v", err)
	}
	if ok {
		t.Fatal("should not be a member yet")
	}

	if err := store.Projects().AddMember(ctx, project.ID, member.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}
	// Adding again is a no-op
	if err := store.Projects().AddMember(ctx, project.ID, member.ID); err != nil {
		t.Fatalf("re-add member should not fail: %v", err)
	}

	ok, _ = store.Projects().IsMember(ctx, member.ID, project.ID)
	if !ok {
		t.Fatal("should be a member")
	}

	members, err := store.Projects().Members(ctx, project.ID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 1 || members[0].Username != "member" {
		t.Fatalf("members = %+v, want [member]", members)
	}

	if err := store.Projects().RemoveMember(ctx, project.ID, member.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	ok, _ = store.Projects().IsMember(ctx, member.ID, project.ID)
	if ok {
		t.Fatal("should no longer be a member")
	}
}

func TestProjectRepository_IsAdmin(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	other := createTestUser(t, store, "other")
	project := createTestProject(t, store, "ADM1", false, owner.ID)

	admin, err := store.Projects().IsAdmin(ctx, owner.ID, project.ID)
	if err != nil {
		t.Fatalf("is admin: %v", err)
	}
	if !admin {
		t.Error("owner should be admin")
	}

	admin, _ = store.Projects().IsAdmin(ctx, other.ID, project.ID)
	if admin {
		t.Error("non-owner should not be admin")
	}
}

func TestProjectRepository_UpdateConfig(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	project := createTestProject(t, store, "CFG1", false, owner.ID)

	rows, err := store.Projects().UpdateConfig(ctx, project.ID, map[string]any{
		"title":          "Renamed",
		"public":         true,
		"validation_ref": "https://example.org/rules.xml",
	})
	if err != nil {
		t.Fatalf("update config: %v", err)
	}
	if rows != 1 {
		t.Fatalf("rows affected = %d, want 1", rows)
	}

	got, _ := store.Projects().GetByID(ctx, project.ID)
	if got.Title != "Renamed" || !got.Public || got.ValidationRef != "https://example.org/rules.xml" {
		t.Errorf("config not persisted: %+v", got)
	}

	// Unknown fields are rejected outright
	if _, err := store.Projects().UpdateConfig(ctx, project.ID, map[string]any{"user_id": 999}); err == nil {
		t.Fatal("expected error for non-whitelisted field")
	}

	// Missing project id affects zero rows
	rows, err = store.Projects().UpdateConfig(ctx, 99999, map[string]any{"title": "x"})
	if err != nil {
		t.Fatalf("update missing project: %v", err)
	}
	if rows != 0 {
		t.Errorf("rows affected = %d, want 0", rows)
	}
}

func TestExpeditionRepository_InsertAndTokenLookup(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice")
	project := createTestProject(t, store, "EXP1", false, user.ID)

	exp := insertTestExpedition(t, store, "DEMO1", user.ID, project.ID)

	id, err := store.Expeditions().IDByToken(ctx, exp.Token)
	if err != nil {
		t.Fatalf("id by token: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id from token lookup")
	}

	// Unknown token yields 0, no error
	missing, err := store.Expeditions().IDByToken(ctx, uuid.New().String())
	if err != nil {
		t.Fatalf("unknown token lookup: %v", err)
	}
	if missing != 0 {
		t.Errorf("unknown token id = %d, want 0", missing)
	}

	byCode, err := store.Expeditions().IDByCode(ctx, "DEMO1", project.ID)
	if err != nil {
		t.Fatalf("id by code: %v", err)
	}
	if byCode != id {
		t.Errorf("id by code = %d, want %d", byCode, id)
	}
}

func TestExpeditionRepository_DuplicateCodeConstraint(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice")
	projectA := createTestProject(t, store, "PROJA", false, user.ID)
	projectB := createTestProject(t, store, "PROJB", false, user.ID)

	insertTestExpedition(t, store, "DEMO1", user.ID, projectA.ID)

	// Same code in the same project violates UNIQUE(code, project_id)
	dup := &models.Expedition{
		Token:     uuid.New().String(),
		Code:      "DEMO1",
		Title:     "dup",
		UserID:    user.ID,
		ProjectID: projectA.ID,
		CreatedAt: time.Now(),
	}
	err := store.Expeditions().Insert(ctx, dup)
	if err == nil {
		t.Fatal("expected constraint violation for duplicate code in project")
	}
	if !IsConstraintViolation(err) {
		t.Errorf("IsConstraintViolation = false for %v", err)
	}

	// Same code in another project is fine
	insertTestExpedition(t, store, "DEMO1", user.ID, projectB.ID)
}

func TestExpeditionRepository_Metadata(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice")
	project := createTestProject(t, store, "META1", false, user.ID)
	exp := insertTestExpedition(t, store, "DEMO1", user.ID, project.ID)

	id, _ := store.Expeditions().IDByToken(ctx, exp.Token)

	meta, err := store.Expeditions().Metadata(ctx, id)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta == nil {
		t.Fatal("expected metadata")
	}
	if meta.Code != "DEMO1" || meta.Username != "alice" || meta.ProjectCode != "META1" {
		t.Errorf("metadata = %+v", meta)
	}

	// Missing id yields nil, nil
	meta, err = store.Expeditions().Metadata(ctx, 99999)
	if err != nil {
		t.Fatalf("missing metadata: %v", err)
	}
	if meta != nil {
		t.Errorf("expected nil metadata, got %+v", meta)
	}
}

func TestExpeditionRepository_OwnershipAndListing(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")
	project := createTestProject(t, store, "OWN1", false, alice.ID)

	insertTestExpedition(t, store, "AAAA", alice.ID, project.ID)
	insertTestExpedition(t, store, "BBBB", alice.ID, project.ID)
	insertTestExpedition(t, store, "CCCC", bob.ID, project.ID)

	owns, err := store.Expeditions().UserOwns(ctx, alice.ID, "AAAA", project.ID)
	if err != nil {
		t.Fatalf("user owns: %v", err)
	}
	if !owns {
		t.Error("alice should own AAAA")
	}

	owns, _ = store.Expeditions().UserOwns(ctx, bob.ID, "AAAA", project.ID)
	if owns {
		t.Error("bob should not own AAAA")
	}

	metas, err := store.Expeditions().ListForUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(metas) != 2 {
		t.Errorf("alice expedition count = %d, want 2", len(metas))
	}
}

func TestResourceRepository_CreateAndAttach(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice")
	project := createTestProject(t, store, "RES1", false, user.ID)
	exp := insertTestExpedition(t, store, "DEMO1", user.ID, project.ID)
	expID, _ := store.Expeditions().IDByToken(ctx, exp.Token)

	res := &models.Resource{
		Prefix:       "ark:/21547/R2",
		ResourceType: "http://purl.org/dc/dcmitype/PhysicalObject",
		WebAddress:   "https://example.org/specimens/",
		CreatedAt:    time.Now(),
	}
	if err := store.Resources().Create(ctx, res); err != nil {
		t.Fatalf("create resource: %v", err)
	}
	if res.ID == 0 {
		t.Fatal("expected assigned resource id")
	}

	got, err := store.Resources().GetByPrefix(ctx, "ark:/21547/R2")
	if err != nil {
		t.Fatalf("get by prefix: %v", err)
	}
	if got == nil || got.ID != res.ID {
		t.Fatalf("get by prefix = %+v, want id %d", got, res.ID)
	}

	// Duplicate prefix
	dup := &models.Resource{Prefix: "ark:/21547/R2", ResourceType: "x", CreatedAt: time.Now()}
	if err := store.Resources().Create(ctx, dup); !IsConstraintViolation(err) {
		t.Errorf("expected constraint violation for duplicate prefix, got %v", err)
	}

	if err := store.Expeditions().AttachResource(ctx, expID, res.ID); err != nil {
		t.Fatalf("attach resource: %v", err)
	}

	attached, err := store.Expeditions().Resources(ctx, expID)
	if err != nil {
		t.Fatalf("list attached resources: %v", err)
	}
	if len(attached) != 1 || attached[0].Prefix != "ark:/21547/R2" {
		t.Fatalf("attached = %+v", attached)
	}
}

func TestEnsureAdminUser(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.EnsureAdminUser(); err != nil {
		t.Fatalf("ensure admin user: %v", err)
	}

	admin, err := store.Users().GetByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("get admin: %v", err)
	}
	if admin == nil {
		t.Fatal("admin user should exist")
	}
	if admin.Role != models.RoleAdmin {
		t.Errorf("admin role = %s, want admin", admin.Role)
	}

	// Second call is a no-op
	if err := store.EnsureAdminUser(); err != nil {
		t.Fatalf("second ensure admin user: %v", err)
	}
	count, _ := store.Users().Count(ctx)
	if count != 1 {
		t.Errorf("user count = %d, want 1", count)
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	// Expedition referencing a missing project must be rejected
	exp := &models.Expedition{
		Token:     uuid.New().String(),
		Code:      "DEMO1",
		Title:     "orphan",
		UserID:    12345,
		ProjectID: 67890,
		CreatedAt: time.Now(),
	}
	if err := store.Expeditions().Insert(ctx, exp); err == nil {
		t.Fatal("expected foreign key violation")
	}
}
