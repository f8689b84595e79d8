package repo_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Skryldev/product-catalog/db"
	"github.com/Skryldev/product-catalog/models"
	"github.com/Skryldev/product-catalog/repo"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test fixture
// ─────────────────────────────────────────────────────────────────────────────

// openTestDB opens a file-backed SQLite database. A file is used instead of
// :memory: because every pooled connection would otherwise see its own
// empty database.
func openTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.OpenURL("", filepath.Join(t.TempDir(), "products.db"), db.Config{MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func newTestRepo(t *testing.T) (repo.ProductRepository, *db.DB) {
	t.Helper()

	database := openTestDB(t)
	if err := repo.EnsureSchema(context.Background(), database); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return repo.NewProductRepo(database), database
}

func mustCreate(t *testing.T, r repo.ProductRepository, name, desc string, price float64) *models.Product {
	t.Helper()
	p, err := r.Create(context.Background(), models.CreateProductParams{
		Name:        name,
		Description: desc,
		Price:       price,
	})
	if err != nil {
		t.Fatalf("create %q: %v", name, err)
	}
	return p
}

func ptr[T any](v T) *T { return &v }

// ─────────────────────────────────────────────────────────────────────────────
// Schema
// ─────────────────────────────────────────────────────────────────────────────

func TestEnsureSchema_Idempotent(t *testing.T) {
	_, database := newTestRepo(t)
	if err := repo.EnsureSchema(context.Background(), database); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Create
// ─────────────────────────────────────────────────────────────────────────────

func TestProductRepo_Create(t *testing.T) {
	r, _ := newTestRepo(t)

	p := mustCreate(t, r, "Lamp", "desk", 19.99)
	if p.ID == 0 {
		t.Fatal("expected non-zero ID")
	}
	if p.Name != "Lamp" || p.Description != "desk" || p.Price != 19.99 {
		t.Fatalf("unexpected echo: %+v", p)
	}

	second := mustCreate(t, r, "Chair", "", 45)
	if second.ID <= p.ID {
		t.Fatalf("ids must increase: %d then %d", p.ID, second.ID)
	}
}

func TestProductRepo_Create_DuplicateName(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	params := models.CreateProductParams{Name: "Lamp", Price: 10}
	if _, err := r.Create(ctx, params); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := r.Create(ctx, params)
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestProductRepo_Create_NonPositivePrice(t *testing.T) {
	r, _ := newTestRepo(t)
	_, err := r.Create(context.Background(), models.CreateProductParams{Name: "Free", Price: 0})
	if !db.IsCheckViolation(err) {
		t.Fatalf("expected ErrCheckViolation, got %v", err)
	}
}

func TestProductRepo_IDsNotReused(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	first := mustCreate(t, r, "A", "", 1)
	if err := r.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	next := mustCreate(t, r, "B", "", 1)
	if next.ID == first.ID {
		t.Fatalf("id %d was reused", next.ID)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID
// ─────────────────────────────────────────────────────────────────────────────

func TestProductRepo_GetByID(t *testing.T) {
	r, _ := newTestRepo(t)
	created := mustCreate(t, r, "Pen", "blue ink", 1.5)

	got, err := r.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got != *created {
		t.Fatalf("got %+v, want %+v", got, created)
	}
}

func TestProductRepo_GetByID_NotFound(t *testing.T) {
	r, _ := newTestRepo(t)
	_, err := r.GetByID(context.Background(), 99999)
	if !db.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProductRepo_GetByID_NullDescription(t *testing.T) {
	r, database := newTestRepo(t)
	ctx := context.Background()

	res, err := database.Exec(ctx, `INSERT INTO products (name, description, price) VALUES (?, NULL, ?)`, "Bare", 3.0)
	if err != nil {
		t.Fatalf("raw insert: %v", err)
	}
	id, _ := res.LastInsertId()

	got, err := r.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Description != "" {
		t.Fatalf("expected empty description, got %q", got.Description)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// List
// ─────────────────────────────────────────────────────────────────────────────

func TestProductRepo_List_All(t *testing.T) {
	r, _ := newTestRepo(t)

	empty, err := r.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected 0, got %d", len(empty))
	}

	mustCreate(t, r, "A", "", 1)
	mustCreate(t, r, "B", "", 2)
	mustCreate(t, r, "C", "", 3)

	all, err := r.List(context.Background(), "   ")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("not ordered by id: %d before %d", all[i-1].ID, all[i].ID)
		}
	}
}

func TestProductRepo_List_Search(t *testing.T) {
	r, _ := newTestRepo(t)
	mustCreate(t, r, "Red Lamp", "", 10)
	mustCreate(t, r, "Chair", "lamp-adjacent seat", 20)
	mustCreate(t, r, "Table", "oak", 30)

	got, err := r.List(context.Background(), "LAMP")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].Name != "Red Lamp" || got[1].Name != "Chair" {
		t.Fatalf("unexpected matches: %q, %q", got[0].Name, got[1].Name)
	}

	none, err := r.List(context.Background(), "zzz")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %d", len(none))
	}
}

func TestProductRepo_List_SearchWildcardsLiteral(t *testing.T) {
	r, _ := newTestRepo(t)
	mustCreate(t, r, "100% cotton", "", 10)
	mustCreate(t, r, "1000 threads", "", 20)
	mustCreate(t, r, "snake_case", "", 30)
	mustCreate(t, r, "snakeXcase", "", 40)

	pct, err := r.List(context.Background(), "%")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(pct) != 1 || pct[0].Name != "100% cotton" {
		t.Fatalf("%% should match literally, got %+v", pct)
	}

	under, err := r.List(context.Background(), "e_c")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(under) != 1 || under[0].Name != "snake_case" {
		t.Fatalf("_ should match literally, got %+v", under)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update
// ─────────────────────────────────────────────────────────────────────────────

func TestProductRepo_Update_Partial(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	p := mustCreate(t, r, "Mug", "ceramic", 8)

	if err := r.Update(ctx, models.UpdateProductParams{ID: p.ID, Price: ptr(9.5)}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := r.GetByID(ctx, p.ID)
	if got.Price != 9.5 {
		t.Fatalf("price not updated: %v", got.Price)
	}
	if got.Name != "Mug" || got.Description != "ceramic" {
		t.Fatalf("untouched fields changed: %+v", got)
	}
}

func TestProductRepo_Update_SameValues(t *testing.T) {
	r, _ := newTestRepo(t)
	p := mustCreate(t, r, "Mug", "ceramic", 8)

	err := r.Update(context.Background(), models.UpdateProductParams{ID: p.ID, Name: ptr("Mug")})
	if err != nil {
		t.Fatalf("no-op update must succeed, got %v", err)
	}
}

func TestProductRepo_Update_NoFields(t *testing.T) {
	r, _ := newTestRepo(t)
	p := mustCreate(t, r, "Static", "", 1)

	err := r.Update(context.Background(), models.UpdateProductParams{ID: p.ID})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProductRepo_Update_NotFound(t *testing.T) {
	r, _ := newTestRepo(t)
	err := r.Update(context.Background(), models.UpdateProductParams{ID: 424242, Name: ptr("Ghost")})
	if !db.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProductRepo_Update_DuplicateName(t *testing.T) {
	r, _ := newTestRepo(t)
	mustCreate(t, r, "A", "", 1)
	b := mustCreate(t, r, "B", "", 2)

	err := r.Update(context.Background(), models.UpdateProductParams{ID: b.ID, Name: ptr("A")})
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete
// ─────────────────────────────────────────────────────────────────────────────

func TestProductRepo_Delete(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	p := mustCreate(t, r, "Del", "", 1)

	if err := r.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.GetByID(ctx, p.ID); !db.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := r.Delete(ctx, p.ID); !db.IsNotFound(err) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Count
// ─────────────────────────────────────────────────────────────────────────────

func TestProductRepo_Count(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	n, err := r.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}

	mustCreate(t, r, "a", "", 1)
	mustCreate(t, r, "b", "", 1)

	n, _ = r.Count(ctx)
	if n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Client-server engines (opt-in)
// ─────────────────────────────────────────────────────────────────────────────

// TestProductRepo_External runs the CRUD round-trip against the engines named
// by TEST_POSTGRES_URL and TEST_MYSQL_URL. The products table is dropped
// afterwards, so point these at throwaway databases.
func TestProductRepo_External(t *testing.T) {
	for _, env := range []string{"TEST_POSTGRES_URL", "TEST_MYSQL_URL"} {
		t.Run(env, func(t *testing.T) {
			url := os.Getenv(env)
			if url == "" {
				t.Skipf("%s not set", env)
			}
			ctx := context.Background()

			database, err := db.OpenURL(url, "", db.Config{})
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			t.Cleanup(func() {
				_, _ = database.Exec(ctx, "DROP TABLE IF EXISTS products")
				_ = database.Close()
			})
			if err := repo.EnsureSchema(ctx, database); err != nil {
				t.Fatalf("schema: %v", err)
			}

			r := repo.NewProductRepo(database)
			p, err := r.Create(ctx, models.CreateProductParams{Name: "Widget 50%", Description: "Blue", Price: 2.5})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if _, err := r.Create(ctx, models.CreateProductParams{Name: "Widget 50%", Price: 1}); !db.IsDuplicateKey(err) {
				t.Fatalf("expected ErrDuplicateKey, got %v", err)
			}

			found, err := r.List(ctx, "wIdGeT 50%")
			if err != nil || len(found) != 1 {
				t.Fatalf("search: %v (%d rows)", err, len(found))
			}
			if err := r.Update(ctx, models.UpdateProductParams{ID: p.ID, Price: ptr(2.5)}); err != nil {
				t.Fatalf("no-op update: %v", err)
			}
			if err := r.Delete(ctx, p.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := r.GetByID(ctx, p.ID); !db.IsNotFound(err) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}
