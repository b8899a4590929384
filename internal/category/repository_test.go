package category

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hirehub/hirehub-core/internal/infrastructure/database"
	_ "github.com/hirehub/hirehub-core/migrations"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "category-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(t.Context()); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db.DB
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Engineering", "engineering"},
		{"Sales & Marketing", "sales-marketing"},
		{"  Data -- Science  ", "data-science"},
		{"Café Staff", "café-staff"},
		{"C++ 2026", "c-2026"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRepository_CreateListDelete(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := t.Context()

	for _, name := range []string{"Sales", "engineering", "Design"} {
		if err := repo.Create(ctx, &Category{Name: name}); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}

	cats, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var names []string
	for _, c := range cats {
		names = append(names, c.Name)
	}
	if len(names) != 3 || names[0] != "Design" || names[1] != "engineering" || names[2] != "Sales" {
		t.Errorf("List() names = %v, want case-insensitive order", names)
	}
	if cats[0].Slug != "design" || len(cats[0].ID) != len("cat-")+8 {
		t.Errorf("derived fields = %+v", cats[0])
	}

	if err := repo.Delete(ctx, cats[0].ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, cats[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestRepository_CreateValidation(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := t.Context()

	if err := repo.Create(ctx, &Category{Name: "Engineering"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"duplicate slug", " engineering ", ErrExists},
		{"empty", "   ", ErrInvalidName},
		{"punctuation only", "***", ErrInvalidName},
		{"too long", string(make([]byte, maxNameLength+1)), ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(ctx, &Category{Name: tt.input})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
