package audit

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hirehub/hirehub-core/internal/infrastructure/database"
	_ "github.com/hirehub/hirehub-core/migrations"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "audit-test.db"),
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

func TestCreate_GeneratesIDAndTimestamp(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	log := &AuditLog{Action: ActionLogin, EntityType: EntitySession, SessionID: "sess-1"}
	if err := repo.Create(t.Context(), log); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(log.ID) != len("aud-")+8 {
		t.Errorf("ID = %q, want aud- prefix and 8 chars", log.ID)
	}
	if log.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestCreate_RequiresActionAndEntity(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	if err := repo.Create(t.Context(), &AuditLog{EntityType: EntitySession}); err == nil {
		t.Error("missing action should fail")
	}
	if err := repo.Create(t.Context(), &AuditLog{Action: ActionLogout}); err == nil {
		t.Error("missing entity type should fail")
	}
}

func TestList_FiltersAndOrders(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	entries := []AuditLog{
		{Action: ActionLogin, EntityType: EntitySession, UserID: "usr-a", SessionID: "s1", CreatedAt: base},
		{Action: ActionLogout, EntityType: EntitySession, UserID: "usr-a", SessionID: "s1", CreatedAt: base.Add(time.Minute)},
		{Action: ActionCreate, EntityType: EntityCategory, EntityID: "cat-1", UserID: "usr-b",
			Details: map[string]any{"name": "Engineering"}, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range entries {
		if err := repo.Create(t.Context(), &entries[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	all, err := repo.List(t.Context(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 3 || len(all.Logs) != 3 {
		t.Fatalf("List() total = %d, len = %d, want 3", all.Total, len(all.Logs))
	}
	if all.Logs[0].Action != ActionCreate {
		t.Errorf("first entry = %s, want newest (create)", all.Logs[0].Action)
	}
	if all.Logs[0].Details["name"] != "Engineering" {
		t.Errorf("details = %v", all.Logs[0].Details)
	}
	if all.Limit != 50 {
		t.Errorf("default limit = %d, want 50", all.Limit)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by action", Filter{Action: ActionLogin}, 1},
		{"by entity type", Filter{EntityType: EntitySession}, 2},
		{"by user", Filter{UserID: "usr-a"}, 2},
		{"combined", Filter{UserID: "usr-a", Action: ActionLogout}, 1},
		{"no match", Filter{UserID: "usr-z"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(t.Context(), tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.want || len(res.Logs) != tt.want {
				t.Errorf("total = %d, len = %d, want %d", res.Total, len(res.Logs), tt.want)
			}
		})
	}
}

func TestList_Pagination(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := range 5 {
		if err := repo.Create(t.Context(), &AuditLog{
			Action: ActionLogin, EntityType: EntitySession, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	res, err := repo.List(t.Context(), Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 5 || len(res.Logs) != 1 {
		t.Errorf("total = %d, len = %d, want 5 and 1", res.Total, len(res.Logs))
	}
	if !res.Logs[0].CreatedAt.Equal(base) {
		t.Errorf("last page holds %v, want oldest %v", res.Logs[0].CreatedAt, base)
	}

	capped, err := repo.List(t.Context(), Filter{Limit: 1000, Offset: -3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if capped.Limit != 200 || capped.Offset != 0 {
		t.Errorf("limit/offset = %d/%d, want 200/0", capped.Limit, capped.Offset)
	}
}

type failingRepo struct{ calls int }

func (f *failingRepo) Create(context.Context, *AuditLog) error {
	f.calls++
	return errors.New("disk full")
}

func (f *failingRepo) List(context.Context, Filter) (*ListResult, error) {
	return nil, errors.New("disk full")
}

func TestRecorder_SessionEvent(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	rec := NewRecorder(repo, nil)

	rec.SessionEvent(ActionLogout, "sess-9", "usr-a", nil)
	rec.SessionEvent(ActionLogin, "sess-9", "usr-a", map[string]any{"provider": "password"})

	// Run drains the queue once its context is done
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	rec.Run(ctx)

	res, err := repo.List(t.Context(), Filter{EntityType: EntitySession})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(res.Logs) != 2 {
		t.Fatalf("want two session entries after drain, got %d", len(res.Logs))
	}
	for _, got := range res.Logs {
		if got.SessionID != "sess-9" || got.EntityID != "sess-9" || got.UserID != "usr-a" {
			t.Errorf("entry = %+v", got)
		}
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	f := &failingRepo{}
	rec := NewRecorder(f, nil)
	for range queueSize + 5 {
		rec.Record(AuditLog{Action: ActionLogin, EntityType: EntitySession})
	}
	if len(rec.queue) != queueSize {
		t.Errorf("queue length = %d, want %d", len(rec.queue), queueSize)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	rec.Run(ctx)
	if f.calls != queueSize {
		t.Errorf("Create calls = %d, want %d (errors are logged, not fatal)", f.calls, queueSize)
	}
}

func TestRecorder_NilSafe(t *testing.T) {
	var nilRec *Recorder
	nilRec.Record(AuditLog{})
	nilRec.Run(t.Context())

	noRepo := NewRecorder(nil, nil)
	noRepo.Record(AuditLog{})
	noRepo.Run(t.Context())
}
