package manager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avorra/geobridge/pkg/credentials"
	"github.com/avorra/geobridge/pkg/database"
	"github.com/avorra/geobridge/pkg/geonode"
	"github.com/avorra/geobridge/pkg/logger"
	"github.com/avorra/geobridge/pkg/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func testClients() *Clients {
	return NewClients(credentials.NewEnvStore(), nil, logger.NewNop())
}

func fakeV2(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/" {
			fmt.Fprint(w, `{}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	t.Cleanup(srv.Close)

	return srv
}

func fakeLegacy(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/" {
			fmt.Fprint(w, `{}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	t.Cleanup(srv.Close)

	return srv
}

func TestConnectionCreate_DetectsAndCaches(t *testing.T) {
	db := testDB(t)
	m := NewConnectionManager(db, testClients())

	srv := fakeV2(t)

	conn, err := m.Create(context.Background(), CreateConnectionRequest{
		Name:    "staging",
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if conn.APIVersion != geonode.APIVersionV2 {
		t.Errorf("expected detected v2, got %q", conn.APIVersion)
	}

	if conn.MaxPageSize != 100 {
		t.Errorf("max page size not cached from the dialect: %d", conn.MaxPageSize)
	}

	// The detection result is persisted.
	stored, err := m.Get(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if stored.APIVersion != geonode.APIVersionV2 {
		t.Errorf("api version not persisted: %q", stored.APIVersion)
	}
}

func TestConnectionCreate_Validation(t *testing.T) {
	m := NewConnectionManager(testDB(t), testClients())

	if _, err := m.Create(context.Background(), CreateConnectionRequest{Name: "x"}); err == nil {
		t.Error("expected an error for a missing base URL")
	}

	if _, err := m.Create(context.Background(), CreateConnectionRequest{BaseURL: "http://x"}); err == nil {
		t.Error("expected an error for a missing name")
	}
}

// Re-pointing a connection at a different instance re-runs detection.
func TestConnectionUpdate_RedetectsOnNewURL(t *testing.T) {
	db := testDB(t)
	m := NewConnectionManager(db, testClients())

	v2 := fakeV2(t)
	legacy := fakeLegacy(t)

	conn, err := m.Create(context.Background(), CreateConnectionRequest{
		Name:    "staging",
		BaseURL: v2.URL,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	legacyURL := legacy.URL

	updated, err := m.Update(context.Background(), conn.ID, UpdateConnectionRequest{
		BaseURL: &legacyURL,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if updated.APIVersion != geonode.APIVersionLegacy {
		t.Errorf("expected re-detected legacy, got %q", updated.APIVersion)
	}

	if updated.MaxPageSize != 1000 {
		t.Errorf("max page size not refreshed: %d", updated.MaxPageSize)
	}
}

// A rename alone must not hit the network.
func TestConnectionUpdate_NameOnlySkipsDetection(t *testing.T) {
	db := testDB(t)
	m := NewConnectionManager(db, testClients())

	v2 := fakeV2(t)

	conn, err := m.Create(context.Background(), CreateConnectionRequest{
		Name:    "staging",
		BaseURL: v2.URL,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	v2.Close()

	name := "renamed"

	updated, err := m.Update(context.Background(), conn.ID, UpdateConnectionRequest{Name: &name})
	if err != nil {
		t.Fatalf("rename must not re-detect: %v", err)
	}

	if updated.Name != "renamed" {
		t.Errorf("name not updated: %q", updated.Name)
	}
}

func TestConnectionDelete_DropsSnapshot(t *testing.T) {
	db := testDB(t)
	m := NewConnectionManager(db, testClients())

	v2 := fakeV2(t)

	conn, err := m.Create(context.Background(), CreateConnectionRequest{
		Name:    "staging",
		BaseURL: v2.URL,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	entry := models.CatalogEntry{
		ID:           uuid.Must(uuid.NewV7()),
		ConnectionID: conn.ID,
		RemoteID:     "1",
		Title:        "Roads",
	}

	if err := db.Create(&entry).Error; err != nil {
		t.Fatal(err)
	}

	if err := m.Delete(context.Background(), conn.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := m.Get(context.Background(), conn.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("connection must be gone, got: %v", err)
	}

	var count int64

	db.Model(&models.CatalogEntry{}).Where("connection_id = ?", conn.ID).Count(&count)

	if count != 0 {
		t.Errorf("catalog snapshot must be dropped with the connection, %d entries left", count)
	}
}

func seedConnection(t *testing.T, db *gorm.DB, version string) *models.Connection {
	t.Helper()

	conn := &models.Connection{
		ID:         uuid.Must(uuid.NewV7()),
		Name:       "conn-" + uuid.NewString()[:8],
		BaseURL:    "http://geonode.example.com",
		APIVersion: version,
	}

	if err := db.Create(conn).Error; err != nil {
		t.Fatal(err)
	}

	return conn
}

func TestJobEnqueue_QueuesOnV2(t *testing.T) {
	db := testDB(t)
	m := NewJobManager(db, testClients())

	conn := seedConnection(t, db, geonode.APIVersionV2)

	job, err := m.Enqueue(context.Background(), EnqueueUploadRequest{
		ConnectionID: conn.ID,
		LayerTitle:   "Roads",
		LayerPath:    "/data/roads.zip",
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if job.Stage != models.StageQueued {
		t.Errorf("new job must be queued, got %q", job.Stage)
	}
}

func TestJobEnqueue_LegacyIncompatible(t *testing.T) {
	db := testDB(t)
	m := NewJobManager(db, testClients())

	conn := seedConnection(t, db, geonode.APIVersionLegacy)

	_, err := m.Enqueue(context.Background(), EnqueueUploadRequest{
		ConnectionID: conn.ID,
		LayerTitle:   "Roads",
		LayerPath:    "/data/roads.zip",
	})

	if geonode.KindOf(err) != geonode.KindAPIIncompatible {
		t.Errorf("expected api-incompatible, got %v", err)
	}
}

func TestJobCancel(t *testing.T) {
	db := testDB(t)
	m := NewJobManager(db, testClients())

	conn := seedConnection(t, db, geonode.APIVersionV2)
	ctx := context.Background()

	job, err := m.Enqueue(ctx, EnqueueUploadRequest{
		ConnectionID: conn.ID,
		LayerTitle:   "Roads",
		LayerPath:    "/data/roads.zip",
	})
	if err != nil {
		t.Fatal(err)
	}

	// A queued job fails immediately.
	cancelled, err := m.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if cancelled.Stage != models.StageFailed || !cancelled.Cancelled {
		t.Errorf("expected immediate failure, got %+v", cancelled)
	}

	// Cancelling a terminal job is a no-op.
	again, err := m.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("second Cancel failed: %v", err)
	}

	if again.Stage != models.StageFailed {
		t.Errorf("terminal job must stay failed, got %q", again.Stage)
	}
}

func TestJobCancel_RunningJobFlagsOnly(t *testing.T) {
	db := testDB(t)
	m := NewJobManager(db, testClients())

	conn := seedConnection(t, db, geonode.APIVersionV2)
	ctx := context.Background()

	job, err := m.Enqueue(ctx, EnqueueUploadRequest{
		ConnectionID: conn.ID,
		LayerTitle:   "Roads",
		LayerPath:    "/data/roads.zip",
	})
	if err != nil {
		t.Fatal(err)
	}

	// Simulate a runner having claimed the job.
	err = db.Model(&models.UploadJob{}).
		Where("id = ?", job.ID).
		Update("stage", models.StageUploading).
		Error
	if err != nil {
		t.Fatal(err)
	}

	cancelled, err := m.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if !cancelled.Cancelled {
		t.Error("cancel flag must be set")
	}

	if cancelled.Stage != models.StageUploading {
		t.Errorf("a running job stops at its next stage boundary, not here; got %q", cancelled.Stage)
	}
}
