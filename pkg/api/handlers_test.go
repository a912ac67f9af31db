package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avorra/geobridge/pkg/credentials"
	"github.com/avorra/geobridge/pkg/database"
	"github.com/avorra/geobridge/pkg/geonode"
	"github.com/avorra/geobridge/pkg/logger"
	"github.com/avorra/geobridge/pkg/manager"
	"github.com/avorra/geobridge/pkg/models"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testAPIKey = "test-api-key"

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
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

	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash api key: %v", err)
	}

	key := models.ProviderAPIKey{
		ID:      uuid.Must(uuid.NewV7()),
		KeyHash: string(hash),
		Name:    "test",
	}

	if err := db.Create(&key).Error; err != nil {
		t.Fatalf("failed to seed api key: %v", err)
	}

	clients := manager.NewClients(credentials.NewEnvStore(), nil, logger.NewNop())

	app := fiber.New()

	NewServer(db, clients, logger.NewNop()).SetupRoutes(app)

	return app, db
}

// fakeGeoNodeV2 answers the detection probe and serves small fixed
// layer and map sets.
func fakeGeoNodeV2(t *testing.T) *httptest.Server {
	t.Helper()

	deleted := make(map[string]bool)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v2/":
			fmt.Fprint(w, `{}`)

		case r.URL.Path == "/api/v2/layers/" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"page":      1,
				"page_size": 100,
				"total":     2,
				"layers": []map[string]interface{}{
					{"pk": 1, "title": "Roads", "is_published": true},
					{"pk": 2, "title": "Rivers", "is_published": true},
				},
			})

		case r.URL.Path == "/api/v2/maps/" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"page":      1,
				"page_size": 100,
				"total":     1,
				"maps": []map[string]interface{}{
					{"pk": 5, "title": "Road atlas", "is_published": true},
				},
			})

		case r.Method == http.MethodDelete:
			if deleted[r.URL.Path] {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"detail": "not found"}`)
				return
			}
			deleted[r.URL.Path] = true
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	t.Cleanup(srv.Close)

	return srv
}

func seedConnection(t *testing.T, db *gorm.DB, baseURL, version string) *models.Connection {
	t.Helper()

	conn := &models.Connection{
		ID:          uuid.Must(uuid.NewV7()),
		Name:        "conn-" + uuid.NewString()[:8],
		BaseURL:     baseURL,
		APIVersion:  version,
		MaxPageSize: 100,
	}

	if err := db.Create(conn).Error; err != nil {
		t.Fatalf("failed to seed connection: %v", err)
	}

	return conn
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-API-Key", testAPIKey)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()

	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	app, _ := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("health must be open, got %d", resp.StatusCode)
	}
}

func TestAuth_RejectsMissingAndInvalidKey(t *testing.T) {
	app, _ := setupApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/connections", nil)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing key: expected 401, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/connections", nil)
	req.Header.Set("X-API-Key", "wrong")

	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("invalid key: expected 401, got %d", resp.StatusCode)
	}
}

func TestCreateConnection_DetectsAPIVersion(t *testing.T) {
	app, _ := setupApp(t)
	geo := fakeGeoNodeV2(t)

	resp := doRequest(t, app, http.MethodPost, "/api/v1/connections", manager.CreateConnectionRequest{
		Name:    "staging",
		BaseURL: geo.URL,
	})

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var conn models.Connection

	decode(t, resp, &conn)

	if conn.APIVersion != geonode.APIVersionV2 {
		t.Errorf("expected detected v2, got %q", conn.APIVersion)
	}

	if conn.MaxPageSize != 100 {
		t.Errorf("max page size not taken from the dialect, got %d", conn.MaxPageSize)
	}
}

func TestCreateConnection_RequiresNameAndURL(t *testing.T) {
	app, _ := setupApp(t)

	resp := doRequest(t, app, http.MethodPost, "/api/v1/connections", manager.CreateConnectionRequest{
		Name: "incomplete",
	})

	if resp.StatusCode != http.StatusInternalServerError && resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected a failure status, got %d", resp.StatusCode)
	}
}

func TestGetConnection_InvalidID(t *testing.T) {
	app, _ := setupApp(t)

	resp := doRequest(t, app, http.MethodGet, "/api/v1/connections/not-a-uuid", nil)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetConnection_NotFound(t *testing.T) {
	app, _ := setupApp(t)

	resp := doRequest(t, app, http.MethodGet, "/api/v1/connections/"+uuid.NewString(), nil)

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSearchResources(t *testing.T) {
	app, db := setupApp(t)
	geo := fakeGeoNodeV2(t)

	conn := seedConnection(t, db, geo.URL, geonode.APIVersionV2)

	resp := doRequest(t, app, http.MethodGet,
		"/api/v1/connections/"+conn.ID.String()+"/search?keyword=roads&page_size=10", nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var page struct {
		Resources []map[string]interface{} `json:"resources"`
		NextPage  int                      `json:"next_page"`
	}

	decode(t, resp, &page)

	if len(page.Resources) != 2 {
		t.Errorf("expected 2 resources, got %d", len(page.Resources))
	}
}

func TestSearchResources_BadBbox(t *testing.T) {
	app, db := setupApp(t)
	geo := fakeGeoNodeV2(t)

	conn := seedConnection(t, db, geo.URL, geonode.APIVersionV2)

	resp := doRequest(t, app, http.MethodGet,
		"/api/v1/connections/"+conn.ID.String()+"/search?bbox=1,2,3", nil)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a malformed bbox, got %d", resp.StatusCode)
	}
}

func TestRefreshAndListCatalog(t *testing.T) {
	app, db := setupApp(t)
	geo := fakeGeoNodeV2(t)

	conn := seedConnection(t, db, geo.URL, geonode.APIVersionV2)

	resp := doRequest(t, app, http.MethodPost,
		"/api/v1/connections/"+conn.ID.String()+"/refresh", nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", resp.StatusCode)
	}

	var refresh RefreshCatalogResponse

	decode(t, resp, &refresh)

	if refresh.Entries != 3 {
		t.Errorf("expected 2 layers and 1 map refreshed, got %d", refresh.Entries)
	}

	resp = doRequest(t, app, http.MethodGet,
		"/api/v1/connections/"+conn.ID.String()+"/resources", nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}

	var list ListCatalogEntriesResponse

	decode(t, resp, &list)

	if list.Total != 3 {
		t.Errorf("expected 3 catalog entries, got %d", list.Total)
	}

	resp = doRequest(t, app, http.MethodGet,
		"/api/v1/connections/"+conn.ID.String()+"/resources?type=map", nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list maps: expected 200, got %d", resp.StatusCode)
	}

	decode(t, resp, &list)

	if list.Total != 1 {
		t.Errorf("expected 1 map entry, got %d", list.Total)
	}
}

func TestSearchResources_MapType(t *testing.T) {
	app, db := setupApp(t)
	geo := fakeGeoNodeV2(t)

	conn := seedConnection(t, db, geo.URL, geonode.APIVersionV2)

	resp := doRequest(t, app, http.MethodGet,
		"/api/v1/connections/"+conn.ID.String()+"/search?type=map", nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var page struct {
		Resources []map[string]interface{} `json:"resources"`
	}

	decode(t, resp, &page)

	if len(page.Resources) != 1 {
		t.Fatalf("expected 1 map, got %d", len(page.Resources))
	}

	if page.Resources[0]["type"] != "map" {
		t.Errorf("unexpected resource: %+v", page.Resources[0])
	}
}

func TestDeleteResource_Idempotent(t *testing.T) {
	app, db := setupApp(t)
	geo := fakeGeoNodeV2(t)

	conn := seedConnection(t, db, geo.URL, geonode.APIVersionV2)

	path := "/api/v1/connections/" + conn.ID.String() + "/resources/1"

	for i := 0; i < 2; i++ {
		resp := doRequest(t, app, http.MethodDelete, path, nil)

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("delete attempt %d: expected 200, got %d", i+1, resp.StatusCode)
		}
	}
}

// Enqueueing against a legacy instance must be rejected up front with
// the api-incompatible kind, before any job row is created.
func TestEnqueueUpload_LegacyRejected(t *testing.T) {
	app, db := setupApp(t)

	conn := seedConnection(t, db, "http://legacy.example.com", geonode.APIVersionLegacy)

	resp := doRequest(t, app, http.MethodPost, "/api/v1/uploads", manager.EnqueueUploadRequest{
		ConnectionID: conn.ID,
		LayerTitle:   "Roads",
		LayerPath:    "/data/roads.zip",
	})

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	var body ErrorResponse

	decode(t, resp, &body)

	if body.Kind != "api-incompatible" {
		t.Errorf("expected api-incompatible kind, got %q", body.Kind)
	}

	var count int64

	db.Model(&models.UploadJob{}).Count(&count)

	if count != 0 {
		t.Errorf("no job row may be created, found %d", count)
	}
}

func TestUploadJobLifecycle(t *testing.T) {
	app, db := setupApp(t)
	geo := fakeGeoNodeV2(t)

	conn := seedConnection(t, db, geo.URL, geonode.APIVersionV2)

	resp := doRequest(t, app, http.MethodPost, "/api/v1/uploads", manager.EnqueueUploadRequest{
		ConnectionID: conn.ID,
		LayerTitle:   "Roads",
		LayerPath:    "/data/roads.zip",
		StylePath:    "/data/roads.sld",
	})

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("enqueue: expected 201, got %d", resp.StatusCode)
	}

	var created UploadJobResponse

	decode(t, resp, &created)

	if created.Job.Stage != models.StageQueued {
		t.Errorf("new job must be queued, got %q", created.Job.Stage)
	}

	if len(created.Report.PendingStages) != 2 {
		t.Errorf("expected upload and style stages pending, got %v", created.Report.PendingStages)
	}

	jobPath := "/api/v1/uploads/" + created.Job.ID.String()

	resp = doRequest(t, app, http.MethodGet, jobPath, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}

	resp = doRequest(t, app, http.MethodPost, jobPath+"/cancel", nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", resp.StatusCode)
	}

	var cancelled UploadJobResponse

	decode(t, resp, &cancelled)

	if cancelled.Job.Stage != models.StageFailed || !cancelled.Job.Cancelled {
		t.Errorf("cancelled queued job must fail immediately, got %+v", cancelled.Job)
	}
}
