// README: HTTP tests for request, vendor and user handlers over the in-memory store.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httptransport "quickfix/internal/http"
	"quickfix/internal/infra"
	"quickfix/internal/maps"
	"quickfix/internal/metrics"
	"quickfix/internal/modules/enrichment"
	"quickfix/internal/modules/request"
	"quickfix/internal/modules/routing"
	"quickfix/internal/modules/users"
	"quickfix/internal/store/memory"
	"quickfix/internal/types"
)

type captureEnricher struct {
	got enrichment.Input
}

func (e *captureEnricher) Enrich(_ context.Context, in enrichment.Input) enrichment.Result {
	e.got = in
	return enrichment.Result{VehicleType: enrichment.VehicleFourWheeler, VehicleNumber: in.VehicleNumber}
}

type stubETA struct {
	from, to types.Point
}

func (s *stubETA) ETA(_ context.Context, from, to types.Point) (maps.Estimate, error) {
	s.from, s.to = from, to
	return maps.Estimate{Duration: 7 * time.Minute, Seconds: 420, Distance: "4.9 km", Meters: 4900}, nil
}

type testAPI struct {
	t        *testing.T
	handler  http.Handler
	enricher *captureEnricher
	eta      *stubETA
	users    *users.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := memory.New()
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewProm(reg)
	require.NoError(t, err)
	enricher := &captureEnricher{}
	eta := &stubETA{}
	usersSvc := users.NewService(st.Users())
	requests := request.NewService(st.Requests(), routing.NewSelector(st),
		request.WithEnricher(enricher), request.WithMetrics(rec))
	srv := httptransport.NewServer(httptransport.ServerDeps{
		Requests: requests,
		Users:    usersSvc,
		ETA:      eta,
		Verifier: infra.HeaderVerifier{},
		Gatherer: reg,
	})
	return &testAPI{t: t, handler: srv.Routes(), enricher: enricher, eta: eta, users: usersSvc}
}

func (a *testAPI) do(method, path, uid string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+uid)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func (a *testAPI) mustDo(status int, method, path, uid string, body any) map[string]any {
	a.t.Helper()
	w := a.do(method, path, uid, body)
	require.Equal(a.t, status, w.Code, w.Body.String())
	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return out
}

// seed registers requester u1, vendor v1 with a TOWING worker w1, and an
// unattached FLAT_TYRE worker w2 employed by v1 as well.
func (a *testAPI) seed() {
	a.mustDo(http.StatusCreated, http.MethodPost, "/api/users", "u1", map[string]any{
		"name": "Asha", "roles": []string{"USER"}, "position": map[string]float64{"lat": 12.9719, "lng": 77.6412},
	})
	a.mustDo(http.StatusCreated, http.MethodPost, "/api/users", "v1", map[string]any{
		"name": "Koramangala Towing", "roles": []string{"VENDOR"}, "position": map[string]float64{"lat": 12.9345, "lng": 77.626},
	})
	a.mustDo(http.StatusCreated, http.MethodPost, "/api/users", "w1", map[string]any{
		"name": "Ravi", "roles": []string{"WORKER"}, "skills": []string{"towing"},
	})
	a.mustDo(http.StatusCreated, http.MethodPost, "/api/users", "w2", map[string]any{
		"name": "Imran", "roles": []string{"WORKER"}, "skills": []string{"FLAT_TYRE"},
	})
	a.mustDo(http.StatusOK, http.MethodPost, "/api/vendors/v1/workers/w1", "v1", nil)
	a.mustDo(http.StatusOK, http.MethodPost, "/api/vendors/v1/workers/w2", "v1", nil)
}

func TestUnauthenticated(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(http.MethodPost, "/api/requests", "", map[string]any{"problem_description": "TOWING"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPublicEndpoints(t *testing.T) {
	a := newTestAPI(t)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health", "", nil).Code)

	out := a.mustDo(http.StatusOK, http.MethodGet, "/api/request-types", "", nil)
	assert.Contains(t, out["request_types"], "TOWING_SERVICE")

	w := a.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	a.seed()

	created := a.mustDo(http.StatusCreated, http.MethodPost, "/api/requests", "u1", map[string]any{
		"problem_description": "towing", "vehicle_number": "KA01AB1234",
	})
	id := created["id"].(string)
	assert.Equal(t, "OPEN", created["status"])
	assert.Equal(t, "TOWING", created["problem_description"])
	assert.Equal(t, "v1", created["intended_vendor_id"])
	assert.Equal(t, "FOUR_WHEELER", created["vehicle"].(map[string]any)["vehicle_type"])

	offers := a.mustDo(http.StatusOK, http.MethodGet, "/api/vendors/me/requests", "v1", nil)
	assert.Len(t, offers["requests"], 1)

	a.mustDo(http.StatusOK, http.MethodPost, "/api/requests/"+id+"/actions/deny", "v1", nil)
	a.mustDo(http.StatusBadRequest, http.MethodPost, "/api/requests/"+id+"/actions/snooze", "v1", nil)
	a.mustDo(http.StatusForbidden, http.MethodPost, "/api/requests/"+id+"/actions/accept", "u1", nil)
	a.mustDo(http.StatusUnprocessableEntity, http.MethodPost, "/api/requests/"+id+"/assign/w2", "v1", nil)
	a.mustDo(http.StatusNotFound, http.MethodPost, "/api/requests/"+id+"/assign/ghost", "v1", nil)
	a.mustDo(http.StatusConflict, http.MethodPost, "/api/requests/"+id+"/complete", "u1", nil)

	assigned := a.mustDo(http.StatusOK, http.MethodPost, "/api/requests/"+id+"/assign/w1", "v1", nil)
	assert.Equal(t, "ASSIGNED", assigned["status"])
	assert.Equal(t, "w1", assigned["worker_id"])

	a.mustDo(http.StatusConflict, http.MethodPost, "/api/requests/"+id+"/actions/accept", "v1", nil)
	a.mustDo(http.StatusConflict, http.MethodDelete, "/api/users/w1", "w1", nil)

	eta := a.mustDo(http.StatusOK, http.MethodGet, "/api/requests/"+id+"/eta", "u1", nil)
	assert.Equal(t, float64(420), eta["duration_seconds"])
	assert.Equal(t, types.Point{Lat: 12.9345, Lng: 77.626}, a.eta.from)
	a.mustDo(http.StatusForbidden, http.MethodGet, "/api/requests/"+id+"/eta", "w2", nil)

	a.mustDo(http.StatusForbidden, http.MethodPost, "/api/requests/"+id+"/complete", "v1", nil)
	done := a.mustDo(http.StatusOK, http.MethodPost, "/api/requests/"+id+"/complete", "u1", nil)
	assert.Equal(t, "COMPLETED", done["status"])
	assert.NotEmpty(t, done["completed_at"])

	mine := a.mustDo(http.StatusOK, http.MethodGet, "/api/requests/mine", "u1", nil)
	assert.Len(t, mine["requests"], 1)

	worker := a.mustDo(http.StatusOK, http.MethodGet, "/api/users/w1", "u1", nil)
	assert.Equal(t, "COMPLETED", worker["activity"])
	a.mustDo(http.StatusNoContent, http.MethodDelete, "/api/users/w1", "w1", nil)
	a.mustDo(http.StatusNotFound, http.MethodGet, "/api/users/w1", "u1", nil)
}

func TestCreateWithoutQualifiedVendor(t *testing.T) {
	a := newTestAPI(t)
	a.seed()
	created := a.mustDo(http.StatusCreated, http.MethodPost, "/api/requests", "u1", map[string]any{
		"problem_description": "KEY_LOCKOUT",
	})
	assert.Nil(t, created["intended_vendor_id"])
	assert.Equal(t, "OPEN", created["status"])
}

func TestCreateRejectsBadInput(t *testing.T) {
	a := newTestAPI(t)
	a.seed()
	a.mustDo(http.StatusBadRequest, http.MethodPost, "/api/requests", "u1", map[string]any{"problem_description": "  "})
	a.mustDo(http.StatusNotFound, http.MethodPost, "/api/requests", "stranger", map[string]any{"problem_description": "TOWING"})
	a.mustDo(http.StatusBadRequest, http.MethodGet, "/api/requests/bad!id", "u1", nil)
	a.mustDo(http.StatusNotFound, http.MethodGet, "/api/requests/abc123", "u1", nil)
}

func TestCreateMultipartWithImage(t *testing.T) {
	a := newTestAPI(t)
	a.seed()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("request", `{"problem_description":"FLAT_TYRE","vehicle_number":"KA05MN4321"}`))
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="image"; filename="car.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/requests", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer u1")
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(t, a.enricher.got.Image)
	assert.Equal(t, "image/jpeg", a.enricher.got.Image.MIMEType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0xe0}, a.enricher.got.Image.Data)
	assert.Equal(t, "KA05MN4321", a.enricher.got.VehicleNumber)
}

func TestUserEndpoints(t *testing.T) {
	a := newTestAPI(t)
	a.seed()

	a.mustDo(http.StatusConflict, http.MethodPost, "/api/users", "u1", map[string]any{"name": "again", "roles": []string{"USER"}})
	a.mustDo(http.StatusBadRequest, http.MethodPost, "/api/users", "x1", map[string]any{"name": "x", "roles": []string{"PILOT"}})

	a.mustDo(http.StatusForbidden, http.MethodPut, "/api/users/v1/location", "u1", map[string]float64{"lat": 1, "lng": 1})
	a.mustDo(http.StatusBadRequest, http.MethodPut, "/api/users/u1/location", "u1", map[string]float64{"lat": 91, "lng": 1})
	loc := a.mustDo(http.StatusOK, http.MethodPut, "/api/users/u1/location", "u1", map[string]float64{"lat": 13, "lng": 77.5})
	assert.Equal(t, map[string]any{"lat": 13.0, "lng": 77.5}, loc["position"])

	a.mustDo(http.StatusNoContent, http.MethodPut, "/api/users/v1/device-token", "v1", map[string]string{"token": "fcm-token"})

	w1 := a.mustDo(http.StatusOK, http.MethodPut, "/api/workers/w1/skills", "v1", map[string]any{"skills": []string{"towing", "battery_jumpstart"}})
	assert.Equal(t, []any{"TOWING", "BATTERY_JUMPSTART"}, w1["skills"])
	a.mustDo(http.StatusForbidden, http.MethodPut, "/api/workers/w1/skills", "u1", map[string]any{"skills": []string{"X"}})

	v1 := a.mustDo(http.StatusOK, http.MethodGet, "/api/users/v1", "u1", nil)
	assert.Equal(t, []any{"BATTERY_JUMPSTART", "FLAT_TYRE", "TOWING"}, v1["coverage"])

	a.mustDo(http.StatusForbidden, http.MethodDelete, "/api/vendors/v1/workers/w1", "u1", nil)
	v1 = a.mustDo(http.StatusOK, http.MethodDelete, "/api/vendors/v1/workers/w1", "v1", nil)
	assert.Equal(t, []any{"w2"}, v1["workers"])
	a.mustDo(http.StatusForbidden, http.MethodDelete, "/api/vendors/v1/workers/w1", "v1", nil)
}

func TestListUsersByRole(t *testing.T) {
	a := newTestAPI(t)
	a.seed()

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/users?role=VENDOR", "", nil).Code)
	a.mustDo(http.StatusBadRequest, http.MethodGet, "/api/users?role=PILOT", "u1", nil)
	a.mustDo(http.StatusBadRequest, http.MethodGet, "/api/users", "u1", nil)

	w := a.do(http.MethodGet, "/api/users?role=vendor", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var vendors []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vendors))
	require.Len(t, vendors, 1)
	assert.Equal(t, "v1", vendors[0]["id"])
	assert.Equal(t, map[string]any{"lat": 12.9345, "lng": 77.626}, vendors[0]["position"])

	w = a.do(http.MethodGet, "/api/users?role=WORKER", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var workers []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &workers))
	ids := []any{}
	for _, u := range workers {
		ids = append(ids, u["id"])
	}
	assert.ElementsMatch(t, []any{"w1", "w2"}, ids)
}

func TestRegisterAdminOnlyPaths(t *testing.T) {
	a := newTestAPI(t)
	a.seed()

	a.mustDo(http.StatusForbidden, http.MethodPost, "/api/users", "x1", map[string]any{"name": "x", "roles": []string{"ADMIN"}})
	a.mustDo(http.StatusForbidden, http.MethodPost, "/api/users", "u1", map[string]any{"id": "x2", "name": "x", "roles": []string{"USER"}})
	a.mustDo(http.StatusNotFound, http.MethodGet, "/api/users/x1", "u1", nil)

	_, err := a.users.Bootstrap(context.Background(), users.RegisterCommand{ID: "root", Name: "root", Roles: []string{"ADMIN"}})
	require.NoError(t, err)
	out := a.mustDo(http.StatusCreated, http.MethodPost, "/api/users", "root", map[string]any{"id": "ops", "name": "Ops", "roles": []string{"ADMIN"}})
	assert.Equal(t, "ops", out["id"])
}
