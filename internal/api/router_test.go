package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"campus_parking/internal/api/handler"
	"campus_parking/internal/api/middleware"
	"campus_parking/internal/domain"
	"campus_parking/internal/estimator"
	"campus_parking/internal/framesource"
	"campus_parking/internal/ledger"
	"campus_parking/internal/repository/memory"
	"campus_parking/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	ledger *ledger.Ledger
	ws     *handler.WebSocketManager
	iot    *service.IoTService
	token  string
	frame  []byte
}

func uniformPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 120
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	frame := uniformPNG(t)
	feed := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(feed, "0001.png"), frame, 0o644))

	lots := []domain.Lot{
		{ID: "Great Hall", Capacity: 31, Coordinate: domain.Coordinate{Lat: 51.3799, Lng: -2.3283}, FeedPath: feed},
		{ID: "Engineering", Capacity: 1, Coordinate: domain.Coordinate{Lat: 51.3772, Lng: -2.3241}},
	}
	l, err := ledger.New(lots)
	require.NoError(t, err)

	occ := service.NewOccupancyService(l, estimator.NewRuleClassifier(estimator.DefaultRuleConfig()),
		framesource.NewDirectorySource(lots), memory.NewReservationRepository(),
		service.NewMapProvider("", domain.Coordinate{Lat: 51.3782, Lng: -2.3264}),
		service.OccupancyOptions{Timeout: time.Second})

	ws := handler.NewWebSocketManager()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ws.Start(ctx)
	occ.SetWebSocketManager(ws)

	auth, err := service.NewAuthService("letmein", []byte("signing-key"), time.Hour)
	require.NoError(t, err)
	resp, err := auth.Login(context.Background(), domain.AdminLoginDTO{Secret: "letmein"})
	require.NoError(t, err)

	iot := service.NewIoTService(occ, memory.NewDeviceEventsLogRepository(8))
	r := SetupRouter("campus-parking-test", auth, occ, iot, middleware.NewAuthMiddleware(auth), ws)
	return &testServer{router: r, ledger: l, ws: ws, iot: iot, token: resp.Token, frame: frame}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = s.do(t, http.MethodGet, "/metrics", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLotReads(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/lots", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var all []domain.LotStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 2)
	assert.Equal(t, "Engineering", all[0].Lot.ID)

	w = s.do(t, http.MethodGet, "/api/v1/lots/Great%20Hall", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var one domain.LotStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	assert.Equal(t, 31, one.Available)
	assert.Equal(t, domain.MarkerGreen, one.Marker)

	w = s.do(t, http.MethodGet, "/api/v1/lots/Nowhere", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/lots/Great%20Hall/directions", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "google.com/maps/dir")

	w = s.do(t, http.MethodGet, "/api/v1/map", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "staticmap")
}

func TestAdminGate(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/auth/admin", domain.AdminLoginDTO{Secret: "wrong"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/auth/admin", domain.AdminLoginDTO{Secret: "letmein"}, false)
	require.Equal(t, http.StatusOK, w.Code)
	var auth domain.AuthResponseDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &auth))
	assert.NotEmpty(t, auth.Token)

	w = s.do(t, http.MethodPut, "/api/v1/lots/Great%20Hall/occupancy", map[string]int{"occupied": 3}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/lots/Great%20Hall/occupancy", strings.NewReader(`{"occupied":3}`))
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	w = s.do(t, http.MethodGet, "/api/v1/devices/events", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/devices/events", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeviceEventsListsMalformedMessages(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.iot.HandleDeviceEvent(ctx, `{"device_id":"ok","message_type":"heartbeat"}`))
	require.Error(t, s.iot.HandleDeviceEvent(ctx, `{"device_id":`))

	w := s.do(t, http.MethodGet, "/api/v1/devices/events", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Body.String())

	var events []domain.DeviceEventLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 2)

	assert.Equal(t, domain.EventStatusError, events[0].ProcessedStatus)
	var raw string
	require.NoError(t, json.Unmarshal(events[0].Payload, &raw))
	assert.Equal(t, `{"device_id":`, raw)

	assert.Equal(t, "ok", events[1].DeviceID)
	assert.Equal(t, domain.EventStatusIgnored, events[1].ProcessedStatus)
	assert.JSONEq(t, `{"device_id":"ok","message_type":"heartbeat"}`, string(events[1].Payload))
}

func TestOverrideEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPut, "/api/v1/lots/Great%20Hall/occupancy", map[string]int{"occupied": 20}, true)
	require.Equal(t, http.StatusOK, w.Code)
	var state domain.OccupancyState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, 20, state.Occupied)
	assert.Equal(t, domain.SourceOverride, state.Source)

	w = s.do(t, http.MethodPut, "/api/v1/lots/Great%20Hall/occupancy", map[string]int{"occupied": 32}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = s.do(t, http.MethodPut, "/api/v1/lots/Nowhere/occupancy", map[string]int{"occupied": 1}, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodPut, "/api/v1/lots/Great%20Hall/occupancy", map[string]string{}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	got, err := s.ledger.State("Great Hall")
	require.NoError(t, err)
	assert.Equal(t, 20, got.Occupied)
}

func TestFrameUpload(t *testing.T) {
	s := newTestServer(t)
	_, err := s.ledger.ApplyOverride("Great Hall", 20)
	require.NoError(t, err)

	body := domain.FrameUploadDTO{ImageBase64: base64.StdEncoding.EncodeToString(s.frame)}
	w := s.do(t, http.MethodPost, "/api/v1/lots/Great%20Hall/frames", body, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res domain.EstimateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Vacant)
	assert.Equal(t, 19, res.State.Occupied)

	bad := domain.FrameUploadDTO{ImageBase64: base64.StdEncoding.EncodeToString([]byte("not an image"))}
	w = s.do(t, http.MethodPost, "/api/v1/lots/Great%20Hall/frames", bad, true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/lots/Great%20Hall/frames", domain.FrameUploadDTO{ImageBase64: "%%%"}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "base64")

	w = s.do(t, http.MethodPost, "/api/v1/lots/Nowhere/frames", body, true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	got, err := s.ledger.State("Great Hall")
	require.NoError(t, err)
	assert.Equal(t, 19, got.Occupied)
}

func TestTickEndpoint(t *testing.T) {
	s := newTestServer(t)
	_, err := s.ledger.ApplyOverride("Great Hall", 5)
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/api/v1/lots/Great%20Hall/tick?offset=3", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res domain.EstimateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 4, res.State.Occupied)

	w = s.do(t, http.MethodPost, "/api/v1/lots/Engineering/tick", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code, "no camera feed")

	w = s.do(t, http.MethodPost, "/api/v1/lots/Great%20Hall/tick?offset=-1", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReservationEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/lots/Engineering/reservations", domain.ReservationDTO{Plate: "AB12 CDE", User: "sam"}, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/lots/Engineering/reservations", map[string]string{"plate": "AB12 CDE"}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, err := s.ledger.ApplyOverride("Engineering", 1)
	require.NoError(t, err)
	w = s.do(t, http.MethodPost, "/api/v1/lots/Engineering/reservations", domain.ReservationDTO{Plate: "XY34 ZZZ", User: "kim"}, false)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/lots/Engineering/reservations", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var list []domain.Reservation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "sam", list[0].User)

	w = s.do(t, http.MethodGet, "/api/v1/lots/Nowhere/reservations", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebSocketReceivesOccupancyUpdates(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.ws.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	_, err = s.ledger.ApplyOverride("Engineering", 1)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var n domain.OccupancyNotification
	require.NoError(t, conn.ReadJSON(&n))
	assert.Equal(t, domain.NotificationOccupancyUpdate, n.Type)
	assert.Equal(t, "Engineering", n.State.LotID)
	assert.Equal(t, 0, n.Available)
	assert.Equal(t, domain.MarkerRed, n.Marker)
}
