package http_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/auth"
	"github.com/example/room-booking/internal/authz"
	apihttp "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/metrics"
	"github.com/example/room-booking/internal/persistence/adapter"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/testfixtures"
)

type recordingSink struct {
	mu     sync.Mutex
	events []application.ChangeEvent
}

func (s *recordingSink) Publish(_ context.Context, event application.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []application.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]application.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

type apiEnv struct {
	handler http.Handler
	clock   *testfixtures.Clock
	metrics *metrics.Collectors
	sink    *recordingSink

	manager string
	u1      string
	u2      string
}

type envOption func(*apihttp.RouterConfig)

func newAPIEnv(t *testing.T, opts ...envOption) apiEnv {
	t.Helper()

	logger := testfixtures.DiscardLogger()
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	factory := testfixtures.NewServiceFactory(testfixtures.WithClock(clock))

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{}, logger)
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	verifier, err := auth.NewHMACVerifier(testfixtures.TestSigningSecret, auth.Settings{})
	if err != nil {
		t.Fatalf("NewHMACVerifier() error = %v", err)
	}

	store := adapter.New(memory.Open())
	sink := &recordingSink{}
	collectors := metrics.New()
	deps := testfixtures.ServiceDeps{Store: store, Policy: enforcer, Events: sink, Logger: logger}

	cfg := apihttp.RouterConfig{
		Bookings: apihttp.NewBookingHandler(factory.NewBookingService(deps), collectors, logger),
		Rooms:    apihttp.NewRoomHandler(factory.NewRoomService(deps), logger),
		Health:   apihttp.NewHealthHandler(store, logger),
		Guard:    authz.NewGuard(auth.NewReader(verifier)),
		Metrics:  collectors.Handler(),
		Observer: collectors,
		Logger:   logger,

		RequestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return apiEnv{
		handler: apihttp.NewRouter(cfg),
		clock:   clock,
		metrics: collectors,
		sink:    sink,
		manager: testfixtures.MintToken(t, "mgr", "manager"),
		u1:      testfixtures.MintToken(t, "u1", "employee"),
		u2:      testfixtures.MintToken(t, "u2", "employee"),
	}
}

func (e apiEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

type errorBody struct {
	ErrorCode string            `json:"error_code"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors"`
}

type roomBody struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Bookings []struct {
		ID        string `json:"id"`
		UserID    string `json:"userId"`
		StartTime string `json:"startTime"`
		EndTime   string `json:"endTime"`
	} `json:"bookings"`
}

type bookingBody struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Room      *struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Capacity int    `json:"capacity"`
	} `json:"room"`
}

type deleteBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func at(day, hour, minute int) string {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, time.UTC).Format(time.RFC3339)
}

func bookingRequest(roomID, start, end string) map[string]string {
	return map[string]string{"roomId": roomID, "startTime": start, "endTime": end}
}

func (e apiEnv) createRoom(t *testing.T, name string, capacity int) roomBody {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/rooms", e.manager, map[string]any{"name": name, "capacity": capacity})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create room status = %d body=%s", rec.Code, rec.Body.String())
	}
	return decode[roomBody](t, rec)
}

func (e apiEnv) createBooking(t *testing.T, token, roomID, start, end string) bookingBody {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/bookings", token, bookingRequest(roomID, start, end))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create booking status = %d body=%s", rec.Code, rec.Body.String())
	}
	return decode[bookingBody](t, rec)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		if rec := env.do(t, http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}

	down := newAPIEnv(t, func(cfg *apihttp.RouterConfig) {
		cfg.Health = apihttp.NewHealthHandler(pingerFunc(func(context.Context) error {
			return errors.New("disk gone")
		}), nil)
	})
	rec := down.do(t, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "disk gone") {
		t.Fatalf("readiness body leaks store detail: %s", rec.Body.String())
	}
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestBookingAdmissionOverHTTP(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	room := env.createRoom(t, "Alpha", 4)
	first := env.createBooking(t, env.u1, room.ID, at(3, 10, 0), at(3, 11, 0))

	if first.UserID != "u1" || first.Room == nil || first.Room.Name != "Alpha" || first.Room.Capacity != 4 {
		t.Fatalf("unexpected booking %+v", first)
	}
	if first.StartTime != "2024-01-03T10:00:00Z" {
		t.Fatalf("startTime = %q", first.StartTime)
	}

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantMsg    string
	}{
		{name: "overlap", body: bookingRequest(room.ID, at(3, 10, 30), at(3, 11, 30)), wantStatus: http.StatusConflict, wantMsg: "room already booked for this period"},
		{name: "too long", body: bookingRequest(room.ID, at(3, 9, 0), at(3, 12, 0)), wantStatus: http.StatusBadRequest, wantMsg: "duration exceeds 2 hours"},
		{name: "inverted", body: bookingRequest(room.ID, at(3, 13, 0), at(3, 12, 0)), wantStatus: http.StatusBadRequest, wantMsg: "end time must be after start time"},
		{name: "empty interval", body: bookingRequest(room.ID, at(3, 13, 0), at(3, 13, 0)), wantStatus: http.StatusBadRequest, wantMsg: "end time must be after start time"},
		{name: "missing fields", body: map[string]string{"roomId": room.ID}, wantStatus: http.StatusBadRequest, wantMsg: "missing required fields"},
		{name: "bad start", body: bookingRequest(room.ID, "tomorrow", at(3, 13, 0)), wantStatus: http.StatusBadRequest, wantMsg: "invalid start time"},
		{name: "beyond storable range", body: bookingRequest(room.ID, "2300-01-01T10:00:00Z", "2300-01-01T11:00:00Z"), wantStatus: http.StatusBadRequest, wantMsg: "invalid start time"},
		{name: "unknown room", body: bookingRequest("nope", at(3, 14, 0), at(3, 15, 0)), wantStatus: http.StatusBadRequest, wantMsg: "room does not exist"},
		{name: "malformed json", body: "{", wantStatus: http.StatusBadRequest, wantMsg: "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/bookings", env.u2, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := decode[errorBody](t, rec).Message; got != tt.wantMsg {
				t.Fatalf("message = %q, want %q", got, tt.wantMsg)
			}
		})
	}

	touching := env.createBooking(t, env.u2, room.ID, at(3, 11, 0), at(3, 12, 0))
	if touching.UserID != "u2" {
		t.Fatalf("unexpected booking %+v", touching)
	}

	body := env.metricsBody(t)
	for _, want := range []string{
		`booking_admissions_total{outcome="admitted"} 2`,
		`booking_admissions_total{outcome="conflict"} 1`,
		`booking_admissions_total{outcome="bad_request"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func (e apiEnv) metricsBody(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestBookingsRequireAuthentication(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	expired := testfixtures.MintToken(t, "u1", "employee", testfixtures.WithExpiry(time.Now().Add(-time.Hour)))

	tests := []struct {
		name   string
		method string
		path   string
		token  string
	}{
		{name: "list without token", method: http.MethodGet, path: "/bookings"},
		{name: "create without token", method: http.MethodPost, path: "/bookings"},
		{name: "delete without token", method: http.MethodDelete, path: "/bookings/b1"},
		{name: "expired token", method: http.MethodGet, path: "/bookings", token: expired},
		{name: "garbage token", method: http.MethodGet, path: "/api/bookings", token: "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.token, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if got := decode[errorBody](t, rec).ErrorCode; got != "UNAUTHENTICATED" {
				t.Fatalf("error_code = %q", got)
			}
		})
	}
}

func TestBookingListScopedByRole(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	room := env.createRoom(t, "Alpha", 4)
	env.createBooking(t, env.u1, room.ID, at(3, 12, 0), at(3, 13, 0))
	env.createBooking(t, env.u2, room.ID, at(3, 9, 0), at(3, 10, 0))
	env.createBooking(t, env.u1, room.ID, at(3, 10, 0), at(3, 11, 0))

	mine := decode[[]bookingBody](t, env.do(t, http.MethodGet, "/bookings", env.u1, nil))
	if len(mine) != 2 {
		t.Fatalf("employee sees %d bookings, want 2", len(mine))
	}
	for _, b := range mine {
		if b.UserID != "u1" || b.Room == nil {
			t.Fatalf("unexpected booking %+v", b)
		}
	}
	if mine[0].StartTime > mine[1].StartTime {
		t.Fatalf("bookings not ordered by start: %+v", mine)
	}

	all := decode[[]bookingBody](t, env.do(t, http.MethodGet, "/api/bookings", env.manager, nil))
	if len(all) != 3 || all[0].UserID != "u2" {
		t.Fatalf("manager list = %+v", all)
	}

	none := env.do(t, http.MethodGet, "/bookings", testfixtures.MintToken(t, "u3", ""), nil)
	if none.Code != http.StatusOK || strings.TrimSpace(none.Body.String()) != "[]" {
		t.Fatalf("roleless list = %d %s", none.Code, none.Body.String())
	}
}

func TestBookingDeletionRules(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	room := env.createRoom(t, "Alpha", 4)
	owned := env.createBooking(t, env.u1, room.ID, at(3, 10, 0), at(3, 11, 0))
	other := env.createBooking(t, env.u1, room.ID, at(3, 12, 0), at(3, 13, 0))
	soon := env.createBooking(t, env.u1, room.ID, at(2, 16, 0), at(2, 17, 0))

	rec := env.do(t, http.MethodDelete, "/bookings/"+owned.ID, env.u2, nil)
	if rec.Code != http.StatusForbidden || decode[errorBody](t, rec).Message != "not your booking" {
		t.Fatalf("foreign delete = %d %s", rec.Code, rec.Body.String())
	}

	unknownRole := testfixtures.MintToken(t, "u2", "auditor")
	if rec := env.do(t, http.MethodDelete, "/bookings/"+owned.ID, unknownRole, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("unknown role delete = %d", rec.Code)
	}

	if rec := env.do(t, http.MethodDelete, "/bookings/missing", env.u1, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing delete = %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/bookings/"+owned.ID, env.u1, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner delete = %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[deleteBody](t, rec); !got.Success || got.Message != "Booking deleted" {
		t.Fatalf("delete body = %+v", got)
	}

	env.clock.Advance(2 * time.Hour)
	rec = env.do(t, http.MethodDelete, "/bookings/"+soon.ID, env.u1, nil)
	if rec.Code != http.StatusForbidden || decode[errorBody](t, rec).Message != "cannot delete past bookings" {
		t.Fatalf("past delete = %d %s", rec.Code, rec.Body.String())
	}

	for _, id := range []string{soon.ID, other.ID} {
		if rec := env.do(t, http.MethodDelete, "/bookings/"+id, env.manager, nil); rec.Code != http.StatusOK {
			t.Fatalf("manager delete %s = %d", id, rec.Code)
		}
	}

	types := env.sink.types()
	deleted := 0
	for _, typ := range types {
		if typ == application.EventBookingDeleted {
			deleted++
		}
	}
	if deleted != 3 {
		t.Fatalf("booking.deleted events = %d, want 3 (%v)", deleted, types)
	}
}

func TestRoomEndpoints(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	beta := env.createRoom(t, "beta", 6)
	alpha := env.createRoom(t, "Alpha", 4)
	env.createBooking(t, env.u1, alpha.ID, at(3, 12, 0), at(3, 13, 0))
	env.createBooking(t, env.u2, alpha.ID, at(3, 9, 0), at(3, 10, 0))

	rooms := decode[[]roomBody](t, env.do(t, http.MethodGet, "/rooms", "", nil))
	if len(rooms) != 2 || rooms[0].Name != "Alpha" || rooms[1].Name != "beta" {
		t.Fatalf("rooms not ordered by name: %+v", rooms)
	}
	if len(rooms[0].Bookings) != 2 || rooms[0].Bookings[0].UserID != "u2" {
		t.Fatalf("room bookings not ordered by start: %+v", rooms[0].Bookings)
	}
	if rooms[1].Bookings == nil {
		t.Fatal("rooms without bookings should carry an empty list")
	}

	got := decode[roomBody](t, env.do(t, http.MethodGet, "/api/rooms/"+beta.ID, "", nil))
	if got.ID != beta.ID || got.Capacity != 6 {
		t.Fatalf("get room = %+v", got)
	}
	if rec := env.do(t, http.MethodGet, "/rooms/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing room status = %d", rec.Code)
	}

	rec := env.do(t, http.MethodPatch, "/rooms/"+beta.ID, env.manager, map[string]any{"capacity": 8})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d %s", rec.Code, rec.Body.String())
	}
	if patched := decode[roomBody](t, rec); patched.Name != "beta" || patched.Capacity != 8 {
		t.Fatalf("patched room = %+v", patched)
	}

	rec = env.do(t, http.MethodDelete, "/rooms/"+alpha.ID, env.manager, nil)
	if rec.Code != http.StatusOK || decode[deleteBody](t, rec).Message != "Room deleted" {
		t.Fatalf("delete room = %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodDelete, "/rooms/"+alpha.ID, env.manager, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}

	left := decode[[]bookingBody](t, env.do(t, http.MethodGet, "/bookings", env.manager, nil))
	if len(left) != 0 {
		t.Fatalf("bookings should cascade with their room, got %+v", left)
	}
}

func TestRoomValidationAndAuthorization(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	room := env.createRoom(t, "Alpha", 4)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       any
		wantStatus int
		wantMsg    string
	}{
		{name: "negative capacity", method: http.MethodPost, path: "/rooms", token: env.manager, body: map[string]any{"name": "Alpha", "capacity": -1}, wantStatus: http.StatusBadRequest, wantMsg: "capacity must be a positive integer"},
		{name: "zero capacity", method: http.MethodPost, path: "/rooms", token: env.manager, body: map[string]any{"name": "Alpha", "capacity": 0}, wantStatus: http.StatusBadRequest, wantMsg: "capacity must be a positive integer"},
		{name: "fractional capacity", method: http.MethodPost, path: "/rooms", token: env.manager, body: map[string]any{"name": "Alpha", "capacity": 2.5}, wantStatus: http.StatusBadRequest, wantMsg: "capacity must be a positive integer"},
		{name: "blank name", method: http.MethodPost, path: "/rooms", token: env.manager, body: map[string]any{"name": "  ", "capacity": 3}, wantStatus: http.StatusBadRequest, wantMsg: "name and capacity are required"},
		{name: "empty patch", method: http.MethodPatch, path: "/rooms/" + room.ID, token: env.manager, body: map[string]any{}, wantStatus: http.StatusBadRequest, wantMsg: "at least one field (name or capacity) is required"},
		{name: "patch missing room", method: http.MethodPatch, path: "/rooms/missing", token: env.manager, body: map[string]any{"name": "X"}, wantStatus: http.StatusNotFound, wantMsg: "room not found"},
		{name: "employee create", method: http.MethodPost, path: "/rooms", token: env.u1, body: map[string]any{"name": "X", "capacity": 2}, wantStatus: http.StatusForbidden, wantMsg: "insufficient permissions"},
		{name: "employee delete", method: http.MethodDelete, path: "/rooms/" + room.ID, token: env.u1, wantStatus: http.StatusForbidden, wantMsg: "insufficient permissions"},
		{name: "anonymous patch", method: http.MethodPatch, path: "/rooms/" + room.ID, body: map[string]any{"name": "X"}, wantStatus: http.StatusUnauthorized, wantMsg: "missing bearer token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.token, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := decode[errorBody](t, rec).Message; got != tt.wantMsg {
				t.Fatalf("message = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestRouterFallbacks(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	if rec := env.do(t, http.MethodGet, "/nowhere", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPut, "/rooms", env.manager, nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PUT /rooms status = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t, func(cfg *apihttp.RouterConfig) {
		cfg.RateLimitRequests = 2
		cfg.RateLimitWindow = time.Minute
	})

	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodGet, "/rooms", "", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := env.do(t, http.MethodGet, "/rooms", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := decode[errorBody](t, rec).ErrorCode; got != "RATE_LIMITED" {
		t.Fatalf("error_code = %q", got)
	}
	if rec := env.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("health checks must not be rate limited, got %d", rec.Code)
	}
}
