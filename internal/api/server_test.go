package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock"

	"github.com/VenkatGGG/admin-console/internal/catalog"
	"github.com/VenkatGGG/admin-console/internal/idempotency"
	"github.com/VenkatGGG/admin-console/internal/inventory"
	"github.com/VenkatGGG/admin-console/internal/lease"
)

const testUsers = "ana@example.com:pw-ana:Ana,ben@example.com:pw-ben:Ben:editor"

func newTestServer(t *testing.T, configure func(*Options)) *httptest.Server {
	t.Helper()
	users, err := ParseUsers(testUsers)
	if err != nil {
		t.Fatalf("parse users: %v", err)
	}
	opts := Options{
		Store:       inventory.NewInMemoryStore(),
		Locks:       lease.NewInMemoryManager(clock.WallClock),
		Idempotency: idempotency.NewInMemoryStore(clock.WallClock),
		Users:       users,
		Logger:      log.New(io.Discard, "", 0),
	}
	if configure != nil {
		configure(&opts)
	}
	srv := NewServer(opts)
	srv.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 30, 0, time.UTC) }
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, method, url, token string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, raw
}

func login(t *testing.T, baseURL, email, password string) (string, User) {
	t.Helper()
	resp, raw := call(t, http.MethodPost, baseURL+"/auth/login", "", map[string]string{"email": email, "password": password}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, resp.StatusCode, raw)
	}
	var out struct {
		User  User   `json:"user"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return out.Token, out.User
}

func createEvent(t *testing.T, baseURL, token, name string, max int) catalog.Event {
	t.Helper()
	resp, raw := call(t, http.MethodPost, baseURL+"/events", token, catalog.CreateEventRequest{Name: name, MaxQuantity: max}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create event: status %d body %s", resp.StatusCode, raw)
	}
	var event catalog.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return event
}

func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode error body %s: %v", raw, err)
	}
	return body.Code
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, _ := call(t, http.MethodGet, ts.URL+"/healthz", "", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", resp.StatusCode)
	}
	resp, raw := call(t, http.MethodGet, ts.URL+"/events", "", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized || errorCode(t, raw) != "unauthorized" {
		t.Fatalf("expected 401 unauthorized, got %d %s", resp.StatusCode, raw)
	}
	resp, _ = call(t, http.MethodGet, ts.URL+"/events", "tok_forged", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", resp.StatusCode)
	}
}

func TestLoginMeAndLogout(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, raw := call(t, http.MethodPost, ts.URL+"/auth/login", "", map[string]string{"email": "ana@example.com", "password": "nope"}, nil)
	if resp.StatusCode != http.StatusUnauthorized || errorCode(t, raw) != "invalid_credentials" {
		t.Fatalf("expected invalid credentials, got %d %s", resp.StatusCode, raw)
	}

	token, user := login(t, ts.URL, "ANA@example.com", "pw-ana")
	if user.Email != "ana@example.com" || user.Role != "admin" || user.ID == "" {
		t.Fatalf("unexpected user %+v", user)
	}

	resp, raw = call(t, http.MethodGet, ts.URL+"/auth/me", token, nil, nil)
	var me User
	if err := json.Unmarshal(raw, &me); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d err %v", resp.StatusCode, err)
	}
	if me.ID != user.ID || strings.Contains(string(raw), "pw-ana") {
		t.Fatalf("unexpected me body %s", raw)
	}

	resp, _ = call(t, http.MethodPost, ts.URL+"/auth/logout", token, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected logout 204, got %d", resp.StatusCode)
	}
	resp, _ = call(t, http.MethodGet, ts.URL+"/auth/me", token, nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected token revoked after logout, got %d", resp.StatusCode)
	}
}

func TestEventCRUDAndListing(t *testing.T) {
	ts := newTestServer(t, nil)
	token, _ := login(t, ts.URL, "ana@example.com", "pw-ana")

	first := createEvent(t, ts.URL, token, "Jazz Night", 50)
	createEvent(t, ts.URL, token, "Book Fair", 10)

	resp, raw := call(t, http.MethodGet, ts.URL+"/events?limit=1&search=jazz", token, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d body %s", resp.StatusCode, raw)
	}
	var page catalog.Page[catalog.Event]
	if err := json.Unmarshal(raw, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].ID != first.ID || page.Meta.Total != 1 || page.Meta.TotalPages != 1 {
		t.Fatalf("unexpected page %+v", page)
	}

	resp, raw = call(t, http.MethodPatch, ts.URL+"/events/"+first.ID+"/toggle", token, nil, nil)
	var toggled catalog.Event
	if err := json.Unmarshal(raw, &toggled); err != nil || resp.StatusCode != http.StatusOK || toggled.IsActive {
		t.Fatalf("toggle: status %d body %s", resp.StatusCode, raw)
	}

	resp, raw = call(t, http.MethodGet, ts.URL+"/events/stats", token, nil, nil)
	var stats catalog.EventStats
	if err := json.Unmarshal(raw, &stats); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: status %d body %s", resp.StatusCode, raw)
	}
	if stats.TotalEvents != 2 || stats.ActiveEvents != 1 || stats.InactiveEvents != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	resp, _ = call(t, http.MethodDelete, ts.URL+"/events/"+first.ID, token, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected delete 204, got %d", resp.StatusCode)
	}
	resp, raw = call(t, http.MethodGet, ts.URL+"/events/"+first.ID, token, nil, nil)
	if resp.StatusCode != http.StatusNotFound || errorCode(t, raw) != "not_found" {
		t.Fatalf("expected 404 after delete, got %d %s", resp.StatusCode, raw)
	}
}

func TestCreateEventValidationAndQueryErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	token, _ := login(t, ts.URL, "ana@example.com", "pw-ana")

	resp, raw := call(t, http.MethodPost, ts.URL+"/events", token, catalog.CreateEventRequest{Name: " ", MaxQuantity: 5}, nil)
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, raw) != "invalid_request" {
		t.Fatalf("expected invalid_request, got %d %s", resp.StatusCode, raw)
	}
	resp, raw = call(t, http.MethodPost, ts.URL+"/events", token, map[string]any{"name": "x", "maxQuantity": 1, "colour": "red"}, nil)
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, raw) != "invalid_json" {
		t.Fatalf("expected invalid_json for unknown field, got %d %s", resp.StatusCode, raw)
	}
	resp, raw = call(t, http.MethodGet, ts.URL+"/events?page=0", token, nil, nil)
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, raw) != "invalid_query" {
		t.Fatalf("expected invalid_query, got %d %s", resp.StatusCode, raw)
	}
}

func TestEditLockIsExclusiveBetweenUsers(t *testing.T) {
	ts := newTestServer(t, nil)
	anaToken, ana := login(t, ts.URL, "ana@example.com", "pw-ana")
	benToken, _ := login(t, ts.URL, "ben@example.com", "pw-ben")
	event := createEvent(t, ts.URL, anaToken, "Jazz Night", 50)
	editable := ts.URL + "/events/" + event.ID + "/editable/"

	resp, raw := call(t, http.MethodPost, editable+"me", anaToken, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ana acquire: status %d body %s", resp.StatusCode, raw)
	}
	resp, raw = call(t, http.MethodPost, editable+"me", benToken, nil, nil)
	if resp.StatusCode != http.StatusConflict || errorCode(t, raw) != "locked" {
		t.Fatalf("expected ben denied with locked, got %d %s", resp.StatusCode, raw)
	}
	resp, raw = call(t, http.MethodPost, editable+"maintain", benToken, nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected ben maintain conflict, got %d %s", resp.StatusCode, raw)
	}

	name := "Renamed"
	resp, _ = call(t, http.MethodPut, ts.URL+"/events/"+event.ID, benToken, catalog.UpdateEventRequest{Name: &name}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected ben update refused while locked, got %d", resp.StatusCode)
	}
	resp, raw = call(t, http.MethodPut, ts.URL+"/events/"+event.ID, anaToken, catalog.UpdateEventRequest{Name: &name}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ana update: status %d body %s", resp.StatusCode, raw)
	}

	_, raw = call(t, http.MethodGet, ts.URL+"/events", benToken, nil, nil)
	var page catalog.Page[catalog.Event]
	if err := json.Unmarshal(raw, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].EditingBy != ana.ID || page.Data[0].EditLockAt == nil {
		t.Fatalf("expected listing to show ana's lock, got %+v", page.Data)
	}

	resp, _ = call(t, http.MethodPost, editable+"maintain", anaToken, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ana maintain 200, got %d", resp.StatusCode)
	}
	resp, _ = call(t, http.MethodPost, editable+"release", anaToken, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected release 204, got %d", resp.StatusCode)
	}
	resp, _ = call(t, http.MethodPost, editable+"me", benToken, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ben acquire after release, got %d", resp.StatusCode)
	}
}

func TestEditLockOnMissingRecord(t *testing.T) {
	ts := newTestServer(t, nil)
	token, _ := login(t, ts.URL, "ana@example.com", "pw-ana")

	resp, _ := call(t, http.MethodPost, ts.URL+"/events/missing/editable/me", token, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp, _ = call(t, http.MethodGet, ts.URL+"/events/missing/editable/me", token, nil, nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestCreateEventIdempotencyReplaysAndRejectsReuse(t *testing.T) {
	ts := newTestServer(t, nil)
	token, _ := login(t, ts.URL, "ana@example.com", "pw-ana")
	headers := map[string]string{"Idempotency-Key": "create-1"}
	req := catalog.CreateEventRequest{Name: "Jazz Night", MaxQuantity: 50}

	resp, raw := call(t, http.MethodPost, ts.URL+"/events", token, req, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first create: status %d body %s", resp.StatusCode, raw)
	}
	var first catalog.Event
	_ = json.Unmarshal(raw, &first)

	resp, raw = call(t, http.MethodPost, ts.URL+"/events", token, req, headers)
	var second catalog.Event
	_ = json.Unmarshal(raw, &second)
	if resp.StatusCode != http.StatusCreated || second.ID != first.ID {
		t.Fatalf("expected replayed create, got %d id=%s want %s", resp.StatusCode, second.ID, first.ID)
	}
	if resp.Header.Get(idempotencyReplayHeader) != "true" {
		t.Fatalf("expected replay header")
	}

	req.Name = "Other"
	resp, raw = call(t, http.MethodPost, ts.URL+"/events", token, req, headers)
	if resp.StatusCode != http.StatusUnprocessableEntity || errorCode(t, raw) != "idempotency_key_reused" {
		t.Fatalf("expected key reuse rejected, got %d %s", resp.StatusCode, raw)
	}

	_, raw = call(t, http.MethodGet, ts.URL+"/events", token, nil, nil)
	var page catalog.Page[catalog.Event]
	_ = json.Unmarshal(raw, &page)
	if page.Meta.Total != 1 {
		t.Fatalf("expected a single event, got %d", page.Meta.Total)
	}
}

func TestCreateRoutesAreRateLimitedPerUser(t *testing.T) {
	ts := newTestServer(t, func(o *Options) { o.CreateRateLimit = 1 })
	anaToken, _ := login(t, ts.URL, "ana@example.com", "pw-ana")
	benToken, _ := login(t, ts.URL, "ben@example.com", "pw-ben")

	createEvent(t, ts.URL, anaToken, "One", 1)
	resp, raw := call(t, http.MethodPost, ts.URL+"/events", anaToken, catalog.CreateEventRequest{Name: "Two", MaxQuantity: 1}, nil)
	if resp.StatusCode != http.StatusTooManyRequests || errorCode(t, raw) != "rate_limited" {
		t.Fatalf("expected 429, got %d %s", resp.StatusCode, raw)
	}
	resp, _ = call(t, http.MethodGet, ts.URL+"/events", anaToken, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reads must not be limited, got %d", resp.StatusCode)
	}
	createEvent(t, ts.URL, benToken, "Ben's", 1)
}

func TestVoucherIssueListAndValidate(t *testing.T) {
	ts := newTestServer(t, nil)
	token, _ := login(t, ts.URL, "ana@example.com", "pw-ana")
	event := createEvent(t, ts.URL, token, "Jazz Night", 2)

	resp, raw := call(t, http.MethodPost, ts.URL+"/vouchers/issue", token, catalog.CreateVoucherRequest{
		EventID:            event.ID,
		IssueTo:            "guest@example.com",
		MinimumOrderAmount: 20,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("issue: status %d body %s", resp.StatusCode, raw)
	}
	var voucher catalog.Voucher
	if err := json.Unmarshal(raw, &voucher); err != nil {
		t.Fatalf("decode voucher: %v", err)
	}
	if voucher.Code == "" || voucher.Event.ID != event.ID {
		t.Fatalf("unexpected voucher %+v", voucher)
	}

	_, raw = call(t, http.MethodGet, ts.URL+"/vouchers?eventId="+event.ID+"&isUsed=false", token, nil, nil)
	var page catalog.Page[catalog.Voucher]
	if err := json.Unmarshal(raw, &page); err != nil || len(page.Data) != 1 {
		t.Fatalf("expected one unused voucher, got %s", raw)
	}

	low := 5.0
	_, raw = call(t, http.MethodPost, ts.URL+"/vouchers/validate", token, catalog.ValidateVoucherRequest{Code: strings.ToLower(voucher.Code), OrderAmount: &low}, nil)
	var result catalog.VoucherValidation
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode validation: %v", err)
	}
	if result.IsValid || !strings.Contains(result.Message, "minimum") {
		t.Fatalf("expected minimum order rejection, got %+v", result)
	}

	_, raw = call(t, http.MethodPost, ts.URL+"/vouchers/validate", token, catalog.ValidateVoucherRequest{Code: voucher.Code}, nil)
	result = catalog.VoucherValidation{}
	_ = json.Unmarshal(raw, &result)
	if !result.IsValid {
		t.Fatalf("expected valid voucher, got %+v", result)
	}

	resp, raw = call(t, http.MethodPatch, ts.URL+"/vouchers/"+voucher.ID+"/toggle-usage", token, nil, nil)
	var used catalog.Voucher
	if err := json.Unmarshal(raw, &used); err != nil || resp.StatusCode != http.StatusOK || !used.IsUsed {
		t.Fatalf("toggle usage: status %d body %s", resp.StatusCode, raw)
	}

	_, raw = call(t, http.MethodPost, ts.URL+"/vouchers/validate", token, catalog.ValidateVoucherRequest{Code: "VC-NOPE"}, nil)
	result = catalog.VoucherValidation{}
	_ = json.Unmarshal(raw, &result)
	if result.IsValid || result.Message != "voucher not found" {
		t.Fatalf("expected not found result, got %+v", result)
	}
}

func TestMetricsEndpointExposesRequestCounters(t *testing.T) {
	ts := newTestServer(t, nil)
	token, _ := login(t, ts.URL, "ana@example.com", "pw-ana")
	event := createEvent(t, ts.URL, token, "Jazz Night", 5)
	call(t, http.MethodPost, ts.URL+"/events/"+event.ID+"/editable/me", token, nil, nil)

	resp, raw := call(t, http.MethodGet, ts.URL+"/metrics", "", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: status %d", resp.StatusCode)
	}
	body := string(raw)
	for _, want := range []string{
		`adminapi_http_requests_total{method="POST",route="/events",status="201"} 1`,
		`adminapi_edit_lock_total{action="acquire",result="granted"} 1`,
		`route="/events/{id}/editable/me"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/":                          "/",
		"/healthz":                   "/healthz",
		"/events":                    "/events",
		"/events/stats":              "/events/stats",
		"/events/abc":                "/events/{id}",
		"/events/abc/editable/me":    "/events/{id}/editable/me",
		"/vouchers/issue":            "/vouchers/issue",
		"/vouchers/v1/toggle-usage":  "/vouchers/{id}/toggle-usage",
		"/wp-admin/setup-config.php": "other",
	}
	for path, want := range cases {
		if got := routeLabel(path); got != want {
			t.Fatalf("routeLabel(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestParseUsers(t *testing.T) {
	users, err := ParseUsers(" ana@example.com:pw:Ana , ben@example.com:pw2:Ben:viewer,")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(users) != 2 || users[0].Role != "admin" || users[1].Role != "viewer" {
		t.Fatalf("unexpected users %+v", users)
	}
	again, _ := ParseUsers("ANA@example.com:other:Ana")
	if again[0].ID != users[0].ID {
		t.Fatalf("expected stable id derived from email")
	}
	for _, raw := range []string{"ana@example.com:pw", ":pw:Ana", "a:b:c:d:e"} {
		if _, err := ParseUsers(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestFixedWindowLimiter(t *testing.T) {
	limiter := newFixedWindowLimiter(2, time.Minute)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !limiter.Allow("a", now) || !limiter.Allow("a", now) {
		t.Fatalf("expected first two requests allowed")
	}
	if limiter.Allow("a", now.Add(time.Second)) {
		t.Fatalf("expected third request in window denied")
	}
	if !limiter.Allow("b", now) {
		t.Fatalf("expected other client allowed")
	}
	if !limiter.Allow("a", now.Add(time.Minute)) {
		t.Fatalf("expected next window allowed")
	}
}
