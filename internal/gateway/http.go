package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/VenkatGGG/admin-console/internal/catalog"
	"github.com/VenkatGGG/admin-console/pkg/httpx"
)

const idempotencyHeader = "Idempotency-Key"

// TokenSource returns the bearer token to send, or "" for anonymous calls.
type TokenSource func() string

type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type HTTPGateway struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
}

var _ Gateway = (*HTTPGateway)(nil)

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL:    normalizeBaseURL(baseURL),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetTokenSource installs the bearer token provider used for every call.
func (g *HTTPGateway) SetTokenSource(src TokenSource) {
	g.token = src
}

func (g *HTTPGateway) ListItems(ctx context.Context, kind catalog.Kind, query catalog.ListQuery) (RawPage, error) {
	params := url.Values{}
	if query.Page > 0 {
		params.Set("page", strconv.Itoa(query.Page))
	}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		params.Set("search", search)
	}
	for key, value := range query.Filter {
		if strings.TrimSpace(value) != "" {
			params.Set(key, value)
		}
	}
	path := "/" + string(kind)
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var page RawPage
	if err := g.do(ctx, callSpec{op: "list " + string(kind), method: http.MethodGet, path: path}, &page); err != nil {
		return RawPage{}, err
	}
	if page.Data == nil {
		page.Data = []json.RawMessage{}
	}
	return page, nil
}

func (g *HTTPGateway) GetItem(ctx context.Context, kind catalog.Kind, id string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := g.do(ctx, callSpec{op: "get " + string(kind), method: http.MethodGet, path: itemPath(kind, id)}, &raw)
	return raw, err
}

func (g *HTTPGateway) CreateItem(ctx context.Context, kind catalog.Kind, payload any) (json.RawMessage, error) {
	path := "/" + string(kind)
	if kind == catalog.KindVoucher {
		path += "/issue"
	}
	var raw json.RawMessage
	err := g.do(ctx, callSpec{
		op:          "create " + string(kind),
		method:      http.MethodPost,
		path:        path,
		body:        payload,
		idempotency: uuid.NewString(),
	}, &raw)
	return raw, err
}

func (g *HTTPGateway) UpdateItem(ctx context.Context, kind catalog.Kind, id string, payload any) (json.RawMessage, error) {
	var raw json.RawMessage
	err := g.do(ctx, callSpec{op: "update " + string(kind), method: http.MethodPut, path: itemPath(kind, id), body: payload}, &raw)
	return raw, err
}

func (g *HTTPGateway) DeleteItem(ctx context.Context, kind catalog.Kind, id string) error {
	return g.do(ctx, callSpec{op: "delete " + string(kind), method: http.MethodDelete, path: itemPath(kind, id)}, nil)
}

func (g *HTTPGateway) ToggleStatus(ctx context.Context, kind catalog.Kind, id string) (json.RawMessage, error) {
	suffix := "/toggle"
	if kind == catalog.KindVoucher {
		suffix = "/toggle-usage"
	}
	var raw json.RawMessage
	err := g.do(ctx, callSpec{op: "toggle " + string(kind), method: http.MethodPatch, path: itemPath(kind, id) + suffix}, &raw)
	return raw, err
}

func (g *HTTPGateway) AcquireLock(ctx context.Context, kind catalog.Kind, id string) error {
	return g.lockCall(ctx, "acquire lock", kind, id, "me")
}

func (g *HTTPGateway) ReleaseLock(ctx context.Context, kind catalog.Kind, id string) error {
	return g.lockCall(ctx, "release lock", kind, id, "release")
}

func (g *HTTPGateway) MaintainLock(ctx context.Context, kind catalog.Kind, id string) error {
	return g.lockCall(ctx, "maintain lock", kind, id, "maintain")
}

func (g *HTTPGateway) lockCall(ctx context.Context, op string, kind catalog.Kind, id, action string) error {
	return g.do(ctx, callSpec{
		op:       op,
		method:   http.MethodPost,
		path:     itemPath(kind, id) + "/editable/" + action,
		lockCall: true,
	}, nil)
}

func (g *HTTPGateway) EventStats(ctx context.Context) (catalog.EventStats, error) {
	var stats catalog.EventStats
	err := g.do(ctx, callSpec{op: "event stats", method: http.MethodGet, path: "/events/stats"}, &stats)
	return stats, err
}

func (g *HTTPGateway) ValidateVoucher(ctx context.Context, req catalog.ValidateVoucherRequest) (catalog.VoucherValidation, error) {
	var out catalog.VoucherValidation
	err := g.do(ctx, callSpec{op: "validate voucher", method: http.MethodPost, path: "/vouchers/validate", body: req}, &out)
	return out, err
}

func (g *HTTPGateway) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	var out LoginResponse
	err := g.do(ctx, callSpec{op: "login", method: http.MethodPost, path: "/auth/login", body: req}, &out)
	return out, err
}

func (g *HTTPGateway) Logout(ctx context.Context) error {
	return g.do(ctx, callSpec{op: "logout", method: http.MethodPost, path: "/auth/logout"}, nil)
}

func (g *HTTPGateway) CurrentUser(ctx context.Context) (User, error) {
	var out User
	err := g.do(ctx, callSpec{op: "current user", method: http.MethodGet, path: "/auth/me"}, &out)
	return out, err
}

type callSpec struct {
	op          string
	method      string
	path        string
	body        any
	idempotency string
	lockCall    bool
}

func (g *HTTPGateway) do(ctx context.Context, spec callSpec, out any) error {
	var reader io.Reader
	if spec.body != nil {
		raw, err := json.Marshal(spec.body)
		if err != nil {
			return &Error{Kind: ErrValidation, Op: spec.op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, g.baseURL+spec.path, reader)
	if err != nil {
		return transportError(spec.op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if spec.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if spec.idempotency != "" {
		req.Header.Set(idempotencyHeader, spec.idempotency)
	}
	if g.token != nil {
		if token := strings.TrimSpace(g.token()); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return transportError(spec.op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return transportError(spec.op, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(spec.op, resp.StatusCode, errorMessage(body), spec.lockCall)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return transportError(spec.op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func errorMessage(body []byte) string {
	var parsed httpx.ErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && strings.TrimSpace(parsed.Message) != "" {
		return parsed.Message
	}
	return strings.TrimSpace(string(body))
}

func itemPath(kind catalog.Kind, id string) string {
	return "/" + string(kind) + "/" + url.PathEscape(strings.TrimSpace(id))
}

func normalizeBaseURL(baseURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return "http://localhost:3000"
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	return "http://" + trimmed
}
