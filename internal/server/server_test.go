package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"citizenportal/internal/app"
	"citizenportal/internal/config"
	"citizenportal/internal/domain"
	"citizenportal/internal/staff"
)

type testServer struct {
	URL    string
	rt     *app.Runtime
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, limit config.RateLimitConfig) (*testServer, func()) {
	t.Helper()
	rt, err := app.Open(context.Background(), app.Options{Workspace: t.TempDir(), JWTSecret: "test-secret"})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	rt.Staff.Cost = bcrypt.MinCost
	handler, err := New(Config{Engine: rt.Engine, Staff: rt.Staff, Auth: rt.Auth, BasePath: "/v0", RateLimit: limit})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		rt:     rt,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			rt.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func validSubmission() map[string]any {
	return map[string]any{
		"fullName":         "Jane Doe",
		"phone":            "+211123456789",
		"email":            "jane@example.com",
		"nationalId":       "SS-19870412",
		"preferredContact": "email",
		"category":         "identity",
		"serviceType":      "national-id",
		"priority":         "medium",
		"title":            "Renew national ID",
		"description":      "My national ID card expired last month and needs renewal.",
	}
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, data)
	}
	return env.Error.Code
}

func createStaff(t *testing.T, srv *testServer, email, role string) string {
	t.Helper()
	if _, err := srv.rt.Staff.Create(context.Background(), staff.CreateOptions{Email: email, Password: "correct horse", Role: role}); err != nil {
		t.Fatalf("create staff: %v", err)
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/staff/login", map[string]any{
		"email":    email,
		"password": "correct horse",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, data)
	}
	var sess staff.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	return sess.Token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestSubmitAndLookup(t *testing.T) {
	srv, cleanup := newTestServer(t, config.RateLimitConfig{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests", validSubmission(), nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit status %d: %s", res.StatusCode, data)
	}
	var submitted SubmitResponse
	if err := json.Unmarshal(data, &submitted); err != nil {
		t.Fatalf("unmarshal submit: %v", err)
	}
	if !strings.HasPrefix(submitted.ReferenceID, "REQ-") {
		t.Fatalf("unexpected reference %q", submitted.ReferenceID)
	}
	if submitted.Request.Status != domain.StatusSubmitted || submitted.Request.Progress != 0 {
		t.Fatalf("unexpected initial state %s/%d", submitted.Request.Status, submitted.Request.Progress)
	}
	if len(submitted.Request.Timeline) != 1 {
		t.Fatalf("expected one timeline entry, got %d", len(submitted.Request.Timeline))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/requests/"+submitted.ReferenceID, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("lookup status %d: %s", res.StatusCode, data)
	}
	var found LookupResponse
	if err := json.Unmarshal(data, &found); err != nil {
		t.Fatalf("unmarshal lookup: %v", err)
	}
	if found.Source != "store" || found.Request.FullName != "Jane Doe" {
		t.Fatalf("unexpected lookup result %+v", found)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/status?ref=REQ-2024-001", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("seed lookup status %d: %s", res.StatusCode, data)
	}
	if err := json.Unmarshal(data, &found); err != nil {
		t.Fatalf("unmarshal seed lookup: %v", err)
	}
	if found.Source != "seed" {
		t.Fatalf("expected seed source, got %q", found.Source)
	}
}

func TestLookupErrors(t *testing.T) {
	srv, cleanup := newTestServer(t, config.RateLimitConfig{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/requests/REQ-DOESNOTEXIST", nil, nil)
	if res.StatusCode != http.StatusNotFound || errorCode(t, data) != "not_found" {
		t.Fatalf("expected 404 not_found, got %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/status?ref=", nil, nil)
	if res.StatusCode != http.StatusBadRequest || errorCode(t, data) != "missing_input" {
		t.Fatalf("expected 400 missing_input, got %d: %s", res.StatusCode, data)
	}
}

func TestSubmitValidationFailure(t *testing.T) {
	srv, cleanup := newTestServer(t, config.RateLimitConfig{})
	defer cleanup()

	body := validSubmission()
	body["phone"] = "0912345678"
	delete(body, "title")
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/requests", body, nil)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, data)
	}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Fields []domain.FieldError `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Error.Code != "validation_failed" {
		t.Fatalf("unexpected code %q", env.Error.Code)
	}
	fields := map[string]bool{}
	for _, f := range env.Error.Details.Fields {
		fields[f.Field] = true
	}
	if !fields["phone"] || !fields["title"] {
		t.Fatalf("expected phone and title errors, got %+v", env.Error.Details.Fields)
	}
}

func TestIdempotentSubmit(t *testing.T) {
	srv, cleanup := newTestServer(t, config.RateLimitConfig{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/references", nil, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("reference status %d: %s", res.StatusCode, data)
	}
	var ref ReferenceResponse
	if err := json.Unmarshal(data, &ref); err != nil {
		t.Fatalf("unmarshal reference: %v", err)
	}
	body := validSubmission()
	body["referenceId"] = ref.ReferenceID

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests", body, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("first submit status %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests", body, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("replay status %d: %s", res.StatusCode, data)
	}
	var replay SubmitResponse
	if err := json.Unmarshal(data, &replay); err != nil {
		t.Fatalf("unmarshal replay: %v", err)
	}
	if !replay.Replayed || replay.ReferenceID != ref.ReferenceID {
		t.Fatalf("expected replay of %s, got %+v", ref.ReferenceID, replay)
	}

	body["title"] = "Something else entirely"
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests", body, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for reused reference, got %d: %s", res.StatusCode, data)
	}
}

func TestStaffTransitionFlow(t *testing.T) {
	srv, cleanup := newTestServer(t, config.RateLimitConfig{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests", validSubmission(), nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit status %d: %s", res.StatusCode, data)
	}
	var submitted SubmitResponse
	if err := json.Unmarshal(data, &submitted); err != nil {
		t.Fatal(err)
	}
	transitionURL := srv.URL + "/v0/staff/requests/" + submitted.ReferenceID + "/transitions"

	res, data = doJSON(t, client, http.MethodPost, transitionURL, map[string]any{"status": "under-review"}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d: %s", res.StatusCode, data)
	}

	viewer := createStaff(t, srv, "viewer@example.gov", domain.RoleViewer)
	res, data = doJSON(t, client, http.MethodPost, transitionURL, map[string]any{"status": "under-review"}, bearer(viewer))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer, got %d: %s", res.StatusCode, data)
	}

	officer := createStaff(t, srv, "officer@example.gov", domain.RoleOfficer)
	res, data = doJSON(t, client, http.MethodPost, transitionURL, map[string]any{"status": "under-review", "by": "Desk 4"}, bearer(officer))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("transition status %d: %s", res.StatusCode, data)
	}
	var updated domain.Request
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Status != domain.StatusUnderReview || updated.Progress != 25 || len(updated.Timeline) != 2 {
		t.Fatalf("unexpected transition result %s/%d/%d", updated.Status, updated.Progress, len(updated.Timeline))
	}

	res, data = doJSON(t, client, http.MethodPost, transitionURL, map[string]any{"status": "completed"}, bearer(officer))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for skipped step, got %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/staff/requests/"+submitted.ReferenceID+"/documents", map[string]any{
		"name": "decision.pdf",
		"size": 2048,
		"type": "application/pdf",
	}, bearer(officer))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("document status %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/staff/requests?status=under-review", nil, bearer(viewer))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, data)
	}
	var list paginatedRequests
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Items) != 1 || list.Items[0].ReferenceID != submitted.ReferenceID {
		t.Fatalf("unexpected list %+v", list.Items)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/staff/events?entity_id="+submitted.ReferenceID, nil, bearer(viewer))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, data)
	}
	var evts paginatedEvents
	if err := json.Unmarshal(data, &evts); err != nil {
		t.Fatal(err)
	}
	if len(evts.Items) != 3 {
		t.Fatalf("expected submit, transition and document events, got %d", len(evts.Items))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/staff/users", map[string]any{
		"email": "new@example.gov", "password": "long enough", "role": "viewer",
	}, bearer(officer))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 creating staff as officer, got %d: %s", res.StatusCode, data)
	}
}

func TestStaffLoginRejectsBadPassword(t *testing.T) {
	srv, cleanup := newTestServer(t, config.RateLimitConfig{})
	defer cleanup()
	createStaff(t, srv, "admin@example.gov", domain.RoleAdmin)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/staff/login", map[string]any{
		"email": "admin@example.gov", "password": "wrong password",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "unauthorized" {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, data)
	}
}

func TestAPIKeyAuthentication(t *testing.T) {
	srv, cleanup := newTestServer(t, config.RateLimitConfig{})
	defer cleanup()
	client := srv.Client()
	token := createStaff(t, srv, "admin@example.gov", domain.RoleAdmin)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/staff/api-keys", map[string]any{"name": "kiosk"}, bearer(token))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("api key status %d: %s", res.StatusCode, data)
	}
	var created struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatal(err)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/staff/me", nil, map[string]string{"X-Api-Key": created.Key})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, data)
	}
	var me WhoAmIResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatal(err)
	}
	if me.Source != "api_key" || me.Role != domain.RoleAdmin {
		t.Fatalf("unexpected principal %+v", me)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/staff/me", nil, map[string]string{"X-Api-Key": "cpk_bogus"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown key, got %d", res.StatusCode)
	}
}

func TestContactHoneypot(t *testing.T) {
	srv, cleanup := newTestServer(t, config.RateLimitConfig{})
	defer cleanup()
	client := srv.Client()

	msg := map[string]any{
		"name":    "Sam",
		"email":   "sam@example.com",
		"subject": "Opening hours",
		"message": "When is the Juba office open on Saturdays?",
	}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/contact", msg, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("contact status %d: %s", res.StatusCode, data)
	}
	msg["website"] = "http://spam.example"
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/contact", msg, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for honeypot, got %d: %s", res.StatusCode, data)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	srv, cleanup := newTestServer(t, config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/references", nil, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("first write status %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/references", nil, nil)
	if res.StatusCode != http.StatusTooManyRequests || errorCode(t, data) != "rate_limited" {
		t.Fatalf("expected 429, got %d: %s", res.StatusCode, data)
	}
	if res.Header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reads should not be throttled, got %d", res.StatusCode)
	}
}

func TestOpenAPIMarksStaffRoutes(t *testing.T) {
	srv, cleanup := newTestServer(t, config.RateLimitConfig{})
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
	var doc struct {
		Paths map[string]map[string]struct {
			Security []map[string][]string `json:"security"`
		} `json:"paths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal openapi: %v", err)
	}
	if len(doc.Paths["/v0/staff/requests"]["get"].Security) == 0 {
		t.Fatalf("staff listing should require auth")
	}
	if len(doc.Paths["/v0/requests"]["post"].Security) != 0 {
		t.Fatalf("public submit should not require auth")
	}
}

func TestWebhookDelivery(t *testing.T) {
	var (
		mu       sync.Mutex
		received []*http.Request
		bodies   [][]byte
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, r)
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	rt, err := app.Open(context.Background(), app.Options{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	rt.Engine.Config.Webhooks = []config.WebhookConfig{{URL: hook.URL, Events: []string{"request.submitted"}, Secret: "shh"}}

	d := newWebhookDispatcher(rt.Engine, nil)
	ctx := context.Background()
	d.dispatchAll(ctx) // pins the cursor before any event exists

	if _, err := rt.Engine.SubmitContact(ctx, domain.ContactCandidate{
		Name: "Sam", Email: "sam@example.com", Subject: "Hello", Message: "Just checking the form works.",
	}, ""); err != nil {
		t.Fatalf("contact: %v", err)
	}
	var body SubmitRequestBody
	raw, _ := json.Marshal(validSubmission())
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatal(err)
	}
	res, err := rt.Engine.Submit(ctx, body.options(""))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	d.dispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected one filtered delivery, got %d", len(received))
	}
	if got := received[0].Header.Get("X-Portal-Event"); got != "request.submitted" {
		t.Fatalf("unexpected event header %q", got)
	}
	if got := received[0].Header.Get("X-Portal-Signature"); got != "sha256="+signPayload("shh", bodies[0]) {
		t.Fatalf("bad signature %q", got)
	}
	var evt webhookEvent
	if err := json.Unmarshal(bodies[0], &evt); err != nil {
		t.Fatal(err)
	}
	if evt.EntityID != res.Request.ReferenceID {
		t.Fatalf("expected entity %s, got %s", res.Request.ReferenceID, evt.EntityID)
	}
}

func TestRateLimitIgnoresForwardedHeaders(t *testing.T) {
	srv, cleanup := newTestServer(t, config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1})
	defer cleanup()
	client := srv.Client()

	throttled := 0
	for i := 0; i < 5; i++ {
		res, _ := doJSON(t, client, http.MethodPost, srv.URL+"/v0/references", nil, map[string]string{
			"X-Forwarded-For": fmt.Sprintf("10.0.0.%d", i),
			"X-Real-IP":       fmt.Sprintf("10.0.1.%d", i),
		})
		if res.StatusCode == http.StatusTooManyRequests {
			throttled++
		}
	}
	if throttled != 4 {
		t.Fatalf("expected 4 of 5 writes throttled despite rotating headers, got %d", throttled)
	}
}

func TestRateLimitTrustsProxyWhenConfigured(t *testing.T) {
	srv, cleanup := newTestServer(t, config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1, TrustProxy: true})
	defer cleanup()
	client := srv.Client()

	for i := 0; i < 3; i++ {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/references", nil, map[string]string{
			"X-Forwarded-For": fmt.Sprintf("10.0.0.%d", i),
		})
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("client %d behind proxy status %d: %s", i, res.StatusCode, data)
		}
	}
	res, _ := doJSON(t, client, http.MethodPost, srv.URL+"/v0/references", nil, map[string]string{"X-Forwarded-For": "10.0.0.0"})
	if res.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected repeat client to be throttled, got %d", res.StatusCode)
	}
}

func TestRateLimiterBoundsTrackedClients(t *testing.T) {
	l := newIPRateLimiter(config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1})
	for i := 0; i < maxTrackedClients+500; i++ {
		l.limiter(fmt.Sprintf("client-%d", i))
	}
	if n := l.limiters.Len(); n != maxTrackedClients {
		t.Fatalf("expected %d tracked clients, got %d", maxTrackedClients, n)
	}
	if _, ok := l.limiters.Peek("client-0"); ok {
		t.Fatalf("oldest client should have been evicted")
	}
}
