package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vibebiz.dev/internal/audit"
	"vibebiz.dev/internal/auth"
	"vibebiz.dev/internal/docs"
	"vibebiz.dev/internal/store/memory"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	store   *memory.Store
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	store := memory.New()
	authz := auth.NewAuthorizer(store)
	sessions := auth.NewSessionManager(store)
	accounts := auth.NewAccountService(store, authz, nil)
	invites := auth.NewInvitationService(store, authz)
	auditor := audit.NewLogger(store)

	api := New(ReadyProbe{}, "test", Deps{
		Sessions:     sessions,
		Accounts:     accounts,
		Invites:      invites,
		Authz:        authz,
		Auditor:      auditor,
		Docs:         docs.NewService(),
		StoreTimeout: 5 * time.Second,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   store,
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	return c.do(http.MethodGet, path, nil, headers)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return payload
}

type account struct {
	userID  string
	orgID   string
	access  string
	refresh string
}

// signupAndLogin provisions an account with its own organization and returns
// live tokens.
func (c *apiClient) signupAndLogin(email, orgName string) account {
	c.t.Helper()
	resp := c.post("/v1/auth/signup", map[string]any{
		"email":             email,
		"password":          "long-enough-pw",
		"organization_name": orgName,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("signup status: %d", resp.StatusCode)
	}
	created := decodeBody(c.t, resp)
	user := created["user"].(map[string]any)
	org := created["organization"].(map[string]any)

	resp = c.post("/v1/auth/login", map[string]any{
		"email":    email,
		"password": "long-enough-pw",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login status: %d", resp.StatusCode)
	}
	logged := decodeBody(c.t, resp)

	return account{
		userID:  user["id"].(string),
		orgID:   org["id"].(string),
		access:  logged["access_token"].(string),
		refresh: logged["refresh_token"].(string),
	}
}

func authHeaders(acct account, orgID string) map[string]string {
	h := map[string]string{"Authorization": "Bearer " + acct.access}
	if orgID != "" {
		h[orgHeader] = orgID
	}
	return h
}

func TestHealthAndInfo(t *testing.T) {
	c := newTestAPI(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.get(path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status: %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestSignupLoginAndDocuments(t *testing.T) {
	c := newTestAPI(t)
	acct := c.signupAndLogin("ada@example.com", "Ada Works")

	resp := c.get("/v1/documents", authHeaders(acct, acct.orgID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list documents status: %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if list := body["documents"].([]any); len(list) != 0 {
		t.Fatalf("expected no documents, got %d", len(list))
	}

	resp = c.post("/v1/documents", map[string]any{"title": "Q3 plan"}, authHeaders(acct, acct.orgID))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create document status: %d", resp.StatusCode)
	}
	doc := decodeBody(t, resp)["document"].(map[string]any)
	if doc["organization_id"] != acct.orgID || doc["created_by"] != acct.userID {
		t.Fatalf("document not tenant-stamped: %+v", doc)
	}

	resp = c.get("/v1/dashboard", authHeaders(acct, acct.orgID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status: %d", resp.StatusCode)
	}
	dash := decodeBody(t, resp)
	if dash["document_count"].(float64) != 1 {
		t.Fatalf("dashboard count: %v", dash["document_count"])
	}
}

func TestGateOrdering(t *testing.T) {
	c := newTestAPI(t)
	acct := c.signupAndLogin("bob@example.com", "Bobs Org")
	outsider := c.signupAndLogin("eve@example.com", "Eves Org")

	// 1: no token at all
	resp := c.get("/v1/documents", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "authentication_required" {
		t.Fatalf("unexpected error code: %v", body["error"])
	}

	// 2: valid token, no organization header; rejected before any
	// membership question is asked
	resp = c.get("/v1/documents", map[string]string{"Authorization": "Bearer " + acct.access})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing org header: %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["error"] != "missing_organization" {
		t.Fatalf("unexpected error code: %v", body["error"])
	}

	// 3: valid token, declared organization the caller is not part of
	resp = c.get("/v1/documents", authHeaders(outsider, acct.orgID))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign org: %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["error"] != "forbidden" {
		t.Fatalf("unexpected error code: %v", body["error"])
	}
	if _, leaked := body["kind"]; leaked {
		t.Fatal("rejection kind must not leak to the client")
	}

	// each rejection left an audit record
	denied := 0
	for _, entry := range c.store.AuditEntries() {
		if entry.Action == "access.denied" {
			denied++
		}
	}
	if denied != 3 {
		t.Fatalf("expected 3 access.denied audit entries, got %d", denied)
	}
}

func TestTenantIsolation(t *testing.T) {
	c := newTestAPI(t)
	one := c.signupAndLogin("one@example.com", "Org One")
	two := c.signupAndLogin("two@example.com", "Org Two")

	resp := c.post("/v1/documents", map[string]any{"title": "org-one secret"}, authHeaders(one, one.orgID))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// org two sees its own, empty, collection
	resp = c.get("/v1/documents", authHeaders(two, two.orgID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if list := body["documents"].([]any); len(list) != 0 {
		t.Fatal("documents leaked across organizations")
	}

	// naming the other organization outright is forbidden
	resp = c.get("/v1/documents", authHeaders(two, one.orgID))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-org read: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesSession(t *testing.T) {
	c := newTestAPI(t)
	acct := c.signupAndLogin("carol@example.com", "Carol Co")

	resp := c.post("/v1/auth/logout", nil, authHeaders(acct, ""))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/me/organizations", authHeaders(acct, ""))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("token should be dead after logout: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRefreshRotation(t *testing.T) {
	c := newTestAPI(t)
	acct := c.signupAndLogin("dave@example.com", "Dave Inc")

	resp := c.post("/v1/auth/refresh", map[string]any{"refresh_token": acct.refresh}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: %d", resp.StatusCode)
	}
	rotated := decodeBody(t, resp)
	if rotated["access_token"] == acct.access {
		t.Fatal("refresh must mint a new access token")
	}

	// the old refresh token is single-use
	resp = c.post("/v1/auth/refresh", map[string]any{"refresh_token": acct.refresh}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed refresh: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// so is the old access token
	resp = c.get("/v1/me/organizations", authHeaders(acct, ""))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old access token survived rotation: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestInvitationOverHTTP(t *testing.T) {
	c := newTestAPI(t)
	owner := c.signupAndLogin("owner@example.com", "Main Org")
	joiner := c.signupAndLogin("joiner@example.com", "Side Org")

	resp := c.post("/v1/invitations", map[string]any{
		"email": "joiner@example.com",
		"role":  "viewer",
	}, authHeaders(owner, owner.orgID))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create invitation: %d", resp.StatusCode)
	}
	token := decodeBody(t, resp)["token"].(string)
	if token == "" {
		t.Fatal("missing invitation token")
	}

	resp = c.post("/v1/invitations/accept", map[string]any{"token": token}, authHeaders(joiner, ""))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept invitation: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// the joiner can now read the org's documents
	resp = c.get("/v1/documents", authHeaders(joiner, owner.orgID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("joined org read: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// but as a viewer, reports are out of reach
	resp = c.get("/v1/reports", authHeaders(joiner, owner.orgID))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer reading reports: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// the token is spent; replay reads as never issued
	resp = c.post("/v1/invitations/accept", map[string]any{"token": token}, authHeaders(joiner, ""))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("replayed invitation: %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "invitation_not_found" {
		t.Fatalf("unexpected error code: %v", body["error"])
	}
}

func TestMemberManagementOverHTTP(t *testing.T) {
	c := newTestAPI(t)
	owner := c.signupAndLogin("boss@example.com", "Team Org")
	member := c.signupAndLogin("staff@example.com", "Staff Org")

	// bring the member in as admin
	resp := c.post("/v1/invitations", map[string]any{"email": "staff@example.com", "role": "admin"}, authHeaders(owner, owner.orgID))
	token := decodeBody(t, resp)["token"].(string)
	resp = c.post("/v1/invitations/accept", map[string]any{"token": token}, authHeaders(member, ""))
	resp.Body.Close()

	// an admin cannot mint an owner
	resp = c.post("/v1/invitations", map[string]any{"email": "new-boss@example.com", "role": "owner"}, authHeaders(member, owner.orgID))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("escalating invitation: %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "forbidden" {
		t.Fatalf("unexpected error code: %v", body["error"])
	}

	resp = c.get("/v1/members", authHeaders(owner, owner.orgID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list members: %d", resp.StatusCode)
	}
	if list := decodeBody(t, resp)["members"].([]any); len(list) != 2 {
		t.Fatalf("expected 2 members, got %d", len(list))
	}

	// demote the admin
	resp = c.do(http.MethodPatch, "/v1/members/"+member.userID, map[string]any{"role": "viewer"}, authHeaders(owner, owner.orgID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change role: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// the sole owner cannot remove themselves
	resp = c.do(http.MethodDelete, "/v1/members/"+owner.userID, nil, authHeaders(owner, owner.orgID))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("remove last owner: %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "last_owner" {
		t.Fatalf("unexpected error code: %v", body["error"])
	}

	// removing the demoted member works
	resp = c.do(http.MethodDelete, "/v1/members/"+member.userID, nil, authHeaders(owner, owner.orgID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove member: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/documents", authHeaders(member, owner.orgID))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("removed member still has access: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestErrorBodyShape(t *testing.T) {
	c := newTestAPI(t)
	resp := c.post("/v1/auth/login", map[string]any{"email": "ghost@example.com", "password": "nope-nope-nope"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("login status: %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] == "" || body["message"] == "" {
		t.Fatalf("error body incomplete: %+v", body)
	}

	resp = c.get("/v1/auth/login", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("method not allowed: %d", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != http.MethodPost {
		t.Fatalf("Allow header: %q", allow)
	}
	resp.Body.Close()
}

func TestUnknownFieldRejected(t *testing.T) {
	c := newTestAPI(t)
	resp := c.post("/v1/auth/login", map[string]any{"email": "a@example.com", "password": "x", "extra": true}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field: %d", resp.StatusCode)
	}
	resp.Body.Close()
}
