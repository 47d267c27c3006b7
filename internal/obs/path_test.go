package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"/v1/members/01HZXK":          "/v1/members/:id",
		"/v1/invitations/abc":         "/v1/invitations/:id",
		"/v1/documents/abc":           "/v1/documents/:id",
		"/v1/reports/r1?format=json":  "/v1/reports/:id",
		"/v1/members":                 "/v1/members",
		"/v1/members/":                "/v1/members/",
		"/v1/members/a/b":             "/v1/members/a/b",
		"/healthz":                    "/healthz",
		"":                            "/",
		"/v1/documents?page=2":        "/v1/documents",
	}
	for in, want := range cases {
		if got := CanonicalPath(in); got != want {
			t.Errorf("CanonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}
