package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/cards/CARD-001":            "/v1/cards/:number",
		"/v1/cards/CARD-001/status":     "/v1/cards/:number/status",
		"/v1/visitors/01ABC":            "/v1/visitors/:id",
		"/v1/visitors/sweep":            "/v1/visitors/sweep",
		"/v1/queue/tickets/01XYZ/complete": "/v1/queue/tickets/:id/complete",
		"/v1/queue/tickets/01XYZ/cancel":   "/v1/queue/tickets/:id/cancel",
		"/v1/queue/display":             "/v1/queue/display",
		"/v1/presence?as_of=x":          "/v1/presence",
		"/v1/taps":                      "/v1/taps",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
