package security

import "testing"

func TestClientPolicy(t *testing.T) {
	expected := "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; connect-src 'self'; frame-ancestors 'none'"
	if got := ClientPolicy().String(); got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}

func TestCSPSetReplacesAndAddAppends(t *testing.T) {
	policy := NewCSP().
		DefaultSrc(Self).
		ScriptSrc("cdn.example.com").
		ScriptSrc(Self, " ").
		Add("connect-src", Self).
		Add("CONNECT-SRC", "ws://localhost:9339").
		Set("upgrade-insecure-requests")

	expected := "default-src 'self'; script-src 'self'; connect-src 'self' ws://localhost:9339; upgrade-insecure-requests"
	if got := policy.String(); got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}

func TestNilPolicy(t *testing.T) {
	var policy *CSP
	if policy.String() != "" {
		t.Fatalf("expected empty policy")
	}
}
