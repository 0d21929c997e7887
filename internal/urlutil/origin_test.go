package urlutil

import "testing"

func TestOrigin(t *testing.T) {
	cases := map[string]string{
		"https://Example.com/":               "https://example.com",
		"https://example.com:443/console":    "https://example.com",
		"http://example.com:80":              "http://example.com",
		"http://example.com:3000/panel?x=1":  "http://example.com:3000",
		"  HTTPS://API.example.com/v1#frag ": "https://api.example.com",
	}
	for in, want := range cases {
		got, err := Origin(in)
		if err != nil {
			t.Fatalf("Origin(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("Origin(%q): want %q, got %q", in, want, got)
		}
	}

	if _, err := Origin("example.com/path"); err == nil {
		t.Fatalf("expected error for relative url")
	}
}

func TestSameOrigin(t *testing.T) {
	if !SameOrigin("https://a.example.com/", "https://A.example.com:443/dashboard") {
		t.Fatalf("expected same origin")
	}
	if SameOrigin("https://a.example.com", "http://a.example.com") {
		t.Fatalf("scheme must matter")
	}
	if SameOrigin("::bad", "https://a.example.com") {
		t.Fatalf("unparsable url must not match")
	}
}

func TestJoin(t *testing.T) {
	if got := Join("https://a.example.com/", "/api/user/self"); got != "https://a.example.com/api/user/self" {
		t.Fatalf("join: %q", got)
	}
}
