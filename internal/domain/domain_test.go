package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSite_RefreshInterval(t *testing.T) {
	cases := []struct {
		configured int
		want       int
	}{
		{0, 5},
		{1, 5},
		{2, 5},
		{3, 3},
		{10, 10},
	}
	for _, c := range cases {
		s := Site{AutoRefreshInterval: c.configured}
		if got := s.RefreshInterval(); got != c.want {
			t.Fatalf("interval(%d): want %d, got %d", c.configured, c.want, got)
		}
	}
	if p := (Site{AutoRefreshInterval: 10}).RefreshPeriod(); p != 10*time.Minute {
		t.Fatalf("period: got %v", p)
	}
}

func TestValidateSites(t *testing.T) {
	ok := []Site{
		{Name: "a", URL: "https://a.example.com"},
		{Name: "b", URL: "http://b.example.com:3000"},
	}
	if err := ValidateSites(ok); err != nil {
		t.Fatalf("valid sites rejected: %v", err)
	}

	if err := ValidateSites([]Site{{Name: "", URL: "https://x.example.com"}}); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if err := ValidateSites([]Site{{Name: "x", URL: "not a url"}}); err == nil {
		t.Fatalf("expected error for bad url")
	}
	dup := []Site{
		{Name: "a", URL: "https://a.example.com"},
		{Name: "a", URL: "https://other.example.com"},
	}
	if err := ValidateSites(dup); err == nil {
		t.Fatalf("expected duplicate name error")
	}
}

func TestSite_CredentialsNotSerialised(t *testing.T) {
	b, err := json.Marshal(Site{Name: "a", URL: "https://a", APIKey: "sk-secret", AccessToken: "tok"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"APIKey", "api_key", "AccessToken", "access_token"} {
		if _, ok := m[k]; ok {
			t.Fatalf("credential field %q leaked into JSON: %s", k, b)
		}
	}
}
