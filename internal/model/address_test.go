package model_test

import (
	"encoding/json"
	"testing"

	"github.com/sagenet/sage-hub/internal/model"
)

func TestParseAddress_withPort(t *testing.T) {
	addr, err := model.ParseAddress("hub.sage.net:8080:AGENT:abc123")
	if err != nil {
		t.Fatal(err)
	}
	if addr.ServerPort != "hub.sage.net:8080" {
		t.Errorf("server_port: got %q", addr.ServerPort)
	}
	if addr.Domain != model.DomainAgent {
		t.Errorf("domain: got %q", addr.Domain)
	}
	if addr.Entity != "abc123" {
		t.Errorf("entity: got %q", addr.Entity)
	}
}

func TestParseAddress_withoutPort(t *testing.T) {
	addr, err := model.ParseAddress("hub.sage.net:FRAGMENT:xyz")
	if err != nil {
		t.Fatal(err)
	}
	if addr.ServerPort != "hub.sage.net" {
		t.Errorf("server_port: got %q", addr.ServerPort)
	}
	if addr.Domain != model.DomainFragment {
		t.Errorf("domain: got %q", addr.Domain)
	}
}

func TestParseAddress_hub(t *testing.T) {
	addr, err := model.ParseAddress("hub.sage.net:8080:HUB")
	if err != nil {
		t.Fatal(err)
	}
	if !addr.IsHub() {
		t.Error("expected a hub address")
	}
	if addr.Entity != "" {
		t.Errorf("hub entity should be empty, got %q", addr.Entity)
	}
}

func TestParseAddress_errors(t *testing.T) {
	for _, raw := range []string{"", "justahost", "host:NOTADOMAIN:x", ":8080:AGENT:x"} {
		if _, err := model.ParseAddress(raw); err == nil {
			t.Errorf("ParseAddress(%q) should fail", raw)
		}
	}
}

func TestAddress_roundTrip(t *testing.T) {
	addr := model.FragmentAddress("hub.sage.net:8080", "xyz789")
	s := addr.String()
	if s != "hub.sage.net:8080:FRAGMENT:xyz789" {
		t.Errorf("String(): got %q", s)
	}
	parsed, err := model.ParseAddress(s)
	if err != nil {
		t.Fatal(err)
	}
	if parsed != addr {
		t.Errorf("round trip: got %+v, want %+v", parsed, addr)
	}
}

func TestParseDomain_caseInsensitive(t *testing.T) {
	d, err := model.ParseDomain("fragment")
	if err != nil {
		t.Fatal(err)
	}
	if d != model.DomainFragment {
		t.Errorf("got %q", d)
	}
	if _, err := model.ParseDomain("WIDGET"); err == nil {
		t.Error("unknown domain should fail")
	}
}

func TestAddress_unmarshalObjectAndString(t *testing.T) {
	var fromObj model.Address
	if err := json.Unmarshal([]byte(`{"server_port":"h:1","domain":"TAG","entity":"t1"}`), &fromObj); err != nil {
		t.Fatal(err)
	}
	var fromStr model.Address
	if err := json.Unmarshal([]byte(`"h:1:TAG:t1"`), &fromStr); err != nil {
		t.Fatal(err)
	}
	if fromObj != fromStr {
		t.Errorf("object form %+v != string form %+v", fromObj, fromStr)
	}
}
