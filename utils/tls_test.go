package utils

import (
	"strings"
	"testing"
)

func TestNewClientProfiles(t *testing.T) {
	for _, name := range ProfileNames() {
		client, err := NewClient(ClientConfig{Profile: name, TimeoutSeconds: 5})
		if err != nil {
			t.Errorf("NewClient(%s): %v", name, err)
			continue
		}
		if client == nil {
			t.Errorf("NewClient(%s) returned nil", name)
		}
	}
}

func TestNewClientUnknownProfile(t *testing.T) {
	_, err := NewClient(ClientConfig{Profile: "netscape_4"})
	if err == nil {
		t.Fatal("expected an error for an unknown profile")
	}
	if !strings.Contains(err.Error(), "chrome_117, chrome_120, chrome_124, chrome_133") {
		t.Errorf("error does not list known profiles: %v", err)
	}
}

func TestSharedClient(t *testing.T) {
	ConfigureClient(ClientConfig{Profile: "chrome_124", TimeoutSeconds: 5})
	t.Cleanup(func() { ConfigureClient(DefaultClientConfig()) })

	a, err := SharedClient()
	if err != nil {
		t.Fatal(err)
	}
	b, err := SharedClient()
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("shared client was rebuilt")
	}

	ConfigureClient(ClientConfig{Profile: "missing"})
	if _, err := SharedClient(); err == nil {
		t.Error("expected the new config to be used")
	}
}
