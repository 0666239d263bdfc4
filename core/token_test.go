package core

import (
	"errors"
	"testing"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		raw          string
		sessionToken string
		sid          string
	}{
		{"TKN|sid=SID|rest", "TKN", "SID"},
		{"a.b|sid=x|r=eu-west-1|meta=3|pk=KEY", "a.b", "x"},
		{"TKN|sid=", "TKN", ""},
		// the sid is positional, whatever the key of the second field
		{"TKN|r=A|sid=SID|extra", "TKN", "A"},
	}

	for _, tt := range tests {
		token, err := ParseToken(tt.raw)
		if err != nil {
			t.Fatalf("ParseToken(%q): %v", tt.raw, err)
		}
		if token.SessionToken != tt.sessionToken || token.Sid != tt.sid {
			t.Errorf("ParseToken(%q) = %q, %q", tt.raw, token.SessionToken, token.Sid)
		}
		if token.Raw != tt.raw {
			t.Errorf("raw = %q", token.Raw)
		}
	}
}

func TestParseTokenMalformed(t *testing.T) {
	for _, raw := range []string{"", "TKN", "TKN|sid", "TKN|nothing-here|sid=x"} {
		if _, err := ParseToken(raw); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("ParseToken(%q) = %v", raw, err)
		}
	}
}

func TestTokenReferer(t *testing.T) {
	token, err := ParseToken("abc.def|r=us-east-1|sid=1|lang=en")
	if err != nil {
		t.Fatal(err)
	}
	want := "https://client-api.arkoselabs.com/fc/assets/ec-game-core/game-core/1.13.0/standard/index.html?session=abc.def&r=us-east-1&sid=1&lang=en"
	if got := token.Referer(); got != want {
		t.Errorf("Referer() = %q", got)
	}
}

func TestTokenSuppressed(t *testing.T) {
	suppressed, _ := ParseToken("TKN|r=us-east-1|sup=1|rid=9")
	if !suppressed.Suppressed() {
		t.Error("expected suppressed token")
	}
	plain, _ := ParseToken("TKN|r=us-east-1|meta=3")
	if plain.Suppressed() {
		t.Error("unexpected suppressed token")
	}
}
