package core

import (
	"fmt"
	"strings"
)

// CompositeToken is the "|" separated token handed out by the enforcement
// endpoint, e.g. "<session>|r=eu-west-1|sid=<sid>|...".
type CompositeToken struct {
	Raw          string
	SessionToken string
	Sid          string
	Params       map[string]string
}

func ParseToken(raw string) (CompositeToken, error) {
	fields := strings.Split(raw, "|")
	if len(fields) < 2 {
		return CompositeToken{}, fmt.Errorf("%w - expected at least 2 fields, got %d", ErrTokenMalformed, len(fields))
	}

	// sid is read positionally from the second field
	_, sid, ok := strings.Cut(fields[1], "=")
	if !ok {
		return CompositeToken{}, fmt.Errorf("%w - sid field %q has no value", ErrTokenMalformed, fields[1])
	}

	params := make(map[string]string, len(fields)-1)
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, "=")
		if ok {
			params[key] = value
		}
	}

	return CompositeToken{
		Raw:          raw,
		SessionToken: fields[0],
		Sid:          sid,
		Params:       params,
	}, nil
}

func (t CompositeToken) Referer() string {
	return fmt.Sprintf("%s/fc/assets/ec-game-core/game-core/%s/standard/index.html?session=%s",
		APIURL, GameCoreVersion, strings.ReplaceAll(t.Raw, "|", "&"))
}

// Suppressed tokens were issued without a challenge.
func (t CompositeToken) Suppressed() bool {
	return t.Params["sup"] == "1"
}
