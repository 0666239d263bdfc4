package utils

import (
	"bytes"
	"strconv"
	"testing"
	"time"
)

func fixedSalt() *bytes.Reader {
	return bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8})
}

func TestCipherEncryptMatchesOpenSSL(t *testing.T) {
	// openssl enc -aes-256-cbc -md md5 -S 0102030405060708 -pass pass:TKN
	want := `{"ct":"tNVzlKGhQttdp+mdf1+ddw==","iv":"b6daa60dff37ce60bc17e1d0f71a8efa","s":"0102030405060708"}`

	got, err := Cipher{Rand: fixedSalt()}.Encrypt(`[{"index":2}]`, "TKN")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if got != want {
		t.Errorf("Encrypt = %s\nwant %s", got, want)
	}
}

func TestCipherDeterministicForFixedSalt(t *testing.T) {
	a, err := Cipher{Rand: fixedSalt()}.Encrypt("payload", "key")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Cipher{Rand: fixedSalt()}.Encrypt("payload", "key")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("same inputs gave %s and %s", a, b)
	}
}

func TestCipherDecrypt(t *testing.T) {
	c := Cipher{}
	for _, plaintext := range []string{"", `[{"index":0}]`, "exactly sixteen!", `{"sc":[147,307]}`} {
		envelope, err := c.Encrypt(plaintext, "session.token")
		if err != nil {
			t.Fatal(err)
		}
		got, err := c.Decrypt(envelope, "session.token")
		if err != nil {
			t.Fatalf("Decrypt(%s): %v", envelope, err)
		}
		if got != plaintext {
			t.Errorf("Decrypt = %q, want %q", got, plaintext)
		}
	}
}

func TestCipherDecryptWrongKey(t *testing.T) {
	envelope, err := Cipher{Rand: fixedSalt()}.Encrypt(`[{"index":2}]`, "TKN")
	if err != nil {
		t.Fatal(err)
	}
	if got, err := (Cipher{}).Decrypt(envelope, "other"); err == nil && got == `[{"index":2}]` {
		t.Error("decrypted with the wrong key")
	}
	if _, err := (Cipher{}).Decrypt("not json", "TKN"); err == nil {
		t.Error("expected a parse error")
	}
}

func TestRequestID(t *testing.T) {
	c := Cipher{}
	requestID, err := RequestID(c, "abc")
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decrypt(requestID, "REQUESTEDabcID")
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"sc":[147,307]}` {
		t.Errorf("request id payload = %s", got)
	}
}

func TestNewRelicTime(t *testing.T) {
	before := time.Now().UnixMilli()
	stamp := NewRelicTime()
	after := time.Now().UnixMilli()

	n, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		t.Fatalf("NewRelicTime = %q: %v", stamp, err)
	}
	if n < before || n > after {
		t.Errorf("NewRelicTime = %d, not within [%d, %d]", n, before, after)
	}
}
