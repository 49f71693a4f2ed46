package db

import (
	"encoding/base64"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func setupTestKey(t *testing.T) {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	encryptionKey = key
	t.Cleanup(func() { encryptionKey = nil })
}

// sealAndOpen runs state through the encrypted row path and back.
func sealAndOpen(t *testing.T, state map[string]any) (string, map[string]any) {
	t.Helper()
	row, err := stateRow("npm:foo", true, state)
	if err != nil {
		t.Fatalf("stateRow failed: %v", err)
	}
	if row.EncryptedData == nil {
		t.Fatal("encrypted state was not sealed")
	}
	plain, err := decrypt(*row.EncryptedData)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	got, err := decodeState(plain)
	if err != nil {
		t.Fatalf("decodeState failed: %v", err)
	}
	return *row.EncryptedData, got
}

func TestSealedStateRoundTrip(t *testing.T) {
	setupTestKey(t)

	tests := []struct {
		name  string
		state map[string]any
	}{
		{"no state", nil},
		{"empty document", map[string]any{}},
		{"dotted key document", map[string]any{"accounts": map[string]any{"main": map[string]any{"index": 0.0}}}},
		{"mixed values", map[string]any{"seen": true, "tags": []any{"a", "b"}, "note": nil}},
		{"unicode", map[string]any{"greeting": "こんにちは世界"}},
		{"large document", map[string]any{"blob": strings.Repeat("a", 10000)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := sealAndOpen(t, tt.state)
			if !reflect.DeepEqual(got, tt.state) {
				t.Errorf("round trip = %#v, want %#v", got, tt.state)
			}
		})
	}
}

func TestSealedStateFormat(t *testing.T) {
	setupTestKey(t)
	state := map[string]any{"secret": "mnemonic words"}

	a, _ := sealAndOpen(t, state)
	b, _ := sealAndOpen(t, state)

	if !strings.HasPrefix(a, "v1:") {
		t.Fatalf("sealed state %q lacks the v1: prefix", a)
	}
	if _, err := base64.StdEncoding.DecodeString(a[3:]); err != nil {
		t.Errorf("sealed payload is not base64: %v", err)
	}
	if strings.Contains(a, "mnemonic") {
		t.Error("plaintext visible in sealed state")
	}
	if a == b {
		t.Error("two writes of the same state sealed identically")
	}
}

func TestOpenDamagedState(t *testing.T) {
	setupTestKey(t)

	sealed, err := encrypt([]byte(`{"counter":1}`))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	tampered := []byte(sealed)
	tampered[len(tampered)-2] ^= 0xff

	tests := []struct {
		name       string
		ciphertext string
	}{
		{"not base64", "v1:not-valid-base64!!!"},
		{"shorter than a nonce", "v1:" + base64.StdEncoding.EncodeToString([]byte("short"))},
		{"tampered", string(tampered)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decrypt(tt.ciphertext); err == nil {
				t.Error("expected error for damaged state")
			}
		})
	}
}

func TestInitEncryptionKey(t *testing.T) {
	t.Cleanup(func() { encryptionKey = nil })

	valid := base64.StdEncoding.EncodeToString(make([]byte, 32))
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", valid, false},
		{"empty", "", true},
		{"not base64", "!!!", true},
		{"wrong length", base64.StdEncoding.EncodeToString(make([]byte, 16)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encryptionKey = nil
			err := InitEncryptionKey(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("InitEncryptionKey = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(encryptionKey) != 32 {
				t.Errorf("key length = %d", len(encryptionKey))
			}
		})
	}
}

func TestSealStateWithoutKey(t *testing.T) {
	encryptionKey = nil
	if _, err := stateRow("npm:foo", true, map[string]any{"x": 1.0}); !errors.Is(err, ErrNoEncryptionKey) {
		t.Errorf("err = %v, want ErrNoEncryptionKey", err)
	}
	if _, err := stateRow("npm:foo", false, map[string]any{"x": 1.0}); err != nil {
		t.Errorf("plain state needs no key: %v", err)
	}
}
