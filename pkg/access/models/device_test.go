package models

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"
)

func TestDeviceStatus_Issuable(t *testing.T) {
	tests := []struct {
		status   DeviceStatus
		issuable bool
	}{
		{DeviceStatusPendingKey, true},
		{DeviceStatusActive, true},
		{DeviceStatusRevoked, false},
		{DeviceStatus("unknown"), false},
	}
	for _, tt := range tests {
		if got := tt.status.Issuable(); got != tt.issuable {
			t.Errorf("Issuable(%s) = %v, want %v", tt.status, got, tt.issuable)
		}
	}
}

func TestUserDevice_DecodePublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	t.Run("valid key", func(t *testing.T) {
		d := &UserDevice{ID: "d1", PublicKey: base64.RawURLEncoding.EncodeToString(pub)}
		raw, err := d.DecodePublicKey()
		if err != nil {
			t.Fatalf("DecodePublicKey failed: %v", err)
		}
		if len(raw) != 32 {
			t.Errorf("decoded length = %d, want 32", len(raw))
		}
	})

	t.Run("empty key", func(t *testing.T) {
		d := &UserDevice{ID: "d1"}
		if _, err := d.DecodePublicKey(); err == nil {
			t.Error("expected error for empty key")
		}
	})

	t.Run("wrong length", func(t *testing.T) {
		d := &UserDevice{ID: "d1", PublicKey: base64.RawURLEncoding.EncodeToString([]byte("short"))}
		if _, err := d.DecodePublicKey(); err == nil {
			t.Error("expected error for short key")
		}
	})

	t.Run("not base64url", func(t *testing.T) {
		d := &UserDevice{ID: "d1", PublicKey: "!!!not-base64url!!!"}
		if _, err := d.DecodePublicKey(); err == nil {
			t.Error("expected error for invalid encoding")
		}
	})
}
