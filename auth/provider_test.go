package auth

import (
	"context"
	"errors"
	"testing"
)

func TestBearerProvider(t *testing.T) {
	p := NewBearerProvider("  tok-123  ")

	if !p.Valid() {
		t.Error("Valid() = false, want true")
	}
	h, err := p.Headers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := h.Get("Authorization"); got != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok-123")
	}
}

func TestBearerProvider_Empty(t *testing.T) {
	p := NewBearerProvider("")

	if p.Valid() {
		t.Error("Valid() = true, want false")
	}
	if _, err := p.Headers(context.Background()); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Headers() = %v, want ErrMissingCredentials", err)
	}
}

func TestAPIKeyProvider(t *testing.T) {
	p := NewAPIKeyProvider(APIKeyConfig{Key: "k-42"})

	if !p.Valid() {
		t.Error("Valid() = false, want true")
	}
	h, err := p.Headers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := h.Get("X-API-Key"); got != "k-42" {
		t.Errorf("X-API-Key = %q, want %q", got, "k-42")
	}
}

func TestAPIKeyProvider_CustomHeader(t *testing.T) {
	p := NewAPIKeyProvider(APIKeyConfig{Key: "k-42", HeaderName: "X-Tenant-Key"})

	h, err := p.Headers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := h.Get("X-Tenant-Key"); got != "k-42" {
		t.Errorf("X-Tenant-Key = %q, want %q", got, "k-42")
	}
}

func TestAPIKeyProvider_Empty(t *testing.T) {
	p := NewAPIKeyProvider(APIKeyConfig{})

	if p.Valid() {
		t.Error("Valid() = true, want false")
	}
	if _, err := p.Headers(context.Background()); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Headers() = %v, want ErrMissingCredentials", err)
	}
}
