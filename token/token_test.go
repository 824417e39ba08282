package token

import (
	"errors"
	"testing"
	"time"
)

func TestIssueValidate(t *testing.T) {
	secret := []byte("s3cret")

	tok, err := Issue(secret, "editor", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := Validate(secret, tok)
	if err != nil {
		t.Fatal(err)
	}
	if sub != "editor" {
		t.Fatalf("expected subject 'editor', got %q", sub)
	}

	t.Run("wrong secret", func(t *testing.T) {
		if _, err := Validate([]byte("other"), tok); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		old, _ := Issue(secret, "editor", -time.Minute)
		if _, err := Validate(secret, old); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid, got %v", err)
		}
	})
}

func TestFromHeader(t *testing.T) {
	if tok, ok := FromHeader("Bearer abc"); !ok || tok != "abc" {
		t.Fatalf("expected abc, got %q %v", tok, ok)
	}
	if _, ok := FromHeader("Basic abc"); ok {
		t.Fatal("expected Basic to be rejected")
	}
	if _, ok := FromHeader("Bearer "); ok {
		t.Fatal("expected empty bearer to be rejected")
	}
}
