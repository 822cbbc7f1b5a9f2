package locator

import (
	"net/url"
	"strings"
	"testing"
)

func TestResolve_ExistingID(t *testing.T) {
	t.Parallel()

	id, resolved, minted, err := Resolve("https://cards.local/loyalty?card=abc-123")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if minted {
		t.Fatalf("id was present, nothing should be minted")
	}
	if id != "abc-123" {
		t.Fatalf("id = %q, want abc-123", id)
	}
	if !strings.Contains(resolved, "card=abc-123") {
		t.Fatalf("resolved url lost the id: %s", resolved)
	}
}

func TestResolve_MintsAndWritesBack(t *testing.T) {
	t.Parallel()

	id, resolved, minted, err := Resolve("https://cards.local/loyalty?theme=dark")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !minted {
		t.Fatalf("expected a minted id")
	}
	if id == "" {
		t.Fatalf("empty minted id")
	}

	u, err := url.Parse(resolved)
	if err != nil {
		t.Fatalf("resolved url unparsable: %v", err)
	}
	if got := u.Query().Get("card"); got != id {
		t.Fatalf("rewritten url carries %q, want %q", got, id)
	}
	if got := u.Query().Get("theme"); got != "dark" {
		t.Fatalf("unrelated query state dropped: %s", resolved)
	}

	// resolving the rewritten url again must return the same id
	id2, _, minted2, err := Resolve(resolved)
	if err != nil {
		t.Fatalf("second Resolve error: %v", err)
	}
	if minted2 || id2 != id {
		t.Fatalf("Resolve is not idempotent: got %q (minted=%v), want %q", id2, minted2, id)
	}
}

func TestResolve_BadURL(t *testing.T) {
	t.Parallel()

	if _, _, _, err := Resolve("://not-a-url"); err == nil {
		t.Fatalf("expected error for malformed url")
	}
}

func TestShareLink_OnlyCardParam(t *testing.T) {
	t.Parallel()

	link, err := ShareLink("https://cards.local/loyalty?theme=dark&card=old", "abc-123")
	if err != nil {
		t.Fatalf("ShareLink error: %v", err)
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("share link unparsable: %v", err)
	}
	if u.Host != "cards.local" || u.Path != "/loyalty" {
		t.Fatalf("share link changed origin or path: %s", link)
	}
	if got := u.Query().Get("card"); got != "abc-123" {
		t.Fatalf("share link card = %q", got)
	}
	if u.Query().Get("theme") != "" {
		t.Fatalf("share link must drop unrelated query state: %s", link)
	}
}

func TestNewID_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if id == "" {
			t.Fatalf("empty id")
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
