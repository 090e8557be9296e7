package doiver_test

import (
	"errors"
	"testing"
	"time"

	"doiver/internal/doiver"
)

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		label string
		want  int64
	}{
		{"3", 3},
		{"v3", 3},
		{"V3", 3},
		{"3/", 3},
		{"v3/", 3},
		{" 3 ", 3},
		{"1", 1},
		{"", 0},
		{"0", 0},
		{"-2", 0},
		{"abc", 0},
		{"v", 0},
		{"3.5", 0},
		{"v 3", 0},
	}
	for _, tt := range tests {
		if got := doiver.NormalizeVersion(tt.label); got != tt.want {
			t.Errorf("NormalizeVersion(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}

// seedHistory publishes alpha and appends versions up to v3.
func seedHistory(t *testing.T, f *fixture) {
	t.Helper()
	if _, err := f.svc.Publish("alpha", "Alpha", "v1-text"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	for _, content := range []string{"v2-text", "v3 <b>markup</b> & \"quotes\"\n"} {
		f.clock.Advance(10 * time.Second)
		if _, err := f.svc.RecordUpdate("alpha", content, "publish"); err != nil {
			t.Fatalf("RecordUpdate(%q) error = %v", content, err)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Run("empty label resolves to current", func(t *testing.T) {
		f := newFixture(t, false)
		seedHistory(t, f)

		article, snap, err := f.svc.Resolve("alpha", "")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if snap.Version != 3 {
			t.Errorf("version = %d, want 3", snap.Version)
		}
		if article.CurrentVersion != 3 {
			t.Errorf("CurrentVersion = %d, want 3", article.CurrentVersion)
		}
	})

	t.Run("label forms resolve to the same snapshot", func(t *testing.T) {
		f := newFixture(t, false)
		seedHistory(t, f)

		for _, label := range []string{"2", "v2", "2/", "v2/"} {
			_, snap, err := f.svc.Resolve("alpha", label)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", label, err)
			}
			if snap.Version != 2 {
				t.Errorf("Resolve(%q) version = %d, want 2", label, snap.Version)
			}
			if snap.Content != "v2-text" {
				t.Errorf("Resolve(%q) content = %q, want %q", label, snap.Content, "v2-text")
			}
		}
	})

	t.Run("content round-trips byte for byte", func(t *testing.T) {
		f := newFixture(t, false)
		seedHistory(t, f)

		_, snap, err := f.svc.Resolve("alpha", "3")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		want := "v3 <b>markup</b> & \"quotes\"\n"
		if snap.Content != want {
			t.Errorf("content = %q, want %q", snap.Content, want)
		}
	})

	t.Run("unknown or malformed labels fall back to current", func(t *testing.T) {
		f := newFixture(t, false)
		seedHistory(t, f)

		for _, label := range []string{"99", "garbage", "0", "-1"} {
			_, snap, err := f.svc.Resolve("alpha", label)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", label, err)
			}
			if snap.Version != 3 {
				t.Errorf("Resolve(%q) version = %d, want 3 (fallback)", label, snap.Version)
			}
		}
	})

	t.Run("unknown slug is not found", func(t *testing.T) {
		f := newFixture(t, false)

		_, _, err := f.svc.Resolve("missing", "")
		if !errors.Is(err, doiver.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestFetchVersion(t *testing.T) {
	f := newFixture(t, false)
	seedHistory(t, f)

	article, _, err := f.svc.Resolve("alpha", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	t.Run("returns the requested snapshot", func(t *testing.T) {
		snap, err := f.svc.FetchVersion(article.ID, "v2")
		if err != nil {
			t.Fatalf("FetchVersion() error = %v", err)
		}
		if snap.Version != 2 || snap.Content != "v2-text" {
			t.Errorf("snapshot = v%d %q, want v2 %q", snap.Version, snap.Content, "v2-text")
		}
	})

	t.Run("unknown article", func(t *testing.T) {
		_, err := f.svc.FetchVersion("nope", "1")
		if !errors.Is(err, doiver.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("unknown version does not fall back", func(t *testing.T) {
		_, err := f.svc.FetchVersion(article.ID, "99")
		if !errors.Is(err, doiver.ErrVersionNotFound) {
			t.Errorf("error = %v, want ErrVersionNotFound", err)
		}
	})

	t.Run("malformed label", func(t *testing.T) {
		_, err := f.svc.FetchVersion(article.ID, "garbage")
		if !errors.Is(err, doiver.ErrVersionNotFound) {
			t.Errorf("error = %v, want ErrVersionNotFound", err)
		}
	})
}

func TestDOIGenerator(t *testing.T) {
	gen := doiver.NewDOIGenerator("10.5555", fixedIDs{"abc"})
	if got := gen.Mint(); got != "10.5555/abc" {
		t.Errorf("Mint() = %q, want %q", got, "10.5555/abc")
	}
}

type fixedIDs struct{ id string }

func (f fixedIDs) New() string { return f.id }
