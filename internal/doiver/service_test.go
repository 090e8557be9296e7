package doiver_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"doiver/internal/archive"
	"doiver/internal/config"
	"doiver/internal/database"
	"doiver/internal/debounce"
	"doiver/internal/doiver"
	"doiver/internal/encryption"
	"doiver/internal/testutil"
)

type fixture struct {
	svc     *doiver.Service
	store   *database.SQLiteStore
	clock   *testutil.StubClock
	archive *archive.MemoryArchive
}

// newFixture wires a Service against an in-memory store, a stub clock, and
// a 5 second debounce window. withArchive additionally attaches an in-memory
// archive and the test encryptor.
func newFixture(t *testing.T, withArchive bool) *fixture {
	t.Helper()

	store, err := database.NewStoreFromConfig(config.DatabaseConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock := testutil.NewStubClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	deb := debounce.NewMemoryDebouncer(5*time.Second, clock)
	doigen := doiver.NewDOIGenerator("10.1234", testutil.NewStubIDGenerator("suffix"))

	var arc *archive.MemoryArchive
	var arcIface doiver.Archive
	var enc doiver.Encryptor
	if withArchive {
		arc = archive.NewMemoryArchive("test")
		arcIface = arc
		enc = encryption.NewTestEncryptor()
	}

	svc := doiver.NewService(store, deb, arcIface, enc, doigen,
		doiver.NewNopLogger(), clock, testutil.NewStubIDGenerator("id"))

	return &fixture{svc: svc, store: store, clock: clock, archive: arc}
}

func TestPublish(t *testing.T) {
	t.Run("mints doi and seeds version 1", func(t *testing.T) {
		f := newFixture(t, false)

		article, err := f.svc.Publish("alpha", "Alpha", "v1-text")
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}

		if !article.DOI.Valid || article.DOI.String == "" {
			t.Errorf("DOI not assigned: %+v", article.DOI)
		}
		if !strings.HasPrefix(article.DOI.String, "10.1234/") {
			t.Errorf("DOI = %q, want prefix 10.1234/", article.DOI.String)
		}
		if article.CurrentVersion != 1 {
			t.Errorf("CurrentVersion = %d, want 1", article.CurrentVersion)
		}

		snap, err := f.store.FindSnapshot(article.ID, 1)
		if err != nil {
			t.Fatalf("FindSnapshot() error = %v", err)
		}
		if snap == nil {
			t.Fatal("seed snapshot missing")
		}
		if snap.Content != "v1-text" {
			t.Errorf("seed content = %q, want %q", snap.Content, "v1-text")
		}
		if snap.Checksum != doiver.Checksum("v1-text") {
			t.Errorf("seed checksum = %q, want %q", snap.Checksum, doiver.Checksum("v1-text"))
		}
	})

	t.Run("second publish keeps the original doi", func(t *testing.T) {
		f := newFixture(t, false)

		first, err := f.svc.Publish("alpha", "Alpha", "v1-text")
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		second, err := f.svc.Publish("alpha", "Alpha", "other text")
		if err != nil {
			t.Fatalf("second Publish() error = %v", err)
		}

		if second.DOI.String != first.DOI.String {
			t.Errorf("DOI changed on re-publish: %q != %q", second.DOI.String, first.DOI.String)
		}
		if second.CurrentVersion != 1 {
			t.Errorf("CurrentVersion = %d, want 1", second.CurrentVersion)
		}

		// The re-delivered content must not have touched the history.
		snap, err := f.store.FindSnapshot(second.ID, 1)
		if err != nil {
			t.Fatalf("FindSnapshot() error = %v", err)
		}
		if snap.Content != "v1-text" {
			t.Errorf("seed content = %q, want %q", snap.Content, "v1-text")
		}
	})

	t.Run("creates an article for an unknown slug", func(t *testing.T) {
		f := newFixture(t, false)

		article, err := f.svc.Publish("fresh", "Fresh", "body")
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if article.Slug != "fresh" || article.Title != "Fresh" {
			t.Errorf("article = %+v, want slug=fresh title=Fresh", article)
		}

		found, err := f.store.FindArticleBySlug("fresh")
		if err != nil {
			t.Fatalf("FindArticleBySlug() error = %v", err)
		}
		if found == nil {
			t.Fatal("article not persisted")
		}
	})
}

func TestRecordUpdate(t *testing.T) {
	t.Run("appends contiguous versions", func(t *testing.T) {
		f := newFixture(t, false)
		if _, err := f.svc.Publish("alpha", "Alpha", "v1-text"); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}

		f.clock.Advance(10 * time.Second)
		v, err := f.svc.RecordUpdate("alpha", "v2-text", "publish")
		if err != nil {
			t.Fatalf("RecordUpdate() error = %v", err)
		}
		if v != 2 {
			t.Fatalf("version = %d, want 2", v)
		}

		f.clock.Advance(10 * time.Second)
		v, err = f.svc.RecordUpdate("alpha", "v3-text", "publish")
		if err != nil {
			t.Fatalf("RecordUpdate() error = %v", err)
		}
		if v != 3 {
			t.Fatalf("version = %d, want 3", v)
		}

		_, snapshots, err := f.svc.ListVersions("alpha")
		if err != nil {
			t.Fatalf("ListVersions() error = %v", err)
		}
		want := []int64{1, 2, 3}
		if len(snapshots) != len(want) {
			t.Fatalf("got %d snapshots, want %d", len(snapshots), len(want))
		}
		for i, snap := range snapshots {
			if snap.Version != want[i] {
				t.Errorf("snapshots[%d].Version = %d, want %d", i, snap.Version, want[i])
			}
		}
	})

	t.Run("identical content is skipped", func(t *testing.T) {
		f := newFixture(t, false)
		if _, err := f.svc.Publish("alpha", "Alpha", "same text"); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}

		f.clock.Advance(10 * time.Second)
		v, err := f.svc.RecordUpdate("alpha", "same text", "publish")
		if err != nil {
			t.Fatalf("RecordUpdate() error = %v", err)
		}
		if v != 0 {
			t.Errorf("version = %d, want 0 (silent skip)", v)
		}
	})

	t.Run("unpublished article is skipped", func(t *testing.T) {
		f := newFixture(t, false)

		v, err := f.svc.RecordUpdate("nope", "body", "publish")
		if err != nil {
			t.Fatalf("RecordUpdate() error = %v", err)
		}
		if v != 0 {
			t.Errorf("version = %d, want 0", v)
		}
	})

	t.Run("pre-publish statuses are skipped", func(t *testing.T) {
		f := newFixture(t, false)
		if _, err := f.svc.Publish("alpha", "Alpha", "v1-text"); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		f.clock.Advance(10 * time.Second)

		for _, status := range []string{"draft", "auto-draft", "inherit", "Draft"} {
			v, err := f.svc.RecordUpdate("alpha", "new body "+status, status)
			if err != nil {
				t.Fatalf("RecordUpdate(%q) error = %v", status, err)
			}
			if v != 0 {
				t.Errorf("RecordUpdate(%q) = %d, want 0", status, v)
			}
		}
	})

	t.Run("debounce suppresses rapid duplicate notifications", func(t *testing.T) {
		f := newFixture(t, false)
		if _, err := f.svc.Publish("alpha", "Alpha", "v1-text"); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}

		f.clock.Advance(10 * time.Second)
		if v, _ := f.svc.RecordUpdate("alpha", "v2-text", "publish"); v != 2 {
			t.Fatalf("first update version = %d, want 2", v)
		}

		// Second notification inside the window.
		f.clock.Advance(time.Second)
		v, err := f.svc.RecordUpdate("alpha", "v3-text", "publish")
		if err != nil {
			t.Fatalf("RecordUpdate() error = %v", err)
		}
		if v != 0 {
			t.Errorf("version = %d, want 0 (suppressed)", v)
		}

		// Past the window the same save is accepted.
		f.clock.Advance(5 * time.Second)
		v, err = f.svc.RecordUpdate("alpha", "v3-text", "publish")
		if err != nil {
			t.Fatalf("RecordUpdate() error = %v", err)
		}
		if v != 3 {
			t.Errorf("version = %d, want 3", v)
		}
	})

	t.Run("a skipped save does not start the debounce window", func(t *testing.T) {
		f := newFixture(t, false)
		if _, err := f.svc.Publish("alpha", "Alpha", "v1-text"); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		f.clock.Advance(10 * time.Second)

		// No-diff save: skipped before the debounce guard runs.
		if v, _ := f.svc.RecordUpdate("alpha", "v1-text", "publish"); v != 0 {
			t.Fatal("no-diff save was not skipped")
		}

		// A real save immediately after must still be accepted.
		v, err := f.svc.RecordUpdate("alpha", "v2-text", "publish")
		if err != nil {
			t.Fatalf("RecordUpdate() error = %v", err)
		}
		if v != 2 {
			t.Errorf("version = %d, want 2", v)
		}
	})
}

func TestListVersions(t *testing.T) {
	f := newFixture(t, false)

	_, _, err := f.svc.ListVersions("missing")
	if !errors.Is(err, doiver.ErrNotFound) {
		t.Errorf("ListVersions(missing) error = %v, want ErrNotFound", err)
	}
}

func TestArchiveSync(t *testing.T) {
	f := newFixture(t, true)
	if _, err := f.svc.Publish("alpha", "Alpha", "v1-text"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	f.clock.Advance(10 * time.Second)
	if _, err := f.svc.RecordUpdate("alpha", "v2-text", "publish"); err != nil {
		t.Fatalf("RecordUpdate() error = %v", err)
	}

	count, err := f.svc.ArchiveSync()
	if err != nil {
		t.Fatalf("ArchiveSync() error = %v", err)
	}
	if count != 2 {
		t.Errorf("uploaded = %d, want 2", count)
	}

	// Bodies are keyed by checksum and encrypted at rest.
	key := doiver.Checksum("v1-text")
	ok, err := f.archive.Has(key)
	if err != nil || !ok {
		t.Fatalf("Has(%s) = %v, %v, want true", key, ok, err)
	}
	var buf bytes.Buffer
	if err := f.archive.Get(key, &buf); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := buf.String(); got != "TESTENC:v1-text" {
		t.Errorf("archived body = %q, want %q", got, "TESTENC:v1-text")
	}

	// A second pass has nothing to do.
	count, err = f.svc.ArchiveSync()
	if err != nil {
		t.Fatalf("second ArchiveSync() error = %v", err)
	}
	if count != 0 {
		t.Errorf("second pass uploaded = %d, want 0", count)
	}
}

func TestArchiveSyncWithoutArchive(t *testing.T) {
	f := newFixture(t, false)
	if _, err := f.svc.ArchiveSync(); err == nil {
		t.Error("ArchiveSync() without an archive should error")
	}
}
