package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFallbackIcon(t *testing.T) {
	tests := []struct {
		name   string
		itemID string
		want   string
	}{
		{
			name:   "simple id",
			itemID: "carrot",
			want:   "https://static.growagardenapi.dev/icons/carrot.png",
		},
		{
			name:   "spaces become dashes",
			itemID: "Watering Can",
			want:   "https://static.growagardenapi.dev/icons/watering-can.png",
		},
		{
			name:   "surrounding whitespace trimmed",
			itemID: "  beanstalk ",
			want:   "https://static.growagardenapi.dev/icons/beanstalk.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FallbackIcon(tt.itemID); got != tt.want {
				t.Errorf("FallbackIcon(%q) = %q, want %q", tt.itemID, got, tt.want)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"item_id":"carrot","display_name":"Carrot","icon":"https://cdn.example/carrot.webp"},
			{"item_id":"","display_name":"broken entry"},
			{"item_id":"trowel","display_name":"Trowel"}
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL, NewMemoryCache(), testLogger())
	if c.Loaded() {
		t.Error("Loaded() = true before refresh, want false")
	}

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !c.Loaded() {
		t.Error("Loaded() = false after refresh, want true")
	}

	if got := c.Icon("carrot"); got != "https://cdn.example/carrot.webp" {
		t.Errorf("Icon(carrot) = %q, want catalog URL", got)
	}
	// Entry without icon falls back deterministically.
	if got := c.Icon("trowel"); got != FallbackIcon("trowel") {
		t.Errorf("Icon(trowel) = %q, want fallback", got)
	}
	// Unknown item falls back too.
	if got := c.Icon("unknown item"); got != FallbackIcon("unknown item") {
		t.Errorf("Icon(unknown) = %q, want fallback", got)
	}
	// Entries without an ID are skipped.
	if _, ok := c.Lookup(""); ok {
		t.Error("Lookup(\"\") found an entry, want none")
	}
}

func TestRefreshFailureKeepsPriorCatalog(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"item_id":"carrot","display_name":"Carrot"}]`))
	}))
	defer good.Close()

	c := New(good.URL, NewMemoryCache(), testLogger())
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	// Point at a server that always fails.
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()
	c.url = bad.URL

	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() error = nil, want error")
	}
	if !c.Loaded() {
		t.Error("prior catalog was discarded on failed refresh")
	}
	if _, ok := c.Lookup("carrot"); !ok {
		t.Error("Lookup(carrot) lost after failed refresh")
	}
}

func TestWarmFromCache(t *testing.T) {
	cache := NewMemoryCache()
	if err := cache.Set(context.Background(), "garden:catalog",
		[]byte(`[{"item_id":"carrot","display_name":"Carrot"}]`), cacheTTL); err != nil {
		t.Fatalf("cache Set() error = %v", err)
	}

	c := New("http://unused.invalid", cache, testLogger())
	c.Warm(context.Background())

	if !c.Loaded() {
		t.Error("Loaded() = false after warm, want true")
	}
}

func TestRefreshRejectsOversizedResponse(t *testing.T) {
	// Valid JSON on the wire, but larger than the read limit: the
	// truncated body fails to parse and the refresh errors out.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "[")
		_, _ = io.WriteString(w, strings.Repeat(" ", 11<<20))
		_, _ = io.WriteString(w, "]")
	}))
	defer srv.Close()

	c := New(srv.URL, NewMemoryCache(), testLogger())
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() error = nil, want parse error for truncated body")
	}
	if c.Loaded() {
		t.Error("oversized response must not install a catalog")
	}
}
