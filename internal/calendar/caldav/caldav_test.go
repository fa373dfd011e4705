package caldav

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronos-cal/chronos/internal/calendar"
)

// fakeRadicale is a minimal CalDAV server: one collection, one resource per
// event, If-Match/If-None-Match validation, and a REPORT that returns every
// stored resource.
type fakeRadicale struct {
	mu        sync.Mutex
	resources map[string]string // id -> ics body
	etags     map[string]int    // id -> version
	readOnly  bool
}

func newFakeRadicale() *fakeRadicale {
	return &fakeRadicale{
		resources: make(map[string]string),
		etags:     make(map[string]int),
	}
}

func (f *fakeRadicale) etag(id string) string {
	return fmt.Sprintf("rev-%d", f.etags[id])
}

func (f *fakeRadicale) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Method == "REPORT" {
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">`)
		for id, body := range f.resources {
			fmt.Fprintf(&b, `<D:response><D:href>/cal/%s.ics</D:href><D:propstat><D:status>HTTP/1.1 200 OK</D:status><D:prop><D:getetag>"%s"</D:getetag><C:calendar-data><![CDATA[%s]]></C:calendar-data></D:prop></D:propstat></D:response>`,
				id, f.etag(id), body)
		}
		b.WriteString(`</D:multistatus>`)
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, b.String())
		return
	}

	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/cal/"), ".ics")
	switch r.Method {
	case http.MethodGet:
		body, ok := f.resources[id]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"`+f.etag(id)+`"`)
		w.Header().Set("Content-Type", "text/calendar")
		io.WriteString(w, body)

	case http.MethodPut:
		if f.readOnly {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_, exists := f.resources[id]
		if r.Header.Get("If-None-Match") == "*" && exists {
			http.Error(w, "exists", http.StatusPreconditionFailed)
			return
		}
		if match := strings.Trim(r.Header.Get("If-Match"), `"`); match != "" {
			if !exists || match != f.etag(id) {
				http.Error(w, "precondition failed", http.StatusPreconditionFailed)
				return
			}
		}
		f.resources[id] = string(body)
		f.etags[id]++
		w.Header().Set("ETag", `"`+f.etag(id)+`"`)
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		if _, ok := f.resources[id]; !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if match := strings.Trim(r.Header.Get("If-Match"), `"`); match != "" && match != f.etag(id) {
			http.Error(w, "precondition failed", http.StatusPreconditionFailed)
			return
		}
		delete(f.resources, id)
		delete(f.etags, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, f *fakeRadicale) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := New("family", srv.URL+"/cal/", WithBasicAuth("anna", "secret"))
	require.NoError(t, err)
	return c
}

func TestListFetchUpdate(t *testing.T) {
	f := newFakeRadicale()
	f.resources["bday-anna"] = sampleICS
	f.etags["bday-anna"] = 1

	c := newTestClient(t, f)
	ctx := context.Background()

	events, err := c.List(ctx,
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "bday-anna", events[0].ID)
	assert.Equal(t, "rev-1", events[0].Etag)

	title := "🎉 Birthday: Anna Müller (15.03.) – turns 36."
	updated, err := c.Update(ctx, "bday-anna", "rev-1", calendar.Patch{
		Title:    &title,
		SetProps: map[string]string{calendar.KeyCleaned: "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, "rev-2", updated.Etag)
	assert.Equal(t, "1", updated.Prop(calendar.KeyCleaned))
}

func TestUpdate_StaleTokenIsConflict(t *testing.T) {
	f := newFakeRadicale()
	f.resources["bday-anna"] = sampleICS
	f.etags["bday-anna"] = 3 // the resource moved on since rev-1

	c := newTestClient(t, f)
	title := "x"
	_, err := c.Update(context.Background(), "bday-anna", "rev-1", calendar.Patch{Title: &title})
	assert.ErrorIs(t, err, calendar.ErrConflict)
}

func TestUpdate_ForbiddenIsReadOnly(t *testing.T) {
	f := newFakeRadicale()
	f.resources["bday-anna"] = sampleICS
	f.etags["bday-anna"] = 1
	f.readOnly = true

	c := newTestClient(t, f)
	title := "x"
	_, err := c.Update(context.Background(), "bday-anna", "rev-1", calendar.Patch{Title: &title})
	assert.ErrorIs(t, err, calendar.ErrReadOnly)
}

func TestCreateAndDelete(t *testing.T) {
	f := newFakeRadicale()
	c := newTestClient(t, f)
	ctx := context.Background()

	created, err := c.Create(ctx, calendar.Event{
		ID:     "warn-1",
		Title:  "⚠️ Anna Müller in 7 days",
		Start:  time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		AllDay: true,
		Props:  map[string]string{calendar.KeyWarningOf: "bday-anna"},
	})
	require.NoError(t, err)
	assert.Equal(t, "rev-1", created.Etag)

	// A second create for the same id must not overwrite.
	_, err = c.Create(ctx, calendar.Event{ID: "warn-1", Title: "dup",
		Start: created.Start, End: created.End})
	assert.ErrorIs(t, err, calendar.ErrConflict)

	require.NoError(t, c.Delete(ctx, "warn-1", created.Etag))
	_, err = c.Fetch(ctx, "warn-1")
	assert.ErrorIs(t, err, calendar.ErrNotFound)
}
