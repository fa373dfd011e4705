// Package caldav implements a calendar Adapter speaking CalDAV, as served
// by Radicale and similar single-resource-per-event servers.
//
// Concurrency control uses HTTP validators end to end: List and Fetch
// return the server's ETag as the event's concurrency token, and every
// mutation carries If-Match so a concurrent edit by another client turns
// into calendar.ErrConflict instead of a lost update.
//
// CalDAV has no participant-notification semantics, so
// Patch.SuppressNotify is inherently satisfied and ignored.
package caldav

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/chronos-cal/chronos/internal/calendar"
)

const reportTimeFormat = "20060102T150405Z"

// Client is a CalDAV calendar adapter for a single collection URL.
type Client struct {
	id       string
	base     *url.URL // collection URL, trailing slash
	username string
	password string
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBasicAuth sets HTTP Basic credentials for all requests.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithHTTPClient replaces the default HTTP client (15s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a CalDAV adapter for the collection at baseURL.
func New(id, baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("caldav %s: parse url: %w", id, err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		id:   id,
		base: u,
		http: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ID implements calendar.Adapter.
func (c *Client) ID() string { return c.id }

// multistatus models the subset of the REPORT response we consume.
type multistatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	Responses []response `xml:"response"`
}

type response struct {
	Href     string     `xml:"href"`
	Propstat []propstat `xml:"propstat"`
}

type propstat struct {
	Status string `xml:"status"`
	Prop   struct {
		ETag         string `xml:"getetag"`
		CalendarData string `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
	} `xml:"prop"`
}

// okPropstat returns the propstat of r with an HTTP 200 status, if any.
func okPropstat(r response) (propstat, bool) {
	for _, ps := range r.Propstat {
		if strings.Contains(ps.Status, "200") {
			return ps, true
		}
	}
	return propstat{}, false
}

// List implements calendar.Adapter using a calendar-query REPORT with a
// time-range filter. Per RFC 4791 the server includes recurring masters
// whose expansion intersects the window, which is exactly the listing
// contract the engine needs.
func (c *Client) List(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	body := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop>
    <D:getetag/>
    <C:calendar-data/>
  </D:prop>
  <C:filter>
    <C:comp-filter name="VCALENDAR">
      <C:comp-filter name="VEVENT">
        <C:time-range start="%s" end="%s"/>
      </C:comp-filter>
    </C:comp-filter>
  </C:filter>
</C:calendar-query>`, from.UTC().Format(reportTimeFormat), to.UTC().Format(reportTimeFormat))

	req, err := c.newRequest(ctx, "REPORT", c.base.String(), strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", "1")
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("caldav %s: report: %w", c.id, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp, http.StatusMultiStatus); err != nil {
		return nil, fmt.Errorf("caldav %s: report: %w", c.id, err)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("caldav %s: report body: %w", c.id, err)
	}
	var ms multistatus
	if err := xml.Unmarshal(raw, &ms); err != nil {
		return nil, fmt.Errorf("caldav %s: report xml: %w", c.id, err)
	}

	out := make([]calendar.Event, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		ps, ok := okPropstat(r)
		if !ok || ps.Prop.CalendarData == "" {
			continue
		}
		ev, err := parseEventICS([]byte(ps.Prop.CalendarData), strings.Trim(ps.Prop.ETag, `"`))
		if err != nil {
			// One malformed resource must not fail the whole pass.
			slog.Error("caldav resource skipped", "calendar", c.id, "href", r.Href, "error", err)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Fetch implements calendar.Adapter.
func (c *Client) Fetch(ctx context.Context, id string) (calendar.Event, error) {
	body, etag, err := c.get(ctx, id)
	if err != nil {
		return calendar.Event{}, err
	}
	return parseEventICS(body, etag)
}

// Update implements calendar.Adapter. The current resource body is fetched,
// patched in place, and PUT back with If-Match on the caller's token so
// unrelated properties survive and concurrent edits are detected.
func (c *Client) Update(ctx context.Context, id, etag string, p calendar.Patch) (calendar.Event, error) {
	body, currentEtag, err := c.get(ctx, id)
	if err != nil {
		return calendar.Event{}, err
	}
	if currentEtag != "" && currentEtag != etag {
		return calendar.Event{}, fmt.Errorf("caldav %s: update %s: resource moved from %s to %s: %w",
			c.id, id, etag, currentEtag, calendar.ErrConflict)
	}

	patched, err := applyPatch(body, id, p)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("caldav %s: update %s: %w", c.id, id, err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, c.resourceURL(id), bytes.NewReader(patched))
	if err != nil {
		return calendar.Event{}, err
	}
	req.Header.Set("Content-Type", "text/calendar; charset=utf-8")
	req.Header.Set("If-Match", quoteEtag(etag))

	resp, err := c.http.Do(req)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("caldav %s: put %s: %w", c.id, id, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if err := c.checkStatus(resp, http.StatusNoContent, http.StatusCreated, http.StatusOK); err != nil {
		return calendar.Event{}, fmt.Errorf("caldav %s: put %s: %w", c.id, id, err)
	}

	// Some servers omit the ETag on PUT; refetch to hand the caller a
	// token that is valid for the next conditional operation.
	if newEtag := strings.Trim(resp.Header.Get("ETag"), `"`); newEtag != "" {
		return parseEventICS(patched, newEtag)
	}
	return c.Fetch(ctx, id)
}

// Create implements calendar.Adapter using If-None-Match: * so an id
// collision surfaces as a conflict rather than an overwrite.
func (c *Client) Create(ctx context.Context, ev calendar.Event) (calendar.Event, error) {
	if ev.ID == "" {
		return calendar.Event{}, fmt.Errorf("caldav %s: create: event id is required", c.id)
	}

	req, err := c.newRequest(ctx, http.MethodPut, c.resourceURL(ev.ID), bytes.NewReader(buildEventICS(ev)))
	if err != nil {
		return calendar.Event{}, err
	}
	req.Header.Set("Content-Type", "text/calendar; charset=utf-8")
	req.Header.Set("If-None-Match", "*")

	resp, err := c.http.Do(req)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("caldav %s: create %s: %w", c.id, ev.ID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if err := c.checkStatus(resp, http.StatusCreated, http.StatusNoContent); err != nil {
		return calendar.Event{}, fmt.Errorf("caldav %s: create %s: %w", c.id, ev.ID, err)
	}
	return c.Fetch(ctx, ev.ID)
}

// Delete implements calendar.Adapter.
func (c *Client) Delete(ctx context.Context, id, etag string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.resourceURL(id), nil)
	if err != nil {
		return err
	}
	req.Header.Set("If-Match", quoteEtag(etag))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("caldav %s: delete %s: %w", c.id, id, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if err := c.checkStatus(resp, http.StatusNoContent, http.StatusOK); err != nil {
		return fmt.Errorf("caldav %s: delete %s: %w", c.id, id, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, id string) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.resourceURL(id), nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("caldav %s: get %s: %w", c.id, id, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp, http.StatusOK); err != nil {
		return nil, "", fmt.Errorf("caldav %s: get %s: %w", c.id, id, err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("caldav %s: get %s: %w", c.id, id, err)
	}
	return body, strings.Trim(resp.Header.Get("ETag"), `"`), nil
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("caldav %s: build request: %w", c.id, err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

func (c *Client) resourceURL(id string) string {
	u := *c.base
	u.Path = path.Join(u.Path, url.PathEscape(id)+".ics")
	return u.String()
}

// checkStatus maps HTTP failures onto the adapter error taxonomy.
func (c *Client) checkStatus(resp *http.Response, want ...int) error {
	for _, code := range want {
		if resp.StatusCode == code {
			return nil
		}
	}
	switch resp.StatusCode {
	case http.StatusPreconditionFailed:
		return calendar.ErrConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		return calendar.ErrReadOnly
	case http.StatusNotFound:
		return calendar.ErrNotFound
	default:
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
}

func quoteEtag(etag string) string {
	if strings.HasPrefix(etag, `"`) {
		return etag
	}
	return `"` + etag + `"`
}

var _ calendar.Adapter = (*Client)(nil)
