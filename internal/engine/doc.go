// Package engine implements the Chronos calendar repair engine.
//
// The engine is the heart of Chronos - it lists events from a calendar,
// matches keyword prefixes against repair rules, parses payload dates,
// renders canonical titles, and writes them back under optimistic
// concurrency, stamping each repaired event with an idempotency marker.
//
// ARCHITECTURE:
//
// Sequential Per-Calendar Pass:
// Within one calendar, events are processed strictly one at a time,
// each completing its full phase sequence before the next begins:
//  1. match    - keyword token before ":" resolves to a rule id
//  2. parse    - trailing date token split off the greedy label
//  3. guard    - stored marker signature vs. freshly computed one
//  4. series   - master/instance resolution, past instances locked
//  5. render   - rule template expansion into the canonical title
//  6. write    - conditional patch (title + marker in one request)
//  7. warnings - create, re-anchor, and prune linked warning events
//
// Independent calendars run concurrently; they share only the immutable
// rule set and never share event state.
//
// CRITICAL PATTERNS:
//
// Idempotence:
// A second pass over an already-repaired calendar performs zero writes.
// The marker signature is the sole authority: matching signature means
// skip, missing or drifted marker means repair.
//
// Bounded Retry:
// A conditional patch that hits a concurrency conflict is retried at
// most once, and only after a refetch proves the event's identity
// (title, start, recurrence) is unchanged. There is no retry loop.
//
// Never Guess:
// Ambiguous dates under strict options and impossible calendar dates
// become needs-review outcomes with no write, not best-effort parses.
package engine
