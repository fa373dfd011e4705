package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/chronos-cal/chronos/internal/calendar"
)

// signatureDomain separates this hash from any other SHA-256 use; the
// version suffix leaves room for algorithm migration.
const signatureDomain = "chronos/signature/v1"

// Signature computes the deterministic hash of an event's pre-repair
// identity: title, start, and recurrence expression.
//
// The title is NFC-normalized first so the same text typed on different
// platforms (decomposed vs. precomposed umlauts) yields the same hash.
// Null separators prevent field-boundary ambiguity.
func Signature(title string, start time.Time, rrule string) string {
	h := sha256.New()
	h.Write([]byte(signatureDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(norm.NFC.String(title)))
	h.Write([]byte{0x00})
	h.Write([]byte(start.UTC().Format(time.RFC3339)))
	h.Write([]byte{0x00})
	h.Write([]byte(rrule))
	return hex.EncodeToString(h.Sum(nil))
}

// EventSignature computes the signature of an event as currently observed.
func EventSignature(ev calendar.Event) string {
	return Signature(ev.Title, ev.Start, ev.RRule)
}
