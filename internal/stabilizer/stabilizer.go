// Package stabilizer converts a sequence of overlapping decode results into
// a monotonic committed/speculative transcript partition.
//
// This is the core algorithm of the pipeline: given decode results from
// successive, overlapping sliding windows, it maintains two ordered word
// sequences — committed (append-only, frozen) and speculative (replaced
// wholesale on each update) — such that their concatenation always reads
// left-to-right in time order and committed text never reorders or silently
// loses content.
//
// A Stabilizer is owned exclusively by one session's scheduler goroutine for
// the duration of a recording; it is not safe for concurrent use.
package stabilizer

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/quietloop/murmur/pkg/types"
)

// Config holds the stabilizer's tunables, constant for the lifetime of a
// session.
type Config struct {
	// CommitMarginMs is subtracted from a window's end time to compute the
	// commit horizon: words ending at or before the horizon are eligible
	// to commit.
	CommitMarginMs int64

	// MinTokenProbability is the confidence floor a word's covering
	// token(s) must meet to be committed.
	MinTokenProbability float64

	// Logger receives "would-shrink" regression warnings. Defaults to
	// slog.Default() when nil.
	Logger *slog.Logger
}

// word is the stabilizer's internal unit: a whitespace-delimited text span
// paired with the absolute session end-time of its last emitting token.
type word struct {
	text     string
	absEndMs int64
	minProb  float64
}

// Stabilizer implements the committed/speculative reconciliation algorithm.
type Stabilizer struct {
	cfg Config

	committedWords    []word
	speculativeWords  []word
	commitCursorAbsMs int64
	committedCharLen  int

	flickerCount int
}

// New creates a Stabilizer for one recording session.
func New(cfg Config) *Stabilizer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Stabilizer{cfg: cfg}
}

// Stats reports counters useful for observability and testing.
type Stats struct {
	CommitCursorAbsMs int64
	CommittedWords    int
	SpeculativeWords  int
	FlickerEvents     int
}

// Stats returns a snapshot of the stabilizer's counters.
func (s *Stabilizer) Stats() Stats {
	return Stats{
		CommitCursorAbsMs: s.commitCursorAbsMs,
		CommittedWords:    len(s.committedWords),
		SpeculativeWords:  len(s.speculativeWords),
		FlickerEvents:     s.flickerCount,
	}
}

// Update consumes one decode result and reconciles it against the current
// committed/speculative state. windowEndAbsMs is the absolute session
// timestamp of the decoded window's last sample, used to compute the commit
// horizon. Returns the rendered committed and speculative text after this
// update (see Render).
func (s *Stabilizer) Update(result types.DecodeResult, windowEndAbsMs int64) (committed, speculative string) {
	words := flatten(result)

	// Step 2: drop anything already committed in a prior update.
	remaining := words[:0:0]
	for _, w := range words {
		if w.absEndMs > s.commitCursorAbsMs {
			remaining = append(remaining, w)
		}
	}

	// Step 3: partition at the commit horizon.
	horizon := windowEndAbsMs - s.cfg.CommitMarginMs
	var candidates, newSpeculative []word
	for _, w := range remaining {
		if w.absEndMs <= horizon {
			candidates = append(candidates, w)
		} else {
			newSpeculative = append(newSpeculative, w)
		}
	}

	// Step 4: a commit prefix must be a contiguous confident run.
	for i, c := range candidates {
		if c.minProb < s.cfg.MinTokenProbability {
			candidates = candidates[:i]
			break
		}
	}

	// De-duplication at the join: strip the decoder's echoed overlap.
	candidates = dedupJoin(s.committedWords, candidates)

	// Regression guard: a later decode must not read already-committed audio
	// as strictly less text. Compare this decode's committable text (every
	// word ending at or before the horizon, including words already
	// committed) against the committed words that fall inside the same
	// window; if the new reading is shorter in characters, this update's
	// candidates are discarded. A routine incremental commit re-reads the
	// committed overlap and adds to it, so it passes.
	if len(candidates) > 0 && len(s.committedWords) > 0 {
		var decoded, existing []word
		for _, w := range words {
			if w.absEndMs <= horizon {
				decoded = append(decoded, w)
			}
		}
		for _, w := range s.committedWords {
			if w.absEndMs > int64(result.WindowStartAbsMs) {
				existing = append(existing, w)
			}
		}
		if decodedLen, existingLen := charLen(decoded), charLen(existing); decodedLen < existingLen {
			s.cfg.Logger.Warn("stabilizer: discarding would-shrink commit candidate",
				"committedCharLenInWindow", existingLen, "decodedCharLen", decodedLen)
			candidates = nil
		}
	}

	// Step 5: append survivors, advance the cursor.
	if len(candidates) > 0 {
		s.committedCharLen += charLen(candidates)
		if len(s.committedWords) > 0 {
			s.committedCharLen++ // joining space
		}
		s.committedWords = append(s.committedWords, candidates...)
		last := candidates[len(candidates)-1].absEndMs
		if last > s.commitCursorAbsMs {
			s.commitCursorAbsMs = last
		}
	}

	s.countFlicker(newSpeculative)

	// Step 6: replace speculative wholesale.
	s.speculativeWords = newSpeculative

	return s.renderCommitted(), s.renderSpeculative()
}

// FinalizeAll appends all current speculative words to committed
// unconditionally and clears speculative. Called exactly once per session,
// on the stop transition. Returns the final committed text.
func (s *Stabilizer) FinalizeAll() string {
	if len(s.speculativeWords) > 0 {
		s.committedCharLen += charLen(s.speculativeWords)
		if len(s.committedWords) > 0 {
			s.committedCharLen++
		}
		s.committedWords = append(s.committedWords, s.speculativeWords...)
		last := s.speculativeWords[len(s.speculativeWords)-1].absEndMs
		if last > s.commitCursorAbsMs {
			s.commitCursorAbsMs = last
		}
		s.speculativeWords = nil
	}
	return s.renderCommitted()
}

// Render returns the current committed text, speculative text, and the
// combined display text (committed + " " + speculative, no separating
// space if either is empty).
func (s *Stabilizer) Render() (committed, speculative, display string) {
	committed = s.renderCommitted()
	speculative = s.renderSpeculative()
	switch {
	case committed == "":
		display = speculative
	case speculative == "":
		display = committed
	default:
		display = committed + " " + speculative
	}
	return committed, speculative, display
}

func (s *Stabilizer) renderCommitted() string {
	return joinWords(s.committedWords)
}

func (s *Stabilizer) renderSpeculative() string {
	return joinWords(s.speculativeWords)
}

// countFlicker increments the running flicker count for every word present
// in the prior speculative set but absent from next — a speculative word
// shown then replaced on the very next update.
func (s *Stabilizer) countFlicker(next []word) {
	if len(s.speculativeWords) == 0 {
		return
	}
	present := make(map[string]int, len(next))
	for _, w := range next {
		present[normalize(w.text)]++
	}
	for _, w := range s.speculativeWords {
		key := normalize(w.text)
		if present[key] > 0 {
			present[key]--
			continue
		}
		s.flickerCount++
	}
}

func joinWords(words []word) string {
	if len(words) == 0 {
		return ""
	}
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.text
	}
	return strings.Join(parts, " ")
}

func charLen(words []word) int {
	if len(words) == 0 {
		return 0
	}
	n := -1 // no leading separator
	for _, w := range words {
		n += len(w.text) + 1
	}
	return n
}

// flatten converts a DecodeResult into a time-ordered list of words, using
// per-token timing where available and falling back to segment-level timing
// otherwise (see types.Timing.PerSegment).
func flatten(result types.DecodeResult) []word {
	var words []word
	base := int64(result.WindowStartAbsMs)
	for _, seg := range result.Segments {
		if seg.Timing.PerSegment() {
			words = append(words, wordsFromSegment(seg, base)...)
		} else {
			words = append(words, wordsFromTokens(seg.Timing.Tokens, base)...)
		}
	}
	return words
}

// wordsFromSegment splits a segment's text on whitespace, assigning every
// resulting word the segment's own end time — the coarser commit
// granularity used when the decoder provides no token-level timestamps.
// minProb is set to 1.0 (always above any confidence floor) since no
// per-word confidence is available at this granularity.
func wordsFromSegment(seg types.Segment, windowStartAbsMs int64) []word {
	fields := strings.Fields(seg.Text)
	if len(fields) == 0 {
		return nil
	}
	absEnd := windowStartAbsMs + int64(seg.EndMs)
	out := make([]word, len(fields))
	for i, f := range fields {
		out[i] = word{text: f, absEndMs: absEnd, minProb: 1.0}
	}
	return out
}

// wordsFromTokens groups a segment's tokens into words, treating a token
// whose text carries leading whitespace as the start of a new word (the
// convention types.Token documents for decoder output). A word's absolute
// end-time and confidence are taken from its last and least-confident
// covering token respectively.
func wordsFromTokens(tokens []types.Token, windowStartAbsMs int64) []word {
	var words []word
	var cur strings.Builder
	var curEnd int64
	var curProb float64
	started := false

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		words = append(words, word{text: cur.String(), absEndMs: curEnd, minProb: curProb})
		cur.Reset()
	}

	for _, t := range tokens {
		trimmed := strings.TrimSpace(t.Text)
		if trimmed == "" {
			continue
		}
		isBoundary := started && isWordBoundary(t.Text)
		if isBoundary {
			flush()
			curProb = t.Probability
		} else if cur.Len() == 0 {
			curProb = t.Probability
		} else if t.Probability < curProb {
			curProb = t.Probability
		}
		cur.WriteString(trimmed)
		curEnd = windowStartAbsMs + int64(t.EndTimeMs)
		started = true
	}
	flush()
	return words
}

func isWordBoundary(text string) bool {
	if text == "" {
		return false
	}
	r := []rune(text)[0]
	return unicode.IsSpace(r)
}

// dedupJoin removes the decoder's echoed boundary overlap: it compares the
// last K words of committed with the first K words of candidates
// (case-insensitive, punctuation-stripped) for K = 4 down to 1, and drops
// the matching prefix of candidates at the first K that matches.
func dedupJoin(committed []word, candidates []word) []word {
	maxK := 4
	if len(committed) < maxK {
		maxK = len(committed)
	}
	if len(candidates) < maxK {
		maxK = len(candidates)
	}
	for k := maxK; k >= 1; k-- {
		if wordsEqual(committed[len(committed)-k:], candidates[:k]) {
			return candidates[k:]
		}
	}
	return candidates
}

func wordsEqual(a, b []word) bool {
	for i := range a {
		if normalize(a[i].text) != normalize(b[i].text) {
			return false
		}
	}
	return true
}

// normalize lowercases text and strips punctuation for dedup comparison.
func normalize(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsPunct(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
