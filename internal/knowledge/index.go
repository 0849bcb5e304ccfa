// Package knowledge is a small in-memory index of symptom guidance notes.
// Reply generators look up the notes closest to a user message and use them
// as reference material.
//
// Notes are plain paragraphs. Scoring is Jaccard similarity between the
// query's token set and a note's token set, |Q ∩ N| / |Q ∪ N|, with ties
// broken by shorter note and then lexical order so results are stable. An
// Index is read-only after construction and safe for concurrent use.
package knowledge

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Note is a matched paragraph with its similarity score in (0, 1].
type Note struct {
	Text  string
	Score float64
}

// Index returns up to k notes relevant to query, best first.
type Index interface {
	Lookup(query string, k int) []Note
}

// Option customizes index construction.
type Option func(*options)

type options struct {
	minRunes  int
	stopwords map[string]struct{}
	maxNotes  int
}

func defaultOptions() options {
	return options{minRunes: 40, stopwords: stopwordSet(englishStopwords)}
}

// WithMinRunes drops paragraphs shorter than n runes. Negative n is ignored.
func WithMinRunes(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.minRunes = n
		}
	}
}

// WithStopwords replaces the default stop-word list. An empty list keeps
// every token.
func WithStopwords(words []string) Option {
	return func(o *options) { o.stopwords = stopwordSet(words) }
}

// WithMaxNotes caps how many notes are kept. Zero or negative means no cap.
func WithMaxNotes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxNotes = n
		}
	}
}

type entry struct {
	text   string
	runes  int
	tokens map[string]struct{}
}

// Store is the in-memory Index implementation.
type Store struct {
	opts    options
	entries []entry
}

// New builds a Store from paragraphs. Blank, too short, or token-free
// paragraphs are skipped.
func New(paragraphs []string, opts ...Option) *Store {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	s := &Store{opts: o}
	for _, p := range paragraphs {
		text := collapseSpaces(strings.TrimSpace(p))
		if text == "" {
			continue
		}
		n := utf8.RuneCountInString(text)
		if n < o.minRunes {
			continue
		}
		toks := tokenize(text, o.stopwords)
		if len(toks) == 0 {
			continue
		}
		s.entries = append(s.entries, entry{text: text, runes: n, tokens: toks})
		if o.maxNotes > 0 && len(s.entries) >= o.maxNotes {
			break
		}
	}
	return s
}

// Len reports how many notes are indexed.
func (s *Store) Len() int { return len(s.entries) }

// Lookup implements Index. k <= 0 defaults to 3.
func (s *Store) Lookup(query string, k int) []Note {
	if len(s.entries) == 0 || strings.TrimSpace(query) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	q := tokenize(query, s.opts.stopwords)
	if len(q) == 0 {
		return nil
	}

	type hit struct {
		e     *entry
		score float64
	}
	var hits []hit
	for i := range s.entries {
		e := &s.entries[i]
		shared := intersect(q, e.tokens)
		if shared == 0 {
			continue
		}
		union := len(q) + len(e.tokens) - shared
		hits = append(hits, hit{e: e, score: float64(shared) / float64(union)})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		ha, hb := hits[a], hits[b]
		if ha.score != hb.score {
			return ha.score > hb.score
		}
		if ha.e.runes != hb.e.runes {
			return ha.e.runes < hb.e.runes
		}
		return ha.e.text < hb.e.text
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]Note, len(hits))
	for i, h := range hits {
		out[i] = Note{Text: h.e.text, Score: h.score}
	}
	return out
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// tokenize case-folds s and returns its distinct words minus stop words.
func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(cases.Fold().String(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func intersect(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

func stopwordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			m[w] = struct{}{}
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

var englishStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "been", "but", "by", "can", "do",
	"for", "from", "had", "has", "have", "i", "if", "in", "is", "it", "its", "me",
	"my", "of", "on", "or", "so", "that", "the", "this", "to", "was", "what",
	"when", "with", "you", "your", "since", "im", "ive", "feel", "feeling",
}
