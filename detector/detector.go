// Package detector matches recognized phrases against the configured
// vocabulary.
//
// Matching is exact on lowercased tokens. Vocabulary entries that contain
// several words ("oh my god") match consecutive tokens. An optional phonetic
// pass (Double Metaphone plus Jaro-Winkler) catches misrecognized single
// words; it is off unless WithPhonetic is given.
package detector

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	DefaultPhoneticThreshold = 0.70
	DefaultFuzzyThreshold    = 0.85

	// tokens shorter than this never match phonetically
	minPhoneticLen = 3
)

// Match is one vocabulary hit. Word is the normalized vocabulary entry.
type Match struct {
	Word       string
	Confidence float64
	Fuzzy      bool
}

type Option func(*Matcher)

// WithPhonetic enables approximate matching of single-word entries.
func WithPhonetic(phoneticThreshold, fuzzyThreshold float64) Option {
	return func(m *Matcher) {
		m.phonetic = true
		m.phoneticThreshold = phoneticThreshold
		m.fuzzyThreshold = fuzzyThreshold
	}
}

type entry struct {
	word  string
	codes map[string]struct{}
}

// Matcher is safe for concurrent use. Configure may be called while Analyze
// runs on other goroutines.
type Matcher struct {
	phonetic          bool
	phoneticThreshold float64
	fuzzyThreshold    float64

	mu        sync.RWMutex
	vocab     map[string]struct{}
	maxTokens int
	singles   []entry
}

func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: DefaultPhoneticThreshold,
		fuzzyThreshold:    DefaultFuzzyThreshold,
		vocab:             map[string]struct{}{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Configure replaces the vocabulary. Entries are normalized the same way
// input text is; entries that normalize to nothing are ignored.
func (m *Matcher) Configure(words []string) {
	vocab := make(map[string]struct{}, len(words))
	maxTokens := 0
	var singles []entry
	for _, w := range words {
		tokens := Tokenize(w)
		if len(tokens) == 0 {
			continue
		}
		key := strings.Join(tokens, " ")
		if _, dup := vocab[key]; dup {
			continue
		}
		vocab[key] = struct{}{}
		maxTokens = max(maxTokens, len(tokens))
		if len(tokens) == 1 && m.phonetic {
			singles = append(singles, entry{word: key, codes: metaphoneCodes(key)})
		}
	}

	m.mu.Lock()
	m.vocab = vocab
	m.maxTokens = maxTokens
	m.singles = singles
	m.mu.Unlock()
}

// Words returns the normalized vocabulary in sorted order.
func (m *Matcher) Words() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	words := make([]string, 0, len(m.vocab))
	for w := range m.vocab {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// Analyze returns one Match per vocabulary hit in text, in order of
// appearance. Repeated words produce repeated matches.
func (m *Matcher) Analyze(text string, confidence float64) []Match {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.vocab) == 0 {
		return nil
	}

	var matches []Match
	for i, tok := range tokens {
		if _, ok := m.vocab[tok]; ok {
			matches = append(matches, Match{Word: tok, Confidence: confidence})
		} else if m.phonetic {
			if word, score, ok := m.closest(tok); ok {
				matches = append(matches, Match{Word: word, Confidence: confidence * score, Fuzzy: true})
			}
		}
		for n := 2; n <= m.maxTokens && i+n <= len(tokens); n++ {
			phrase := strings.Join(tokens[i:i+n], " ")
			if _, ok := m.vocab[phrase]; ok {
				matches = append(matches, Match{Word: phrase, Confidence: confidence})
			}
		}
	}
	return matches
}

func (m *Matcher) closest(tok string) (string, float64, bool) {
	if len([]rune(tok)) < minPhoneticLen {
		return "", 0, false
	}
	codes := metaphoneCodes(tok)
	var (
		best      string
		bestScore float64
		bestPhon  bool
	)
	for _, e := range m.singles {
		score := matchr.JaroWinkler(tok, e.word, false)
		if overlaps(codes, e.codes) {
			if score >= m.phoneticThreshold && (!bestPhon || score > bestScore) {
				best, bestScore, bestPhon = e.word, score, true
			}
		} else if !bestPhon && score >= m.fuzzyThreshold && score > bestScore {
			best, bestScore = e.word, score
		}
	}
	return best, bestScore, best != ""
}

// Tokenize lowercases text and splits it on anything that is not a letter
// or a digit. Text without any word yields nil.
func Tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func metaphoneCodes(word string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}
