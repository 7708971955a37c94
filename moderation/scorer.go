package moderation

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Scorer - Pluggable severity scorer for message text
type Scorer interface {
	Score(text string) float64
}

var (
	nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)
	nonSlugChars  = regexp.MustCompile(`[^\pL\pN]+`)
)

// Tokenize - Split free-form text into lower-case, unicode-folded tokens
func Tokenize(text string) []string {
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	bare := strings.ToLower(nonTokenChars.ReplaceAllString(text, " "))
	folded, _, err := transform.String(normFunc, bare)
	if err != nil {
		folded = bare
	}
	return strings.Fields(folded)
}

// Slugify - Collapse text to letters and digits only, lower-case. Catches
// terms spaced or punctuated out across token boundaries.
func Slugify(text string) string {
	return strings.ToLower(nonSlugChars.ReplaceAllString(text, ""))
}

// KeywordScorer - Weighted term list matched against normalized tokens
type KeywordScorer struct {
	terms map[string]float64
}

// NewKeywordScorer - Build a scorer from a term -> severity map
func NewKeywordScorer(terms map[string]float64) *KeywordScorer {
	normalized := make(map[string]float64, len(terms))
	for term, weight := range terms {
		normalized[Slugify(term)] = weight
	}
	return &KeywordScorer{terms: normalized}
}

// LoadKeywordScorer - Read a blocklist file, one term per line with an
// optional severity after a space. A missing file yields an empty scorer.
func LoadKeywordScorer(path string) (*KeywordScorer, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewKeywordScorer(nil), nil
		}
		return nil, err
	}
	defer f.Close()

	terms := make(map[string]float64)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		weight := 1.0
		if len(fields) > 1 {
			w, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("bad blocklist line %q: %v", line, err)
			}
			weight = w
		}
		terms[fields[0]] = weight
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewKeywordScorer(terms), nil
}

// Score - Highest severity among matched terms, 0 for clean text
func (s *KeywordScorer) Score(text string) float64 {
	best := 0.0
	for _, tok := range Tokenize(text) {
		if w, ok := s.terms[tok]; ok && w > best {
			best = w
		}
	}
	// Second pass over the slug catches "f o o"-style evasion. Short terms
	// skip this to avoid matching inside unrelated words.
	slug := Slugify(text)
	for term, w := range s.terms {
		if w > best && len(term) >= 5 && strings.Contains(slug, term) {
			best = w
		}
	}
	return best
}
