package memory

import (
	"strings"
	"unicode"
)

// ParsedQuery is the normalized form of a raw recall query. A query is
// either a targeted metadata lookup (Field/FieldValue set) or a bag of
// free-text terms.
type ParsedQuery struct {
	// Field is the metadata key of a field:value query, lowercased and
	// stripped of any leading "metadata." alias. Empty for term queries.
	Field string

	// FieldValue is the value of a field:value query, lowercased.
	FieldValue string

	// Terms are the whitespace-delimited lowercase terms of a free-text
	// query. All terms must match for a lexical hit.
	Terms []string
}

// IsFieldQuery reports whether the query targets a metadata field.
func (q ParsedQuery) IsFieldQuery() bool { return q.Field != "" }

// IsEmpty reports whether nothing remained after normalization.
func (q ParsedQuery) IsEmpty() bool { return q.Field == "" && len(q.Terms) == 0 }

// Normalizer turns memory text and query text into comparable lexical
// tokens and metadata key/value pairs. It is stateless; every method is
// a pure function of its input.
type Normalizer struct {
	stopWords map[string]struct{}
}

// NewNormalizer creates a normalizer with the default stop-word set.
func NewNormalizer() *Normalizer {
	return &Normalizer{stopWords: defaultStopWords()}
}

// ParseQuery detects an optional field:value (or metadata.field:value)
// pattern; otherwise it splits the query into lowercase terms.
func (n *Normalizer) ParseQuery(raw string) ParsedQuery {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ParsedQuery{}
	}

	if field, value, ok := strings.Cut(trimmed, ":"); ok {
		field = strings.TrimSpace(field)
		value = strings.TrimSpace(value)
		// Only a single bare token before the colon reads as a field
		// lookup; "see: the notes" stays a free-text query.
		if field != "" && value != "" && !strings.ContainsFunc(field, unicode.IsSpace) {
			field = strings.ToLower(field)
			field = strings.TrimPrefix(field, "metadata.")
			return ParsedQuery{Field: field, FieldValue: strings.ToLower(value)}
		}
	}

	return ParsedQuery{Terms: strings.Fields(strings.ToLower(trimmed))}
}

// Tokenize splits text into lowercase tokens, dropping punctuation and
// stop words. CJK runes become individual tokens.
func (n *Normalizer) Tokenize(text string) []string {
	text = strings.ToLower(text)

	tokens := make([]string, 0, len(text)/4)
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		token := current.String()
		if _, isStop := n.stopWords[token]; !isStop {
			tokens = append(tokens, token)
		}
		current.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
			continue
		}
		flush()
		if unicode.Is(unicode.Han, r) {
			tokens = append(tokens, string(r))
		}
	}
	flush()

	return tokens
}

// TokenBag returns the set of lexical tokens in a memory's title,
// content, and tags.
func (n *Normalizer) TokenBag(m *Memory) map[string]struct{} {
	bag := make(map[string]struct{})
	for _, token := range n.Tokenize(m.Title) {
		bag[token] = struct{}{}
	}
	for _, token := range n.Tokenize(m.Content) {
		bag[token] = struct{}{}
	}
	for _, tag := range m.Tags {
		for _, token := range n.Tokenize(tag) {
			bag[token] = struct{}{}
		}
	}
	return bag
}

// MetadataIndex flattens a memory's metadata into lowercase key/value
// pairs. Each key is indexed under both "key" and "metadata.key" so
// either query spelling matches. Nested maps flatten with dotted keys.
func (n *Normalizer) MetadataIndex(m *Memory) map[string]string {
	index := make(map[string]string, len(m.Metadata)*2)
	flattenMetadata("", m.Metadata, index)
	return index
}

func flattenMetadata(prefix string, meta map[string]Value, index map[string]string) {
	for key, value := range meta {
		full := strings.ToLower(key)
		if prefix != "" {
			full = prefix + "." + full
		}
		if value.Kind() == MapKind {
			flattenMetadata(full, value.m, index)
			continue
		}
		str := strings.ToLower(value.String())
		index[full] = str
		index["metadata."+full] = str
	}
}

// SourceText derives the text a memory is embedded from.
func (n *Normalizer) SourceText(m *Memory) string {
	parts := make([]string, 0, 3)
	if m.Title != "" {
		parts = append(parts, m.Title)
	}
	if m.Content != "" {
		parts = append(parts, m.Content)
	}
	if len(m.Tags) > 0 {
		parts = append(parts, strings.Join(m.Tags, " "))
	}
	return strings.Join(parts, "\n")
}

// LexicalScore returns the fraction of query terms found in the
// memory's title, content, or metadata values. All terms present
// scores 1; a memory missing every term scores 0. Matching is
// case-insensitive substring matching, so partial words still hit.
func (n *Normalizer) LexicalScore(m *Memory, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	haystack := strings.ToLower(m.Title) + "\n" + strings.ToLower(m.Content)
	for _, tag := range m.Tags {
		haystack += "\n" + strings.ToLower(tag)
	}
	var metaValues string
	for _, value := range m.Metadata {
		metaValues += "\n" + strings.ToLower(value.String())
	}

	matched := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) || strings.Contains(metaValues, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// MatchesAllTerms reports a lexical hit: every term appears somewhere
// in the memory's title, content, tags, or metadata values.
func (n *Normalizer) MatchesAllTerms(m *Memory, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	return n.LexicalScore(m, terms) == 1
}

func defaultStopWords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "is", "are", "was", "were", "be", "been", "being",
		"have", "has", "had", "do", "does", "did", "will", "would", "could",
		"should", "may", "might", "shall", "can", "to", "of", "in", "for",
		"on", "with", "at", "by", "from", "as", "into", "through", "during",
		"before", "after", "between", "out", "off", "over", "under", "then",
		"once", "and", "but", "or", "nor", "not", "so", "yet", "both",
		"each", "all", "any", "few", "more", "most", "other", "some", "such",
		"no", "only", "own", "same", "than", "too", "very", "just", "if",
		"when", "where", "how", "what", "which", "who", "this", "that",
		"these", "those", "i", "me", "my", "we", "our", "you", "your", "it",
		"its", "they", "them", "their",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
