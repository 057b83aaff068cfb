package memory

import (
	"reflect"
	"testing"
)

func TestParseQueryFieldForm(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name  string
		raw   string
		field string
		value string
	}{
		{"simple", "project:alpha", "project", "alpha"},
		{"metadata prefix stripped", "metadata.project:alpha", "project", "alpha"},
		{"value case folded", "Project:Alpha", "project", "alpha"},
		{"value with spaces", "status: in progress", "status", "in progress"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := n.ParseQuery(tt.raw)
			if !q.IsFieldQuery() {
				t.Fatalf("ParseQuery(%q) not a field query: %+v", tt.raw, q)
			}
			if q.Field != tt.field || q.FieldValue != tt.value {
				t.Errorf("got %q=%q, want %q=%q", q.Field, q.FieldValue, tt.field, tt.value)
			}
		})
	}
}

func TestParseQueryTermForm(t *testing.T) {
	n := NewNormalizer()

	q := n.ParseQuery("  Deploy Notes  ")
	if q.IsFieldQuery() {
		t.Fatalf("unexpected field query: %+v", q)
	}
	if !reflect.DeepEqual(q.Terms, []string{"deploy", "notes"}) {
		t.Errorf("terms = %v, want [deploy notes]", q.Terms)
	}

	// Multi-word prefix before the colon stays free text.
	q = n.ParseQuery("see also: the notes")
	if q.IsFieldQuery() {
		t.Errorf("multi-word prefix parsed as field query: %+v", q)
	}

	if !n.ParseQuery("").IsEmpty() {
		t.Error("empty query should be empty")
	}
	if !n.ParseQuery("   ").IsEmpty() {
		t.Error("whitespace query should be empty")
	}
}

func TestTokenize(t *testing.T) {
	n := NewNormalizer()

	tokens := n.Tokenize("The deploy-script failed, again!")
	want := []string{"deploy", "script", "failed", "again"}
	if !reflect.DeepEqual(tokens, want) {
		t.Errorf("tokens = %v, want %v", tokens, want)
	}
}

func TestMetadataIndexAliases(t *testing.T) {
	n := NewNormalizer()

	m := &Memory{Metadata: map[string]Value{
		"Project": StringValue("Alpha"),
		"effort":  NumberValue(3),
		"nested":  MapValue(map[string]Value{"Owner": StringValue("Kim")}),
	}}

	index := n.MetadataIndex(m)
	for key, want := range map[string]string{
		"project":               "alpha",
		"metadata.project":      "alpha",
		"effort":                "3",
		"nested.owner":          "kim",
		"metadata.nested.owner": "kim",
	} {
		if got := index[key]; got != want {
			t.Errorf("index[%q] = %q, want %q", key, got, want)
		}
	}
}

func TestMatchesAllTerms(t *testing.T) {
	n := NewNormalizer()

	m := &Memory{
		Title:   "Deploy checklist",
		Content: "Run migrations before restarting the API",
		Tags:    []string{"ops"},
		Metadata: map[string]Value{
			"env": StringValue("production"),
		},
	}

	tests := []struct {
		terms []string
		want  bool
	}{
		{[]string{"deploy"}, true},
		{[]string{"deploy", "migrations"}, true},
		{[]string{"deploy", "kubernetes"}, false},
		{[]string{"production"}, true}, // metadata value hit
		{[]string{"ops"}, true},        // tag hit
		{[]string{}, false},
	}
	for _, tt := range tests {
		if got := n.MatchesAllTerms(m, tt.terms); got != tt.want {
			t.Errorf("MatchesAllTerms(%v) = %v, want %v", tt.terms, got, tt.want)
		}
	}
}

func TestLexicalScore(t *testing.T) {
	n := NewNormalizer()

	m := &Memory{Title: "Deploy checklist", Content: "run migrations"}
	if got := n.LexicalScore(m, []string{"deploy", "missing"}); got != 0.5 {
		t.Errorf("score = %g, want 0.5", got)
	}
	if got := n.LexicalScore(m, []string{"deploy", "migrations"}); got != 1 {
		t.Errorf("score = %g, want 1", got)
	}
}

func TestSourceText(t *testing.T) {
	n := NewNormalizer()

	m := &Memory{Title: "Title", Content: "Body", Tags: []string{"a", "b"}}
	if got := n.SourceText(m); got != "Title\nBody\na b" {
		t.Errorf("SourceText = %q", got)
	}

	if got := n.SourceText(&Memory{}); got != "" {
		t.Errorf("SourceText of empty memory = %q, want empty", got)
	}
}
