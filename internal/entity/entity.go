// Package entity finds the time and location phrases of an event sentence.
//
// Candidates come from two independent sources: an injected statistical
// Tagger and a table of fallback regular expressions (Scanner). Candidates of
// the same kind are merged into one phrase by Merge. An explicit
// "từ A đến B" range bypasses the merge and yields a start and end phrase.
package entity

import "strings"

// Kind is the category of a candidate span.
type Kind string

const (
	KindTime Kind = "TIME"
	KindLoc  Kind = "LOC"
)

// Origin records which source produced a candidate.
type Origin string

const (
	OriginTagger  Origin = "tagger"
	OriginPattern Origin = "pattern"
)

// Candidate is one span found in the input. It lives only for the duration of
// a single extraction.
type Candidate struct {
	Text   string
	Kind   Kind
	Origin Origin
}

// Token is one unit of tagger output. Tag is the tagger's category label; a
// label containing "TIME" or "LOC" makes the token a candidate.
type Token struct {
	Text string
	Tag  string
}

// Tagger is the statistical tagging capability. Implementations must be
// side-effect free; an error or an empty result only removes the tagger's
// contribution.
type Tagger interface {
	Tag(text string) ([]Token, error)
}

// TaggerFunc adapts a function to Tagger.
type TaggerFunc func(text string) ([]Token, error)

// Tag implements Tagger.
func (f TaggerFunc) Tag(text string) ([]Token, error) { return f(text) }

// candidatesFromTokens keeps tokens whose tag names a time or location.
func candidatesFromTokens(tokens []Token) []Candidate {
	var out []Candidate
	for _, tok := range tokens {
		text := strings.TrimSpace(tok.Text)
		if text == "" {
			continue
		}
		tag := strings.ToUpper(tok.Tag)
		if strings.Contains(tag, string(KindTime)) {
			out = append(out, Candidate{Text: text, Kind: KindTime, Origin: OriginTagger})
		}
		if strings.Contains(tag, string(KindLoc)) {
			out = append(out, Candidate{Text: text, Kind: KindLoc, Origin: OriginTagger})
		}
	}
	return out
}

// texts returns the candidate texts of kind k in order.
func texts(cands []Candidate, k Kind) []string {
	var out []string
	for _, c := range cands {
		if c.Kind == k {
			out = append(out, c.Text)
		}
	}
	return out
}
