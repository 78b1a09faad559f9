// Package tagger provides the statistical taggers behind entity.Tagger.
package tagger

import (
	"strings"

	"github.com/tsawler/prose/v3"

	"vnsched/internal/entity"
)

// Prose tags entities in-process with the prose NER model. The model is
// trained on English text, so on Vietnamese input it mostly contributes
// dates, times and place names written in Latin script; the regex fallback
// does the rest.
type Prose struct{}

func NewProse() *Prose {
	return &Prose{}
}

// proseLabel maps prose entity labels onto the TIME/LOC vocabulary the
// extractor understands. Other labels are passed through unchanged and
// ignored downstream.
func proseLabel(label string) string {
	switch strings.ToUpper(label) {
	case "DATE", "TIME":
		return "TIME"
	case "GPE", "LOC", "FAC":
		return "LOC"
	default:
		return strings.ToUpper(label)
	}
}

// Tag implements entity.Tagger.
func (p *Prose) Tag(text string) ([]entity.Token, error) {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, err
	}

	var tokens []entity.Token
	for _, ent := range doc.Entities() {
		tokens = append(tokens, entity.Token{Text: ent.Text, Tag: proseLabel(ent.Label)})
	}
	return tokens, nil
}
