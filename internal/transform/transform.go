// Package transform scripts the SAP-to-KTDDE reveal: the SAP extract a
// document was mapped from, one frame per field mapping and the final
// Verifiable Credential. Nothing is computed from the SAP values; the
// frames copy fields of the authored document.
package transform

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"ktdde/internal/domain"
	"ktdde/internal/jsonview"
)

var ErrNoMapping = errors.New("document has no SAP mapping")

// Step is one mapping applied during the reveal.
type Step struct {
	Index   int                 `json:"index"`
	Total   int                 `json:"total"`
	Mapping domain.FieldMapping `json:"mapping"`
	// Field is the top-level document field the mapping fills.
	Field string `json:"field"`
	// Sources are the SAP fields highlighted while the step plays.
	Sources []SourceValue `json:"sources"`
	Status  string        `json:"status"`
	Frame   *yaml.Node    `json:"-"`
}

// Reveal is the full scripted transformation of one document.
type Reveal struct {
	Doc        domain.Document   `json:"-"`
	Tables     []domain.SAPTable `json:"tables"`
	Steps      []Step            `json:"steps"`
	Credential *yaml.Node        `json:"-"`
}

// Frames lists every frame in play order; the last one is the credential.
func (r Reveal) Frames() []*yaml.Node {
	out := make([]*yaml.Node, 0, len(r.Steps)+1)
	for _, s := range r.Steps {
		out = append(out, s.Frame)
	}
	return append(out, r.Credential)
}

func status(i, n int) string {
	return fmt.Sprintf("Transforming... (%d/%d fields)", i+1, n)
}

// Plan builds the reveal for doc. Documents without SAP data report
// ErrNoMapping.
func Plan(doc domain.Document, opts Options) (Reveal, error) {
	if doc.Source == nil || len(doc.Source.Mappings) == 0 {
		return Reveal{}, fmt.Errorf("%s: %w", doc.Key, ErrNoMapping)
	}
	opts = opts.withDefaults()
	mappings := doc.Source.Mappings
	r := Reveal{Doc: doc, Tables: doc.Source.Tables}

	var revealed []string
	seen := map[string]bool{}
	for i, m := range mappings {
		refs, err := ParseSource(m.Source)
		if err != nil {
			return Reveal{}, fmt.Errorf("%s: mapping %d: %w", doc.Key, i+1, err)
		}
		sources, err := resolve(doc.Source, refs)
		if err != nil {
			return Reveal{}, fmt.Errorf("%s: mapping %d: %w", doc.Key, i+1, err)
		}
		field := TargetField(m.Target)
		if _, ok := jsonview.Lookup(doc.Content, field); ok && !seen[field] {
			seen[field] = true
			revealed = append(revealed, field)
		}

		frame := jsonview.Object(
			jsonview.Field{Key: "@context", Value: jsonview.QuotedList(opts.Contexts[0])},
			jsonview.Field{Key: "@type", Value: jsonview.Quoted(doc.Type)},
			jsonview.Field{Key: "status", Value: jsonview.Quoted(status(i, len(mappings)))},
		)
		for _, f := range revealed {
			v, _ := jsonview.Lookup(doc.Content, f)
			jsonview.Append(frame, jsonview.Field{Key: f, Value: v})
		}
		r.Steps = append(r.Steps, Step{
			Index:   i,
			Total:   len(mappings),
			Mapping: m,
			Field:   field,
			Sources: sources,
			Status:  status(i, len(mappings)),
			Frame:   frame,
		})
	}
	r.Credential = Credential(doc, opts)
	return r, nil
}

// Issuer identifies who signs the credential.
type Issuer struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

var (
	DefaultIssuer   = Issuer{ID: "did:web:nordic-timber.fi", Name: "Nordic Timber Oy"}
	DefaultContexts = []string{
		"https://www.w3.org/ns/credentials/v2",
		"https://iri.suomi.fi/context/ktdde/v1",
	}
)

type Options struct {
	Issuer   Issuer
	Contexts []string
	// IssuedAt defaults to the current time.
	IssuedAt time.Time
}

func (o Options) withDefaults() Options {
	if o.Issuer.ID == "" {
		o.Issuer = DefaultIssuer
	}
	if len(o.Contexts) == 0 {
		o.Contexts = DefaultContexts
	}
	if o.IssuedAt.IsZero() {
		o.IssuedAt = time.Now()
	}
	o.IssuedAt = o.IssuedAt.UTC().Truncate(time.Second)
	return o
}
