// Package catalog loads the trade scenario: documents, the actors that see
// them and the dated timeline. A loaded Catalog is immutable and safe for
// concurrent readers.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"ktdde/internal/domain"
	"ktdde/internal/jsonview"
)

//go:embed scenario.yaml
var embedded []byte

const dateLayout = "2006-01-02"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidScenario = errors.New("invalid scenario")
)

// LoadError describes one problem found while loading a scenario.
type LoadError struct {
	Source string
	Line   int
	Msg    string
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Msg)
}

func (e *LoadError) Unwrap() error { return ErrInvalidScenario }

type Info struct {
	ID     string `json:"id" yaml:"id"`
	Title  string `json:"title" yaml:"title"`
	Scheme string `json:"scheme" yaml:"scheme"`
}

type Catalog struct {
	Info   Info
	source string

	actors   []domain.Actor
	actorIdx map[string]int

	docs       []domain.Document
	docIdx     map[string]int
	byBusiness map[string]string

	views  map[string][]string
	events []domain.Event
}

type rawScenario struct {
	Scenario  Info           `yaml:"scenario"`
	Actors    []rawActor    `yaml:"actors"`
	Documents []rawDocument `yaml:"documents"`
	Timeline  []rawEvent    `yaml:"timeline"`
}

type rawActor struct {
	domain.Actor
	line int
}

func (a *rawActor) UnmarshalYAML(n *yaml.Node) error {
	a.line = n.Line
	return strict(n, &a.Actor)
}

type rawDocument struct {
	Key         string         `yaml:"key"`
	Title       string         `yaml:"title"`
	Icon        string         `yaml:"icon"`
	Description string         `yaml:"description"`
	BusinessID  string         `yaml:"business_id"`
	Views       map[string]int `yaml:"views"`
	SAP         *rawSAP        `yaml:"sap"`
	Content     yaml.Node      `yaml:"content"`
}

type rawSAP struct {
	Tables   []rawTable            `yaml:"tables"`
	Mappings []domain.FieldMapping `yaml:"mappings"`
}

type rawTable struct {
	Name    string      `yaml:"name"`
	Role    string      `yaml:"role"`
	Records []yaml.Node `yaml:"records"`
}

type rawEvent struct {
	Date  string `yaml:"date"`
	Event string `yaml:"event"`
	Actor string `yaml:"actor"`
	Doc   string `yaml:"doc"`
	line  int
}

func (e *rawEvent) UnmarshalYAML(n *yaml.Node) error {
	type plain rawEvent
	var p plain
	if err := strict(n, &p); err != nil {
		return err
	}
	*e = rawEvent(p)
	e.line = n.Line
	return nil
}

// strict decodes n into v and rejects keys v does not declare. Custom
// unmarshalers do not inherit the outer decoder's KnownFields setting.
func strict(n *yaml.Node, v any) error {
	data, err := yaml.Marshal(n)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	return nil
}

var defaultOnce = sync.OnceValues(func() (*Catalog, error) {
	return Parse(embedded, "embedded")
})

// Default returns the catalog built from the embedded scenario.
func Default() (*Catalog, error) {
	return defaultOnce()
}

// Embedded returns the raw embedded scenario file.
func Embedded() []byte {
	out := make([]byte, len(embedded))
	copy(out, embedded)
	return out
}

func FromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes and validates a scenario. source names the input in errors.
func Parse(data []byte, source string) (*Catalog, error) {
	var raw rawScenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Source: source, Msg: err.Error()}
	}
	b := builder{source: source}
	c, err := b.build(raw)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type builder struct {
	source string
}

func (b builder) fail(line int, format string, args ...any) error {
	return &LoadError{Source: b.source, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (b builder) build(raw rawScenario) (*Catalog, error) {
	c := &Catalog{
		Info:       raw.Scenario,
		source:     b.source,
		actorIdx:   map[string]int{},
		docIdx:     map[string]int{},
		byBusiness: map[string]string{},
		views:      map[string][]string{},
	}
	if len(raw.Actors) == 0 {
		return nil, b.fail(0, "no actors")
	}
	for _, a := range raw.Actors {
		if a.Key == "" {
			return nil, b.fail(a.line, "actor without key")
		}
		if _, dup := c.actorIdx[a.Key]; dup {
			return nil, b.fail(a.line, "duplicate actor %q", a.Key)
		}
		c.actorIdx[a.Key] = len(c.actors)
		c.actors = append(c.actors, a.Actor)
	}

	type ranked struct {
		key  string
		rank int
	}
	perActor := map[string][]ranked{}
	for _, rd := range raw.Documents {
		line := rd.Content.Line
		doc, err := b.document(rd)
		if err != nil {
			return nil, err
		}
		if _, dup := c.docIdx[doc.Key]; dup {
			return nil, b.fail(line, "duplicate document %q", doc.Key)
		}
		if doc.BusinessID != "" {
			if other, dup := c.byBusiness[doc.BusinessID]; dup {
				return nil, b.fail(line, "document %q reuses business id %q of %q", doc.Key, doc.BusinessID, other)
			}
			c.byBusiness[doc.BusinessID] = doc.Key
		}
		for actor, rank := range doc.Views {
			if _, ok := c.actorIdx[actor]; !ok {
				return nil, b.fail(line, "document %q: unknown actor %q in views", doc.Key, actor)
			}
			if rank < 1 {
				return nil, b.fail(line, "document %q: rank for %q must be positive", doc.Key, actor)
			}
			for _, r := range perActor[actor] {
				if r.rank == rank {
					return nil, b.fail(line, "documents %q and %q share rank %d for %q", r.key, doc.Key, rank, actor)
				}
			}
			perActor[actor] = append(perActor[actor], ranked{key: doc.Key, rank: rank})
		}
		c.docIdx[doc.Key] = len(c.docs)
		c.docs = append(c.docs, doc)
	}
	for actor, list := range perActor {
		sort.Slice(list, func(i, j int) bool { return list[i].rank < list[j].rank })
		keys := make([]string, len(list))
		for i, r := range list {
			keys[i] = r.key
		}
		c.views[actor] = keys
	}

	for i, re := range raw.Timeline {
		on, err := time.Parse(dateLayout, re.Date)
		if err != nil {
			return nil, b.fail(re.line, "timeline entry %d: bad date %q", i+1, re.Date)
		}
		if re.Event == "" {
			return nil, b.fail(re.line, "timeline entry %d: missing event", i+1)
		}
		if re.Doc != "" {
			if _, ok := c.docIdx[re.Doc]; !ok {
				return nil, b.fail(re.line, "timeline entry %d: unknown document %q", i+1, re.Doc)
			}
		}
		c.events = append(c.events, domain.Event{
			Date:  re.Date,
			On:    on,
			Title: re.Event,
			Actor: re.Actor,
			Doc:   re.Doc,
		})
	}
	return c, nil
}

func (b builder) document(rd rawDocument) (domain.Document, error) {
	line := rd.Content.Line
	if rd.Key == "" {
		return domain.Document{}, b.fail(line, "document without key")
	}
	content := rd.Content
	if content.Kind != yaml.MappingNode {
		return domain.Document{}, b.fail(line, "document %q: content must be a mapping", rd.Key)
	}
	typ, ok := jsonview.TextAt(&content, "@type")
	if !ok || typ == "" {
		return domain.Document{}, b.fail(line, "document %q: content has no @type", rd.Key)
	}
	// Reject content the printer cannot render so failures surface at load.
	if _, err := jsonview.Compact(&content); err != nil {
		return domain.Document{}, b.fail(line, "document %q: %v", rd.Key, err)
	}
	doc := domain.Document{
		Key:         rd.Key,
		Type:        typ,
		Title:       rd.Title,
		Icon:        rd.Icon,
		Description: rd.Description,
		BusinessID:  rd.BusinessID,
		Views:       rd.Views,
		Content:     &content,
	}
	if doc.Views == nil {
		doc.Views = map[string]int{}
	}
	if rd.SAP != nil {
		src, err := b.sapSource(rd.Key, rd.SAP)
		if err != nil {
			return domain.Document{}, err
		}
		doc.Source = src
	}
	return doc, nil
}

func (b builder) sapSource(key string, raw *rawSAP) (*domain.SAPSource, error) {
	src := &domain.SAPSource{Mappings: raw.Mappings}
	for _, rt := range raw.Tables {
		t := domain.SAPTable{Name: rt.Name, Role: rt.Role}
		for _, rec := range rt.Records {
			if rec.Kind != yaml.MappingNode {
				return nil, b.fail(rec.Line, "document %q: table %s: record must be a mapping", key, rt.Name)
			}
			var r domain.SAPRecord
			for i := 0; i+1 < len(rec.Content); i += 2 {
				r = append(r, domain.SAPField{Name: rec.Content[i].Value, Value: rec.Content[i+1].Value})
			}
			t.Records = append(t.Records, r)
		}
		src.Tables = append(src.Tables, t)
	}
	for _, m := range src.Mappings {
		if m.Source == "" || m.Target == "" {
			return nil, b.fail(0, "document %q: mapping needs sap and ktdde", key)
		}
	}
	return src, nil
}

// Source names where the scenario was loaded from.
func (c *Catalog) Source() string { return c.source }

// Actors lists actors in authored order.
func (c *Catalog) Actors() []domain.Actor {
	out := make([]domain.Actor, len(c.actors))
	copy(out, c.actors)
	return out
}

func (c *Catalog) Actor(key string) (domain.Actor, bool) {
	i, ok := c.actorIdx[key]
	if !ok {
		return domain.Actor{}, false
	}
	return c.actors[i], true
}

// Documents lists documents in authored order. See Get for what callers
// may modify.
func (c *Catalog) Documents() []domain.Document {
	out := make([]domain.Document, len(c.docs))
	for i, d := range c.docs {
		out[i] = d.Clone()
	}
	return out
}

// Get looks a document up by key. Unknown keys report false. The returned
// Views map is a copy; Content and Source are shared and read-only.
func (c *Catalog) Get(key string) (domain.Document, bool) {
	i, ok := c.docIdx[key]
	if !ok {
		return domain.Document{}, false
	}
	return c.docs[i].Clone(), true
}

// ByBusinessID resolves a business identifier such as a B/L number.
func (c *Catalog) ByBusinessID(id string) (domain.Document, bool) {
	key, ok := c.byBusiness[id]
	if !ok {
		return domain.Document{}, false
	}
	return c.Get(key)
}

// DocumentsFor returns the keys visible to actor, ordered by rank. Unknown
// actors see nothing.
func (c *Catalog) DocumentsFor(actor string) []string {
	keys := c.views[actor]
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// Events returns the timeline in authored order.
func (c *Catalog) Events() []domain.Event {
	out := make([]domain.Event, len(c.events))
	copy(out, c.events)
	return out
}
