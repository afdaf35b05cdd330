// Package view holds the browsing state of one viewer: which actor's
// documents are listed and which document is open.
package view

import (
	"ktdde/internal/catalog"
	"ktdde/internal/domain"
)

// NoDocuments is shown when an actor sees nothing.
const NoDocuments = "No documents available for this actor"

// Card is one entry of an actor's document list.
type Card struct {
	Key         string `json:"key"`
	Rank        int    `json:"rank"`
	Title       string `json:"title"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Type        string `json:"type"`
	HasMapping  bool   `json:"has_mapping"`
}

// Row is one timeline entry with its display state.
type Row struct {
	domain.Event
	Interactive bool `json:"interactive"`
	Visible     bool `json:"visible_to_actor"`
}

// Model is the state of one viewer. The zero value is not usable; call New.
type Model struct {
	Actor string
	Doc   string

	cat *catalog.Catalog
}

// New starts on the first actor with no document open.
func New(c *catalog.Catalog) *Model {
	m := &Model{cat: c}
	if actors := c.Actors(); len(actors) > 0 {
		m.Actor = actors[0].Key
	}
	return m
}

// Catalog returns the catalog the model reads from.
func (m *Model) Catalog() *catalog.Catalog { return m.cat }

// SelectActor switches the listed actor. Unknown actors leave the state
// unchanged.
func (m *Model) SelectActor(key string) bool {
	if _, ok := m.cat.Actor(key); !ok {
		return false
	}
	m.Actor = key
	return true
}

// Open shows a document. Any catalog document can be opened, including
// ones outside the current actor's view.
func (m *Model) Open(key string) bool {
	if _, ok := m.cat.Get(key); !ok {
		return false
	}
	m.Doc = key
	return true
}

func (m *Model) Close() { m.Doc = "" }

// Current returns the open document.
func (m *Model) Current() (domain.Document, bool) {
	if m.Doc == "" {
		return domain.Document{}, false
	}
	return m.cat.Get(m.Doc)
}

// Tabs lists every actor, in authored order, for the actor selector.
func (m *Model) Tabs() []domain.Actor { return m.cat.Actors() }

// Cards resolves the current actor's documents. An empty result means the
// empty state (NoDocuments) applies.
func (m *Model) Cards() []Card {
	keys := m.cat.DocumentsFor(m.Actor)
	cards := make([]Card, 0, len(keys))
	for _, k := range keys {
		d, ok := m.cat.Get(k)
		if !ok {
			continue
		}
		cards = append(cards, CardOf(d, m.Actor))
	}
	return cards
}

// CardOf describes d as it appears in actor's list.
func CardOf(d domain.Document, actor string) Card {
	return Card{
		Key:         d.Key,
		Rank:        d.Views[actor],
		Title:       d.Title,
		Icon:        d.Icon,
		Description: d.Description,
		Type:        d.Type,
		HasMapping:  d.Source != nil && len(d.Source.Mappings) > 0,
	}
}

// Timeline lists every event in authored order.
func (m *Model) Timeline() []Row {
	events := m.cat.Events()
	rows := make([]Row, 0, len(events))
	for _, e := range events {
		r := Row{Event: e, Interactive: e.Interactive()}
		if d, ok := m.cat.Get(e.Doc); ok {
			r.Visible = d.VisibleTo(m.Actor)
		}
		rows = append(rows, r)
	}
	return rows
}
