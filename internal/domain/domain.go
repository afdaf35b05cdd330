package domain

import (
	"time"

	"gopkg.in/yaml.v3"
)

type Actor struct {
	Key         string `json:"key" yaml:"key"`
	Name        string `json:"name" yaml:"name"`
	Icon        string `json:"icon" yaml:"icon"`
	Description string `json:"description" yaml:"description"`
}

// Document is one authored trade document. Content holds the ordered
// field tree exactly as authored and must be treated as read-only.
type Document struct {
	Key         string
	Type        string
	Title       string
	Icon        string
	Description string
	BusinessID  string
	// Views maps actor key to the document's position in that actor's view.
	Views   map[string]int
	Source  *SAPSource
	Content *yaml.Node
}

// Clone returns d with its own Views map.
func (d Document) Clone() Document {
	views := make(map[string]int, len(d.Views))
	for k, v := range d.Views {
		views[k] = v
	}
	d.Views = views
	return d
}

// VisibleTo reports whether the actor sees this document.
func (d Document) VisibleTo(actor string) bool {
	_, ok := d.Views[actor]
	return ok
}

type Event struct {
	Date  string    `json:"date"`
	On    time.Time `json:"-"`
	Title string    `json:"event"`
	Actor string    `json:"actor"`
	Doc   string    `json:"doc,omitempty"`
}

// Interactive is false for informational events with no document.
func (e Event) Interactive() bool {
	return e.Doc != ""
}

type FieldMapping struct {
	Source      string `json:"sap" yaml:"sap"`
	Target      string `json:"ktdde" yaml:"ktdde"`
	Description string `json:"desc" yaml:"desc"`
}

type SAPField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type SAPRecord []SAPField

// Get returns the value of the named field.
func (r SAPRecord) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

type SAPTable struct {
	Name    string      `json:"name"`
	Role    string      `json:"role" enum:"header,items"`
	Records []SAPRecord `json:"records"`
}

// SAPSource is the ERP extract a document was hand-mapped from.
type SAPSource struct {
	Tables   []SAPTable     `json:"tables"`
	Mappings []FieldMapping `json:"mappings"`
}

// Table returns the named SAP table.
func (s *SAPSource) Table(name string) (SAPTable, bool) {
	if s == nil {
		return SAPTable{}, false
	}
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return SAPTable{}, false
}
