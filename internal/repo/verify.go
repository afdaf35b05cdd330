package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"ktdde/internal/catalog"
	"ktdde/internal/domain"
	"ktdde/internal/jsonview"
)

// Drift is one difference between the snapshot and a catalog.
type Drift struct {
	Kind    string `json:"kind"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
}

// Verify reads the snapshot back and compares it with c. An empty result
// means the snapshot still matches.
func (r Repo) Verify(ctx context.Context, c *catalog.Catalog) ([]Drift, error) {
	drift := []Drift{}
	add := func(kind, key, format string, args ...any) {
		drift = append(drift, Drift{Kind: kind, Key: key, Message: fmt.Sprintf(format, args...)})
	}

	actors, err := r.ListActors(ctx)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(actors, c.Actors()) {
		add("actors", "", "snapshot has %d actors, scenario %d", len(actors), len(c.Actors()))
	}
	for _, a := range c.Actors() {
		rows, err := r.DocumentsFor(ctx, a.Key)
		if err != nil {
			return nil, err
		}
		got := make([]string, len(rows))
		for i, d := range rows {
			got[i] = d.Key
		}
		if want := c.DocumentsFor(a.Key); !slices.Equal(got, want) {
			add("view", a.Key, "snapshot lists %v, scenario %v", got, want)
		}
	}

	docs, err := r.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if _, ok := c.Get(d.Key); !ok {
			add("document", d.Key, "not in scenario")
		}
	}
	for _, d := range c.Documents() {
		row, err := r.GetDocument(ctx, d.Key)
		if errors.Is(err, ErrNotFound) {
			add("document", d.Key, "missing from snapshot")
			continue
		}
		if err != nil {
			return nil, err
		}
		want, err := jsonview.Compact(d.Content)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(row.Content, want) {
			add("document", d.Key, "content differs")
		}
		var mappings []domain.FieldMapping
		if d.Source != nil {
			mappings = d.Source.Mappings
		}
		got, err := r.Mappings(ctx, d.Key)
		if err != nil {
			return nil, err
		}
		if !slices.Equal(got, mappings) {
			add("mappings", d.Key, "snapshot has %d mappings, scenario %d", len(got), len(mappings))
		}
	}

	events, err := r.Timeline(ctx)
	if err != nil {
		return nil, err
	}
	want := c.Events()
	if len(events) != len(want) {
		add("timeline", "", "snapshot has %d entries, scenario %d", len(events), len(want))
	} else {
		for i := range events {
			if events[i].Date != want[i].Date || events[i].Title != want[i].Title || events[i].Doc != want[i].Doc {
				add("timeline", want[i].Doc, "entry %d is %q on %s, scenario %q on %s", i+1, events[i].Title, events[i].Date, want[i].Title, want[i].Date)
			}
		}
	}
	return drift, nil
}
