package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ktdde/internal/catalog"
	"ktdde/internal/domain"
	"ktdde/internal/events"
	"ktdde/internal/jsonview"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// Document is a snapshot row. Content is compact JSON in authored key order.
type Document struct {
	Key         string          `json:"key"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Icon        string          `json:"icon"`
	Description string          `json:"description"`
	BusinessID  string          `json:"business_id,omitempty"`
	HasMapping  bool            `json:"has_mapping"`
	Content     json.RawMessage `json:"content"`
}

// Stats counts what a snapshot holds.
type Stats struct {
	Actors    int `json:"actors"`
	Documents int `json:"documents"`
	Views     int `json:"views"`
	Mappings  int `json:"mappings"`
	Events    int `json:"timeline"`
}

// ReplaceCatalog rewrites the snapshot from c in one transaction and
// records a snapshot.created event.
func (r Repo) ReplaceCatalog(ctx context.Context, c *catalog.Catalog, w events.Writer) (Stats, error) {
	var st Stats
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return st, err
	}
	defer tx.Rollback()

	for _, table := range []string{"timeline", "field_mappings", "actor_views", "documents", "actors", "scenario"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return st, fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO scenario(id,title,scheme,source) VALUES (?,?,?,?)`,
		c.Info.ID, c.Info.Title, c.Info.Scheme, c.Source()); err != nil {
		return st, fmt.Errorf("insert scenario: %w", err)
	}
	for i, a := range c.Actors() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO actors(key,position,name,icon,description) VALUES (?,?,?,?,?)`,
			a.Key, i, a.Name, a.Icon, a.Description); err != nil {
			return st, fmt.Errorf("insert actor %s: %w", a.Key, err)
		}
		st.Actors++
	}
	for i, d := range c.Documents() {
		if err := insertDocument(ctx, tx, i, d, &st); err != nil {
			return st, err
		}
	}
	for i, e := range c.Events() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO timeline(position,date,event,actor,doc_key) VALUES (?,?,?,?,?)`,
			i, e.Date, e.Title, e.Actor, nullable(e.Doc)); err != nil {
			return st, fmt.Errorf("insert timeline %d: %w", i, err)
		}
		st.Events++
	}
	if err := w.Append(ctx, tx, events.SnapshotCreated, "scenario", c.Info.ID, events.EventPayload{
		"source":    c.Source(),
		"documents": st.Documents,
		"actors":    st.Actors,
		"timeline":  st.Events,
	}); err != nil {
		return st, fmt.Errorf("append event: %w", err)
	}
	return st, tx.Commit()
}

func insertDocument(ctx context.Context, tx *sql.Tx, pos int, d domain.Document, st *Stats) error {
	content, err := jsonview.Compact(d.Content)
	if err != nil {
		return fmt.Errorf("document %s: %w", d.Key, err)
	}
	hasMapping := d.Source != nil && len(d.Source.Mappings) > 0
	if _, err := tx.ExecContext(ctx, `INSERT INTO documents(key,position,type,title,icon,description,business_id,has_mapping,content_json) VALUES (?,?,?,?,?,?,?,?,?)`,
		d.Key, pos, d.Type, d.Title, d.Icon, d.Description, nullable(d.BusinessID), hasMapping, string(content)); err != nil {
		return fmt.Errorf("insert document %s: %w", d.Key, err)
	}
	st.Documents++
	for actor, rank := range d.Views {
		if _, err := tx.ExecContext(ctx, `INSERT INTO actor_views(actor_key,doc_key,rank) VALUES (?,?,?)`, actor, d.Key, rank); err != nil {
			return fmt.Errorf("insert view %s/%s: %w", actor, d.Key, err)
		}
		st.Views++
	}
	if d.Source == nil {
		return nil
	}
	for i, m := range d.Source.Mappings {
		if _, err := tx.ExecContext(ctx, `INSERT INTO field_mappings(doc_key,position,sap,ktdde,description) VALUES (?,?,?,?,?)`,
			d.Key, i, m.Source, m.Target, m.Description); err != nil {
			return fmt.Errorf("insert mapping %s/%d: %w", d.Key, i, err)
		}
		st.Mappings++
	}
	return nil
}

const documentColumns = `d.key,d.type,d.title,d.icon,d.description,COALESCE(d.business_id,''),d.has_mapping,d.content_json`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (Document, error) {
	var d Document
	var content string
	if err := s.Scan(&d.Key, &d.Type, &d.Title, &d.Icon, &d.Description, &d.BusinessID, &d.HasMapping, &content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return d, ErrNotFound
		}
		return d, err
	}
	d.Content = json.RawMessage(content)
	return d, nil
}

func (r Repo) queryDocuments(ctx context.Context, q string, args ...any) ([]Document, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) ListDocuments(ctx context.Context) ([]Document, error) {
	return r.queryDocuments(ctx, `SELECT `+documentColumns+` FROM documents d ORDER BY d.position`)
}

func (r Repo) GetDocument(ctx context.Context, key string) (Document, error) {
	return scanDocument(r.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents d WHERE d.key=?`, key))
}

// DocumentsFor lists an actor's documents by rank.
func (r Repo) DocumentsFor(ctx context.Context, actor string) ([]Document, error) {
	return r.queryDocuments(ctx, `SELECT `+documentColumns+` FROM actor_views v JOIN documents d ON d.key=v.doc_key WHERE v.actor_key=? ORDER BY v.rank`, actor)
}

func (r Repo) ListActors(ctx context.Context) ([]domain.Actor, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT key,name,icon,description FROM actors ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Actor
	for rows.Next() {
		var a domain.Actor
		if err := rows.Scan(&a.Key, &a.Name, &a.Icon, &a.Description); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) Timeline(ctx context.Context) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT date,event,actor,COALESCE(doc_key,'') FROM timeline ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.Date, &e.Title, &e.Actor, &e.Doc); err != nil {
			return nil, err
		}
		if on, err := time.Parse("2006-01-02", e.Date); err == nil {
			e.On = on
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// Mappings lists a document's field mappings in order.
func (r Repo) Mappings(ctx context.Context, docKey string) ([]domain.FieldMapping, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT sap,ktdde,description FROM field_mappings WHERE doc_key=? ORDER BY position`, docKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.FieldMapping
	for rows.Next() {
		var m domain.FieldMapping
		if err := rows.Scan(&m.Source, &m.Target, &m.Description); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
