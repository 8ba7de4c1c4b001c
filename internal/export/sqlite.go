// Package export flattens a document into a SQLite database so topic trees
// can be queried with SQL.
package export

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/xmindctl/internal/document"
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS sheets (
	idx INTEGER PRIMARY KEY,
	id TEXT,
	title TEXT,
	root_topic_id TEXT,
	background TEXT
);

CREATE TABLE IF NOT EXISTS topics (
	seq INTEGER PRIMARY KEY,
	id TEXT,
	sheet INTEGER NOT NULL,
	parent_seq INTEGER,
	category TEXT,
	position INTEGER NOT NULL,
	depth INTEGER NOT NULL,
	title TEXT,
	path TEXT NOT NULL,
	record JSON
);

CREATE TABLE IF NOT EXISTS topic_labels (
	label TEXT,
	topic_seq INTEGER,
	PRIMARY KEY (label, topic_seq)
) WITHOUT ROWID;
`

// Writer loads one document into a database inside a single transaction.
type Writer struct {
	db        *sql.DB
	tx        *sql.Tx
	stmtSheet *sql.Stmt
	stmtTopic *sql.Stmt
	stmtLabel *sql.Stmt
	topics    int
}

// NewWriter opens dbPath, creates the schema and clears earlier exports.
func NewWriter(dbPath string) (*Writer, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Bulk load: a crash mid-export leaves a file nobody depends on.
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	w := &Writer{db: db}
	if err := w.begin(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) begin() error {
	var err error
	if w.tx, err = w.db.Begin(); err != nil {
		return err
	}
	for _, table := range []string{"meta", "sheets", "topics", "topic_labels"} {
		if _, err := w.tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if w.stmtSheet, err = w.tx.Prepare(`
		INSERT INTO sheets (idx, id, title, root_topic_id, background)
		VALUES (?, ?, ?, ?, ?)`); err != nil {
		return err
	}
	if w.stmtTopic, err = w.tx.Prepare(`
		INSERT INTO topics (seq, id, sheet, parent_seq, category, position, depth, title, path, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`); err != nil {
		return err
	}
	w.stmtLabel, err = w.tx.Prepare(`INSERT OR IGNORE INTO topic_labels (label, topic_seq) VALUES (?, ?)`)
	return err
}

// SetMeta records a key/value pair describing the export.
func (w *Writer) SetMeta(key, value string) error {
	_, err := w.tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// Write inserts every sheet and topic of doc.
func (w *Writer) Write(doc *document.Document) error {
	for i, s := range doc.Sheets {
		bg, _ := s.Background()
		var root any
		if s.RootTopic != nil {
			root = nullable(s.RootTopic.ID)
		}
		if _, err := w.stmtSheet.Exec(i, nullable(s.ID), s.Title, root, nullable(bg)); err != nil {
			return fmt.Errorf("insert sheet %d: %w", i, err)
		}
	}

	seqs := make(map[*document.Topic]int)
	return doc.Walk(func(v document.Visit) error {
		w.topics++
		seq := w.topics
		seqs[v.Topic] = seq

		var parent any
		if v.Parent != nil {
			parent = seqs[v.Parent]
		}
		record, err := v.Topic.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode %s: %w", v.Path, err)
		}
		if _, err := w.stmtTopic.Exec(seq, nullable(v.Topic.ID), v.Sheet, parent,
			nullable(v.Category), v.Index, v.Depth, v.Topic.Title, v.Path, string(record)); err != nil {
			return fmt.Errorf("insert %s: %w", v.Path, err)
		}

		for _, label := range labels(v.Topic) {
			if _, err := w.stmtLabel.Exec(label, seq); err != nil {
				return fmt.Errorf("insert label of %s: %w", v.Path, err)
			}
		}
		return nil
	})
}

// Topics returns how many topics were written.
func (w *Writer) Topics() int {
	return w.topics
}

// Close commits and closes the database.
func (w *Writer) Close() error {
	for _, stmt := range []*sql.Stmt{w.stmtSheet, w.stmtTopic, w.stmtLabel} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if err := w.tx.Commit(); err != nil {
		_ = w.db.Close()
		return fmt.Errorf("commit: %w", err)
	}
	if _, err := w.db.Exec(`CREATE INDEX IF NOT EXISTS idx_topics_parent ON topics(parent_seq, position)`); err != nil {
		_ = w.db.Close()
		return fmt.Errorf("create index: %w", err)
	}
	return w.db.Close()
}

// Abort rolls back and closes the database.
func (w *Writer) Abort() {
	_ = w.tx.Rollback()
	_ = w.db.Close()
}

// Export writes doc to a database at dbPath and returns the topic count.
func Export(doc *document.Document, source, dbPath string) (int, error) {
	w, err := NewWriter(dbPath)
	if err != nil {
		return 0, err
	}
	if err := w.SetMeta("source", source); err != nil {
		w.Abort()
		return 0, err
	}
	if err := w.SetMeta("exported_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
		w.Abort()
		return 0, err
	}
	if err := w.Write(doc); err != nil {
		w.Abort()
		return 0, err
	}
	n := w.Topics()
	if err := w.Close(); err != nil {
		return 0, err
	}
	return n, nil
}

func labels(t *document.Topic) []string {
	raw, ok := t.Extra("labels")
	if !ok {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
