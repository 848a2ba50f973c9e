package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"repowiki/internal/graph"
	"repowiki/internal/knowledge"
	"repowiki/internal/wiki"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a snapshot has no stored value yet.
var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS graph_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			meta JSON
		);`,
		`CREATE TABLE IF NOT EXISTS imports (
			idx INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS files (
			seq INTEGER PRIMARY KEY,
			path TEXT UNIQUE NOT NULL,
			lang TEXT,
			classes JSON,
			functions JSON,
			imports JSON
		);`,
		`CREATE TABLE IF NOT EXISTS units (
			seq INTEGER PRIMARY KEY,
			id TEXT UNIQUE NOT NULL,
			level TEXT,
			path TEXT,
			lang TEXT,
			kind TEXT,
			name TEXT,
			signature TEXT,
			docstring TEXT,
			start_line INTEGER,
			end_line INTEGER,
			code TEXT,
			summary TEXT,
			embedding BLOB
		);`,
		`CREATE INDEX IF NOT EXISTS idx_units_path ON units(path);`,
		`CREATE TABLE IF NOT EXISTS wiki (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			content JSON
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- GraphStore ---

func (s *SQLiteStore) SaveGraph(ctx context.Context, g *graph.Graph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{"DELETE FROM graph_meta", "DELETE FROM imports", "DELETE FROM files"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}

	meta, err := json.Marshal(g.Meta)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO graph_meta (id, meta) VALUES (1, ?)`, meta); err != nil {
		return err
	}

	impStmt, err := tx.PrepareContext(ctx, `INSERT INTO imports (idx, name) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer impStmt.Close()
	for i, name := range g.Imports.Names() {
		if _, err := impStmt.ExecContext(ctx, i, name); err != nil {
			return err
		}
	}

	fileStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files (seq, path, lang, classes, functions, imports)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer fileStmt.Close()
	for i, f := range g.Files {
		classes, _ := json.Marshal(f.Classes)
		functions, _ := json.Marshal(f.Functions)
		imports, _ := json.Marshal(f.Imports)
		if _, err := fileStmt.ExecContext(ctx, i, f.Path, f.Lang, classes, functions, imports); err != nil {
			return fmt.Errorf("failed to save file %s: %w", f.Path, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadGraph(ctx context.Context) (*graph.Graph, error) {
	g := &graph.Graph{}

	var meta []byte
	err := s.db.QueryRowContext(ctx, `SELECT meta FROM graph_meta WHERE id = 1`).Scan(&meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("graph: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meta, &g.Meta); err != nil {
		return nil, fmt.Errorf("failed to decode graph meta: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM imports ORDER BY idx`)
	if err != nil {
		return nil, fmt.Errorf("failed to query imports: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	g.Imports = graph.DictionaryFrom(names)

	fileRows, err := s.db.QueryContext(ctx, `SELECT path, lang, classes, functions, imports FROM files ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer fileRows.Close()

	g.Files = []graph.FileRecord{}
	for fileRows.Next() {
		var f graph.FileRecord
		var classes, functions, imports []byte
		if err := fileRows.Scan(&f.Path, &f.Lang, &classes, &functions, &imports); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		if err := unmarshalAll(
			[][]byte{classes, functions, imports},
			[]any{&f.Classes, &f.Functions, &f.Imports},
		); err != nil {
			return nil, fmt.Errorf("failed to decode file %s: %w", f.Path, err)
		}
		g.Files = append(g.Files, f)
	}
	return g, fileRows.Err()
}

// --- UnitStore ---

func (s *SQLiteStore) SaveUnits(ctx context.Context, units []knowledge.Unit, embeddings [][]float32) error {
	if embeddings != nil && len(embeddings) != len(units) {
		return fmt.Errorf("got %d embeddings for %d units", len(embeddings), len(units))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM units`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO units (seq, id, level, path, lang, kind, name, signature, docstring, start_line, end_line, code, summary, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			level=excluded.level,
			path=excluded.path,
			lang=excluded.lang,
			kind=excluded.kind,
			name=excluded.name,
			signature=excluded.signature,
			docstring=excluded.docstring,
			start_line=excluded.start_line,
			end_line=excluded.end_line,
			code=excluded.code,
			summary=excluded.summary,
			embedding=excluded.embedding
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, u := range units {
		var blob []byte
		if embeddings != nil {
			if blob, err = encodeVector(embeddings[i]); err != nil {
				return err
			}
		}
		if _, err := stmt.ExecContext(ctx, i, u.ID, string(u.Level), u.Path, u.Lang, u.Kind, u.Name,
			u.Signature, u.Docstring, u.StartLine, u.EndLine, u.Code, u.Summary, blob); err != nil {
			return fmt.Errorf("failed to save unit %s: %w", u.ID, err)
		}
	}

	return tx.Commit()
}

const unitColumns = `id, level, path, lang, kind, name, signature, docstring, start_line, end_line, code, summary`

func (s *SQLiteStore) LoadUnits(ctx context.Context) ([]knowledge.Unit, error) {
	return s.queryUnits(ctx, `SELECT `+unitColumns+` FROM units ORDER BY seq`)
}

func (s *SQLiteStore) FindUnitsByFile(ctx context.Context, path string) ([]knowledge.Unit, error) {
	return s.queryUnits(ctx, `SELECT `+unitColumns+` FROM units WHERE path = ? ORDER BY seq`, path)
}

func (s *SQLiteStore) queryUnits(ctx context.Context, query string, args ...any) ([]knowledge.Unit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []knowledge.Unit
	for rows.Next() {
		var u knowledge.Unit
		var level string
		if err := rows.Scan(&u.ID, &level, &u.Path, &u.Lang, &u.Kind, &u.Name, &u.Signature,
			&u.Docstring, &u.StartLine, &u.EndLine, &u.Code, &u.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		u.Level = knowledge.Level(level)
		units = append(units, u)
	}
	return units, rows.Err()
}

func (s *SQLiteStore) LoadEmbeddings(ctx context.Context) (map[string][]float32, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM units WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("unit %s: %w", id, err)
		}
		out[id] = vec
	}
	return out, rows.Err()
}

// --- WikiStore ---

func (s *SQLiteStore) SaveWiki(ctx context.Context, w wiki.Structure) error {
	content, err := json.Marshal(w.Clone())
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wiki (id, content) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET content=excluded.content
	`, content)
	return err
}

func (s *SQLiteStore) LoadWiki(ctx context.Context) (wiki.Structure, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM wiki WHERE id = 1`).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return wiki.Structure{}, fmt.Errorf("wiki: %w", ErrNotFound)
	}
	if err != nil {
		return wiki.Structure{}, err
	}
	var w wiki.Structure
	if err := json.Unmarshal(content, &w); err != nil {
		return wiki.Structure{}, fmt.Errorf("failed to decode wiki: %w", err)
	}
	return w.Clone(), nil
}

func encodeVector(v []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob of %d bytes is not a float32 vector", len(blob))
	}
	v := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func unmarshalAll(data [][]byte, targets []any) error {
	for i, d := range data {
		if len(d) == 0 {
			continue
		}
		if err := json.Unmarshal(d, targets[i]); err != nil {
			return err
		}
	}
	return nil
}
