// Package saves manages the save directory: Quetzal files on disk plus a
// small catalog database describing each slot.
package saves

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tliron/commonlog"

	_ "modernc.org/sqlite"
)

// StoryID identifies the story a save slot belongs to. Slots from other
// stories are never offered for restore.
type StoryID struct {
	Release  uint16
	Serial   string
	Checksum uint16
}

// Entry is one cataloged save slot.
type Entry struct {
	Name      string
	File      string
	Story     StoryID
	Turns     int
	CreatedAt time.Time
}

// Store is an open save directory.
type Store struct {
	dir string
	db  *sql.DB
	log commonlog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS slots (
	name       TEXT NOT NULL,
	file       TEXT NOT NULL,
	release    INTEGER NOT NULL,
	serial     TEXT NOT NULL,
	checksum   INTEGER NOT NULL,
	turns      INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS slots_story ON slots (release, serial, checksum, created_at);
`

// Open prepares the save directory, creating it and its catalog database as
// needed.
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create save directory %s: %w", dir, err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "saves.db"))
	if err != nil {
		return nil, fmt.Errorf("cannot open save catalog: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot initialize save catalog: %w", err)
	}
	return &Store{
		dir: dir,
		db:  db,
		log: commonlog.GetLogger("grue.saves"),
	}, nil
}

// Close releases the catalog database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the resolved save directory.
func (s *Store) Dir() string {
	return s.dir
}

// sanitize reduces a slot name to something safe as a file name.
func sanitize(name string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		}
		return '-'
	}, name)
	if out == "" {
		out = "save"
	}
	return out
}

// Save writes a Quetzal blob under the given slot name and catalogs it.
func (s *Store) Save(name string, story StoryID, turns int, data []byte) error {
	base := sanitize(name)
	file := base + ".qzl"
	// Never overwrite an existing slot file; pick a fresh suffix instead.
	for n := 2; ; n++ {
		if _, err := os.Stat(filepath.Join(s.dir, file)); os.IsNotExist(err) {
			break
		}
		file = fmt.Sprintf("%s-%d.qzl", base, n)
	}

	path := filepath.Join(s.dir, file)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write save file %s: %w", path, err)
	}

	_, err := s.db.Exec(
		`INSERT INTO slots (name, file, release, serial, checksum, turns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, file, story.Release, story.Serial, story.Checksum, turns,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("cannot catalog save %s: %w", name, err)
	}
	s.log.Infof("saved %s (%d bytes) to %s", name, len(data), path)
	return nil
}

// Latest returns the newest save blob for the given story, or ("", nil, nil)
// when there is none.
func (s *Store) Latest(story StoryID) (string, []byte, error) {
	row := s.db.QueryRow(
		`SELECT name, file FROM slots
		 WHERE release = ? AND serial = ? AND checksum = ?
		 ORDER BY created_at DESC LIMIT 1`,
		story.Release, story.Serial, story.Checksum)

	var name, file string
	if err := row.Scan(&name, &file); err != nil {
		if err == sql.ErrNoRows {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("cannot query save catalog: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, file))
	if err != nil {
		return "", nil, fmt.Errorf("cannot read save file %s: %w", file, err)
	}
	return name, data, nil
}

// ByName returns the newest save blob recorded under a slot name for the
// given story.
func (s *Store) ByName(name string, story StoryID) ([]byte, error) {
	row := s.db.QueryRow(
		`SELECT file FROM slots
		 WHERE name = ? AND release = ? AND serial = ? AND checksum = ?
		 ORDER BY created_at DESC LIMIT 1`,
		name, story.Release, story.Serial, story.Checksum)

	var file string
	if err := row.Scan(&file); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot query save catalog: %w", err)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, file))
	if err != nil {
		return nil, fmt.Errorf("cannot read save file %s: %w", file, err)
	}
	return data, nil
}

// List returns every cataloged slot for the story, newest first.
func (s *Store) List(story StoryID) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT name, file, turns, created_at FROM slots
		 WHERE release = ? AND serial = ? AND checksum = ?
		 ORDER BY created_at DESC`,
		story.Release, story.Serial, story.Checksum)
	if err != nil {
		return nil, fmt.Errorf("cannot query save catalog: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e := Entry{Story: story}
		var created string
		if err := rows.Scan(&e.Name, &e.File, &e.Turns, &created); err != nil {
			return nil, fmt.Errorf("cannot scan save catalog row: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
