package sql

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/syssam/adlschema/compiler/gen/db"
)

// DefaultSnapshotFile is the default name of the stored snapshot.
const DefaultSnapshotFile = "schema.snapshot.json"

// Snapshot is the stored relational model a migration is planned against.
type Snapshot struct {
	Profile string           `json:"profile"`
	Tables  []*SnapshotTable `json:"tables"`
}

// SnapshotTable is a table of a Snapshot. Index and constraint names follow
// the DDL file.
type SnapshotTable struct {
	Name        string                `json:"name"`
	Columns     []*SnapshotColumn     `json:"columns"`
	PrimaryKey  []string              `json:"primaryKey,omitempty"`
	Indexes     []*SnapshotIndex      `json:"indexes,omitempty"`
	ForeignKeys []*SnapshotForeignKey `json:"foreignKeys,omitempty"`
}

// SnapshotColumn is a table column.
type SnapshotColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
}

// SnapshotIndex is an index or a uniqueness constraint.
type SnapshotIndex struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

// SnapshotForeignKey is a single column foreign key.
type SnapshotForeignKey struct {
	Name      string `json:"name"`
	Column    string `json:"column"`
	RefTable  string `json:"refTable"`
	RefColumn string `json:"refColumn"`
}

// TakeSnapshot captures the tables of s.
func TakeSnapshot(s *db.Schema) *Snapshot {
	snap := &Snapshot{Profile: s.Profile.Name, Tables: make([]*SnapshotTable, 0, len(s.Tables))}
	for _, t := range s.Tables {
		st := &SnapshotTable{Name: t.Name, PrimaryKey: t.PrimaryKey}
		for _, c := range t.Columns {
			st.Columns = append(st.Columns, &SnapshotColumn{Name: c.Name, Type: c.Type, Nullable: c.Nullable})
			if fk := c.ForeignKey; fk != nil {
				st.ForeignKeys = append(st.ForeignKeys, &SnapshotForeignKey{
					Name:      fmt.Sprintf("%s_%s_fk", t.Name, c.Name),
					Column:    c.Name,
					RefTable:  fk.Table,
					RefColumn: fk.Column,
				})
			}
		}
		for i, cols := range t.Indexes {
			st.Indexes = append(st.Indexes, &SnapshotIndex{Name: fmt.Sprintf("%s_%d_idx", t.Name, i+1), Columns: cols})
		}
		for i, cols := range t.Unique {
			st.Indexes = append(st.Indexes, &SnapshotIndex{Name: fmt.Sprintf("%s_%d_con", t.Name, i+1), Columns: cols, Unique: true})
		}
		snap.Tables = append(snap.Tables, st)
	}
	return snap
}

// ReadSnapshot reads a stored snapshot. A missing file is an empty
// snapshot.
func ReadSnapshot(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(b)
}

// ParseSnapshot decodes a snapshot.
func ParseSnapshot(b []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("sql: parse snapshot: %w", err)
	}
	return &s, nil
}

// Marshal encodes the snapshot as indented JSON.
func (s *Snapshot) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Table returns the table named name.
func (s *Snapshot) Table(name string) (*SnapshotTable, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Column returns the column named name.
func (t *SnapshotTable) Column(name string) (*SnapshotColumn, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Index returns the index named name.
func (t *SnapshotTable) Index(name string) (*SnapshotIndex, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return nil, false
}
