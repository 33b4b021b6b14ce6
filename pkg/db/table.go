package db

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/omendb/omendb/pkg/alex"
	"github.com/omendb/omendb/pkg/errs"
	"github.com/omendb/omendb/pkg/types"
)

// catalogFileName is the catalog persistence path relative to a
// Database's data directory (SPEC_FULL.md §5: "meta/catalog.json"),
// grounded on the teacher's encoding/json + bucket persistence idiom
// in pkg/storage/boltdb.go.
const catalogFileName = "meta/catalog.json"

// catalogEntry is one table's persisted metadata. The AlexTree itself
// is never serialized here -- it is rebuilt from KVStore's committed
// rows on startup (see Database.rebuildIndexes) rather than carrying
// its own on-disk format.
type catalogEntry struct {
	TableID uint32       `json:"table_id"`
	Schema  types.Schema `json:"schema"`
}

// Table is one catalog entry plus the in-memory structures a live
// Database keeps for it: its TableID, and the AlexTree used as a
// logical PK-membership index alongside the KVStore (SPEC_FULL.md §5).
//
// The tree only ever grows. Deleting a row tombstones it in the
// KVStore/WAL at its own commit_ts -- visible to old snapshots exactly
// as MVCC requires -- but a PK is never removed from the tree, because
// the tree has no notion of commit_ts: if it forgot a deleted key, a
// transaction whose snapshot predates the deletion would see a false
// negative from the tree's fast existence check instead of the value
// it's still entitled to see. Re-inserting a previously deleted PK is
// therefore idempotent against the tree (see Database.Insert), not a
// second Insert call.
type Table struct {
	mu     sync.RWMutex
	id     types.TableID
	schema types.Schema
	tree   *alex.AlexTree
}

// ID returns the table's stable identifier.
func (t *Table) ID() types.TableID { return t.id }

// Schema returns the table's column definitions.
func (t *Table) Schema() types.Schema {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.schema
}

// knownPK reports whether pk has ever been inserted into this table,
// live or tombstoned.
func (t *Table) knownPK(pk int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, found := t.tree.Get(pk)
	return found
}

// remember records pk as having been inserted, if it isn't already.
func (t *Table) remember(pk int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, found := t.tree.Get(pk); found {
		return nil
	}
	return t.tree.Insert(pk, pk)
}

// catalog is the set of tables a Database knows about, persisted as a
// flat JSON file under meta/.
type catalog struct {
	mu      sync.RWMutex
	tables  map[string]*Table
	nextID  uint32
	dataDir string
}

func newCatalog(dataDir string) *catalog {
	return &catalog{tables: make(map[string]*Table), dataDir: dataDir}
}

func (c *catalog) path() string {
	return filepath.Join(c.dataDir, catalogFileName)
}

// load restores a previously persisted catalog. A missing file means a
// fresh database with no tables yet, not an error.
func (c *catalog) load() error {
	const op = "db.catalog.load"
	raw, err := os.ReadFile(c.path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errs.NewStorageIo(op, err)
	}

	var entries map[string]catalogEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return errs.NewCorrupted(op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for name, e := range entries {
		c.tables[name] = &Table{id: types.TableID(e.TableID), schema: e.Schema, tree: alex.NewAlexTree()}
		if e.TableID >= c.nextID {
			c.nextID = e.TableID + 1
		}
	}
	return nil
}

// save persists the catalog's current table set to meta/catalog.json.
func (c *catalog) save() error {
	const op = "db.catalog.save"
	c.mu.RLock()
	entries := make(map[string]catalogEntry, len(c.tables))
	for name, t := range c.tables {
		entries[name] = catalogEntry{TableID: uint32(t.id), Schema: t.schema}
	}
	c.mu.RUnlock()

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errs.NewBadInput(op, err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path()), 0o755); err != nil {
		return errs.NewStorageIo(op, err)
	}
	if err := os.WriteFile(c.path(), raw, 0o644); err != nil {
		return errs.NewStorageIo(op, err)
	}
	return nil
}

func (c *catalog) create(schema types.Schema) (*Table, error) {
	const op = "db.catalog.create"
	if _, found := schema.PrimaryKeyColumn(); !found {
		return nil, errs.NewBadInput(op, errNoPrimaryKey)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tables[schema.TableName]; exists {
		return nil, errs.Newf(errs.BadInput, op, "table %q already exists", schema.TableName)
	}

	t := &Table{id: types.TableID(c.nextID), schema: schema, tree: alex.NewAlexTree()}
	c.nextID++
	c.tables[schema.TableName] = t
	return t, nil
}

func (c *catalog) drop(name string) error {
	const op = "db.catalog.drop"
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tables[name]; !exists {
		return errs.NewNotFound(op, nil)
	}
	delete(c.tables, name)
	return nil
}

func (c *catalog) get(name string) (*Table, error) {
	const op = "db.catalog.get"
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, exists := c.tables[name]
	if !exists {
		return nil, errs.Newf(errs.NotFound, op, "no such table %q", name)
	}
	return t, nil
}

func (c *catalog) list() []*Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	return out
}
