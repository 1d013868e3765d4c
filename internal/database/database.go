// Package database implements the persistent package database: the
// registered sources, the installed groups and the union view of
// available packages, rooted at one scope directory.
package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/ralph-pm/ralph/internal/api"
	"github.com/ralph-pm/ralph/internal/future"
	"github.com/ralph-pm/ralph/internal/source"
	"github.com/ralph-pm/ralph/internal/util"
	"github.com/ralph-pm/ralph/internal/version"
)

// SchemaVersion is the current major version of the on-disk JSON
// schema. Readers reject databases written by a newer major version.
const SchemaVersion = 1

// Scope identifies which of the three composed databases a directory
// holds.
type Scope string

const (
	ScopeProject Scope = "project"
	ScopeUser    Scope = "user"
	ScopeSystem  Scope = "system"
)

// databaseFile models database.json. Field order keeps the marshaled
// keys sorted.
type databaseFile struct {
	SchemaVersion int    `json:"schemaVersion"`
	Scope         string `json:"scope"`
}

// Candidate is one available package together with the source that
// provides it.
type Candidate struct {
	Package *api.Package
	Source  string
}

// View is the read side shared by a single database and the composed
// project/user/system view.
type View interface {
	FindPackages(name string, req version.Requirement) []Candidate
	PackageNames() []string

	// Satisfiable reports whether any available package matches the
	// dependency.
	Satisfiable(dep api.Dependency) bool
}

// Database is one package database scope rooted at a directory.
type Database struct {
	mu    sync.RWMutex
	root  string
	scope Scope

	// sources in registration order; order is the resolver tie-break.
	sources []source.Source

	// one mutex per source name serializes clone dir access.
	sourceMu map[string]*sync.Mutex

	groups map[string]*Group
	index  *searchIndex
}

// OpenOrCreate ensures the directory layout under root, loads the
// existing state and returns a handle.
func OpenOrCreate(root string, scope Scope) *future.Future[*Database] {
	return future.Async(func(n future.Notifier) (*Database, error) {
		return openOrCreate(root, scope)
	})
}

func openOrCreate(root string, scope Scope) (*Database, error) {
	for _, dir := range []string{root, filepath.Join(root, "sources"), filepath.Join(root, "groups")} {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return nil, err
		}
	}
	collectTempDirs(filepath.Join(root, "sources"))

	db := &Database{
		root:     root,
		scope:    scope,
		sourceMu: map[string]*sync.Mutex{},
		groups:   map[string]*Group{},
	}

	if err := db.loadMeta(); err != nil {
		return nil, err
	}
	if err := db.loadSources(); err != nil {
		return nil, err
	}

	// The sqlite search index is derived state; running without it is
	// fine.
	if index, err := openSearchIndex(filepath.Join(root, "index.db")); err == nil {
		db.index = index
		if err := index.rebuild(db.sources); err != nil {
			index.close()
			db.index = nil
		}
	}

	return db, nil
}

// collectTempDirs garbage-collects clone directories left behind by a
// failed source registration.
func collectTempDirs(sourcesDir string) {
	entries, err := os.ReadDir(sourcesDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), ".tmp-") {
			os.RemoveAll(filepath.Join(sourcesDir, entry.Name()))
		}
	}
}

func (db *Database) loadMeta() error {
	path := filepath.Join(db.root, "database.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return db.saveMeta()
	} else if err != nil {
		return err
	}

	var meta databaseFile
	if err := json.Unmarshal(data, &meta); err != nil {
		return &CorruptError{File: path, Detail: err.Error()}
	}
	if meta.SchemaVersion > SchemaVersion {
		return fmt.Errorf("%w: %d", ErrIncompatibleDatabase, meta.SchemaVersion)
	}
	return nil
}

func (db *Database) saveMeta() error {
	out, err := api.MarshalIndentSorted(databaseFile{SchemaVersion: SchemaVersion, Scope: string(db.scope)})
	if err != nil {
		return err
	}
	return util.WriteAtomic(filepath.Join(db.root, "database.json"), out)
}

func (db *Database) loadSources() error {
	path := filepath.Join(db.root, "sources.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}

	sources, err := source.Unmarshal(data)
	if err != nil {
		return &CorruptError{File: path, Detail: err.Error()}
	}
	for _, src := range sources {
		if gitSrc, ok := src.(*source.GitSource); ok {
			if err := gitSrc.LoadCatalog(db.cloneDir(src.Name())); err != nil {
				util.WarningMsg("loading catalog of source %s: %s", src.Name(), err)
			}
		}
		db.sourceMu[src.Name()] = &sync.Mutex{}
	}
	db.sources = sources
	return nil
}

func (db *Database) saveSourcesLocked() error {
	out, err := source.Marshal(db.sources)
	if err != nil {
		return err
	}
	return util.WriteAtomic(filepath.Join(db.root, "sources.json"), out)
}

// Root returns the scope root directory.
func (db *Database) Root() string { return db.root }

// Scope returns the database scope.
func (db *Database) Scope() Scope { return db.scope }

// FileLock returns the advisory inter-process lock guarding this
// database. Callers hold it across mutations.
func (db *Database) FileLock() *flock.Flock {
	return flock.New(filepath.Join(db.root, ".lock"))
}

func (db *Database) cloneDir(name string) string {
	return filepath.Join(db.root, "sources", name)
}

// Sources returns the registered sources in registration order.
func (db *Database) Sources() []source.Source {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]source.Source(nil), db.sources...)
}

// Source returns the source with the given name.
func (db *Database) Source(name string) (source.Source, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if src := db.findSourceLocked(name); src != nil {
		return src, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
}

func (db *Database) findSourceLocked(name string) source.Source {
	for _, src := range db.sources {
		if src.Name() == name {
			return src
		}
	}
	return nil
}

// RegisterSource adds a new source and persists the metadata. The
// clone directory is created empty; 'sources update' populates it.
func (db *Database) RegisterSource(src source.Source) *future.Future[struct{}] {
	return future.Async(func(n future.Notifier) (struct{}, error) {
		db.mu.Lock()
		defer db.mu.Unlock()

		if db.findSourceLocked(src.Name()) != nil {
			return struct{}{}, fmt.Errorf("%w: %s", ErrDuplicateSource, src.Name())
		}
		if err := os.MkdirAll(db.cloneDir(src.Name()), 0777); err != nil {
			return struct{}{}, err
		}

		db.sources = append(db.sources, src)
		db.sourceMu[src.Name()] = &sync.Mutex{}
		if err := db.saveSourcesLocked(); err != nil {
			db.sources = db.sources[:len(db.sources)-1]
			delete(db.sourceMu, src.Name())
			os.RemoveAll(db.cloneDir(src.Name()))
			return struct{}{}, err
		}
		db.rebuildIndexLocked()
		return struct{}{}, nil
	})
}

// UnregisterSource removes a source, failing with ErrInUse while any
// group still references it.
func (db *Database) UnregisterSource(name string) *future.Future[struct{}] {
	return future.Async(func(n future.Notifier) (struct{}, error) {
		db.mu.Lock()
		defer db.mu.Unlock()

		src := db.findSourceLocked(name)
		if src == nil {
			return struct{}{}, fmt.Errorf("%w: %s", ErrUnknownSource, name)
		}

		groups, err := db.allGroupsLocked()
		if err != nil {
			return struct{}{}, err
		}
		for _, group := range groups {
			for _, record := range group.records {
				if record.Source == name {
					return struct{}{}, fmt.Errorf("%w: %s is installed from %s in group %s",
						ErrInUse, record.Name, name, group.name)
				}
			}
		}

		kept := db.sources[:0]
		for _, s := range db.sources {
			if s.Name() != name {
				kept = append(kept, s)
			}
		}
		db.sources = kept
		delete(db.sourceMu, name)
		if err := db.saveSourcesLocked(); err != nil {
			return struct{}{}, err
		}
		if err := os.RemoveAll(db.cloneDir(name)); err != nil {
			return struct{}{}, err
		}
		db.rebuildIndexLocked()
		return struct{}{}, nil
	})
}

// UpdateSource drives one source's update pipeline. The network phase
// runs without the database lock; only the final metadata commit
// takes it.
func (db *Database) UpdateSource(name string) *future.Future[struct{}] {
	return future.Async(func(n future.Notifier) (struct{}, error) {
		db.mu.RLock()
		src := db.findSourceLocked(name)
		db.mu.RUnlock()
		if src == nil {
			return struct{}{}, fmt.Errorf("%w: %s", ErrUnknownSource, name)
		}

		cloneMu := db.cloneMutex(name)
		cloneMu.Lock()
		defer cloneMu.Unlock()

		snap, err := future.Await(n, src.Update(db.cloneDir(name)))
		if err != nil {
			return struct{}{}, err
		}

		db.mu.Lock()
		defer db.mu.Unlock()
		src.Commit(snap)
		if err := db.saveSourcesLocked(); err != nil {
			return struct{}{}, err
		}
		db.rebuildIndexLocked()
		return struct{}{}, nil
	})
}

func (db *Database) cloneMutex(name string) *sync.Mutex {
	db.mu.Lock()
	defer db.mu.Unlock()
	mu, ok := db.sourceMu[name]
	if !ok {
		mu = &sync.Mutex{}
		db.sourceMu[name] = mu
	}
	return mu
}

func (db *Database) rebuildIndexLocked() {
	if db.index == nil {
		return
	}
	if err := db.index.rebuild(db.sources); err != nil {
		util.WarningMsg("rebuilding search index: %s", err)
		db.index.close()
		db.index = nil
	}
}

// FindPackages returns every available package with the given name
// matching req, sorted by version ascending. Ties keep source
// registration order.
func (db *Database) FindPackages(name string, req version.Requirement) []Candidate {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.findPackagesLocked(name, req)
}

func (db *Database) findPackagesLocked(name string, req version.Requirement) []Candidate {
	var candidates []Candidate
	for _, src := range db.sources {
		for _, pkg := range src.Packages() {
			if pkg.Name == name && req.Matches(pkg.Version) {
				candidates = append(candidates, Candidate{Package: pkg, Source: src.Name()})
			}
		}
	}
	sortCandidates(candidates)
	return candidates
}

func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Package.Version.LessThan(candidates[j].Package.Version)
	})
}

// PackageNames returns the distinct package names across all sources,
// sorted.
func (db *Database) PackageNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.index != nil {
		if names, err := db.index.names(); err == nil {
			return names
		}
	}

	seen := map[string]bool{}
	var names []string
	for _, src := range db.sources {
		for _, pkg := range src.Packages() {
			if !seen[pkg.Name] {
				seen[pkg.Name] = true
				names = append(names, pkg.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// Satisfiable implements View.
func (db *Database) Satisfiable(dep api.Dependency) bool {
	return len(db.FindPackages(dep.Name, dep.Requirement)) > 0
}

// Group returns the named package group, creating its handle lazily.
func (db *Database) Group(name string) (*Group, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.groupLocked(name)
}

func (db *Database) groupLocked(name string) (*Group, error) {
	if group, ok := db.groups[name]; ok {
		return group, nil
	}
	group := &Group{db: db, name: name}
	if err := group.load(); err != nil {
		return nil, err
	}
	db.groups[name] = group
	return group, nil
}

// allGroupsLocked loads every group file under groups/.
func (db *Database) allGroupsLocked() ([]*Group, error) {
	entries, err := os.ReadDir(filepath.Join(db.root, "groups"))
	if err != nil {
		return nil, err
	}
	var groups []*Group
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		group, err := db.groupLocked(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}
