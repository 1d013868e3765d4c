package database

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ralph-pm/ralph/internal/source"
)

// searchIndex is a derived sqlite cache of (source, name, version)
// rows backing name listing and wildcard search over large source
// sets. The JSON files stay canonical; the index is rebuilt from them
// whenever source state changes and the database runs fine without
// it.
type searchIndex struct {
	db *sql.DB
}

func openSearchIndex(path string) (*searchIndex, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`create table if not exists packages (
		source text not null,
		name text not null,
		version text not null,
		primary key (source, name, version)
	)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &searchIndex{db: db}, nil
}

func (ix *searchIndex) close() {
	ix.db.Close()
}

func (ix *searchIndex) rebuild(sources []source.Source) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`delete from packages`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`insert or ignore into packages (source, name, version) values (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, src := range sources {
		for _, pkg := range src.Packages() {
			if _, err := stmt.Exec(src.Name(), pkg.Name, pkg.Version.String()); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (ix *searchIndex) names() ([]string, error) {
	rows, err := ix.db.Query(`select distinct name from packages order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
