package auth

import (
	"database/sql"
	"fmt"
)

// Directory is the closed mapping from role to principal store. It is built
// once at startup and never modified.
type Directory struct {
	stores map[Role]PrincipalStore
}

// NewDirectory builds a Directory backed by the SQLite principal tables.
func NewDirectory(db *sql.DB) *Directory {
	stores := make(map[Role]PrincipalStore, len(Roles))
	for _, role := range Roles {
		// principalTables covers every role, so this cannot fail.
		s, _ := NewSQLiteStore(db, role) //nolint:errcheck // closed role set
		stores[role] = s
	}
	return &Directory{stores: stores}
}

// NewDirectoryFromStores builds a Directory from explicit stores. Every role
// must be present.
func NewDirectoryFromStores(stores map[Role]PrincipalStore) (*Directory, error) {
	d := &Directory{stores: make(map[Role]PrincipalStore, len(Roles))}
	for _, role := range Roles {
		s, ok := stores[role]
		if !ok || s == nil {
			return nil, fmt.Errorf("no store for role %q", role)
		}
		d.stores[role] = s
	}
	return d, nil
}

// Store returns the store for role, or ErrUnknownRole.
func (d *Directory) Store(role Role) (PrincipalStore, error) {
	s, ok := d.stores[role]
	if !ok {
		return nil, ErrUnknownRole
	}
	return s, nil
}
