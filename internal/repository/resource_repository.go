package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Resource is the slice of a domain row the authorization engine
// cares about: who owns it and whether it is publicly visible. The
// owner is nullable because some resources (e.g. system posts) have
// no author.
type Resource struct {
	OwnerID *uint64
	Public  bool
}

// ResourceStore resolves ownership and visibility for a resource by
// type name and id, without the auth core knowing the table layout.
type ResourceStore interface {
	// FindResource returns the ownership record for the named
	// resource type, or ErrNotFound. Unknown type names are a
	// programming error and are reported as a plain error.
	FindResource(ctx context.Context, resourceType string, id uint64) (*Resource, error)
}

// resourceMeta describes how a resource type maps onto a table. The
// identifiers are fixed at registration time, never taken from
// request input, so building the query with Sprintf is safe.
type resourceMeta struct {
	table     string
	ownerCol  string
	publicCol string // empty means the type has no visibility flag
}

// ResourceRepo is the MySQL-backed ResourceStore. Resource types are
// registered up front; lookups for unregistered types fail loudly.
type ResourceRepo struct {
	DB    *sql.DB
	types map[string]resourceMeta
}

// NewResourceRepo returns a repo pre-registered with the built-in
// resource types.
func NewResourceRepo(db *sql.DB) *ResourceRepo {
	r := &ResourceRepo{DB: db, types: map[string]resourceMeta{}}
	r.Register("post", "posts", "author_id", "published")
	return r
}

// Register adds or replaces the table mapping for a resource type.
// publicCol may be empty for types without a visibility flag.
func (r *ResourceRepo) Register(resourceType, table, ownerCol, publicCol string) {
	r.types[resourceType] = resourceMeta{table: table, ownerCol: ownerCol, publicCol: publicCol}
}

// FindResource fetches the owner (and visibility flag, when the type
// has one) for a single row.
func (r *ResourceRepo) FindResource(ctx context.Context, resourceType string, id uint64) (*Resource, error) {
	meta, ok := r.types[resourceType]
	if !ok {
		return nil, fmt.Errorf("unknown resource type %q", resourceType)
	}

	var (
		owner  sql.NullInt64
		public sql.NullBool
		err    error
	)
	if meta.publicCol != "" {
		q := fmt.Sprintf("SELECT %s, %s FROM %s WHERE id=? LIMIT 1", meta.ownerCol, meta.publicCol, meta.table)
		err = r.DB.QueryRowContext(ctx, q, id).Scan(&owner, &public)
	} else {
		q := fmt.Sprintf("SELECT %s FROM %s WHERE id=? LIMIT 1", meta.ownerCol, meta.table)
		err = r.DB.QueryRowContext(ctx, q, id).Scan(&owner)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	res := &Resource{Public: public.Valid && public.Bool}
	if owner.Valid {
		v := uint64(owner.Int64)
		res.OwnerID = &v
	}
	return res, nil
}

var _ ResourceStore = (*ResourceRepo)(nil)
