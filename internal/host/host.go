// Package host defines the boundary to the host CMS: object state and
// date lookup, and the per-object-type generic metadata capability.
package host

import (
	"context"
	"strings"
	"time"

	"github.com/stuartshay/geostore/internal/geo"
)

// Object is the host's view of a content object
type Object struct {
	Ref   geo.ObjectRef
	State string
	Date  time.Time
}

// Published reports whether the host object is in a publicly visible
// state. Objects without a state (users, terms) count as published.
func (o Object) Published() bool {
	switch strings.ToLower(strings.TrimSpace(o.State)) {
	case "", "publish", "published", "approve", "approved", "1", "active", "inherit":
		return true
	}
	return false
}

// Objects looks up host objects. Lookup returns geo.ErrNotFound for
// objects the host does not know.
type Objects interface {
	Lookup(ctx context.Context, ref geo.ObjectRef) (Object, error)
}

// ObjectMeta is the generic key-value metadata store of one object type
type ObjectMeta interface {
	Update(ctx context.Context, objectID int64, key, value string) error
	Delete(ctx context.Context, objectID int64, key string) error
}

// Meta exposes the metadata capability of each object type
type Meta interface {
	PostMeta() ObjectMeta
	TermMeta() ObjectMeta
	UserMeta() ObjectMeta
	CommentMeta() ObjectMeta
}
