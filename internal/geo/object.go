// Package geo defines the domain types shared across geostore: object
// references, locations, addresses, typed metadata values and the error
// taxonomy.
package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// ObjectType is the category of host entity a location can be attached to.
// The zero value is invalid.
type ObjectType int

// Recognized object types
const (
	Post ObjectType = iota + 1
	Term
	User
	Comment
)

// ObjectTypes lists every recognized object type
var ObjectTypes = []ObjectType{Post, Term, User, Comment}

// ParseObjectType accepts singular and plural names, case-insensitively.
// "page" is normalized to Post.
func ParseObjectType(s string) (ObjectType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "post", "posts", "page", "pages":
		return Post, nil
	case "term", "terms":
		return Term, nil
	case "user", "users":
		return User, nil
	case "comment", "comments":
		return Comment, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidObjectType, s)
}

// Valid reports whether t is a recognized object type
func (t ObjectType) Valid() bool {
	return t >= Post && t <= Comment
}

// String returns the object_name stored in the relationships table
func (t ObjectType) String() string {
	switch t {
	case Post:
		return "post"
	case Term:
		return "term"
	case User:
		return "user"
	case Comment:
		return "comment"
	}
	return "ObjectType(" + strconv.Itoa(int(t)) + ")"
}

// Plural returns the collection name, e.g. "posts"
func (t ObjectType) Plural() string {
	return t.String() + "s"
}

// MarshalText implements encoding.TextMarshaler
func (t ObjectType) MarshalText() ([]byte, error) {
	if t == 0 {
		return []byte{}, nil
	}
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidObjectType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *ObjectType) UnmarshalText(text []byte) error {
	parsed, err := ParseObjectType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ObjectRef identifies a host object by type and id
type ObjectRef struct {
	Type ObjectType `json:"object_type"`
	ID   int64      `json:"object_id"`
}

// Ref builds an ObjectRef
func Ref(t ObjectType, id int64) ObjectRef {
	return ObjectRef{Type: t, ID: id}
}

// ParseRef parses a type name and a decimal id
func ParseRef(objectType, id string) (ObjectRef, error) {
	t, err := ParseObjectType(objectType)
	if err != nil {
		return ObjectRef{}, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("%w: %q", ErrInvalidObjectID, id)
	}
	ref := ObjectRef{Type: t, ID: n}
	return ref, ref.Validate()
}

// Validate checks that the type is recognized and the id is positive
func (r ObjectRef) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidObjectType, int(r.Type))
	}
	if r.ID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidObjectID, r.ID)
	}
	return nil
}

func (r ObjectRef) String() string {
	return r.Type.String() + ":" + strconv.FormatInt(r.ID, 10)
}

// Status is the visibility of a location
type Status string

// Location statuses
const (
	StatusPublic  Status = "public"
	StatusPrivate Status = "private"
)

// ParseStatus parses "public" or "private"; the empty string is returned
// unchanged so callers can defer to the host object's state.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case StatusPublic:
		return StatusPublic, nil
	case StatusPrivate:
		return StatusPrivate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// StatusFromPublic maps a boolean public flag to a Status
func StatusFromPublic(public bool) Status {
	if public {
		return StatusPublic
	}
	return StatusPrivate
}
