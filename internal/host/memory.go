package host

import (
	"context"
	"errors"
	"sync"

	"github.com/stuartshay/geostore/internal/geo"
)

// Memory is an in-process host used by tests and the embedded CLI
type Memory struct {
	mu      sync.RWMutex
	objects map[geo.ObjectRef]Object
	meta    map[geo.ObjectRef]map[string]string

	// FailMeta makes every metadata write fail, to exercise best-effort
	// mirroring
	FailMeta bool
}

// ErrMetaUnavailable is returned by Memory when FailMeta is set
var ErrMetaUnavailable = errors.New("host metadata unavailable")

// NewMemory creates an empty in-memory host
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[geo.ObjectRef]Object),
		meta:    make(map[geo.ObjectRef]map[string]string),
	}
}

// Put registers or replaces a host object
func (m *Memory) Put(obj Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[obj.Ref] = obj
}

// Lookup implements Objects
func (m *Memory) Lookup(_ context.Context, ref geo.ObjectRef) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[ref]
	if !ok {
		return Object{}, geo.ErrNotFound
	}
	return obj, nil
}

// MetaValue returns a stored metadata value
func (m *Memory) MetaValue(ref geo.ObjectRef, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.meta[ref][key]
	return v, ok
}

// PostMeta implements Meta
func (m *Memory) PostMeta() ObjectMeta { return memoryMeta{m, geo.Post} }

// TermMeta implements Meta
func (m *Memory) TermMeta() ObjectMeta { return memoryMeta{m, geo.Term} }

// UserMeta implements Meta
func (m *Memory) UserMeta() ObjectMeta { return memoryMeta{m, geo.User} }

// CommentMeta implements Meta
func (m *Memory) CommentMeta() ObjectMeta { return memoryMeta{m, geo.Comment} }

type memoryMeta struct {
	host *Memory
	typ  geo.ObjectType
}

func (mm memoryMeta) Update(_ context.Context, objectID int64, key, value string) error {
	mm.host.mu.Lock()
	defer mm.host.mu.Unlock()

	if mm.host.FailMeta {
		return ErrMetaUnavailable
	}
	ref := geo.Ref(mm.typ, objectID)
	if mm.host.meta[ref] == nil {
		mm.host.meta[ref] = make(map[string]string)
	}
	mm.host.meta[ref][key] = value
	return nil
}

func (mm memoryMeta) Delete(_ context.Context, objectID int64, key string) error {
	mm.host.mu.Lock()
	defer mm.host.mu.Unlock()

	if mm.host.FailMeta {
		return ErrMetaUnavailable
	}
	delete(mm.host.meta[geo.Ref(mm.typ, objectID)], key)
	return nil
}
