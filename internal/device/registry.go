package device

import (
	"fmt"
)

// Registry holds the node's entities in registration order.
//
// It is owned by the loop goroutine; the API reads it through Snapshot
// posted onto the loop.
type Registry struct {
	entities []Entity
	byKey    map[string]Entity
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]Entity)}
}

func registryKey(kind Kind, objectID string) string {
	return string(kind) + "/" + objectID
}

// Add registers e. Ids are unique per kind.
func (r *Registry) Add(e Entity) error {
	key := registryKey(e.Kind(), e.ObjectID())
	if _, exists := r.byKey[key]; exists {
		return fmt.Errorf("%w: %s", ErrDeviceExists, key)
	}
	r.byKey[key] = e
	r.entities = append(r.entities, e)
	return nil
}

// Get returns the entity of kind with objectID.
func (r *Registry) Get(kind Kind, objectID string) (Entity, error) {
	e, ok := r.byKey[registryKey(kind, objectID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, registryKey(kind, objectID))
	}
	return e, nil
}

// All returns the entities in registration order.
func (r *Registry) All() []Entity {
	out := make([]Entity, len(r.entities))
	copy(out, r.entities)
	return out
}

// Count returns the number of entities.
func (r *Registry) Count() int {
	return len(r.entities)
}

// Snapshot returns the API view of every entity.
func (r *Registry) Snapshot() []Info {
	out := make([]Info, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e.Info())
	}
	return out
}

var (
	_ Entity = (*Sensor)(nil)
	_ Entity = (*BinarySensor)(nil)
	_ Entity = (*Switch)(nil)
)
