package nlc9

import (
	"hash/crc32"
	"strconv"
	"strings"
	"sync"
)

// Seeded ids are stable forever: a well-known name always maps to the same
// id and a seeded id is never reassigned to a different name.
var seededVerbs = map[string]uint32{
	"PING": 1, "GET": 2, "SET": 3, "ASK": 4, "TELL": 5,
	"PLAN": 6, "EXEC": 7, "REPORT": 8, "ACK": 9, "NACK": 10,
	"SIGNAL": 11, "VOTE": 12,
}

var seededObjects = map[string]uint32{
	"AGENT": 1, "TASK": 2, "TOOL": 3, "MEMORY": 4, "FILE": 5,
	"MODEL": 6, "ENV": 7, "HEALTH": 8, "EVENT": 9, "ERROR": 10,
	"TRADE": 11, "SWARM": 12, "POOL": 13,
}

// TokenID derives a deterministic 32-bit id for a free-form name so that
// independent processes agree on ids without coordination.
func TokenID(name string) uint32 {
	return crc32.ChecksumIEEE([]byte(strings.ToLower(strings.TrimSpace(name))))
}

// DomainID folds a domain label into the 16-bit header field. Empty labels
// map to zero.
func DomainID(label string) uint16 {
	if strings.TrimSpace(label) == "" {
		return 0
	}
	return uint16(TokenID(label) & 0xFFFF)
}

// Registry maps symbolic verb and object names to numeric ids. It starts
// from the seeded tables and accepts runtime registrations; lookups of
// unregistered names fall through to TokenID.
type Registry struct {
	mu         sync.RWMutex
	verbs      map[string]uint32
	objects    map[string]uint32
	revVerbs   map[uint32]string
	revObjects map[uint32]string
}

// NewRegistry builds a registry holding the seeded verb and object tables.
func NewRegistry() *Registry {
	r := &Registry{
		verbs:      make(map[string]uint32, len(seededVerbs)),
		objects:    make(map[string]uint32, len(seededObjects)),
		revVerbs:   make(map[uint32]string, len(seededVerbs)),
		revObjects: make(map[uint32]string, len(seededObjects)),
	}
	for name, id := range seededVerbs {
		r.verbs[name] = id
		r.revVerbs[id] = name
	}
	for name, id := range seededObjects {
		r.objects[name] = id
		r.revObjects[id] = name
	}
	return r
}

func canonical(name string) string { return strings.ToUpper(strings.TrimSpace(name)) }

// VerbID resolves a verb name, hashing unknown names deterministically.
func (r *Registry) VerbID(name string) uint32 {
	key := canonical(name)
	r.mu.RLock()
	id, ok := r.verbs[key]
	r.mu.RUnlock()
	if ok {
		return id
	}
	return TokenID(key)
}

// ObjectID resolves an object name, hashing unknown names deterministically.
func (r *Registry) ObjectID(name string) uint32 {
	key := canonical(name)
	r.mu.RLock()
	id, ok := r.objects[key]
	r.mu.RUnlock()
	if ok {
		return id
	}
	return TokenID(key)
}

// VerbName reverse-maps a verb id, falling back to a synthetic label.
func (r *Registry) VerbName(id uint32) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.revVerbs[id]; ok {
		return name
	}
	return syntheticName("VERB", id)
}

// ObjectName reverse-maps an object id, falling back to a synthetic label.
func (r *Registry) ObjectName(id uint32) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.revObjects[id]; ok {
		return name
	}
	return syntheticName("OBJECT", id)
}

// RegisterVerb pins a name to an id (TokenID of the name when id is zero).
// Registering an existing name returns the already-assigned id.
func (r *Registry) RegisterVerb(name string, id uint32) (uint32, bool) {
	key := canonical(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.verbs[key]; ok {
		return existing, false
	}
	if id == 0 {
		id = TokenID(key)
	}
	r.verbs[key] = id
	r.revVerbs[id] = key
	return id, true
}

// RegisterObject pins a name to an id, mirroring RegisterVerb.
func (r *Registry) RegisterObject(name string, id uint32) (uint32, bool) {
	key := canonical(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.objects[key]; ok {
		return existing, false
	}
	if id == 0 {
		id = TokenID(key)
	}
	r.objects[key] = id
	r.revObjects[id] = key
	return id, true
}

// Verbs returns a copy of the current verb table.
func (r *Registry) Verbs() map[string]uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]uint32, len(r.verbs))
	for k, v := range r.verbs {
		out[k] = v
	}
	return out
}

// Objects returns a copy of the current object table.
func (r *Registry) Objects() map[string]uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]uint32, len(r.objects))
	for k, v := range r.objects {
		out[k] = v
	}
	return out
}

func syntheticName(prefix string, id uint32) string {
	return prefix + "#" + strconv.FormatUint(uint64(id), 10)
}
