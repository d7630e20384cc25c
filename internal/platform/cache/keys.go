package cache

import "strings"

// Key addresses one cache entry.
type Key string

const allToken = "all"

// Item is the key of a single entity read.
func Item(entity, id string) Key {
	return Key(entity + ":" + id)
}

// Collection is the key holding every listing variant of an entity type.
func Collection(entity string) Key {
	return Key(entity + ":" + allToken)
}

// Relation is the key of an entity's related-id view.
func Relation(entity, id, relation string) Key {
	return Key(entity + ":" + id + ":" + relation)
}

// EntityKeys returns the item and collection keys affected by a mutation of entity id.
func EntityKeys(entity, id string) []Key {
	return []Key{Item(entity, id), Collection(entity)}
}

func (k Key) entity() string {
	if i := strings.IndexByte(string(k), ':'); i > 0 {
		return string(k)[:i]
	}
	return string(k)
}

func (k Key) generation() string {
	return "gen:" + string(k)
}
