package kvstore

import (
	"context"
	"fmt"
	"strings"
)

// namespaceSeparator divides the namespace from the caller's key.
const namespaceSeparator = '/'

// Namespaced is a store whose keys all live under an opaque instance name.
// Multiple namespaces can share one backend and never see each other's keys.
type Namespaced struct {
	store  Store
	name   string
	prefix []byte
}

// Namespace constructs a view of the store for the specified name. The name
// cannot contain the separator, otherwise "a" and "a/b" would share keys.
// Namespace panics on such a name.
func Namespace(store Store, name string) *Namespaced {
	if strings.IndexByte(name, namespaceSeparator) != -1 {
		panic(fmt.Sprintf("kvstore: namespace %q contains %q", name, namespaceSeparator))
	}

	prefix := make([]byte, 0, len(name)+1)
	prefix = append(prefix, name...)
	prefix = append(prefix, namespaceSeparator)

	return &Namespaced{
		store:  store,
		name:   name,
		prefix: prefix,
	}
}

// Name returns the instance name of the namespace.
func (n *Namespaced) Name() string {
	return n.name
}

// Get retrieves the value stored under key within the namespace.
func (n *Namespaced) Get(ctx context.Context, key []byte) ([]byte, error) {
	return n.store.Get(ctx, n.key(key))
}

// Save stores the value under key within the namespace.
func (n *Namespaced) Save(ctx context.Context, key []byte, value []byte) error {
	return n.store.Save(ctx, n.key(key), value)
}

// Delete removes key from the namespace.
func (n *Namespaced) Delete(ctx context.Context, key []byte) error {
	return n.store.Delete(ctx, n.key(key))
}

// Close does not close the shared backend. The owner of the backend is
// responsible for that.
func (n *Namespaced) Close() error {
	return nil
}

func (n *Namespaced) key(key []byte) []byte {
	k := make([]byte, 0, len(n.prefix)+len(key))
	k = append(k, n.prefix...)
	return append(k, key...)
}
