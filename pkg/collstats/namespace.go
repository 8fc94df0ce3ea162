package collstats

import (
	"fmt"
	"strings"
)

// Namespace is a database and collection pair.
type Namespace struct {
	Database   string
	Collection string
}

// ParseNamespace splits ns at its first dot. Collection names may contain
// dots themselves, as in local.oplog.rs.
func ParseNamespace(ns string) (Namespace, error) {
	db, coll, ok := strings.Cut(ns, ".")
	if !ok || db == "" || coll == "" {
		return Namespace{}, fmt.Errorf("invalid namespace %q: expected <database>.<collection>", ns)
	}
	return Namespace{Database: db, Collection: coll}, nil
}

// MustParseNamespace is like ParseNamespace but panics on error.
func MustParseNamespace(ns string) Namespace {
	n, err := ParseNamespace(ns)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the namespace in <database>.<collection> form.
func (n Namespace) String() string {
	return n.Database + "." + n.Collection
}

// ParsedNamespace returns the parsed ns field of s.
func (s *Stats) ParsedNamespace() (Namespace, error) {
	return ParseNamespace(s.Namespace)
}
