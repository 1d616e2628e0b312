package node

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/xraph/warden"
)

// Selector identifies a set of nodes by id or by name. A selector is either
// id-based or name-based, never both. Duplicates are collapsed so Len is
// the number of distinct nodes selected.
type Selector struct {
	ids   []int64
	names []string
}

// ByID selects one node by its store-assigned id.
func ByID(id int64) Selector { return ByIDs(id) }

// ByIDs selects nodes by id.
func ByIDs(ids ...int64) Selector {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return Selector{ids: out}
}

// ByName selects one node by name.
func ByName(name string) Selector { return ByNames(name) }

// ByNames selects nodes by name.
func ByNames(names ...string) Selector {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return Selector{names: out}
}

// ParseIdentity selects a single node from a textual identity: an integer
// is an id, anything else is a name.
func ParseIdentity(s string) (Selector, error) {
	if s == "" {
		return Selector{}, warden.InvalidParameter("node identity must not be empty")
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ByID(id), nil
	}
	return ByName(s), nil
}

// Len returns the number of distinct nodes selected.
func (s Selector) Len() int { return len(s.ids) + len(s.names) }

// ByID reports whether the selector is id-based.
func (s Selector) ByID() bool { return len(s.ids) > 0 }

// IDs returns the selected ids, in selection order.
func (s Selector) IDs() []int64 { return slices.Clone(s.ids) }

// Names returns the selected names, in selection order.
func (s Selector) Names() []string { return slices.Clone(s.names) }

// Validate rejects empty selectors and malformed identities.
func (s Selector) Validate() error {
	if s.Len() == 0 {
		return warden.InvalidParameter("node selector is empty")
	}
	for _, id := range s.ids {
		if id <= 0 {
			return warden.InvalidParameter("invalid node id %d", id)
		}
	}
	for _, n := range s.names {
		if n == "" {
			return warden.InvalidParameter("node name must not be empty")
		}
	}
	return nil
}

// Matches reports whether n is part of the selection.
func (s Selector) Matches(n *Node) bool {
	if s.ByID() {
		return slices.Contains(s.ids, n.ID)
	}
	return slices.Contains(s.names, n.Name)
}

// Key returns the identity of n in the selector's terms: its id for an
// id-based selector, its name otherwise.
func (s Selector) Key(n *Node) string {
	if s.ByID() {
		return strconv.FormatInt(n.ID, 10)
	}
	return n.Name
}

// Keys returns the selected identities as strings, in selection order.
func (s Selector) Keys() []string {
	if !s.ByID() {
		return s.Names()
	}
	out := make([]string, len(s.ids))
	for i, id := range s.ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out
}

// Missing returns the selected identities absent from found.
func (s Selector) Missing(found []*Node) []string {
	seen := make(map[string]struct{}, len(found))
	for _, n := range found {
		seen[s.Key(n)] = struct{}{}
	}
	var out []string
	for _, k := range s.Keys() {
		if _, ok := seen[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

func (s Selector) String() string {
	if s.ByID() {
		return fmt.Sprintf("ids[%s]", strings.Join(s.Keys(), ","))
	}
	return fmt.Sprintf("names[%s]", strings.Join(s.names, ","))
}
