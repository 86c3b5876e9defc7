package digraph

import (
	"strings"
)

// ContractsList is the active contract stack of one resolution. Contracts are
// pushed when a service name carrying contracts enters resolution and popped
// on the way out, so configuration lookups deeper in the graph see every
// contract declared above them.
type ContractsList struct {
	items []string
}

// Push appends names to the stack. If any name is already present
// (case-insensitive) nothing is pushed and the offending name is returned.
func (l *ContractsList) Push(names []string) (pushed int, duplicate string, ok bool) {
	for _, n := range names {
		if containsContract(l.items, n) {
			return 0, n, false
		}
	}
	l.items = append(l.items, names...)
	return len(names), "", true
}

// Pop removes the last n entries and returns them so the caller can re-push
// later.
func (l *ContractsList) Pop(n int) []string {
	if n == 0 {
		return nil
	}
	at := len(l.items) - n
	popped := make([]string, n)
	copy(popped, l.items[at:])
	l.items = l.items[:at]
	return popped
}

// restore re-pushes previously popped entries without duplicate checks.
func (l *ContractsList) restore(items []string) {
	l.items = append(l.items, items...)
}

// Snapshot returns a copy of the current stack.
func (l *ContractsList) Snapshot() []string {
	if len(l.items) == 0 {
		return nil
	}
	out := make([]string, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the stack depth.
func (l *ContractsList) Len() int {
	return len(l.items)
}

func (l *ContractsList) String() string {
	return strings.Join(l.items, ",")
}

// TryExpandUnions looks for union contracts on the stack. When at least one is
// present it returns the suffix length starting at the first union together
// with one alternative contract list per element of the Cartesian product of
// that suffix (union members substituted, plain contracts kept as-is). The
// caller pops the suffix, resolves once per alternative and re-pushes.
func (l *ContractsList) TryExpandUnions(registry *ConfigurationRegistry) (alternatives [][]string, suffix int) {
	first := -1
	for i, c := range l.items {
		if _, ok := registry.Union(c); ok {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, 0
	}
	sets := make([][]string, 0, len(l.items)-first)
	for _, c := range l.items[first:] {
		if members, ok := registry.Union(c); ok {
			sets = append(sets, members)
		} else {
			sets = append(sets, []string{c})
		}
	}
	return cartesian(sets), len(l.items) - first
}

// cartesian expands [[a,b],[c]] into [[a,c],[b,c]], preserving member order.
func cartesian(sets [][]string) [][]string {
	result := [][]string{nil}
	for _, set := range sets {
		next := make([][]string, 0, len(result)*len(set))
		for _, prefix := range result {
			for _, item := range set {
				row := make([]string, len(prefix), len(prefix)+1)
				copy(row, prefix)
				next = append(next, append(row, item))
			}
		}
		result = next
	}
	return result
}
