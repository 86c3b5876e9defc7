package digraph

import (
	"reflect"
	"strings"
	"sync"
)

var typeStringCache sync.Map

// typeName returns the display string for a type, cached because it shows up
// in every cache key and log line.
func typeName(t reflect.Type) string {
	if cached, ok := typeStringCache.Load(t); ok {
		return cached.(string)
	}
	s := t.String()
	typeStringCache.Store(t, s)
	return s
}

// ServiceName identifies one resolution: a type plus the ordered contracts it
// was requested under. Two names are equal when the types match and the
// contracts match pairwise ignoring case.
type ServiceName struct {
	Type      reflect.Type
	Contracts []string
}

// NewServiceName validates the contract list: empty names and case-insensitive
// duplicates are rejected.
func NewServiceName(t reflect.Type, contracts []string) (ServiceName, error) {
	for i, c := range contracts {
		if c == "" {
			return ServiceName{}, &InvalidContractsError{Contracts: contracts, Reason: "empty contract name"}
		}
		for j := 0; j < i; j++ {
			if strings.EqualFold(contracts[j], c) {
				return ServiceName{}, &InvalidContractsError{Contracts: contracts, Reason: "duplicates found"}
			}
		}
	}
	return ServiceName{Type: t, Contracts: contracts}, nil
}

// String renders "pkg.Type[c1,c2]", or just the type when no contracts apply.
func (n ServiceName) String() string {
	if len(n.Contracts) == 0 {
		return typeName(n.Type)
	}
	return typeName(n.Type) + "[" + strings.Join(n.Contracts, ",") + "]"
}

// key is the canonical cache key: contracts are lowercased so equality is
// case-insensitive, but the original casing is preserved for display.
func (n ServiceName) key() string {
	if len(n.Contracts) == 0 {
		return typeName(n.Type)
	}
	var b strings.Builder
	b.WriteString(typeName(n.Type))
	b.WriteByte('[')
	for i, c := range n.Contracts {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strings.ToLower(c))
	}
	b.WriteByte(']')
	return b.String()
}

// Equal compares names modulo contract case.
func (n ServiceName) Equal(other ServiceName) bool {
	if n.Type != other.Type || len(n.Contracts) != len(other.Contracts) {
		return false
	}
	for i := range n.Contracts {
		if !strings.EqualFold(n.Contracts[i], other.Contracts[i]) {
			return false
		}
	}
	return true
}

func containsContract(list []string, name string) bool {
	for _, c := range list {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}
