package digraph

import (
	"fmt"
	"strings"
)

// ConstructionLog renders the resolution DAG below this node as an indented
// tree: one line per node, the root labelled with its service name and
// contracts and every other node with the parameter or implementation name it
// was reached through, followed by its status marker and the comment or error
// recorded during resolution. The walk is in resolution
// order, so two identical resolutions produce identical logs.
func (s *ContainerService) ConstructionLog() string {
	var b strings.Builder
	seen := make(map[*ContainerService]bool)
	writeServiceLog(&b, s, s.name.String(), 0, seen)
	return strings.TrimRight(b.String(), "\n")
}

func writeServiceLog(b *strings.Builder, svc *ContainerService, label string, depth int, seen map[*ContainerService]bool) {
	indent(b, depth)
	b.WriteString(label)
	switch svc.status {
	case StatusError, StatusDependencyError:
		b.WriteString("!")
		if svc.errMessage != "" && len(svc.dependencies) == 0 {
			b.WriteString(" - ")
			b.WriteString(svc.errMessage)
		}
	case StatusNotResolved:
		b.WriteString(" - not resolved")
	}
	if svc.comment != "" {
		b.WriteString(" - ")
		b.WriteString(svc.comment)
	}
	b.WriteString("\n")
	if seen[svc] {
		return
	}
	seen[svc] = true
	for _, dep := range svc.dependencies {
		writeDependencyLog(b, dep, depth+1, seen)
	}
}

func writeDependencyLog(b *strings.Builder, dep *ServiceDependency, depth int, seen map[*ContainerService]bool) {
	if dep.service != nil {
		label := dep.name
		if label == "" {
			label = dep.service.name.String()
		}
		if dep.comment != "" {
			label += " (" + dep.comment + ")"
		}
		writeServiceLog(b, dep.service, label, depth, seen)
		return
	}
	indent(b, depth)
	b.WriteString(dep.name)
	switch dep.status {
	case StatusOk:
		if dep.hasValue {
			b.WriteString(fmt.Sprintf(" -> %v", dep.value))
		}
	case StatusError:
		b.WriteString("!")
		if dep.comment != "" {
			b.WriteString(" - ")
			b.WriteString(dep.comment)
		}
	case StatusNotResolved:
		b.WriteString(" - ")
		if dep.comment != "" {
			b.WriteString(dep.comment)
		} else {
			b.WriteString("not resolved")
		}
	}
	b.WriteString("\n")
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("\t")
	}
}

// newErrorService builds a sealed one-off error node, used for cycles and
// contract violations that must not enter the cache.
func newErrorService(name ServiceName, message string) *ContainerService {
	return &ContainerService{
		name:              name,
		finalName:         name,
		declaredContracts: name.Contracts,
		status:            StatusError,
		errMessage:        message,
	}
}
