package digraph

import (
	"fmt"
	"io"
	"io/fs"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// ParameterInfo describes one constructor parameter of a concrete type: an
// exported struct field together with its injection attributes parsed from
// tags.
type ParameterInfo struct {
	Name           string
	Type           reflect.Type
	HasDefault     bool
	DefaultLiteral string
	Optional       bool
	Contracts      []string
	Resource       string

	fieldIndex int
}

// ConstructorInfo is the synthesized constructor of a concrete type: the set
// of injectable fields in declaration order plus enough shape information to
// allocate and fill an instance.
type ConstructorInfo struct {
	// Type is the type as requested, either a struct or a pointer to one.
	Type       reflect.Type
	Parameters []ParameterInfo

	elem      reflect.Type
	isPointer bool
}

// New allocates an instance and assigns the given values to the parameter
// fields. values is indexed like Parameters; invalid entries are left at
// their zero value.
func (ci *ConstructorInfo) New(values []reflect.Value) any {
	pv := reflect.New(ci.elem)
	ev := pv.Elem()
	for i, p := range ci.Parameters {
		if i < len(values) && values[i].IsValid() {
			ev.Field(p.fieldIndex).Set(values[i])
		}
	}
	if ci.isPointer {
		return pv.Interface()
	}
	return ev.Interface()
}

// TypeIntrospector is the reflection boundary of the resolution engine. The
// default implementation works off the Go runtime type system; tests may
// substitute their own.
type TypeIntrospector interface {
	// GetConstructor synthesizes the constructor for a concrete type, or
	// explains why the type has none.
	GetConstructor(t reflect.Type) (*ConstructorInfo, error)
	// IsSimpleType reports whether t is a primitive value (bool, numbers,
	// strings) that the container refuses to construct.
	IsSimpleType(t reflect.Type) bool
	// IsDelegate reports whether t is a func kind.
	IsDelegate(t reflect.Type) bool
	// IsPerRequest reports whether t carries the PerRequest marker.
	IsPerRequest(t reflect.Type) bool
	// UnwrapEnumerable splits []T into (T, true); anything else comes back
	// unchanged with false.
	UnwrapEnumerable(t reflect.Type) (reflect.Type, bool)
	// OpenResource opens a named resource registered with the container.
	OpenResource(name string) (io.Reader, error)
}

var (
	perRequestType  = reflect.TypeOf(PerRequest{})
	serviceNameType = reflect.TypeOf(ServiceName{})
	containerType   = reflect.TypeOf((*Container)(nil))
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
)

// reflectIntrospector is the production TypeIntrospector.
type reflectIntrospector struct {
	resources    fs.FS
	constructors sync.Map // reflect.Type -> constructorResult
}

type constructorResult struct {
	info *ConstructorInfo
	err  error
}

func newReflectIntrospector(resources fs.FS) *reflectIntrospector {
	return &reflectIntrospector{resources: resources}
}

func (r *reflectIntrospector) GetConstructor(t reflect.Type) (*ConstructorInfo, error) {
	if cached, ok := r.constructors.Load(t); ok {
		res := cached.(constructorResult)
		return res.info, res.err
	}
	info, err := synthesizeConstructor(t)
	r.constructors.Store(t, constructorResult{info: info, err: err})
	return info, err
}

func synthesizeConstructor(t reflect.Type) (*ConstructorInfo, error) {
	elem := t
	isPointer := false
	if t.Kind() == reflect.Ptr {
		elem = t.Elem()
		isPointer = true
	}
	if elem.Kind() != reflect.Struct {
		return nil, fmt.Errorf("no public constructor for %s", typeName(t))
	}
	ci := &ConstructorInfo{Type: t, elem: elem, isPointer: isPointer}
	for i := 0; i < elem.NumField(); i++ {
		f := elem.Field(i)
		if f.Anonymous && f.Type == perRequestType {
			continue
		}
		if !f.IsExported() {
			continue
		}
		if f.Tag.Get("inject") == "-" {
			continue
		}
		p := ParameterInfo{
			Name:       f.Name,
			Type:       f.Type,
			Resource:   f.Tag.Get("resource"),
			fieldIndex: i,
		}
		if v, ok := f.Tag.Lookup("default"); ok {
			p.HasDefault = true
			p.DefaultLiteral = v
		}
		if f.Tag.Get("optional") == "true" {
			p.Optional = true
		}
		if tag := f.Tag.Get("contract"); tag != "" {
			p.Contracts = strings.Split(tag, ",")
		}
		ci.Parameters = append(ci.Parameters, p)
	}
	return ci, nil
}

func (r *reflectIntrospector) IsSimpleType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	}
	return false
}

func (r *reflectIntrospector) IsDelegate(t reflect.Type) bool {
	return t.Kind() == reflect.Func
}

func (r *reflectIntrospector) IsPerRequest(t reflect.Type) bool {
	elem := t
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < elem.NumField(); i++ {
		f := elem.Field(i)
		if f.Anonymous && f.Type == perRequestType {
			return true
		}
	}
	return false
}

func (r *reflectIntrospector) UnwrapEnumerable(t reflect.Type) (reflect.Type, bool) {
	// []byte is data, not a request for every byte service.
	if t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8 {
		return t.Elem(), true
	}
	return t, false
}

func (r *reflectIntrospector) OpenResource(name string) (io.Reader, error) {
	if r.resources == nil {
		return nil, fmt.Errorf("no resources registered")
	}
	f, err := r.resources.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// parseDefault converts a tag literal into a value of the parameter type.
func parseDefault(p ParameterInfo) (any, error) {
	lit := p.DefaultLiteral
	switch p.Type.Kind() {
	case reflect.String:
		return reflect.ValueOf(lit).Convert(p.Type).Interface(), nil
	case reflect.Bool:
		v, err := strconv.ParseBool(lit)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(v).Convert(p.Type).Interface(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(v).Convert(p.Type).Interface(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(lit, 10, 64)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(v).Convert(p.Type).Interface(), nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(v).Convert(p.Type).Interface(), nil
	}
	return nil, fmt.Errorf("can't parse default for %s", typeName(p.Type))
}
