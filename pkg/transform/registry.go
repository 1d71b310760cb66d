package transform

import (
	"sort"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
)

// Func is one catalog entry, addressed as "category.name". Every function
// is total, null-safe and side-effect-free. MinArgs/MaxArgs bound the
// parameters beyond the source value; the mapping validator rejects rules
// that over- or under-supply them.
type Func struct {
	Category string
	Name     string
	MinArgs  int
	MaxArgs  int
	Apply    func(value any, args []any) (any, error)
}

// FullName returns the catalog address of the function.
func (f *Func) FullName() string { return f.Category + "." + f.Name }

var catalog = map[string]*Func{}

func register(category, name string, minArgs, maxArgs int, apply func(any, []any) (any, error)) {
	f := &Func{Category: category, Name: name, MinArgs: minArgs, MaxArgs: maxArgs, Apply: apply}
	catalog[f.FullName()] = f
}

// Lookup resolves a catalog address. Unknown functions are validation
// errors surfaced by the mapping validator and fatal inside the engine.
func Lookup(fullName string) (*Func, error) {
	f, ok := catalog[fullName]
	if !ok {
		return nil, errdefs.Validation("unknown transform function: %s", fullName)
	}
	return f, nil
}

// Call resolves and applies a function, checking arity.
func Call(fullName string, value any, args []any) (any, error) {
	f, err := Lookup(fullName)
	if err != nil {
		return nil, err
	}
	if len(args) < f.MinArgs || (f.MaxArgs >= 0 && len(args) > f.MaxArgs) {
		return nil, errdefs.Validation("%s expects %d..%d args, got %d",
			fullName, f.MinArgs, f.MaxArgs, len(args))
	}
	return f.Apply(value, args)
}

// Names returns all catalog addresses, sorted. Used by discovery
// endpoints and tests.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
