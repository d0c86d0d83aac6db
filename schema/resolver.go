package schema

import (
	"log/slog"
	"sort"

	pkgerrors "github.com/c360studio/semvault/errors"
)

// Resolution is a resolved manifest: current versions, version ownership,
// resolved imports, and an order in which every version follows the
// versions it imports.
type Resolution struct {
	ontologies []string
	current    map[string]string
	owners     map[string]string
	versions   map[string][]string
	imports    map[string][]string
	order      []string
	position   map[string]int
}

// Resolve resolves m. An ontology without exactly one current version, or a
// version claimed by two ontologies, is a validation error. Imports that
// cannot be resolved are kept as declared and logged.
//
// The order is built by inserting each version directly after the latest of
// its already-placed imports. Versions are processed ontology by ontology in
// declaration order; an import declared by an ontology processed later than
// its importer can end up after it.
func Resolve(m *Manifest, logger *slog.Logger) (*Resolution, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolution{
		current:  make(map[string]string),
		owners:   make(map[string]string),
		versions: make(map[string][]string),
		imports:  make(map[string][]string),
	}

	seen := make(map[string]struct{})
	addOntology := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			r.ontologies = append(r.ontologies, id)
		}
	}
	for _, ont := range m.Ontologies {
		addOntology(ont)
	}
	for _, p := range m.Current {
		addOntology(p.Ontology)
	}
	for _, p := range m.Versions {
		addOntology(p.Ontology)
	}

	// exactly one current version per ontology
	currents := make(map[string][]string)
	for _, p := range m.Current {
		if !contains(currents[p.Ontology], p.Version) {
			currents[p.Ontology] = append(currents[p.Ontology], p.Version)
		}
	}
	for _, ont := range r.ontologies {
		found := currents[ont]
		if len(found) != 1 {
			return nil, pkgerrors.Validationf("resolve schemas", pkgerrors.ErrNonUniqueVersion,
				"ontology %s has %d current versions", ont, len(found))
		}
		r.current[ont] = found[0]
		if err := r.claim(ont, found[0]); err != nil {
			return nil, err
		}
	}

	// all versions, seeded with the current one
	for _, ont := range r.ontologies {
		r.versions[ont] = []string{r.current[ont]}
	}
	for _, p := range m.Versions {
		if contains(r.versions[p.Ontology], p.Version) {
			continue
		}
		if err := r.claim(p.Ontology, p.Version); err != nil {
			return nil, err
		}
		r.versions[p.Ontology] = append(r.versions[p.Ontology], p.Version)
	}

	raw := make(map[string][]string)
	for _, e := range m.Imports {
		if _, known := r.owners[e.Version]; !known {
			logger.Warn("Ignoring import from unmanaged schema version", "version", e.Version, "target", e.Target)
			continue
		}
		raw[e.Version] = append(raw[e.Version], e.Target)
	}

	for _, ont := range r.ontologies {
		for _, version := range r.versions[ont] {
			var resolved []string
			for _, target := range raw[version] {
				to, ok := r.ResolveImport(target)
				if !ok {
					logger.Warn("Could not resolve schema import", "version", version, "target", target)
					to = target
				}
				if !contains(resolved, to) {
					resolved = append(resolved, to)
				}
			}
			r.imports[version] = resolved
			r.insert(version, resolved)
		}
	}

	r.position = make(map[string]int, len(r.order))
	for i, v := range r.order {
		r.position[v] = i
	}
	logger.Debug("Resolved schema order", "ontologies", len(r.ontologies), "versions", len(r.order))
	return r, nil
}

func (r *Resolution) claim(ont, version string) error {
	if owner, ok := r.owners[version]; ok && owner != ont {
		return pkgerrors.Validationf("resolve schemas", pkgerrors.ErrNonUniqueVersion,
			"version %s claimed by %s and %s", version, owner, ont)
	}
	r.owners[version] = ont
	return nil
}

// insert places version one past the highest index of its placed imports.
func (r *Resolution) insert(version string, imports []string) {
	at := 0
	for _, imp := range imports {
		for i, placed := range r.order {
			if placed == imp && i+1 > at {
				at = i + 1
			}
		}
	}
	r.order = append(r.order, "")
	copy(r.order[at+1:], r.order[at:])
	r.order[at] = version
}

// Order returns the version ids in resolution order.
func (r *Resolution) Order() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Ontologies returns the ontology ids in declaration order.
func (r *Resolution) Ontologies() []string {
	out := make([]string, len(r.ontologies))
	copy(out, r.ontologies)
	return out
}

// CurrentVersion returns the current version of ont.
func (r *Resolution) CurrentVersion(ont string) (string, bool) {
	v, ok := r.current[ont]
	return v, ok
}

// CurrentVersions returns a copy of the ontology to current version map.
func (r *Resolution) CurrentVersions() map[string]string {
	out := make(map[string]string, len(r.current))
	for k, v := range r.current {
		out[k] = v
	}
	return out
}

// Versions returns every known version of ont, current first.
func (r *Resolution) Versions(ont string) []string {
	return append([]string(nil), r.versions[ont]...)
}

// OntologyOf returns the ontology owning version.
func (r *Resolution) OntologyOf(version string) (string, bool) {
	ont, ok := r.owners[version]
	return ont, ok
}

// Imports returns the resolved direct imports of version.
func (r *Resolution) Imports(version string) []string {
	return append([]string(nil), r.imports[version]...)
}

// ResolveImport maps an import target to a current version: an ontology id
// maps to its current version, a current version to itself, and any other
// known version to its ontology's current version.
func (r *Resolution) ResolveImport(target string) (string, bool) {
	if v, ok := r.current[target]; ok {
		return v, true
	}
	if ont, ok := r.owners[target]; ok {
		return r.current[ont], true
	}
	return "", false
}

// PinVersion maps an artifact's import target to the concrete version it
// should be pinned to: an ontology id maps to its current version and a
// known version is kept as is.
func (r *Resolution) PinVersion(target string) (string, bool) {
	if v, ok := r.current[target]; ok {
		return v, true
	}
	if _, ok := r.owners[target]; ok {
		return target, true
	}
	return "", false
}

// Position returns the index of version in the order.
func (r *Resolution) Position(version string) (int, bool) {
	i, ok := r.position[version]
	return i, ok
}

// SortByOrder returns versions sorted by resolution order. Versions not in
// the order keep their relative order after the known ones.
func (r *Resolution) SortByOrder(versions []string) []string {
	out := append([]string(nil), versions...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, oki := r.position[out[i]]
		pj, okj := r.position[out[j]]
		switch {
		case oki && okj:
			return pi < pj
		default:
			return oki && !okj
		}
	})
	return out
}

// OrderedImportsFor returns the transitive imports of the given versions in
// resolution order, excluding the versions themselves.
func (r *Resolution) OrderedImportsFor(versions ...string) []string {
	start := make(map[string]struct{}, len(versions))
	for _, v := range versions {
		start[v] = struct{}{}
	}
	visited := make(map[string]struct{})
	queue := append([]string(nil), versions...)
	var found []string
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, imp := range r.imports[v] {
			if _, ok := visited[imp]; ok {
				continue
			}
			visited[imp] = struct{}{}
			if _, self := start[imp]; !self {
				found = append(found, imp)
			}
			queue = append(queue, imp)
		}
	}
	return r.SortByOrder(found)
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
