// Package schema manages the shared, versioned schema ontologies artifacts
// import, and resolves a dependency order over their versions.
package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semvault/statement"
	vocab "github.com/c360studio/semvault/vocabulary/artifact"
)

// VersionPointer associates a version with its ontology.
type VersionPointer struct {
	Ontology string
	Version  string
}

// ImportEdge is a raw import declared by a schema version. Target may name
// an ontology, a version, or something unknown.
type ImportEdge struct {
	Version string
	Target  string
}

// Manifest is the raw description of the managed schemas.
type Manifest struct {
	// Ontologies lists ontology ids in declaration order.
	Ontologies []string

	// Current holds current-version pointers. Each ontology must end up
	// with exactly one.
	Current []VersionPointer

	// Versions holds every known version, current or not.
	Versions []VersionPointer

	// Imports holds the raw import edges.
	Imports []ImportEdge

	// Files maps a version to the statement files holding its content.
	// Patterns are doublestar globs relative to BaseDir.
	Files map[string][]string

	// BaseDir is the directory file patterns are relative to.
	BaseDir string
}

// ManifestFromStatements reads schema descriptions from statements:
// ontologies are subjects typed owl:Ontology that are not themselves version
// IRIs, owl:versionIRI and omv:currentVersion link them to versions, and
// owl:imports on a version declares an import.
func ManifestFromStatements(stmts []statement.Statement) *Manifest {
	m := &Manifest{Files: make(map[string][]string)}

	versionIRIs := make(map[string]struct{})
	for _, st := range stmts {
		if st.Predicate == vocab.OWLVersionIRI && st.Object.IsIRI() {
			versionIRIs[st.Object.Value] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	addOntology := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		m.Ontologies = append(m.Ontologies, id)
	}

	for _, st := range stmts {
		if !st.Subject.IsIRI() {
			continue
		}
		subject := st.Subject.Value
		switch st.Predicate {
		case vocab.RDFType:
			if st.Object.Value == vocab.OWLOntology {
				if _, isVersion := versionIRIs[subject]; !isVersion {
					addOntology(subject)
				}
			}
		case vocab.OWLVersionIRI:
			if st.Object.IsIRI() {
				addOntology(subject)
				m.Versions = append(m.Versions, VersionPointer{Ontology: subject, Version: st.Object.Value})
			}
		case vocab.OMVCurrentVersion:
			if st.Object.IsIRI() {
				addOntology(subject)
				m.Current = append(m.Current, VersionPointer{Ontology: subject, Version: st.Object.Value})
			}
		case vocab.OWLImports:
			if st.Object.IsIRI() {
				m.Imports = append(m.Imports, ImportEdge{Version: subject, Target: st.Object.Value})
			}
		}
	}
	return m
}

// Statements renders the manifest as management records in graph.
func (m *Manifest) Statements(graph string) []statement.Statement {
	var out []statement.Statement
	for _, ont := range m.Ontologies {
		out = append(out, statement.NewIRIs(ont, vocab.RDFType, vocab.OWLOntology).WithContext(graph))
	}
	for _, p := range m.Current {
		out = append(out, statement.NewIRIs(p.Ontology, vocab.OMVCurrentVersion, p.Version).WithContext(graph))
	}
	for _, p := range m.Versions {
		out = append(out, statement.NewIRIs(p.Ontology, vocab.OWLVersionIRI, p.Version).WithContext(graph))
	}
	for _, e := range m.Imports {
		out = append(out, statement.NewIRIs(e.Version, vocab.OWLImports, e.Target).WithContext(graph))
	}
	return out
}

// manifestFile is the YAML layout of a manifest.
type manifestFile struct {
	Schemas []schemaEntry `yaml:"schemas"`
}

type schemaEntry struct {
	Ontology string         `yaml:"ontology"`
	Current  string         `yaml:"current"`
	Versions []versionEntry `yaml:"versions"`
}

type versionEntry struct {
	ID      string   `yaml:"id"`
	Imports []string `yaml:"imports,omitempty"`
	Files   []string `yaml:"files,omitempty"`
}

// ParseManifest parses a YAML manifest. File patterns are relative to baseDir.
func ParseManifest(data []byte, baseDir string) (*Manifest, error) {
	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	m := &Manifest{Files: make(map[string][]string), BaseDir: baseDir}
	seen := make(map[string]struct{})
	for i, s := range mf.Schemas {
		if s.Ontology == "" {
			return nil, fmt.Errorf("schemas[%d]: ontology is required", i)
		}
		if _, ok := seen[s.Ontology]; !ok {
			seen[s.Ontology] = struct{}{}
			m.Ontologies = append(m.Ontologies, s.Ontology)
		}
		if s.Current != "" {
			m.Current = append(m.Current, VersionPointer{Ontology: s.Ontology, Version: s.Current})
		}
		for j, v := range s.Versions {
			if v.ID == "" {
				return nil, fmt.Errorf("schemas[%d].versions[%d]: id is required", i, j)
			}
			m.Versions = append(m.Versions, VersionPointer{Ontology: s.Ontology, Version: v.ID})
			for _, target := range v.Imports {
				m.Imports = append(m.Imports, ImportEdge{Version: v.ID, Target: target})
			}
			if len(v.Files) > 0 {
				m.Files[v.ID] = append(m.Files[v.ID], v.Files...)
			}
		}
	}
	return m, nil
}

// LoadManifest reads a YAML manifest from disk.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}
	return ParseManifest(data, filepath.Dir(abs))
}
