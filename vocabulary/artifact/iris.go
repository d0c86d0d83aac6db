// Package artifact provides the IRIs used to describe managed artifacts,
// schema ontologies and their version metadata.
//
// Standard W3C and OMV terms are listed alongside the semvault management
// vocabulary so callers never spell an IRI inline.
package artifact

// Namespace is the base IRI prefix for semvault ontology terms.
const Namespace = "https://semvault.dev/ontology/base#"

// ManagementPrefix prefixes the named graph holding the management records
// of one artifact.
const ManagementPrefix = "urn:semvault:graph:artifact-management:"

// ManagementContext is the named graph holding the management records of ont.
func ManagementContext(ont string) string { return ManagementPrefix + ont }

// SchemaManagementGraph is the named graph holding schema version records.
const SchemaManagementGraph = "urn:semvault:graph:schema-management"

// InferredPrefix prefixes the context that holds inferred statements of a version.
const InferredPrefix = "urn:semvault:inferred:"

// Standard vocabularies.
const (
	RDFType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

	OWLOntology        = "http://www.w3.org/2002/07/owl#Ontology"
	OWLImports         = "http://www.w3.org/2002/07/owl#imports"
	OWLVersionIRI      = "http://www.w3.org/2002/07/owl#versionIRI"
	OWLThing           = "http://www.w3.org/2002/07/owl#Thing"
	OWLIndividual      = "http://www.w3.org/2002/07/owl#Individual"
	OWLNamedIndividual = "http://www.w3.org/2002/07/owl#NamedIndividual"

	XSDDateTime = "http://www.w3.org/2001/XMLSchema#dateTime"

	// OMVCurrentVersion points an ontology at its current version.
	OMVCurrentVersion = "http://omv.ontoware.org/2005/05/ontology#currentVersion"
)

// Artifact structure.
const (
	// HasTopObject links an artifact ontology to its top-level object.
	HasTopObject = Namespace + "artifactHasTopObject"

	// HasPublicationStatus holds the publication state of an artifact version.
	HasPublicationStatus = Namespace + "hasPublicationStatus"

	// Published and NotPublished are the publication status values.
	Published    = Namespace + "Published"
	NotPublished = Namespace + "NotPublished"

	// CreatedAt and LastModified carry xsd:dateTime literals.
	CreatedAt    = Namespace + "createdAt"
	LastModified = Namespace + "lastModified"
)

// Management records.
const (
	// CurrentInferredVersion links a version to the context of its inferred statements.
	CurrentInferredVersion = Namespace + "currentInferredVersion"

	// ReplacedTempURIWith records the permanent IRI a placeholder was rewritten to.
	ReplacedTempURIWith = Namespace + "replacedTempUriWith"
)

// Data references.
const (
	// DataReference is the class of references to externally held data.
	DataReference = Namespace + "DataReference"

	// HasDataReference links an object to a data reference it owns.
	HasDataReference = Namespace + "hasDataReference"

	// HasAlias names the repository a data reference is resolved through.
	HasAlias = Namespace + "hasAlias"

	// HasLocation is the location of the referenced data within the repository.
	HasLocation = Namespace + "hasLocation"
)

// ExcludedFromConnectivity lists vocabulary nodes that never count as dangling.
var ExcludedFromConnectivity = []string{
	OWLThing,
	OWLOntology,
	OWLIndividual,
	OWLNamedIndividual,
}

// InferredContext returns the context for the inferred statements of a version.
func InferredContext(versionID string) string {
	return InferredPrefix + versionID
}
