package artifact

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c360studio/semvault/connectivity"
	"github.com/c360studio/semvault/purl"
	"github.com/c360studio/semvault/statement"
)

// VersionSuffix is appended to an ontology id to form its first version.
const VersionSuffix = ":version:1"

// UpdatePolicy selects how an update delta is applied to the current version.
type UpdatePolicy string

const (
	// PolicyMerge adds the delta to the current statements.
	PolicyMerge UpdatePolicy = "merge"
	// PolicyReplaceExisting drops every statement about the targeted
	// subjects before adding the delta.
	PolicyReplaceExisting UpdatePolicy = "replace-existing"
	// PolicyReplaceAll is recognized but not supported.
	PolicyReplaceAll UpdatePolicy = "replace-all"
)

// ParseUpdatePolicy converts a policy name.
func ParseUpdatePolicy(s string) (UpdatePolicy, error) {
	switch p := UpdatePolicy(strings.ToLower(s)); p {
	case PolicyMerge, PolicyReplaceExisting, PolicyReplaceAll:
		return p, nil
	case "":
		return PolicyMerge, nil
	}
	return "", fmt.Errorf("unknown update policy: %q", s)
}

// VerifyPolicy selects whether data references are checked before commit.
type VerifyPolicy string

const (
	VerifyPolicyVerify      VerifyPolicy = "verify"
	VerifyPolicyDoNotVerify VerifyPolicy = "do-not-verify"
)

// ParseVerifyPolicy converts a verification policy name.
func ParseVerifyPolicy(s string) (VerifyPolicy, error) {
	switch p := VerifyPolicy(strings.ToLower(s)); p {
	case VerifyPolicyVerify, VerifyPolicyDoNotVerify:
		return p, nil
	case "":
		return VerifyPolicyVerify, nil
	}
	return "", fmt.Errorf("unknown verification policy: %q", s)
}

// Status is the publication state of an artifact version.
type Status string

const (
	StatusUnpublished Status = "unpublished"
	StatusPublished   Status = "published"
)

// Artifact is the management record of one artifact version.
type Artifact struct {
	OntologyID        string `json:"ontology_id"`
	VersionID         string `json:"version_id"`
	InferredVersionID string `json:"inferred_version_id"`
	Status            Status `json:"status"`
	TopObject         string `json:"top_object,omitempty"`

	// SchemaImports are the pinned schema versions in resolution order.
	SchemaImports []string `json:"schema_imports,omitempty"`

	// Placeholders maps the temporary identifiers rewritten by the
	// operation that produced this version. Not persisted.
	Placeholders []purl.Mapping `json:"placeholders,omitempty"`

	// Dangling lists nodes removed under the force-clean policy. Not persisted.
	Dangling []string `json:"dangling,omitempty"`
}

// RootEntityID is the node every other node of the artifact must be reachable from.
func (a *Artifact) RootEntityID() string { return a.OntologyID }

// IsPublished reports whether the version is published.
func (a *Artifact) IsPublished() bool { return a.Status == StatusPublished }

// LoadOptions controls a load.
type LoadOptions struct {
	Dangling connectivity.Policy
	Verify   VerifyPolicy
}

// UpdateRequest describes a change to the current version of an artifact.
type UpdateRequest struct {
	OntologyID string
	// VersionID must be the artifact's current version.
	VersionID  string
	Statements []statement.Statement
	Policy     UpdatePolicy

	// Targets are the subjects replaced under PolicyReplaceExisting. When
	// empty the delta's own subjects are used. Placeholder mappings are
	// reported only for targets when any are given.
	Targets []string

	Dangling connectivity.Policy
	Verify   VerifyPolicy
}

// IncrementVersion returns the version following version. A trailing
// ":<integer>" is incremented; any other id gets "1" appended.
func IncrementVersion(version string) string {
	if i := strings.LastIndex(version, ":"); i >= 0 {
		if n, err := strconv.ParseUint(version[i+1:], 10, 64); err == nil {
			return version[:i+1] + strconv.FormatUint(n+1, 10)
		}
	}
	return version + "1"
}
