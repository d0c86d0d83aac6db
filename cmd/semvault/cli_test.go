package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semvault/artifact"
)

// cliFixture is a project directory with a config file pointing at an
// embedded JetStream store inside it.
type cliFixture struct {
	dir    string
	config string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	dir := t.TempDir()
	writeFixtures(t, dir)

	cfg := `store:
  backend: nats
nats:
  embedded: true
  bucket: CLI_VAULT
  store_dir: ` + filepath.Join(dir, "jetstream") + `
schemas:
  manifest: schemas.yaml
purl:
  prefix: https://purl.example.org/p/
policies:
  dangling: report
  verify: false
`
	path := filepath.Join(dir, "semvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return &cliFixture{dir: dir, config: path}
}

func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", f.config, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (f *cliFixture) artifact(t *testing.T, args ...string) *artifact.Artifact {
	t.Helper()
	out, err := f.run(t, args...)
	require.NoError(t, err, out)
	var a artifact.Artifact
	require.NoError(t, json.Unmarshal([]byte(out), &a), out)
	return &a
}

func TestCLILifecycle(t *testing.T) {
	f := newCLIFixture(t)
	const ont = "http://example.org/survey"

	loaded := f.artifact(t, "load", filepath.Join(f.dir, "survey.nt"))
	assert.Equal(t, ont+artifact.VersionSuffix, loaded.VersionID)
	assert.Equal(t, artifact.StatusUnpublished, loaded.Status)
	require.Len(t, loaded.Placeholders, 1)
	assert.True(t, strings.HasPrefix(loaded.Placeholders[0].Permanent, "https://purl.example.org/p/"))

	_, err := f.run(t, "load", filepath.Join(f.dir, "survey.nt"))
	assert.Error(t, err, "second load of the same ontology")

	out, err := f.run(t, "export", ont)
	require.NoError(t, err)
	assert.Contains(t, out, `"Ocean survey"`)
	assert.NotContains(t, out, "urn:temp:")

	delta := filepath.Join(f.dir, "delta.nt")
	require.NoError(t, os.WriteFile(delta, []byte(
		"<"+loaded.TopObject+"> <http://purl.example.org/base#title> \"Coastal survey\" .\n"), 0644))
	updated := f.artifact(t, "update", ont, loaded.VersionID, delta, "--policy", "replace-existing")
	assert.Equal(t, ont+":version:2", updated.VersionID)

	out, err = f.run(t, "export", ont)
	require.NoError(t, err)
	assert.Contains(t, out, `"Coastal survey"`)
	assert.NotContains(t, out, `"Ocean survey"`)

	_, err = f.run(t, "update", ont, loaded.VersionID, delta)
	assert.Error(t, err, "stale version")

	out, err = f.run(t, "imports", ont)
	require.NoError(t, err)
	assert.Equal(t, "http://purl.example.org/science/1\n", out)

	out, err = f.run(t, "list", "--unpublished")
	require.NoError(t, err)
	assert.Contains(t, out, updated.VersionID)

	published := f.artifact(t, "publish", ont, updated.VersionID)
	assert.True(t, published.IsPublished())

	out, err = f.run(t, "list", "--published")
	require.NoError(t, err)
	assert.Contains(t, out, ont+"\t"+updated.VersionID+"\tpublished")

	_, err = f.run(t, "delete", ont)
	assert.Error(t, err, "published artifacts cannot be deleted")
}

func TestCLIDeleteUnpublished(t *testing.T) {
	f := newCLIFixture(t)
	const ont = "http://example.org/survey"

	loaded := f.artifact(t, "load", filepath.Join(f.dir, "survey.nt"))

	out, err := f.run(t, "delete", ont, ont+":version:9")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing deleted")

	out, err = f.run(t, "delete", ont, loaded.VersionID)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+ont+" "+loaded.VersionID)

	out, err = f.run(t, "list")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCLISchemaOrder(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "schema", "order")
	require.NoError(t, err)
	assert.Equal(t,
		"http://purl.example.org/base/1\thttp://purl.example.org/base\tcurrent\n"+
			"http://purl.example.org/science/1\thttp://purl.example.org/science\tcurrent\n",
		out)
}

func TestCLIRejectsBadInput(t *testing.T) {
	f := newCLIFixture(t)

	tests := []struct {
		name string
		args []string
	}{
		{"turtle input", []string{"load", filepath.Join(f.dir, "survey.ttl")}},
		{"unknown extension", []string{"load", filepath.Join(f.dir, "survey.txt")}},
		{"unknown policy", []string{"update", "a", "b", filepath.Join(f.dir, "survey.nt"), "--policy", "overwrite"}},
		{"unknown format", []string{"export", "http://example.org/survey", "--format", "rdfxml"}},
		{"conflicting filters", []string{"list", "--published", "--unpublished"}},
		{"missing args", []string{"publish", "only-one"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "semvault version "+Version+" (build: "+BuildTime+")\n", out.String())
}
