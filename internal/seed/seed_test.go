package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "person.yaml", `
label: Person
description: People directory
fields:
  - name: name
    type: string
    required: true
  - name: tags
    type: list_string
    weight: 5
    settings:
      multiple: true
      allowed_values:
        vip: VIP
`)
	writeSeed(t, dir, "task.yml", `
name: task
project: crm
label: Task
`)
	// не-yaml игнорируется
	writeSeed(t, dir, "README.md", "not a seed")

	specs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, specs, 2)

	byName := map[string]TemplateSpec{}
	for _, s := range specs {
		byName[s.Name] = s
	}

	// имя по умолчанию — имя файла
	person := byName["person"]
	assert.Equal(t, "Person", person.Label)
	require.Len(t, person.Fields, 2)
	assert.True(t, person.Fields[0].Required)
	assert.Equal(t, "list_string", person.Fields[1].Type)
	assert.Equal(t, true, person.Fields[1].Settings["multiple"])

	task := byName["task"]
	assert.Equal(t, "crm", task.Project)
}

func TestLoadDirBadYAML(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "broken.yaml", "label: [unclosed")

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestLoadDirMissing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
