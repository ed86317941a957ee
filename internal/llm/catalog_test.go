package llm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogIsComplete(t *testing.T) {
	c := DefaultCatalog()
	for _, intent := range []Intent{IntentShipping, IntentReturns, IntentProduct, IntentGeneral} {
		assert.Len(t, c.Templates[intent], 3, intent)
	}
	assert.Len(t, c.Slots.Statuses, 4)
	assert.Len(t, c.Slots.Instructions, 3)
	assert.Len(t, c.Slots.Timeframes, 3)
	assert.Len(t, c.Closings, 4)
	assert.Equal(t, c.Templates[IntentGeneral], c.TemplatesFor(Intent("unknown")))
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	yamlDoc := `
templates:
  general:
    - "Sorry about {{issue}}, we will try {{solution}}."
slots:
  statuses: [queued]
  maxDeliveryDays: 2
  instructions: [mail it]
  timeframes: [a week]
  features: [a, b, c]
  compatibilities: [everything]
  solutions: [a restart]
  defaultIssue: that
closings: [" Bye."]
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sorry about {{issue}}, we will try {{solution}}."}, c.TemplatesFor(IntentShipping))
}

func TestLoadCatalogEmptyPathUsesDefault(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog(), c)
}

func TestParseCatalogRejectsIncompleteConfig(t *testing.T) {
	_, err := ParseCatalog([]byte("templates:\n  general: [\"hi\"]\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("templates: [not, a, map]"))
	assert.Error(t, err)
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
