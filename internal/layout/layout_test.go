package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

func TestDefaultLayouts(t *testing.T) {
	set, err := Default()
	require.NoError(t, err)

	tests := []struct {
		source constants.Source
		family Family
		format constants.Format
	}{
		{constants.SourceKEHE, FamilySPSCSV, constants.FormatCSV},
		{constants.SourceDavidson, FamilySPSCSV, constants.FormatCSV},
		{constants.SourceVMC, FamilySPSCSV, constants.FormatCSV},
		{constants.SourceUNFIEast, FamilyPositionalPDF, constants.FormatPDF},
		{constants.SourceUNFIWest, FamilyLabeledHTML, constants.FormatHTML},
		{constants.SourceWholeFoods, FamilyLabeledHTML, constants.FormatHTML},
		{constants.SourceUNFI, FamilyTabular, constants.FormatXLSX},
		{constants.SourceTKMaxx, FamilyTabular, constants.FormatCSV},
	}
	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			l, ok := set.For(tt.source)
			require.True(t, ok)
			assert.Equal(t, tt.source, l.Source)
			assert.Equal(t, tt.family, l.Family)
			assert.True(t, l.Accepts(tt.format))
			assert.NotEmpty(t, l.ItemKeyTypes())
		})
	}
}

func TestDefaultLayoutPatternsCompile(t *testing.T) {
	set, err := Default()
	require.NoError(t, err)

	l, ok := set.For(constants.SourceUNFIEast)
	require.True(t, ok)
	require.NotEmpty(t, l.Patterns[FieldOrderNumber])
	m := l.Patterns[FieldOrderNumber][0].Re().FindStringSubmatch("Purchase Order Number: 4471234")
	require.Len(t, m, 2)
	assert.Equal(t, "4471234", m[1])

	wh := l.Patterns[FieldCustomer][0]
	m = wh.Re().FindStringSubmatch("Ship from Sarasota Warehouse")
	require.Len(t, m, 2)
	assert.Equal(t, "UNFI EAST - SARASOTA", wh.Format(m[1]))

	assert.Equal(t, []entity.DateRole{entity.DatePickup, entity.DateETA}, l.Policy.ShipDate)
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown family", "sources:\n  acme:\n    family: ocr\n"},
		{"bad confidence", "sources:\n  acme:\n    family: positional_pdf\n    patterns:\n      order_number:\n        - {name: a, regex: '(\\d+)', confidence: maybe}\n"},
		{"unknown key", "sources:\n  acme:\n    family: tabular\n    colums: {}\n"},
		{"no sources", "sources: {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestParseRejectsItemLineWithoutNamedGroups(t *testing.T) {
	doc := `sources:
  acme:
    family: positional_pdf
    items:
      lines:
        - {name: row, regex: '^(\d+)\s+(\S+)$', confidence: exact}
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "named groups")
}

func TestLoadOverrideReplacesSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layouts.yaml")
	override := `sources:
  tkmaxx:
    family: tabular
    formats: [xlsx]
    columns:
      order_number: ["ref"]
      item: ["style"]
      quantity: ["units"]
    policy:
      ship_offset_days: 10
`
	require.NoError(t, os.WriteFile(path, []byte(override), 0o600))

	set, err := Load(path)
	require.NoError(t, err)

	l, ok := set.For(constants.SourceTKMaxx)
	require.True(t, ok)
	assert.False(t, l.Accepts(constants.FormatCSV))
	require.NotNil(t, l.Policy.ShipOffsetDays)
	assert.Equal(t, 10, *l.Policy.ShipOffsetDays)

	_, ok = set.For(constants.SourceKEHE)
	assert.True(t, ok, "sources not in the override keep their defaults")
	assert.Len(t, set.Sources(), 8)
}
