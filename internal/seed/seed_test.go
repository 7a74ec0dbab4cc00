package seed

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

func TestParseCSVWithHeader(t *testing.T) {
	in := "source,key_type,raw_value,canonical_value,priority,active,notes\n" +
		"kehe,vendor_item,1001.0,XO-1,10,yes,first\n" +
		",,,,,,\n" +
		"unfi east,upc,0123,XO-2,,no,\n"
	got, err := Parse(strings.NewReader(in), constants.FormatCSV, Defaults{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, constants.SourceKEHE, got[0].Source)
	assert.Equal(t, constants.KeyVendorItem, got[0].KeyType)
	assert.Equal(t, "1001", got[0].RawValue)
	assert.Equal(t, "XO-1", got[0].CanonicalValue)
	assert.Equal(t, 10, got[0].Priority)
	assert.True(t, got[0].Active)
	assert.Equal(t, "first", got[0].Notes)

	assert.Equal(t, constants.SourceUNFIEast, got[1].Source)
	assert.Equal(t, constants.KeyUPC, got[1].KeyType)
	assert.False(t, got[1].Active)
	assert.Equal(t, entity.DefaultMappingPriority, got[1].Priority)
}

func TestParseKeepsZeroPriority(t *testing.T) {
	in := "source,key_type,raw,canonical,priority\n" +
		"kehe,upc,0123,XO-1,0\n" +
		"kehe,upc,0456,XO-2,\n"
	zero := 0
	got, err := Parse(strings.NewReader(in), constants.FormatCSV, Defaults{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Priority)
	assert.Equal(t, entity.DefaultMappingPriority, got[1].Priority)

	got, err = Parse(strings.NewReader(in), constants.FormatCSV, Defaults{Priority: &zero})
	require.NoError(t, err)
	assert.Equal(t, 0, got[1].Priority)
}

func TestParseTwoColumnSheetUsesDefaults(t *testing.T) {
	in := "SPS Customer#,Store Mapping\n0042,Store 42\n"
	priority := 20
	got, err := Parse(strings.NewReader(in), constants.FormatCSV, Defaults{
		Source: constants.SourceKEHE, KeyType: constants.KeyCustomerID, Priority: &priority,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0042", got[0].RawValue)
	assert.Equal(t, "Store 42", got[0].CanonicalValue)
	assert.Equal(t, constants.KeyCustomerID, got[0].KeyType)
	assert.Equal(t, 20, got[0].Priority)

	positional := "Vendor Code,Xoro Code\nA1,XO-A1\n"
	got, err = Parse(strings.NewReader(positional), constants.FormatCSV, Defaults{
		Source: constants.SourceVMC, KeyType: constants.KeyVendorItem,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A1", got[0].RawValue)
	assert.Equal(t, "XO-A1", got[0].CanonicalValue)
}

func TestParseRejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"no source":   "raw,canonical,key_type\nA,B,upc\n",
		"bad source":  "source,raw,canonical,key_type\nacme,A,B,upc\n",
		"bad key":     "source,raw,canonical,key_type\nkehe,A,B,sku2\n",
		"half row":    "source,raw,canonical,key_type\nkehe,A,,upc\n",
		"bad prio":    "source,raw,canonical,key_type,priority\nkehe,A,B,upc,-1\n",
		"bad active":  "source,raw,canonical,key_type,active\nkehe,A,B,upc,maybe\n",
		"no key type": "source,raw,canonical\nkehe,A,B\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(in), constants.FormatCSV, Defaults{})
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}
}

func TestLoadFileXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Raw Item", "Xoro Item#", "Description"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"8-907", "XO-907", "Rice"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	path := filepath.Join(t.TempDir(), "unfi_east_items.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := LoadFile(path, Defaults{Source: constants.SourceUNFIEast, KeyType: constants.KeyVendorItem})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "8-907", got[0].RawValue)
	assert.Equal(t, "XO-907", got[0].CanonicalValue)
	assert.Equal(t, "Rice", got[0].Description)

	_, err = LoadFile(filepath.Join(t.TempDir(), "x.pdf"), Defaults{})
	assert.Error(t, err)
}
