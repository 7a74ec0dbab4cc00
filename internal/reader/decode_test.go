package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-transformer/internal/common"
)

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name       string
		input      []byte
		candidates []string
		wantText   string
		wantEnc    string
	}{
		{
			name:       "utf8 with bom",
			input:      append([]byte{0xEF, 0xBB, 0xBF}, []byte("PO Number,1001")...),
			candidates: DefaultEncodings,
			wantText:   "PO Number,1001",
			wantEnc:    EncodingUTF8,
		},
		{
			name:       "cp1252 fallback for smart quote",
			input:      []byte{'C', 'a', 'f', 0xE9, ' ', 0x93, 'x', 0x94},
			candidates: DefaultEncodings,
			wantText:   "Café “x”",
			wantEnc:    EncodingWindows1252,
		},
		{
			name:       "latin1 when cp1252 hits an undefined byte",
			input:      []byte{'A', 0x81, 'B'},
			candidates: DefaultEncodings,
			wantText:   "A\u0081B",
			wantEnc:    EncodingLatin1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, enc, err := decodeText(tt.input, tt.candidates)
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantEnc, enc)
		})
	}
}

func TestDecodeTextFailsWhenNoCandidateDecodes(t *testing.T) {
	_, _, err := decodeText([]byte{0xFF, 0x00, 0xC3}, []string{EncodingUTF8})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDecode)

	f, ok := common.AsFailure(err)
	require.True(t, ok)
	assert.Contains(t, f.Detail, EncodingUTF8)
}
