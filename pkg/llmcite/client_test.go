package llmcite

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse_PlainObject(t *testing.T) {
	gen, err := ParseResponse(`{"sourceId": "src-1", "citationText": "Smith J. Title. 2023."}`)
	require.NoError(t, err)
	assert.Equal(t, "src-1", gen.SourceID)
	assert.Equal(t, "Smith J. Title. 2023.", gen.CitationText)
}

func TestParseResponse_FencedJSON(t *testing.T) {
	raw := "```json\n{\"sourceId\": \"src-1\", \"citationText\": \"Smith J. Title. 2023.\"}\n```"
	gen, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "src-1", gen.SourceID)
}

func TestParseResponse_BareFence(t *testing.T) {
	raw := "```\n{\"sourceId\": \"src-1\", \"citationText\": \"x\"}\n```"
	gen, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "src-1", gen.SourceID)
}

func TestParseResponse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"prose", "Here is your citation: Smith J. Title. 2023."},
		{"unknown fields", `{"sourceId": "s", "citationText": "t", "confidence": 0.9}`},
		{"missing source id", `{"citationText": "t"}`},
		{"blank citation", `{"sourceId": "s", "citationText": "   "}`},
		{"array instead of object", `[{"sourceId": "s", "citationText": "t"}]`},
		{"truncated", `{"sourceId": "s", "citationText": "t`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.raw)
			assert.True(t, eris.Is(err, ErrBadShape), "raw %q", tt.raw)
		})
	}
}
