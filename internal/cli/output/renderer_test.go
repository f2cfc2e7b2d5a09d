package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"TEXT", ModeText},
		{"md", ModeMarkdown},
		{"markdown", ModeMarkdown},
		{" json ", ModeJSON},
		{"yaml", ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.in))
		})
	}
}

func TestRenderer_EffectiveMode(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, ModeText, NewRendererWithTTY(&out, &out, true, ModeAuto).EffectiveMode())
	assert.Equal(t, ModeMarkdown, NewRendererWithTTY(&out, &out, false, ModeAuto).EffectiveMode())
	assert.Equal(t, ModeJSON, NewRendererWithTTY(&out, &out, true, ModeJSON).EffectiveMode())
	assert.False(t, NewRenderer(&out, &out, ModeAuto).IsTTY(), "buffers are not terminals")
}

func TestRenderer_PlainWithoutTTY(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, false, ModeText)

	r.Header(1, "Polls")
	r.StatusLine("polls/list", "complete", "1 step")
	r.KeyValue("Session", "s1")
	r.Success("done")
	r.Warning("careful")
	r.Error("broken")

	assert.NotContains(t, out.String(), "\x1b[", "no escape sequences off a terminal")
	assert.Contains(t, out.String(), "Polls\n\n")
	assert.Contains(t, out.String(), "complete  1 step")
	assert.Contains(t, out.String(), "Session: s1")
	assert.Contains(t, out.String(), "✓ done")
	assert.Contains(t, errOut.String(), "! careful")
	assert.Contains(t, errOut.String(), "✗ broken")
}

func TestRenderer_JSON(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &out, false, ModeJSON)

	require.NoError(t, r.JSON(HistoryOutput{Session: "s1"}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "s1", got["session"])
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "## Poll", FormatHeader(2, "Poll"))
	assert.Equal(t, "# Poll", FormatHeader(0, "Poll"))
	assert.Equal(t, "- **Session**: s1", FormatKeyValue("Session", "s1"))
	assert.Equal(t, "```xml\n<a/>\n```", FormatCodeBlock("xml", "<a/>\n"))
}
