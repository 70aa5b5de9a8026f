package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitIDs(units []Unit) []string {
	ids := make([]string, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}
	return ids
}

func TestExtractUnits_Basic(t *testing.T) {
	text := strings.Join([]string{
		"# Title is ignored",
		"## Parser work",
		"",
		"SRC: fixed parser bug [ref]",
		"src: lower case tag",
		"OPEN:  what about groceries?  ",
		"PROP: move notes to docs/",
		"random prose line",
	}, "\n")

	units := ExtractUnits(text)
	require.Len(t, units, 5)

	assert.Equal(t, []string{
		"p:T01.thread01",
		"p:T01.src01",
		"p:T01.src02",
		"p:T01.open01",
		"p:T01.prop01",
	}, unitIDs(units))

	assert.Equal(t, UnitThread, units[0].Kind)
	assert.Equal(t, "Parser work", units[0].Text)
	assert.Equal(t, "fixed parser bug [ref]", units[1].Text)
	assert.Equal(t, UnitOpen, units[3].Kind)
	assert.Equal(t, "what about groceries?", units[3].Text)
	for _, u := range units {
		assert.Equal(t, "T01", u.ThreadID)
		assert.Equal(t, Fingerprint(u.Text), u.Fingerprint)
	}
}

func TestExtractUnits_CountersResetPerThread(t *testing.T) {
	text := "## One\nSRC: alpha\n## Two\nSRC: beta\n"
	units := ExtractUnits(text)
	require.Len(t, units, 4)
	assert.Equal(t, "p:T01.src01", units[1].ID)
	assert.Equal(t, "p:T02.src01", units[3].ID)
	assert.Equal(t, "T02", units[3].ThreadID)
}

func TestExtractUnits_DefaultThread(t *testing.T) {
	units := ExtractUnits("SRC: before any heading\n## Later\nOPEN: after")
	require.Len(t, units, 3)
	assert.Equal(t, "p:T00.src01", units[0].ID)
	assert.Equal(t, DefaultThreadID, units[0].ThreadID)
	assert.Equal(t, "p:T01.thread01", units[1].ID)
	assert.Equal(t, "p:T01.open01", units[2].ID)
}

func TestExtractUnits_IgnoresUnrecognized(t *testing.T) {
	text := strings.Join([]string{
		"### Deep heading",
		"##NoSpace",
		"SOURCE: wrong tag",
		"xSRC: prefixed",
		"SRC without colon",
	}, "\n")
	assert.Empty(t, ExtractUnits(text))
}

func TestExtractUnits_ToleratesIndentationAndSpacedColon(t *testing.T) {
	units := ExtractUnits("  ## Parser work\n  SRC: fixed parser bug\nOPEN : what about docs?\n\tprop :  move notes\n")

	assert.Equal(t, []string{
		"p:T01.thread01",
		"p:T01.src01",
		"p:T01.open01",
		"p:T01.prop01",
	}, unitIDs(units))
	assert.Equal(t, "Parser work", units[0].Text)
	assert.Equal(t, "fixed parser bug", units[1].Text)
	assert.Equal(t, "what about docs?", units[2].Text)
	assert.Equal(t, "move notes", units[3].Text)
}

func TestExtractUnits_EmptyInput(t *testing.T) {
	units := ExtractUnits("")
	assert.NotNil(t, units)
	assert.Empty(t, units)
}

func TestExtractUnitsWithDiagnostics_NearMisses(t *testing.T) {
	text := strings.Join([]string{
		"## Real thread",
		"  SRC: indented",
		"PROP move it",
		"### Too deep",
		"##tight",
		"NOTE: something",
		"plain prose",
	}, "\n")

	res := ExtractUnitsWithDiagnostics(text)
	require.Len(t, res.Units, 2)
	require.Len(t, res.NearMisses, 4)

	lines := make([]int, len(res.NearMisses))
	for i, nm := range res.NearMisses {
		lines[i] = nm.Line
		assert.NotEmpty(t, nm.Reason)
	}
	assert.Equal(t, []int{3, 4, 5, 6}, lines)
	assert.Contains(t, res.NearMisses[3].Reason, "NOTE")
}

func TestExtractUnits_Deterministic(t *testing.T) {
	text := "## A\nSRC: one\nPROP: two\n## B\nOPEN: three"
	assert.Equal(t, ExtractUnits(text), ExtractUnits(text))
}

func TestUnitKind_Typed(t *testing.T) {
	assert.False(t, UnitThread.Typed())
	assert.True(t, UnitSrc.Typed())
	assert.True(t, UnitOpen.Typed())
	assert.True(t, UnitProp.Typed())

	units := ExtractUnits("## T\nSRC: a\nOPEN: b")
	assert.Len(t, TypedUnits(units), 2)
}
