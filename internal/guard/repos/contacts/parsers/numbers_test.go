package parsers

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/callguard/internal/guard/common/log"
	"github.com/haukened/callguard/internal/guard/domain"
)

func TestParseNumberList_Basics(t *testing.T) {
	input := "\uFEFF# comment at top\n" +
		"+1 (555) 111-1111, Spammer\n" +
		"*1234 # any number ending in 1234\n" +
		"\n" +
		"   555.222.2222 ,  Mom  \n" +
		"+15551111111, duplicate\n" +
		"no digits here\n" +
		"*\n"

	got, err := ParseNumberList(bytes.NewBufferString(input), "test-source", log.NewNoopLogger())
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, domain.Exact("+15551111111"), got[0].Number)
	assert.Equal(t, "Spammer", got[0].Name)
	assert.Equal(t, 2, got[0].Line)

	assert.Equal(t, domain.Partial("1234"), got[1].Number)
	assert.Empty(t, got[1].Name)

	assert.Equal(t, domain.Exact("5552222222"), got[2].Number)
	assert.Equal(t, "Mom", got[2].Name)
}

func TestParseNumberList_SameNumberBothModesKeepsFirst(t *testing.T) {
	got, err := ParseNumberList(bytes.NewBufferString("1234, first\n*1234, second\n"), "s", nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.Exact("1234"), got[0].Number)
	assert.Equal(t, "first", got[0].Name)

	got, err = ParseNumberList(bytes.NewBufferString("*1234\n1234\n"), "s", nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.Partial("1234"), got[0].Number)
}

func TestParseNumberList_EmptyAndCommentsOnly(t *testing.T) {
	got, err := ParseNumberList(bytes.NewBufferString("\n# only comments\n   # another\n\n"), "s", log.NewNoopLogger())
	require.NoError(t, err)
	assert.Empty(t, got)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestParseNumberList_ScanError(t *testing.T) {
	got, err := ParseNumberList(errReader{}, "broken", log.NewNoopLogger())
	require.Error(t, err)
	assert.Nil(t, got)
}
