package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(reader("  hello world  \n"), "Say something", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Contains(t, out.String(), "Say something")
}

func TestGetSimpleText_PartialLineBeforeEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(reader("no newline"), "p", &out)
	require.NoError(t, err)
	assert.Equal(t, "no newline", got)
}

func TestGetInt_RepromptsUntilValid(t *testing.T) {
	var out bytes.Buffer
	got, err := GetInt(reader("abc\n42\n7\n"), "Mood", 1, 10, &out)
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Contains(t, out.String(), "between 1 and 10")
}

func TestGetMultiline(t *testing.T) {
	var out bytes.Buffer
	got, err := GetMultiline(reader("line one\nline two\n\nignored\n"), "Body", &out)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", got)
}

func TestGetMultiline_Empty(t *testing.T) {
	var out bytes.Buffer
	got, err := GetMultiline(reader("\n"), "Body", &out)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}
