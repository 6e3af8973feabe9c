package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type payload struct {
	Name string `json:"name"`
}

func TestParseJSON(t *testing.T) {
	got, err := ParseJSON[payload]([]byte("\ufeff{\"name\": \"kg2\"}\n"))
	assert.NoError(t, err)
	assert.Equal(t, "kg2", got.Name)

	_, err = ParseJSON[payload]([]byte("<html>bad gateway</html>"))
	assert.ErrorContains(t, err, "no JSON object found")

	_, err = ParseJSON[payload]([]byte(`{"name": 3}`))
	assert.ErrorContains(t, err, "failed to unmarshal JSON")
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("x", maxSnippet+10)
	assert.True(t, strings.HasSuffix(Snippet([]byte(long)), "..."))
	assert.Equal(t, "short", Snippet([]byte("short")))
}
