package cmd

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fttf/internal/blacklist"
)

func TestBlacklistCmd_Lifecycle(t *testing.T) {
	// Given: a fresh database with the seeded rules
	e := newEnv(t)
	var seeded []blacklist.Rule
	require.NoError(t, json.Unmarshal([]byte(e.mustRun("blacklist", "list", "--json")), &seeded))

	// When: adding a rule
	out := e.mustRun("blacklist", "add", "https://intranet.example.com/%", "url_only")
	assert.Contains(t, out, "https://intranet.example.com/% -> url_only")

	// Then: it is listed and classifies matching URLs
	var rules []blacklist.Rule
	require.NoError(t, json.Unmarshal([]byte(e.mustRun("blacklist", "list", "--json")), &rules))
	require.Len(t, rules, len(seeded)+1)
	var added blacklist.Rule
	for _, r := range rules {
		if r.Pattern == "https://intranet.example.com/%" {
			added = r
		}
	}
	require.NotZero(t, added.ID)

	out = e.mustRun("blacklist", "classify", "https://intranet.example.com/wiki?utm_medium=email")
	assert.Equal(t, "url_only\thttps://intranet.example.com/wiki\n", out)

	// When: removing it
	out = e.mustRun("blacklist", "remove", strconv.FormatInt(added.ID, 10))
	assert.Contains(t, out, "removed")

	// Then: the URL is indexed in full again and a second remove fails
	out = e.mustRun("blacklist", "classify", "https://intranet.example.com/wiki")
	assert.True(t, strings.HasPrefix(out, "full\t"))
	_, _, err := e.run("blacklist", "remove", strconv.FormatInt(added.ID, 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestBlacklistCmd_ListTable(t *testing.T) {
	e := newEnv(t)
	e.mustRun("blacklist", "add", "https://bank.example.com/%", "no_index")

	out := e.mustRun("blacklist", "list")

	assert.True(t, strings.HasPrefix(out, "ID  "))
	assert.Contains(t, out, "https://bank.example.com/%")
	assert.Contains(t, out, "no_index")
}

func TestBlacklistCmd_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"full is not a rule level", []string{"blacklist", "add", "https://a.example/%", "full"}},
		{"unknown level", []string{"blacklist", "add", "https://a.example/%", "hidden"}},
		{"bad id", []string{"blacklist", "remove", "abc"}},
		{"zero id", []string{"blacklist", "remove", "0"}},
		{"bad url", []string{"blacklist", "classify", "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			_, _, err := e.run(tt.args...)
			assert.Error(t, err)
		})
	}
}
