package inbound

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMessageID(t *testing.T) {
	assert.Equal(t, "<a@x.com>", NormalizeMessageID("a@x.com"))
	assert.Equal(t, "<a@x.com>", NormalizeMessageID(" <a@x.com> "))
	assert.Equal(t, "", NormalizeMessageID("<>"))
	assert.Equal(t, "", NormalizeMessageID("two words"))
}

func TestParseMessageIDsKeepsOrder(t *testing.T) {
	ids := ParseMessageIDs("<c@x.com>\r\n <a@x.com> <c@x.com> <b@x.com>")
	assert.Equal(t, []string{"<c@x.com>", "<a@x.com>", "<b@x.com>"}, ids)

	assert.Equal(t, []string{"<a@x.com>", "<b@x.com>"}, ParseMessageIDs("a@x.com b@x.com"))
	assert.Nil(t, ParseMessageIDs("  "))
}

func TestParseAddress(t *testing.T) {
	addr, name, ok := ParseAddress("Jane <Jane@X.com>")
	assert.True(t, ok)
	assert.Equal(t, "jane@x.com", addr)
	assert.Equal(t, "Jane", name)

	addr, _, ok = ParseAddress("broken <jane@x.com")
	assert.True(t, ok)
	assert.Equal(t, "jane@x.com", addr)

	_, _, ok = ParseAddress("nobody")
	assert.False(t, ok)
}
