package mysqlstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCartLinesQueryLocksInsideTransaction(t *testing.T) {
	query, args := cartLinesQuery("u1", true).Build()
	assert.True(t, strings.HasSuffix(query, "WHERE ci.user_id = ? ORDER BY ci.created_at DESC FOR UPDATE"), query)
	assert.Equal(t, []any{"u1"}, args)

	query, _ = cartLinesQuery("u1", false).Build()
	assert.True(t, strings.HasSuffix(query, "ORDER BY ci.created_at DESC"), query)
	assert.NotContains(t, query, "FOR UPDATE")
}
