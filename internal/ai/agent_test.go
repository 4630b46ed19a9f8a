package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT 1":                              "SELECT 1",
		"  SELECT 1;  ":                         "SELECT 1",
		"```sql\nSELECT count() FROM swap_executions\n```": "SELECT count() FROM swap_executions",
		"```\nSELECT 1\n```":                    "SELECT 1",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeSQL(in), in)
	}
}

func TestValidateSQL(t *testing.T) {
	require.NoError(t, validateSQL("SELECT count() FROM swap_executions WHERE status = 'error'"))
	require.NoError(t, validateSQL("SELECT stranded_mint, sum(stranded_amount) FROM swaps.swap_executions GROUP BY stranded_mint"))

	assert.ErrorContains(t, validateSQL(""), "empty SQL")
	assert.ErrorContains(t, validateSQL("DROP TABLE swap_executions"), "only SELECT")
	assert.ErrorContains(t, validateSQL("SELECT 1 FROM swap_executions; DELETE FROM swap_executions"), "disallowed SQL keyword")
	assert.ErrorContains(t, validateSQL("SELECT 1; SELECT 2"), "must target")
	assert.ErrorContains(t, validateSQL("SELECT 1 FROM other_table"), "must target")
}
