package chunk

import (
	"math/big"
	"strings"
	"testing"

	"github.com/joeycumines/go-replicore/dbmsevent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeSQL_ContainsAggregatesAndTable(t *testing.T) {
	query, err := probeSQL(dbmsevent.Table{Schema: `shop`, Name: `orders`}, `id`)
	require.NoError(t, err)

	lower := strings.ToLower(query)
	assert.Contains(t, lower, `min(`)
	assert.Contains(t, lower, `max(`)
	assert.Contains(t, lower, `count(*)`)
	assert.Contains(t, lower, `from`)
	assert.Contains(t, lower, `shop`)
	assert.Contains(t, lower, `orders`)
	assert.Contains(t, lower, `id`)
}

func TestRangeWhere_BothBounds(t *testing.T) {
	where, err := rangeWhere(`id`, true, true)
	require.NoError(t, err)
	assert.Contains(t, where, `?`)
	assert.Contains(t, strings.ToUpper(where), `AND`)
	// two placeholders: one per bound.
	assert.Equal(t, 2, strings.Count(where, `?`))
}

func TestRangeWhere_StartOnly(t *testing.T) {
	where, err := rangeWhere(`id`, true, false)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(where, `?`))
}

func TestRangeWhere_EndOnly(t *testing.T) {
	where, err := rangeWhere(`id`, false, true)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(where, `?`))
}

func TestRangeWhere_Neither(t *testing.T) {
	where, err := rangeWhere(`id`, false, false)
	require.NoError(t, err)
	assert.Equal(t, ``, where)
}

func TestBuildRangeQuery_WholeTable(t *testing.T) {
	table := dbmsevent.Table{Schema: `shop`, Name: `orders`}
	query, args, err := BuildRangeQuery(table, nil, `id`, dbmsevent.NumericChunk{Table: table, TotalBlocks: 1})
	require.NoError(t, err)
	assert.Empty(t, args)
	lower := strings.ToLower(query)
	assert.Contains(t, lower, `select`)
	assert.NotContains(t, lower, `where`)
}

func TestBuildRangeQuery_Poison(t *testing.T) {
	table := dbmsevent.Table{Schema: `shop`, Name: `orders`}
	query, args, err := BuildRangeQuery(table, nil, `id`, dbmsevent.NumericChunk{})
	require.NoError(t, err)
	assert.Empty(t, args)
	assert.NotContains(t, strings.ToLower(query), `where`)
}

func TestBuildRangeQuery_RangedChunkBindsArgs(t *testing.T) {
	table := dbmsevent.Table{Schema: `shop`, Name: `orders`}
	chunk := dbmsevent.NumericChunk{
		Table:    table,
		StartKey: big.NewRat(100, 1),
		EndKey:   big.NewRat(200, 1),
	}
	query, args, err := BuildRangeQuery(table, []string{`id`, `total`}, `id`, chunk)
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, `100`, args[0])
	assert.Equal(t, `200`, args[1])
	assert.Contains(t, strings.ToLower(query), `where`)
}

func TestBuildRangeQuery_OpenEndedStartOnly(t *testing.T) {
	table := dbmsevent.Table{Schema: `shop`, Name: `orders`}
	chunk := dbmsevent.NumericChunk{
		Table:    table,
		StartKey: big.NewRat(100, 1),
	}
	_, args, err := BuildRangeQuery(table, nil, `id`, chunk)
	require.NoError(t, err)
	require.Len(t, args, 1)
	assert.Equal(t, `100`, args[0])
}
