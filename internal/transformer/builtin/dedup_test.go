package builtin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songetl/internal/schema"
	"songetl/internal/table"
)

var userDesc = schema.Descriptor{
	{Name: "user_id", Type: schema.String},
	{Name: "first_name", Type: schema.String},
	{Name: "level", Type: schema.String},
}

func TestDeDupFullRow(t *testing.T) {
	t.Parallel()

	in := table.MustNew(userDesc,
		table.Row{"39", "Chloe", "free"},
		table.Row{"39", "Chloe", "free"},
		table.Row{"39", "Chloe", "paid"},
		table.Row{"8", "Kaylee", "free"},
		table.Row{"39", "Chloe", "free"},
	)

	got, err := DeDup{}.Apply(in)
	require.NoError(t, err)

	// A level change is a distinct row; first occurrence order is kept.
	assert.Equal(t, []table.Row{
		{"39", "Chloe", "free"},
		{"39", "Chloe", "paid"},
		{"8", "Kaylee", "free"},
	}, got.Rows)
	assert.Len(t, in.Rows, 5, "input must not be modified")
}

func TestDeDupKeys(t *testing.T) {
	t.Parallel()

	in := table.MustNew(userDesc,
		table.Row{"39", "Chloe", "free"},
		table.Row{"39", "Chloe", "paid"},
	)
	got, err := DeDup{Keys: []string{"user_id"}}.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, []table.Row{{"39", "Chloe", "free"}}, got.Rows)

	_, err = DeDup{Keys: []string{"missing"}}.Apply(in)
	require.Error(t, err)
}

func TestDeDupIdempotent(t *testing.T) {
	t.Parallel()

	in := table.MustNew(userDesc,
		table.Row{"1", "a", "free"},
		table.Row{"1", "a", "free"},
		table.Row{"2", nil, "free"},
		table.Row{"2", nil, "free"},
		table.Row{"2", "", "free"},
	)
	once, err := DeDup{}.Apply(in)
	require.NoError(t, err)
	twice, err := DeDup{}.Apply(once)
	require.NoError(t, err)

	assert.Equal(t, 3, once.Len(), "nil and empty string are distinct values")
	assert.Equal(t, once.Rows, twice.Rows)
}

func TestDeDupTypeTagged(t *testing.T) {
	t.Parallel()

	desc := schema.Descriptor{{Name: "a", Type: schema.String}, {Name: "b", Type: schema.String}}
	in := table.MustNew(desc,
		table.Row{"ab", "c"},
		table.Row{"a", "bc"},
	)
	got, err := DeDup{}.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
}

func TestDeDupTimestampsByInstant(t *testing.T) {
	t.Parallel()

	desc := schema.Descriptor{{Name: "start_time", Type: schema.Timestamp}}
	utc := time.UnixMilli(1542241826796).UTC()
	local := utc.In(time.FixedZone("X", 3600))

	got, err := DeDup{}.Apply(table.MustNew(desc, table.Row{utc}, table.Row{local}))
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}
