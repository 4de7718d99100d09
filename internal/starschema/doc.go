// Package starschema derives the star schema from the catalog and event
// tables: the songs, artists, users and time dimensions and the songplays
// fact.
//
// Every function here is a pure table-to-table transformation composed from
// the operators in internal/transformer/builtin. Inputs are never modified,
// so one table may feed several derivations concurrently.
package starschema

import (
	"github.com/rs/zerolog/log"

	"songetl/internal/table"
)

// logLayout records the column layout of a derived table before it is
// handed to a writer.
func logLayout(name string, t *table.Table) {
	log.Info().
		Str("table", name).
		Int("rows", t.Len()).
		Str("layout", t.Schema.Layout()).
		Msg("table derived")
	log.Debug().Str("table", name).Msg("schema\n" + t.Schema.String())
}
