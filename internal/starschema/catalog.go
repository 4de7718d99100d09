package starschema

import (
	"songetl/internal/schema"
	"songetl/internal/table"
	"songetl/internal/transformer"
	"songetl/internal/transformer/builtin"
)

// Songs projects the catalog onto the song dimension and removes duplicate
// rows.
func Songs(catalog *table.Table) (*table.Table, error) {
	out, err := transformer.Chain{
		builtin.Select{Columns: schema.Songs.Names()},
		builtin.DeDup{},
	}.Apply(catalog)
	if err != nil {
		return nil, err
	}
	logLayout(schema.TableSongs, out)
	return out, nil
}

// Artists projects the artist_* catalog columns onto the artist dimension.
// An artist whose location or coordinates differ between catalog records
// appears once per distinct variant.
func Artists(catalog *table.Table) (*table.Table, error) {
	out, err := transformer.Chain{
		builtin.Select{Columns: []string{
			"artist_id", "artist_name", "artist_location", "artist_latitude", "artist_longitude",
		}},
		builtin.Rename{Columns: schema.Artists.Names()},
		builtin.DeDup{},
	}.Apply(catalog)
	if err != nil {
		return nil, err
	}
	logLayout(schema.TableArtists, out)
	return out, nil
}
