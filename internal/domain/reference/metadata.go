package reference

import (
	"fmt"
	"sort"

	"github.com/okian/crowdcast/internal/domain/model"
)

// MetadataIndex maps a game name to its static attributes.
type MetadataIndex struct {
	games  map[string]model.GameMeta
	genres []string
}

// NewMetadataIndex builds the index. Duplicate game names keep the first row.
func NewMetadataIndex(rows []model.GameMeta) *MetadataIndex {
	idx := &MetadataIndex{games: make(map[string]model.GameMeta, len(rows))}
	seen := make(map[string]struct{})
	for _, r := range rows {
		if _, dup := idx.games[r.Name]; dup {
			continue
		}
		idx.games[r.Name] = r
		if _, ok := seen[r.Genre]; !ok && r.Genre != "" {
			seen[r.Genre] = struct{}{}
			idx.genres = append(idx.genres, r.Genre)
		}
	}
	sort.Strings(idx.genres)
	return idx
}

// Lookup returns the metadata of game.
func (m *MetadataIndex) Lookup(game string) (model.GameMeta, bool) {
	if m == nil {
		return model.GameMeta{}, false
	}
	g, ok := m.games[game]
	return g, ok
}

// Get is Lookup that reports a missing game as ErrUnknownGame.
func (m *MetadataIndex) Get(game string) (model.GameMeta, error) {
	g, ok := m.Lookup(game)
	if !ok {
		return model.GameMeta{}, fmt.Errorf("%w: %q", ErrUnknownGame, game)
	}
	return g, nil
}

// Genres returns every non-blank genre in the table, sorted.
func (m *MetadataIndex) Genres() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.genres))
	copy(out, m.genres)
	return out
}

// Len returns the number of games.
func (m *MetadataIndex) Len() int {
	if m == nil {
		return 0
	}
	return len(m.games)
}
