package game

import "tycoon/internal/ledger"

// SeedDefaults loads the stock board when the session is empty: eight color
// groups of two or three streets each, priced like the classic board.
func (s *Session) SeedDefaults() error {
	if len(s.Ledger.PropertyIDs()) > 0 {
		return nil
	}
	seed := []struct {
		ID    string
		Group string
		Price int64
		Rent  int64
	}{
		{"old-road", "brown", 60, 2},
		{"baltic-row", "brown", 60, 4},
		{"harbor-view", "lightblue", 100, 6},
		{"dock-street", "lightblue", 100, 6},
		{"gull-lane", "lightblue", 120, 8},
		{"violet-place", "pink", 140, 10},
		{"states-avenue", "pink", 140, 10},
		{"virginia-walk", "pink", 160, 12},
		{"tangerine-row", "orange", 180, 14},
		{"tennessee-court", "orange", 180, 14},
		{"york-square", "orange", 200, 16},
		{"crimson-avenue", "red", 220, 18},
		{"indiana-drive", "red", 220, 18},
		{"illinois-park", "red", 240, 20},
		{"amber-gardens", "yellow", 260, 22},
		{"ventnor-green", "yellow", 260, 22},
		{"marigold-walk", "yellow", 280, 24},
		{"pacific-heights", "green", 300, 26},
		{"carolina-ridge", "green", 300, 26},
		{"pennsylvania-crest", "green", 320, 28},
		{"park-lane", "darkblue", 350, 35},
		{"boardwalk", "darkblue", 400, 50},
	}
	for _, row := range seed {
		err := s.Ledger.AddProperty(ledger.Property{
			ID:        row.ID,
			Group:     row.Group,
			BasePrice: row.Price,
			BaseRent:  row.Rent,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
