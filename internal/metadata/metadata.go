package metadata

import (
	"tvgamerefund/internal/logger"
	"tvgamerefund/internal/models"
)

// Lookup resolves poster/backdrop art for a show title. Implemented
// outside this service (the mobile client talks to its own metadata
// provider); the core only decorates listings when a lookup is wired.
type Lookup interface {
	Find(title string) (posterURL, backdropURL string, err error)
}

// Decorate fills image URLs on listings, best effort. Lookups are keyed
// by show, not by game, so every listing of a show gets the same art.
func Decorate(games []models.GameListing, l Lookup) {
	byShow := make(map[string][2]string)

	for i := range games {
		g := &games[i]

		if art, ok := byShow[g.ShowID]; ok {
			g.PosterURL, g.BackdropURL = art[0], art[1]
			continue
		}

		poster, backdrop, err := l.Find(g.Title)
		if err != nil {
			logger.Debug("metadata: lookup miss", map[string]interface{}{
				"show": g.ShowID, "error": err.Error(),
			})
			byShow[g.ShowID] = [2]string{}
			continue
		}

		byShow[g.ShowID] = [2]string{poster, backdrop}
		g.PosterURL, g.BackdropURL = poster, backdrop
	}
}
