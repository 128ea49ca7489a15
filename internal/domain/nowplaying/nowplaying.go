// Package nowplaying provides the NowPlaying domain entity.
package nowplaying

// NowPlaying represents what the station reports as currently on air.
// An empty Title is the station's dead-air marker.
type NowPlaying struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	ArtworkURL string `json:"artwork_url"`
}

// OffAir reports whether the station is currently off air.
func (n NowPlaying) OffAir() bool {
	return n.Title == ""
}

// DisplayArtist composes the artist line shown to listeners.
// With an artist name present it reads "<artist> · <station>", otherwise
// just the station name. Off air it is always empty.
func (n NowPlaying) DisplayArtist(station string) string {
	if n.OffAir() {
		return ""
	}
	if n.Artist == "" {
		return station
	}
	return n.Artist + " · " + station
}

// Resolve normalizes the entry for display. Off-air entries have their
// artist cleared and the artwork replaced with the offline fallback,
// regardless of what the station reported alongside the empty title.
func (n NowPlaying) Resolve(station, offlineArtworkURL string) NowPlaying {
	if n.OffAir() {
		return NowPlaying{
			Title:      "",
			Artist:     "",
			ArtworkURL: offlineArtworkURL,
		}
	}
	return NowPlaying{
		Title:      n.Title,
		Artist:     n.DisplayArtist(station),
		ArtworkURL: n.ArtworkURL,
	}
}
