package spotify

// Wire types for the Web API endpoints the source reads.

type recentlyPlayedResponse struct {
	Items   []playHistoryItem `json:"items"`
	Next    string            `json:"next"`
	Cursors *struct {
		After  string `json:"after"`
		Before string `json:"before"`
	} `json:"cursors"`
	Limit int `json:"limit"`
}

type playHistoryItem struct {
	Track    trackObject `json:"track"`
	PlayedAt string      `json:"played_at"`
}

type trackObject struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Artists     []artistObject `json:"artists"`
	Album       albumObject    `json:"album"`
	ExternalIDs externalIDs    `json:"external_ids"`
	DurationMS  int            `json:"duration_ms"`
	DiscNumber  int            `json:"disc_number"`
	TrackNumber int            `json:"track_number"`
	Popularity  *int           `json:"popularity"`
}

type albumObject struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	AlbumType            string         `json:"album_type"`
	Artists              []artistObject `json:"artists"`
	Images               []imageObject  `json:"images"`
	ReleaseDate          string         `json:"release_date"`
	ReleaseDatePrecision string         `json:"release_date_precision"`
	Genres               []string       `json:"genres"`
	ExternalIDs          externalIDs    `json:"external_ids"`
	TotalTracks          int            `json:"total_tracks"`
}

type artistObject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type imageObject struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
	UPC  string `json:"upc"`
	EAN  string `json:"ean"`
}

type severalAlbumsResponse struct {
	Albums []*albumObject `json:"albums"`
}
