package musicbrainz

import "strings"

// genreGroups maps each canonical genre to the MusicBrainz tags folded into it.
var genreGroups = map[string][]string{
	"Rock": {
		"rock", "alternative rock", "indie rock", "hard rock", "punk", "punk rock",
		"post-punk", "garage rock", "grunge", "emo", "soft rock", "industrial rock",
	},
	"Metal": {
		"metal", "heavy metal", "nu metal", "death metal", "black metal", "thrash metal",
		"metalcore", "progressive metal", "rap metal", "alternative metal",
		"industrial metal", "neue deutsche härte", "funk metal",
	},
	"Pop": {
		"pop", "indie pop", "synthpop", "synth-pop", "dance pop", "dance-pop",
		"electropop", "latin pop", "art pop", "noise pop",
	},
	"Hip-Hop": {
		"hip hop", "rap", "trap", "drill", "boom bap", "latin trap",
		"abstract hip hop", "hardcore rap",
	},
	"R&B": {
		"r&b", "rnb", "contemporary r&b", "soul", "neo soul", "funk", "rhythm and blues",
	},
	"Electronic": {
		"electronic", "edm", "house", "techno", "trance", "dubstep", "drum and bass",
		"dnb", "trip hop", "alternative dance", "chillwave", "industrial", "club/dance",
		"disco", "folktronica", "microhouse", "ambient house", "electronica", "dub",
	},
	"Latin": {
		"latin", "reggaeton", "dembow", "salsa", "bachata", "merengue", "cumbia",
		"bomba", "bossa nova",
	},
	"Regional Mexican": {
		"regional mexican", "banda", "norteño", "norteno", "corridos",
		"corridos tumbados", "mariachi", "grupero", "sierreño", "sierreño urbano",
	},
	"Country":    {"country", "americana", "alt-country"},
	"Jazz":       {"jazz", "smooth jazz", "bebop"},
	"Classical":  {"classical", "opera", "baroque", "romantic", "orchestral", "classical crossover"},
	"Folk":       {"folk", "indie folk", "acoustic"},
	"Reggae":     {"reggae", "dancehall", "ska"},
	"Blues":      {"blues"},
	"Soundtrack": {"soundtrack", "film score"},
}

// DefaultGenreMap maps a lower-cased MusicBrainz tag to its canonical genre.
var DefaultGenreMap = func() map[string]string {
	m := make(map[string]string)
	for genre, tags := range genreGroups {
		for _, t := range tags {
			m[t] = genre
		}
	}
	return m
}()

// mainGenre sums tag votes per canonical genre and returns the winner. sub is
// the single most-voted raw tag when it differs from the winner.
func mainGenre(tags []tag, genreMap map[string]string) (main, sub string) {
	votes := make(map[string]int)
	var topTag string
	var topCount int

	for _, t := range tags {
		if t.Count <= 0 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(t.Name))
		if name == "" {
			continue
		}
		if mapped, ok := genreMap[name]; ok {
			votes[mapped] += t.Count
		} else {
			votes[t.Name] += t.Count
		}
		if t.Count > topCount {
			topCount = t.Count
			topTag = t.Name
		}
	}

	var best int
	for genre, n := range votes {
		// ties break alphabetically so the result is stable
		if n > best || (n == best && genre < main) {
			best = n
			main = genre
		}
	}
	if main == "" {
		return "", ""
	}
	if normalizeGenre(topTag) != normalizeGenre(main) {
		sub = topTag
	}
	return main, sub
}

func normalizeGenre(s string) string {
	return strings.NewReplacer("-", " ", "/", " ", "_", " ").Replace(strings.ToLower(strings.TrimSpace(s)))
}
