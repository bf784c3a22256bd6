package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/narwhalmedia/catalog/internal/library/domain"
)

var (
	extRx = regexp.MustCompile(`^\.[A-Za-z0-9]{2,4}$`)

	// dotted tags would otherwise be split apart by the tokenizer
	dottedAudioRx = regexp.MustCompile(`(?i)(ddp?|aac|eac3|ac3|dts|truehd|atmos)[ ._]?[257]\.[01]`)
	dottedCodecRx = regexp.MustCompile(`(?i)\b([hx])\.(26[45])\b`)

	squareTagRx = regexp.MustCompile(`\[([^\]]*)\]|\{[^}]*\}`)
	parenYearRx = regexp.MustCompile(`\((?:19|20)\d{2}\)`)
	separatorRx = regexp.MustCompile(`[\s._()]+`)

	yearRx        = regexp.MustCompile(`^(19|20)\d{2}$`)
	sxeRx         = regexp.MustCompile(`^[Ss](\d{1,3})[Ee](\d{1,4})(?:(?:-[Ee]?|[Ee])(\d{1,4}))?$`)
	seasonOnlyRx  = regexp.MustCompile(`^[Ss](\d{1,3})$`)
	episodeOnlyRx = regexp.MustCompile(`^[Ee](\d{1,4})(?:(?:-[Ee]?|[Ee])(\d{1,4}))?$`)
	crossRx       = regexp.MustCompile(`^(\d{1,2})[xX](\d{1,3})(?:-(\d{1,3}))?$`)
	numberRx      = regexp.MustCompile(`^\d{1,4}$`)

	seasonDirRx = regexp.MustCompile(`(?i)^(?:season|series|staffel|saison|s)[\s._-]*\d{1,3}$|^specials?$`)
)

type token struct {
	text  string
	paren bool // came from (...) or [...]
}

// anchor is the location of a structural match within the token list.
type anchor struct {
	kind       Anchor
	start      int
	season     int
	episode    int
	episodeEnd int
	year       int
}

// Parse derives a Hint from a path relative to the library root.
// It performs no I/O and always returns the same result for the same input.
func Parse(path string, kind domain.Kind) (*Hint, error) {
	name := filepath.Base(path)
	if ext := filepath.Ext(name); extRx.MatchString(ext) && !numberRx.MatchString(ext[1:]) {
		name = strings.TrimSuffix(name, ext)
	}

	tokens := tokenize(name)
	hint := &Hint{Path: path, Anchor: AnchorNone}

	var a *anchor
	if kind.ShowShaped() {
		a = findSeasonEpisode(tokens)
	}
	if a == nil {
		a = findYear(tokens)
	}

	var titleTokens []token
	switch {
	case a == nil:
		titleTokens = tokens
		if cut := firstNoise(tokens); cut >= 0 {
			titleTokens = tokens[:cut]
		}
	default:
		titleTokens = tokens[:a.start]
		hint.Anchor = a.kind
		switch a.kind {
		case AnchorSeasonEpisode:
			hint.Season = intPtr(a.season)
			hint.Episode = intPtr(a.episode)
			if a.episodeEnd > a.episode && a.episodeEnd-a.episode < MaxEpisodesPerFile {
				hint.EpisodeEnd = intPtr(a.episodeEnd)
			}
		case AnchorYear:
			hint.Year = intPtr(a.year)
		}
	}

	hint.Title = joinTitle(titleTokens)

	if hint.Title == "" && hint.Anchor == AnchorSeasonEpisode {
		title, year := showDirectoryTitle(path)
		hint.Title = title
		if hint.Year == nil {
			hint.Year = year
		}
	}

	if hint.Title == "" {
		return nil, &ParseError{Path: path, Reason: "no title token"}
	}
	return hint, nil
}

func tokenize(name string) []token {
	name = dottedAudioRx.ReplaceAllString(name, "$1")
	name = dottedCodecRx.ReplaceAllString(name, "$1$2")

	// [tags] and {tags} are dropped unless they hold a bare year
	name = squareTagRx.ReplaceAllStringFunc(name, func(m string) string {
		inner := strings.TrimSpace(strings.Trim(m, "[]{}"))
		if yearRx.MatchString(inner) {
			return " (" + inner + ") "
		}
		return " "
	})

	parenYears := make(map[int]bool)
	for _, loc := range parenYearRx.FindAllStringIndex(name, -1) {
		parenYears[loc[0]] = true
	}

	var tokens []token
	for _, loc := range splitIndices(name) {
		text := strings.Trim(name[loc[0]:loc[1]], "-")
		if text == "" {
			continue
		}
		tokens = append(tokens, token{
			text:  text,
			paren: loc[0] > 0 && parenYears[loc[0]-1],
		})
	}
	return tokens
}

// splitIndices returns the [start,end) spans between separators.
func splitIndices(s string) [][2]int {
	var spans [][2]int
	prev := 0
	for _, sep := range separatorRx.FindAllStringIndex(s, -1) {
		if sep[0] > prev {
			spans = append(spans, [2]int{prev, sep[0]})
		}
		prev = sep[1]
	}
	if prev < len(s) {
		spans = append(spans, [2]int{prev, len(s)})
	}
	return spans
}

func findSeasonEpisode(tokens []token) *anchor {
	for i, tok := range tokens {
		if m := sxeRx.FindStringSubmatch(tok.text); m != nil {
			return seasonEpisodeAnchor(i, m[1], m[2], m[3])
		}
		if m := crossRx.FindStringSubmatch(tok.text); m != nil {
			return seasonEpisodeAnchor(i, m[1], m[2], m[3])
		}
		if i+1 >= len(tokens) {
			continue
		}
		next := tokens[i+1].text
		// S01 E05
		if s := seasonOnlyRx.FindStringSubmatch(tok.text); s != nil {
			if e := episodeOnlyRx.FindStringSubmatch(next); e != nil {
				return seasonEpisodeAnchor(i, s[1], e[1], e[2])
			}
		}
		// Season 1 Episode 5
		if strings.EqualFold(tok.text, "season") && numberRx.MatchString(next) &&
			i+3 < len(tokens) && strings.EqualFold(tokens[i+2].text, "episode") &&
			numberRx.MatchString(tokens[i+3].text) {
			return seasonEpisodeAnchor(i, next, tokens[i+3].text, "")
		}
	}
	return nil
}

func seasonEpisodeAnchor(start int, season, episode, episodeEnd string) *anchor {
	a := &anchor{kind: AnchorSeasonEpisode, start: start}
	a.season, _ = strconv.Atoi(season)
	a.episode, _ = strconv.Atoi(episode)
	if episodeEnd != "" {
		a.episodeEnd, _ = strconv.Atoi(episodeEnd)
	}
	return a
}

// findYear picks the year token that ends the title. A parenthesised year
// wins; otherwise the last bare year before the first noise tag. A year in
// first position is always title text ("1917").
func findYear(tokens []token) *anchor {
	limit := len(tokens)
	if cut := firstNoise(tokens); cut >= 0 {
		limit = cut
	}

	best := -1
	for i := 0; i < limit; i++ {
		if !yearRx.MatchString(tokens[i].text) || i == 0 {
			continue
		}
		if tokens[i].paren {
			best = i
			break
		}
		best = i
	}
	if best < 0 {
		return nil
	}
	year, _ := strconv.Atoi(tokens[best].text)
	return &anchor{kind: AnchorYear, start: best, year: year}
}

func firstNoise(tokens []token) int {
	for i, tok := range tokens {
		if isNoise(tok.text) {
			return i
		}
	}
	return -1
}

func joinTitle(tokens []token) string {
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if isNoise(tok.text) {
			continue
		}
		words = append(words, tok.text)
	}
	return strings.TrimSpace(strings.Trim(strings.Join(words, " "), "-–:,"))
}

// showDirectoryTitle derives a title from the show directory, skipping a
// "Season N" level.
func showDirectoryTitle(path string) (string, *int) {
	dir := filepath.Dir(path)
	for i := 0; i < 2 && dir != "." && dir != string(filepath.Separator); i++ {
		base := filepath.Base(dir)
		if seasonDirRx.MatchString(base) {
			dir = filepath.Dir(dir)
			continue
		}
		tokens := tokenize(base)
		if a := findYear(tokens); a != nil {
			return joinTitle(tokens[:a.start]), intPtr(a.year)
		}
		return joinTitle(tokens), nil
	}
	return "", nil
}

func intPtr(v int) *int {
	return &v
}
