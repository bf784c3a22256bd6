package matcher

import (
	"context"
	"strings"

	"github.com/narwhalmedia/catalog/internal/library/domain"
	"github.com/narwhalmedia/catalog/internal/library/metadata"
	"github.com/narwhalmedia/catalog/internal/library/parser"
	"github.com/narwhalmedia/catalog/pkg/config"
	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

// Prior is the stored match of a file being matched again.
type Prior struct {
	ExternalID    string
	Kind          domain.Kind
	UserConfirmed bool
}

// Matcher resolves parsed hints against a metadata provider. Movie and show
// hints share the scoring core; show hints with an episode additionally
// require the episode to exist on the candidate.
type Matcher struct {
	provider    metadata.Provider
	libraryKind domain.Kind
	cfg         config.MatcherSettings
	logger      interfaces.Logger
}

// New creates a matcher for a library of the given kind.
func New(provider metadata.Provider, libraryKind domain.Kind, cfg config.MatcherSettings, logger interfaces.Logger) *Matcher {
	return &Matcher{
		provider:    provider,
		libraryKind: libraryKind,
		cfg:         cfg,
		logger:      logger.Named("matcher"),
	}
}

// QueryKind picks the catalog kind a hint is searched as.
func QueryKind(libraryKind domain.Kind, hint *parser.Hint) domain.Kind {
	switch {
	case hint != nil && hint.HasEpisode():
		return domain.KindShow
	case libraryKind == domain.KindShow:
		return domain.KindShow
	default:
		return domain.KindMovie
	}
}

// Match decides which catalog entry a hint refers to. Provider failures
// produce an Unmatched decision, never an error.
func (m *Matcher) Match(ctx context.Context, hint *parser.Hint, prior *Prior) Decision {
	if prior != nil && prior.UserConfirmed && prior.ExternalID != "" {
		return Decision{
			Outcome:       OutcomeAccepted,
			Kind:          prior.Kind,
			ExternalID:    prior.ExternalID,
			Score:         1,
			UserConfirmed: true,
			Preserved:     true,
		}
	}

	kind := QueryKind(m.libraryKind, hint)
	if hint == nil || strings.TrimSpace(hint.Title) == "" {
		return unmatched(kind, ReasonParseError, nil)
	}

	candidates, err := m.provider.Search(ctx, metadata.Query{Title: hint.Title, Year: hint.Year, Kind: kind})
	if err != nil {
		m.logger.Debug("Metadata search failed",
			interfaces.String("path", hint.Path),
			interfaces.Error(err))
		return unmatched(kind, ReasonProviderError, err)
	}
	if len(candidates) == 0 {
		return unmatched(kind, ReasonNoResults, nil)
	}

	scored := rank(m.cfg, hint, candidates)

	var details map[string]*metadata.Details
	if kind == domain.KindShow && hint.HasEpisode() {
		var checked int
		scored, details, checked, err = m.keepWithEpisode(ctx, hint, scored)
		if err != nil {
			return unmatched(kind, ReasonProviderError, err)
		}
		if checked > 0 && len(scored) == 0 {
			return unmatched(kind, ReasonEpisodeNotFound, nil)
		}
	}

	d := m.decide(kind, scored, details)
	m.logger.Debug("Match decided",
		interfaces.String("path", hint.Path),
		interfaces.String("outcome", string(d.Outcome)),
		interfaces.String("external_id", d.ExternalID),
		interfaces.Float("score", d.Score))
	return d
}

// Rematch records a user's explicit choice. No scoring takes place.
func (m *Matcher) Rematch(externalID string, kind domain.Kind) Decision {
	return Decision{
		Outcome:       OutcomeAccepted,
		Kind:          kind,
		ExternalID:    externalID,
		Score:         1,
		UserConfirmed: true,
	}
}

// keepWithEpisode fetches show details for the plausible candidates and
// drops those without the hinted episodes. It returns how many were checked.
func (m *Matcher) keepWithEpisode(ctx context.Context, hint *parser.Hint, scored []Scored) ([]Scored, map[string]*metadata.Details, int, error) {
	kept := make([]Scored, 0, len(scored))
	details := make(map[string]*metadata.Details)
	checked := 0

	for _, s := range scored {
		if s.Score < m.cfg.PlausibleThreshold || checked >= m.cfg.MaxAmbiguous {
			break
		}
		checked++

		d, err := m.provider.Details(ctx, s.Candidate.ExternalID, domain.KindShow)
		if err != nil {
			if metadata.IsNotFound(err) {
				continue
			}
			return nil, nil, checked, err
		}
		if !hasEpisodes(d, hint) {
			continue
		}
		kept = append(kept, s)
		details[s.Candidate.ExternalID] = d
	}

	if checked == 0 {
		return scored, details, 0, nil
	}
	return kept, details, checked, nil
}

func hasEpisodes(d *metadata.Details, hint *parser.Hint) bool {
	for _, e := range hint.Episodes() {
		if d.Episode(*hint.Season, e) == nil {
			return false
		}
	}
	return true
}

func (m *Matcher) decide(kind domain.Kind, scored []Scored, details map[string]*metadata.Details) Decision {
	top := scored[0]
	runnerUp := 0.0
	if len(scored) > 1 {
		runnerUp = scored[1].Score
	}

	if top.Score >= m.cfg.AcceptThreshold && top.Score-runnerUp >= m.cfg.MinMargin-scoreEpsilon {
		return accepted(kind, top, details[top.Candidate.ExternalID])
	}

	var near []Scored
	for _, s := range scored {
		if s.Score < m.cfg.PlausibleThreshold || top.Score-s.Score >= m.cfg.MinMargin-scoreEpsilon {
			break
		}
		near = append(near, s)
	}
	if len(near) >= 2 {
		if len(near) > m.cfg.MaxAmbiguous {
			near = near[:m.cfg.MaxAmbiguous]
		}
		return ambiguous(kind, near)
	}

	if top.Score >= m.cfg.AcceptThreshold {
		return accepted(kind, top, details[top.Candidate.ExternalID])
	}

	d := unmatched(kind, ReasonNoConfidentMatch, nil)
	d.Score = top.Score
	d.Candidates = plausible(scored, m.cfg.PlausibleThreshold, m.cfg.MaxAmbiguous)
	return d
}

func plausible(scored []Scored, threshold float64, limit int) []Scored {
	var out []Scored
	for _, s := range scored {
		if s.Score < threshold || len(out) == limit {
			break
		}
		out = append(out, s)
	}
	return out
}
