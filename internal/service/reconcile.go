package service

import (
	"strings"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

// Reconcile relabels the rows of a stored result against a user-edited
// competitor list and merges rows that collapse onto the same name. It
// returns a new result and never mutates the input.
func Reconcile(result models.AnalysisResult, userCompetitors []models.CompetitorDetail) models.AnalysisResult {
	canon := newCanonicalizer(SanitizeCompetitors(userCompetitors))

	out := result
	out.Competitors = mergeRankings(relabelRankings(result.Competitors, canon))

	out.ProviderRankings = make([]models.ProviderRanking, len(result.ProviderRankings))
	for i, pr := range result.ProviderRankings {
		out.ProviderRankings[i] = models.ProviderRanking{
			Provider:    pr.Provider,
			Competitors: mergeRankings(relabelRankings(pr.Competitors, canon)),
		}
	}
	if len(result.ProviderRankings) > 0 {
		out.ProviderComparison = BuildProviderComparison(out.ProviderRankings)
	} else {
		out.ProviderComparison = relabelComparison(result.ProviderComparison, canon)
	}

	out.KnownCompetitors = relabelNames(result.KnownCompetitors, canon)

	out.Responses = make([]models.AIResponse, len(result.Responses))
	for i, r := range result.Responses {
		cp := r
		cp.CompetitorMentions = make([]models.CompetitorMention, len(r.CompetitorMentions))
		for j, m := range r.CompetitorMentions {
			m.Name = canon.label(m.Name, "")
			cp.CompetitorMentions[j] = m
		}
		out.Responses[i] = cp
	}

	if result.Errors != nil {
		out.Errors = append([]string(nil), result.Errors...)
	}
	out.Prompts = append([]models.BrandPrompt(nil), result.Prompts...)
	return out
}

type canonicalizer struct {
	users []models.CompetitorDetail
}

func newCanonicalizer(users []models.CompetitorDetail) canonicalizer {
	return canonicalizer{users: users}
}

// label returns the user-facing name for a row label, or the label itself
// when no user competitor matches by name or domain.
func (c canonicalizer) label(name, rowURL string) string {
	norm := NormalizeCompetitorName(name)
	for _, u := range c.users {
		if NormalizeCompetitorName(u.Name) == norm {
			return u.Name
		}
	}

	candidates := []string{normalizeDomain(rowURL)}
	if strings.Contains(name, ".") {
		candidates = append(candidates, normalizeDomain(name))
	}
	for _, u := range c.users {
		ud := normalizeDomain(u.URL)
		if ud == "" {
			continue
		}
		for _, d := range candidates {
			if d != "" && (d == ud || strings.Contains(d, ud) || strings.Contains(ud, d)) {
				return u.Name
			}
		}
	}
	return name
}

func (c canonicalizer) urlFor(name string) string {
	for _, u := range c.users {
		if u.Name == name {
			return u.URL
		}
	}
	return ""
}

func relabelRankings(in []models.CompetitorRanking, canon canonicalizer) []models.CompetitorRanking {
	out := make([]models.CompetitorRanking, len(in))
	for i, r := range in {
		if !r.IsOwn {
			r.Name = canon.label(r.Name, r.URL)
			if u := canon.urlFor(r.Name); u != "" {
				r.URL = u
			}
		}
		if r.WeeklyChange != nil {
			wc := *r.WeeklyChange
			r.WeeklyChange = &wc
		}
		out[i] = r
	}
	return out
}

// mergeRankings folds rows sharing a name: mentions are summed, position is
// mention-weighted and sentiment keeps the maximum. Shares are recomputed.
func mergeRankings(in []models.CompetitorRanking) []models.CompetitorRanking {
	index := make(map[string]int)
	var out []models.CompetitorRanking
	weights := make(map[int]float64)

	for _, r := range in {
		key := strings.ToLower(r.Name)
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, r)
			weights[len(out)-1] = r.AveragePosition * float64(r.Mentions)
			continue
		}

		m := &out[i]
		weights[i] += r.AveragePosition * float64(r.Mentions)
		m.Mentions += r.Mentions
		m.IsOwn = m.IsOwn || r.IsOwn
		if m.URL == "" {
			m.URL = r.URL
		}
		if r.SentimentScore > m.SentimentScore {
			m.SentimentScore = r.SentimentScore
			m.Sentiment = r.Sentiment
		}
		switch {
		case m.Mentions > 0:
			m.AveragePosition = round1(weights[i] / float64(m.Mentions))
		case r.AveragePosition < m.AveragePosition:
			m.AveragePosition = r.AveragePosition
		}
	}

	total := 0
	for _, r := range out {
		total += r.Mentions
	}
	for i := range out {
		out[i].VisibilityScore = percentOf(out[i].Mentions, total)
		out[i].ShareOfVoice = out[i].VisibilityScore
	}
	sortRankings(out)
	return out
}

func relabelComparison(in []models.ProviderComparisonRow, canon canonicalizer) []models.ProviderComparisonRow {
	index := make(map[string]int)
	var out []models.ProviderComparisonRow
	for _, row := range in {
		name := row.Competitor
		if !row.IsOwn {
			name = canon.label(name, "")
		}
		key := strings.ToLower(name)
		if i, ok := index[key]; ok {
			for p, m := range row.Providers {
				prev, seen := out[i].Providers[p]
				if !seen {
					out[i].Providers[p] = m
					continue
				}
				prev.Mentions += m.Mentions
				prev.VisibilityScore += m.VisibilityScore
				out[i].Providers[p] = prev
			}
			continue
		}
		providers := make(map[string]models.ProviderMetric, len(row.Providers))
		for p, m := range row.Providers {
			providers[p] = m
		}
		index[key] = len(out)
		out = append(out, models.ProviderComparisonRow{Competitor: name, IsOwn: row.IsOwn, Providers: providers})
	}
	return out
}

func relabelNames(in []string, canon canonicalizer) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range in {
		n = canon.label(n, "")
		key := strings.ToLower(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	for _, u := range canon.users {
		if key := strings.ToLower(u.Name); !seen[key] {
			seen[key] = true
			out = append(out, u.Name)
		}
	}
	return out
}

// normalizeDomain strips scheme, "www." and trailing slashes and lowercases.
func normalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimRight(d, "/")
}
