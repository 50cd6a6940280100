package service

import (
	"math"
	"sort"
	"strings"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

// Scoring constants.
const (
	NoPosition            = 99
	DefaultSentimentScore = 50
)

var sentimentScores = map[models.Sentiment]float64{
	models.SentimentPositive: 80,
	models.SentimentNeutral:  50,
	models.SentimentNegative: 20,
}

// tally accumulates mentions for one entity.
type tally struct {
	name       string
	url        string
	isOwn      bool
	mentions   int
	positions  []int
	sentiments []float64
}

func (t *tally) add(position *int, sentiment models.Sentiment) {
	t.mentions++
	if position != nil && *position > 0 {
		t.positions = append(t.positions, *position)
	}
	score, ok := sentimentScores[sentiment]
	if !ok {
		score = DefaultSentimentScore
	}
	t.sentiments = append(t.sentiments, score)
}

func (t *tally) ranking(total int) models.CompetitorRanking {
	avgPos := float64(NoPosition)
	if len(t.positions) > 0 {
		sum := 0
		for _, p := range t.positions {
			sum += p
		}
		avgPos = round1(float64(sum) / float64(len(t.positions)))
	}

	sentScore := float64(DefaultSentimentScore)
	if len(t.sentiments) > 0 {
		sum := 0.0
		for _, s := range t.sentiments {
			sum += s
		}
		sentScore = round1(sum / float64(len(t.sentiments)))
	}

	share := percentOf(t.mentions, total)
	return models.CompetitorRanking{
		Name:            t.name,
		URL:             t.url,
		Mentions:        t.mentions,
		AveragePosition: avgPos,
		Sentiment:       sentimentLabel(sentScore),
		SentimentScore:  sentScore,
		ShareOfVoice:    share,
		VisibilityScore: share,
		IsOwn:           t.isOwn,
	}
}

// AnalyzeCompetitors aggregates responses into rankings for the brand and
// every known competitor, sorted by visibility then name.
func AnalyzeCompetitors(company models.Company, responses []models.AIResponse, known []string) []models.CompetitorRanking {
	tallies := newTallies(company, known)

	for _, resp := range responses {
		countResponse(tallies, resp)
	}
	return rankTallies(tallies)
}

// AnalyzeByProvider builds a leaderboard per provider plus the provider
// comparison matrix. Providers are ordered by name.
func AnalyzeByProvider(company models.Company, responses []models.AIResponse, known []string) ([]models.ProviderRanking, []models.ProviderComparisonRow) {
	byProvider := make(map[string][]models.AIResponse)
	var providers []string
	for _, resp := range responses {
		if _, ok := byProvider[resp.Provider]; !ok {
			providers = append(providers, resp.Provider)
		}
		byProvider[resp.Provider] = append(byProvider[resp.Provider], resp)
	}
	sort.Strings(providers)

	rankings := make([]models.ProviderRanking, 0, len(providers))
	for _, p := range providers {
		rankings = append(rankings, models.ProviderRanking{
			Provider:    p,
			Competitors: AnalyzeCompetitors(company, byProvider[p], known),
		})
	}
	return rankings, BuildProviderComparison(rankings)
}

// BuildProviderComparison pivots per-provider leaderboards into one row per
// competitor, sorted by mean visibility across providers.
func BuildProviderComparison(rankings []models.ProviderRanking) []models.ProviderComparisonRow {
	rows := make(map[string]*models.ProviderComparisonRow)
	var order []string

	for _, pr := range rankings {
		for _, c := range pr.Competitors {
			key := strings.ToLower(c.Name)
			row, ok := rows[key]
			if !ok {
				row = &models.ProviderComparisonRow{Competitor: c.Name, Providers: make(map[string]models.ProviderMetric)}
				rows[key] = row
				order = append(order, key)
			}
			row.IsOwn = row.IsOwn || c.IsOwn
			row.Providers[pr.Provider] = models.ProviderMetric{
				VisibilityScore: c.VisibilityScore,
				Position:        c.AveragePosition,
				Mentions:        c.Mentions,
				Sentiment:       c.Sentiment,
			}
		}
	}

	out := make([]models.ProviderComparisonRow, 0, len(order))
	for _, key := range order {
		out = append(out, *rows[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := meanVisibility(out[i]), meanVisibility(out[j])
		if vi != vj {
			return vi > vj
		}
		return out[i].Competitor < out[j].Competitor
	})
	return out
}

// CalculateBrandScores derives the headline scores for the brand.
func CalculateBrandScores(responses []models.AIResponse, brand string, rankings []models.CompetitorRanking) models.BrandScores {
	if len(responses) == 0 {
		return models.BrandScores{}
	}

	var own *models.CompetitorRanking
	for i := range rankings {
		if rankings[i].IsOwn || (own == nil && strings.EqualFold(rankings[i].Name, brand)) {
			own = &rankings[i]
			if own.IsOwn {
				break
			}
		}
	}

	mentioned := 0
	for _, r := range responses {
		if r.BrandMentioned {
			mentioned++
		}
	}

	scores := models.BrandScores{
		VisibilityScore: percentOf(mentioned, len(responses)),
		SentimentScore:  DefaultSentimentScore,
	}
	positionScore := 0.0
	if own != nil {
		scores.SentimentScore = own.SentimentScore
		scores.ShareOfVoice = own.ShareOfVoice
		if own.Mentions > 0 && own.AveragePosition < NoPosition {
			scores.AveragePosition = own.AveragePosition
			positionScore = math.Max(0, 100-(own.AveragePosition-1)*10)
		}
	}

	scores.OverallScore = round1(0.3*scores.VisibilityScore +
		0.2*scores.SentimentScore +
		0.3*scores.ShareOfVoice +
		0.2*positionScore)
	return scores
}

// SeedUserCompetitors returns rankings plus a zero-mention entry for every
// detail whose name is not already ranked.
func SeedUserCompetitors(rankings []models.CompetitorRanking, details []models.CompetitorDetail) []models.CompetitorRanking {
	out := make([]models.CompetitorRanking, len(rankings), len(rankings)+len(details))
	copy(out, rankings)

	existing := make(map[string]bool, len(rankings))
	for _, r := range rankings {
		existing[strings.ToLower(r.Name)] = true
	}
	for _, d := range details {
		key := strings.ToLower(d.Name)
		if d.Name == "" || existing[key] {
			continue
		}
		existing[key] = true
		out = append(out, models.CompetitorRanking{
			Name:            d.Name,
			URL:             d.URL,
			Mentions:        0,
			AveragePosition: NoPosition,
			Sentiment:       models.SentimentNeutral,
			SentimentScore:  DefaultSentimentScore,
			ShareOfVoice:    0,
			VisibilityScore: 0,
			IsOwn:           false,
		})
	}
	return out
}

// AttachCompetitorURLs fills missing ranking URLs from competitor details.
func AttachCompetitorURLs(rankings []models.CompetitorRanking, details []models.CompetitorDetail) {
	urls := make(map[string]string, len(details))
	for _, d := range details {
		if d.URL != "" {
			urls[strings.ToLower(d.Name)] = d.URL
		}
	}
	for i := range rankings {
		if rankings[i].URL == "" {
			rankings[i].URL = urls[strings.ToLower(rankings[i].Name)]
		}
	}
}

func newTallies(company models.Company, known []string) []*tally {
	tallies := []*tally{{name: company.Name, url: company.URL, isOwn: true}}
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(company.Name)): true}
	for _, name := range known {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		tallies = append(tallies, &tally{name: name})
	}
	return tallies
}

func countResponse(tallies []*tally, resp models.AIResponse) {
	mentions := make(map[string]models.CompetitorMention, len(resp.CompetitorMentions))
	for _, m := range resp.CompetitorMentions {
		mentions[strings.ToLower(strings.TrimSpace(m.Name))] = m
	}

	for _, t := range tallies {
		if t.isOwn {
			if resp.BrandMentioned {
				t.add(resp.BrandPosition, resp.Sentiment)
			}
			continue
		}
		if m, ok := mentions[strings.ToLower(t.name)]; ok {
			t.add(m.Position, m.Sentiment)
			continue
		}
		if MentionsName(resp.Response, t.name) {
			t.add(nil, models.SentimentNeutral)
		}
	}
}

func rankTallies(tallies []*tally) []models.CompetitorRanking {
	total := 0
	for _, t := range tallies {
		total += t.mentions
	}

	out := make([]models.CompetitorRanking, 0, len(tallies))
	for _, t := range tallies {
		out = append(out, t.ranking(total))
	}
	sortRankings(out)
	return out
}

func sortRankings(r []models.CompetitorRanking) {
	sort.SliceStable(r, func(i, j int) bool {
		if r[i].VisibilityScore != r[j].VisibilityScore {
			return r[i].VisibilityScore > r[j].VisibilityScore
		}
		return r[i].Name < r[j].Name
	})
}

func meanVisibility(row models.ProviderComparisonRow) float64 {
	if len(row.Providers) == 0 {
		return 0
	}
	sum := 0.0
	for _, m := range row.Providers {
		sum += m.VisibilityScore
	}
	return sum / float64(len(row.Providers))
}

func sentimentLabel(score float64) models.Sentiment {
	switch {
	case score >= 65:
		return models.SentimentPositive
	case score <= 35:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func percentOf(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round1(float64(n) / float64(total) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
