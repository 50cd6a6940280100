package service

import (
	"reflect"
	"testing"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

func reconcileFixture() models.AnalysisResult {
	change := 2.5
	return models.AnalysisResult{
		Company:          models.Company{Name: "Acme"},
		KnownCompetitors: []string{"Amazon Web Services", "AWS", "Heroku"},
		Prompts:          []models.BrandPrompt{{ID: "ranking-1", Prompt: "Best clouds?", Category: models.CategoryRanking}},
		Responses: []models.AIResponse{{
			Provider:           "OpenAI",
			CompetitorMentions: []models.CompetitorMention{{Name: "Amazon Web Services"}, {Name: "Heroku"}},
		}},
		Competitors: []models.CompetitorRanking{
			{Name: "Acme", IsOwn: true, Mentions: 4, AveragePosition: 2, SentimentScore: 60},
			{Name: "Amazon Web Services", URL: "aws.amazon.com", Mentions: 3, AveragePosition: 1, SentimentScore: 50, Sentiment: models.SentimentNeutral, WeeklyChange: &change},
			{Name: "AWS", Mentions: 1, AveragePosition: 5, SentimentScore: 80, Sentiment: models.SentimentPositive},
			{Name: "Heroku", URL: "heroku.com", Mentions: 2, AveragePosition: 3, SentimentScore: 50},
		},
		ProviderRankings: []models.ProviderRanking{{
			Provider: "OpenAI",
			Competitors: []models.CompetitorRanking{
				{Name: "Acme", IsOwn: true, Mentions: 1, AveragePosition: 2},
				{Name: "Amazon Web Services", Mentions: 1, AveragePosition: 1},
				{Name: "AWS", Mentions: 1, AveragePosition: 3},
			},
		}},
		Errors: []string{"Google: rate limited"},
	}
}

func TestReconcile_MergesAliases(t *testing.T) {
	users := []models.CompetitorDetail{{Name: "AWS", URL: "https://aws.amazon.com"}, {Name: "Render", URL: "render.com"}}

	got := Reconcile(reconcileFixture(), users)

	if len(got.Competitors) != 3 {
		t.Fatalf("Competitors = %+v, want 3 rows", got.Competitors)
	}
	var aws models.CompetitorRanking
	for _, r := range got.Competitors {
		if r.Name == "AWS" {
			aws = r
		}
	}
	if aws.Mentions != 4 {
		t.Errorf("AWS mentions = %d, want 4", aws.Mentions)
	}
	if aws.AveragePosition != 2 {
		t.Errorf("AWS position = %v, want mention-weighted 2", aws.AveragePosition)
	}
	if aws.SentimentScore != 80 || aws.Sentiment != models.SentimentPositive {
		t.Errorf("AWS sentiment = %v/%q, want max 80/positive", aws.SentimentScore, aws.Sentiment)
	}
	if aws.URL != "https://aws.amazon.com" {
		t.Errorf("AWS URL = %q, want user URL", aws.URL)
	}
	if aws.ShareOfVoice != 40 {
		t.Errorf("AWS share = %v, want 40", aws.ShareOfVoice)
	}

	if got.Competitors[0].Name != "Acme" && got.Competitors[0].Name != "AWS" {
		t.Errorf("first row = %s", got.Competitors[0].Name)
	}

	wantNames := []string{"AWS", "Heroku", "Render"}
	if !reflect.DeepEqual(got.KnownCompetitors, wantNames) {
		t.Errorf("KnownCompetitors = %v, want %v", got.KnownCompetitors, wantNames)
	}

	if got.Responses[0].CompetitorMentions[0].Name != "AWS" {
		t.Errorf("mention relabel = %q, want AWS", got.Responses[0].CompetitorMentions[0].Name)
	}

	pr := got.ProviderRankings[0].Competitors
	if len(pr) != 2 {
		t.Errorf("provider rows = %+v, want 2", pr)
	}
	if len(got.ProviderComparison) != 2 {
		t.Errorf("ProviderComparison = %+v, want rebuilt with 2 rows", got.ProviderComparison)
	}
}

func TestReconcile_DoesNotMutateInput(t *testing.T) {
	in := reconcileFixture()
	before := reconcileFixture()

	out := Reconcile(in, []models.CompetitorDetail{{Name: "AWS"}})
	out.Competitors[0].Name = "changed"
	out.Errors[0] = "changed"
	out.Prompts[0].Prompt = "changed"

	if !reflect.DeepEqual(in, before) {
		t.Error("Reconcile() mutated its input")
	}
}

func TestReconcile_DomainMatch(t *testing.T) {
	result := models.AnalysisResult{
		Competitors: []models.CompetitorRanking{
			{Name: "Heroku Platform", URL: "https://www.heroku.com/", Mentions: 2, AveragePosition: 1},
		},
	}
	got := Reconcile(result, []models.CompetitorDetail{{Name: "Heroku", URL: "heroku.com"}})
	if got.Competitors[0].Name != "Heroku" {
		t.Errorf("row name = %q, want Heroku", got.Competitors[0].Name)
	}
}

func TestReconcile_OwnRowNeverRelabelled(t *testing.T) {
	result := models.AnalysisResult{
		Competitors: []models.CompetitorRanking{{Name: "Acme", URL: "acme.com", IsOwn: true, Mentions: 1}},
	}
	got := Reconcile(result, []models.CompetitorDetail{{Name: "Acme Rival", URL: "acme.com"}})
	if got.Competitors[0].Name != "Acme" {
		t.Errorf("own row = %q, want Acme", got.Competitors[0].Name)
	}
}

func TestReconcile_ComparisonWithoutRankings(t *testing.T) {
	result := models.AnalysisResult{
		ProviderComparison: []models.ProviderComparisonRow{
			{Competitor: "Amazon Web Services", Providers: map[string]models.ProviderMetric{"OpenAI": {Mentions: 1, VisibilityScore: 10}}},
			{Competitor: "aws", Providers: map[string]models.ProviderMetric{"OpenAI": {Mentions: 2, VisibilityScore: 20}, "Google": {Mentions: 1}}},
		},
	}
	got := Reconcile(result, []models.CompetitorDetail{{Name: "AWS"}})
	if len(got.ProviderComparison) != 1 {
		t.Fatalf("ProviderComparison = %+v, want 1 row", got.ProviderComparison)
	}
	row := got.ProviderComparison[0]
	if row.Competitor != "AWS" || row.Providers["OpenAI"].Mentions != 3 || len(row.Providers) != 2 {
		t.Errorf("row = %+v", row)
	}
	if result.ProviderComparison[0].Providers["OpenAI"].Mentions != 1 {
		t.Error("input comparison map was mutated")
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := map[string]string{
		"https://www.Heroku.com/": "heroku.com",
		"http://render.com":       "render.com",
		"":                        "",
	}
	for in, want := range tests {
		if got := normalizeDomain(in); got != want {
			t.Errorf("normalizeDomain(%q) = %q, want %q", in, got, want)
		}
	}
}
