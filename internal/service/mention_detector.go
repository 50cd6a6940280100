package service

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

var (
	numberedLine = regexp.MustCompile(`^\s*(?:#{1,6}\s*)?\**\s*(\d{1,2})[.):]\s+`)

	positiveWords = []string{
		"best", "excellent", "great", "leading", "top", "recommended", "popular",
		"reliable", "powerful", "strong", "favorite", "outstanding", "innovative", "trusted",
	}
	negativeWords = []string{
		"poor", "bad", "worst", "expensive", "limited", "lacks", "difficult", "slow",
		"issues", "complaints", "outdated", "buggy", "overpriced", "unreliable",
	}
)

// Detection is the result of scanning a response for brand and competitor mentions.
type Detection struct {
	BrandMentioned     bool
	BrandPosition      *int
	Sentiment          models.Sentiment
	CompetitorMentions []models.CompetitorMention
}

// DetectMentions finds the brand and competitors in free text using
// case-insensitive name, compact-name and URL-host matching. Positions come
// from numbered list lines; sentiment from keyword counts.
func DetectMentions(text, brand string, competitors []string, dc models.DetectionContext) Detection {
	lines := strings.Split(text, "\n")
	lower := strings.ToLower(text)

	d := Detection{Sentiment: sentimentOf(lower)}

	brandTerms := matchTerms(brand, dc.BrandURLs)
	if mentionedIn(lower, brandTerms) {
		d.BrandMentioned = true
		d.BrandPosition = listPosition(lines, brandTerms)
	}

	for _, c := range competitors {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(brand)) {
			continue
		}
		terms := matchTerms(c, dc.CompetitorURLs[strings.ToLower(c)])
		if !mentionedIn(lower, terms) {
			continue
		}
		d.CompetitorMentions = append(d.CompetitorMentions, models.CompetitorMention{
			Name:      c,
			Position:  listPosition(lines, terms),
			Sentiment: sentimentOf(linesMentioning(lines, terms)),
		})
	}
	return d
}

// MentionsName reports whether text mentions name with the tolerant matcher.
func MentionsName(text, name string) bool {
	return mentionedIn(strings.ToLower(text), matchTerms(name, nil))
}

type term struct {
	value string
	word  bool // require word boundaries
}

func matchTerms(name string, urls []string) []term {
	n := strings.ToLower(strings.TrimSpace(name))
	var terms []term
	if n != "" {
		terms = append(terms, term{value: n, word: true})
		if compact := strings.ReplaceAll(n, " ", ""); compact != n && len(compact) >= 3 {
			terms = append(terms, term{value: compact, word: true})
		}
	}
	for _, u := range urls {
		if host := hostOf(u); host != "" {
			terms = append(terms, term{value: host})
		}
	}
	return terms
}

func mentionedIn(lower string, terms []term) bool {
	for _, t := range terms {
		if containsTerm(lower, t) {
			return true
		}
	}
	return false
}

func containsTerm(lower string, t term) bool {
	if t.value == "" {
		return false
	}
	if !t.word {
		return strings.Contains(lower, t.value)
	}
	from := 0
	for {
		i := strings.Index(lower[from:], t.value)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(t.value)
		if boundary(lower, start-1) && boundary(lower, end) {
			return true
		}
		from = start + 1
	}
}

// boundary treats out-of-range indexes and non-alphanumeric bytes as word edges.
func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}

func listPosition(lines []string, terms []term) *int {
	for _, line := range lines {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if mentionedIn(strings.ToLower(line), terms) {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return &n
			}
		}
	}
	return nil
}

func linesMentioning(lines []string, terms []term) string {
	var b strings.Builder
	for _, line := range lines {
		l := strings.ToLower(line)
		if mentionedIn(l, terms) {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func sentimentOf(lower string) models.Sentiment {
	pos, neg := 0, 0
	for _, w := range positiveWords {
		pos += strings.Count(lower, w)
	}
	for _, w := range negativeWords {
		neg += strings.Count(lower, w)
	}
	switch {
	case pos > neg:
		return models.SentimentPositive
	case neg > pos:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// hostOf returns the lowercase host of a URL or bare domain without "www.".
func hostOf(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if !strings.Contains(host, ".") {
		return ""
	}
	return host
}

func normalizeSentiment(s string) models.Sentiment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "very positive":
		return models.SentimentPositive
	case "negative", "very negative":
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
