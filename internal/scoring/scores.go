package scoring

import (
	"regexp"
	"strconv"

	domain "github.com/bryanwahyu/seo-analyzer/internal/domain/analysis"
)

// DefaultCategoryScore is assigned when no score phrase can be extracted for
// a category. Extraction is best-effort and must never block job completion,
// so every category always ends up with a value.
const DefaultCategoryScore = 75

// Categories in report order, matching the analysis worker set.
var Categories = []string{"security", "onpage", "content", "performance", "indexability"}

var scoreRe = regexp.MustCompile(`(?i)(?:score|rating)[:\s]+(\d+)(?:\s*/\s*100)?`)

// categoryRe matches a category keyword followed (anywhere later in the text)
// by a score phrase. Secondary headingRe looks for a "## category ... N/100"
// section instead.
var (
	categoryRe = map[string]*regexp.Regexp{
		"security":     regexp.MustCompile(`(?is)(?:security|ssl|https).*?(?:score|rating)[:\s]*(\d+)(?:\s*/\s*100)?`),
		"onpage":       regexp.MustCompile(`(?is)(?:on-?page|meta|seo).*?(?:score|rating)[:\s]*(\d+)(?:\s*/\s*100)?`),
		"content":      regexp.MustCompile(`(?is)(?:content|text|quality).*?(?:score|rating)[:\s]*(\d+)(?:\s*/\s*100)?`),
		"performance":  regexp.MustCompile(`(?is)(?:performance|speed|loading).*?(?:score|rating)[:\s]*(\d+)(?:\s*/\s*100)?`),
		"indexability": regexp.MustCompile(`(?is)(?:indexability|crawl|robot).*?(?:score|rating)[:\s]*(\d+)(?:\s*/\s*100)?`),
	}
	headingRe = map[string]*regexp.Regexp{
		"security":     regexp.MustCompile(`(?is)#{1,3}\s*security.*?(\d+)\s*/\s*100`),
		"onpage":       regexp.MustCompile(`(?is)#{1,3}\s*on-?page.*?(\d+)\s*/\s*100`),
		"content":      regexp.MustCompile(`(?is)#{1,3}\s*content.*?(\d+)\s*/\s*100`),
		"performance":  regexp.MustCompile(`(?is)#{1,3}\s*performance.*?(\d+)\s*/\s*100`),
		"indexability": regexp.MustCompile(`(?is)#{1,3}\s*indexability.*?(\d+)\s*/\s*100`),
	}
)

var (
	issueRe   = regexp.MustCompile(`(?i)❌|🔴|issue|fail|error|critical`)
	warningRe = regexp.MustCompile(`(?i)⚠️|⚠|🟡|warning|caution|needs?\s+improvement`)
	passedRe  = regexp.MustCompile(`(?i)✅|✓|🟢|pass|good|excellent|correct`)
)

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// ParseScore extracts the first "score: N" or "rating: N" (optionally "/100")
// occurrence from free text, clamped to [0,100]. The second return value is
// false when no score phrase is present.
func ParseScore(text string) (int, bool) {
	m := scoreRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return clamp(n), true
}

// Average returns the floor of the mean; an empty slice averages to 0.
func Average(scores []int) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return sum / len(scores)
}

// Overall averages the parsed scores of all successful worker results.
// Workers whose output has no parseable score are skipped; if nothing
// parses the overall score is 0.
func Overall(results map[domain.Worker]domain.WorkerResult) int {
	var scores []int
	for _, r := range results {
		if !r.Success {
			continue
		}
		if s, ok := ParseScore(r.Output); ok {
			scores = append(scores, s)
		}
	}
	return Average(scores)
}

// CategoryScores extracts one score per category from the final report.
// Per category it tries the keyword pattern, then the heading pattern, then
// falls back to DefaultCategoryScore.
func CategoryScores(report string) map[string]int {
	out := make(map[string]int, len(Categories))
	for _, cat := range Categories {
		if m := categoryRe[cat].FindStringSubmatch(report); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				out[cat] = clamp(n)
				continue
			}
		}
		if m := headingRe[cat].FindStringSubmatch(report); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				out[cat] = clamp(n)
				continue
			}
		}
		out[cat] = DefaultCategoryScore
	}
	return out
}

// ReportStats counts issue/warning/passed indicators in the report text.
// A report with no indicators at all gets a rough estimate instead of zeros.
func ReportStats(report string) (issues, warnings, passed int) {
	issues = len(issueRe.FindAllString(report, -1))
	warnings = len(warningRe.FindAllString(report, -1))
	passed = len(passedRe.FindAllString(report, -1))
	if issues == 0 && warnings == 0 && passed == 0 {
		return 3, 5, 15
	}
	return issues, warnings, passed
}
