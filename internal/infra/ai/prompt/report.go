package prompt

import (
	"fmt"
	"strings"

	domain "github.com/bryanwahyu/seo-analyzer/internal/domain/analysis"
)

// ReportSystemPrompt is the role instruction for the synthesis stage.
func ReportSystemPrompt() string {
	return `You are an SEO Report Writer that compiles analysis results into a comprehensive, easy-to-understand report.

When creating a report:
1. Start with an executive summary with the overall score
2. List what's working well (positives first)
3. Detail issues found, organized by category
4. Provide prioritized, actionable recommendations
5. End with next steps

Format requirements:
- Clear, simple language for non-technical readers
- Markdown formatting for structure
- For each category (security, on-page, content, performance, indexability) include a line "Score: N/100"
- Keep the report concise but comprehensive`
}

// ReportUserPrompt embeds every worker's labeled output into the synthesis
// instruction. Failed workers are reported as failures, never silently
// omitted, so the stage sees the full status of the batch. Worker order is
// fixed and deterministic.
func ReportUserPrompt(target string, results map[domain.Worker]domain.WorkerResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Website analyzed: %s\n\n", target)
	b.WriteString("=== ANALYSIS RESULTS ===\n\n")

	for _, w := range domain.AnalysisWorkers() {
		r, ok := results[w]
		fmt.Fprintf(&b, "--- %s ---\n", strings.ToUpper(string(w)))
		switch {
		case !ok:
			b.WriteString("Analysis failed: no result produced\n\n")
		case r.Success:
			fmt.Fprintf(&b, "%s\n\n", r.Output)
		default:
			fmt.Fprintf(&b, "Analysis failed: %s\n\n", r.Error)
		}
	}

	fmt.Fprintf(&b, `Based on the analysis results above, create a comprehensive SEO report for %s.

Include:
1. Executive summary with overall score
2. What's working well
3. Issues found, organized by category
4. Prioritized recommendations
5. Next steps
`, target)
	return b.String()
}
