package prompt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/seo-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/seo-analyzer/internal/infra/ai/prompt"
)

func TestWorkerPromptsEmbedTarget(t *testing.T) {
	t.Parallel()

	for _, w := range domain.AnalysisWorkers() {
		require.NotEmpty(t, prompt.WorkerSystemPrompt(w), "system prompt for %s", w)
		require.Contains(t, prompt.WorkerSystemPrompt(w), "Score: N/100")

		user := prompt.WorkerUserPrompt(w, "https://example.com")
		require.Contains(t, user, "https://example.com")
	}

	// unknown workers get the generic fallback
	require.Contains(t, prompt.WorkerUserPrompt("mystery", "https://example.com"), "https://example.com")
}

func TestReportUserPromptOrderAndFailures(t *testing.T) {
	t.Parallel()

	results := map[domain.Worker]domain.WorkerResult{
		domain.WorkerSecurity: {Worker: domain.WorkerSecurity, Success: true, Output: "Score: 88/100"},
		domain.WorkerOnPage:   {Worker: domain.WorkerOnPage, Success: false, Error: "invoke onpage: timeout"},
		// content missing entirely
		domain.WorkerPerformance:  {Worker: domain.WorkerPerformance, Success: true, Output: "Score: 75/100"},
		domain.WorkerIndexability: {Worker: domain.WorkerIndexability, Success: true, Output: "Score: 92/100"},
	}

	p := prompt.ReportUserPrompt("https://example.com", results)

	require.Contains(t, p, "Website analyzed: https://example.com")
	require.Contains(t, p, "--- SECURITY ---")
	require.Contains(t, p, "Analysis failed: invoke onpage: timeout")
	require.Contains(t, p, "Analysis failed: no result produced")

	// sections follow the fixed worker order
	last := -1
	for _, w := range domain.AnalysisWorkers() {
		idx := strings.Index(p, "--- "+strings.ToUpper(string(w))+" ---")
		require.Greater(t, idx, last, "section %s out of order", w)
		last = idx
	}
}

func TestReportUserPromptDeterministic(t *testing.T) {
	t.Parallel()

	results := map[domain.Worker]domain.WorkerResult{
		domain.WorkerSecurity: {Worker: domain.WorkerSecurity, Success: true, Output: "a"},
		domain.WorkerContent:  {Worker: domain.WorkerContent, Success: true, Output: "b"},
	}
	first := prompt.ReportUserPrompt("https://example.com", results)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, prompt.ReportUserPrompt("https://example.com", results))
	}
}
