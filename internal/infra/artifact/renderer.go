package artifact

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	domain "github.com/bryanwahyu/seo-analyzer/internal/domain/analysis"
)

// HTMLRenderer writes the final report as a standalone HTML artifact.
// The resulting file is meant to be uploaded to the artifact store and
// removed afterwards.
type HTMLRenderer struct {
	Dir string // defaults to os.TempDir()
}

var page = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>SEO Report - {{.Target}}</title>
<style>
body { font-family: sans-serif; max-width: 860px; margin: 2rem auto; padding: 0 1rem; }
header { border-bottom: 1px solid #ddd; margin-bottom: 1rem; }
.score { font-size: 2rem; font-weight: bold; }
pre { white-space: pre-wrap; }
footer { color: #888; font-size: 0.8rem; margin-top: 2rem; }
</style>
</head>
<body>
<header>
<h1>SEO Analysis Report</h1>
<p>{{.Target}}</p>
<p class="score">{{.Score}}/100</p>
</header>
<pre>{{.Report}}</pre>
<footer>Job {{.JobID}} &middot; generated {{.Generated}}</footer>
</body>
</html>
`))

func (r *HTMLRenderer) Render(report, target string, id domain.JobID, score int) (string, error) {
	dir := r.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("seo-report-%s.html", id))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	defer f.Close()

	data := struct {
		Target    string
		Score     int
		Report    string
		JobID     domain.JobID
		Generated string
	}{target, score, report, id, time.Now().Format(time.RFC3339)}

	if err := page.Execute(f, data); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("render artifact: %w", err)
	}
	return path, nil
}
