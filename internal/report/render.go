// Package report renders the per-request notification message listing served
// artifact links and failed products. A downstream mailer owns the actual
// delivery; this package only produces the payload.
package report

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/metno/netcdf-ondemand/internal/domain"
)

// Subject is the notification subject line for conversion reports.
const Subject = "Requested NetCDF files"

const bodyTemplate = `Hello,

{{if .Links}}The following NetCDF files are ready for download:

{{range .Links}}{{.}}
{{end}}
The files will remain available for {{.ScratchKeepDays}} days.
{{end}}
{{if .Failures}}The following products could not be processed:

{{range .Failures}}{{.}}
{{end}}
{{else}}All the products requested were successfully processed.
{{end}}
Products in the operational archive remain available for {{.OperationalKeepDays}} days after publication.
`

// blankRunsRe collapses runs of blank lines left by empty template sections.
var blankRunsRe = regexp.MustCompile(`\n\s*\n+`)

var tmpl = template.Must(template.New("report").Parse(bodyTemplate))

// Input carries the values rendered into the notification body.
type Input struct {
	Links               []string
	Failures            []string
	OperationalKeepDays int
	ScratchKeepDays     int
}

// Render produces the notification body for one request.
func Render(in Input) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, in); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return blankRunsRe.ReplaceAllString(b.String(), "\n\n"), nil
}

// Build assembles the full report for a handled request.
func Build(req domain.ConversionRequest, links, failures []string, operationalDays, scratchDays int) domain.Report {
	body, err := Render(Input{
		Links:               links,
		Failures:            failures,
		OperationalKeepDays: operationalDays,
		ScratchKeepDays:     scratchDays,
	})
	if err != nil {
		// The template is static; a render failure is a programming error.
		// Fall back to a bare listing rather than dropping the report.
		body = strings.Join(append(links, failures...), "\n")
	}
	return domain.Report{
		RequestID:   req.ID,
		Recipients:  req.Recipients,
		Subject:     Subject,
		Links:       links,
		Failures:    failures,
		Body:        body,
		GeneratedAt: domain.Now(),
	}
}
