package lint

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/gatelet-dev/gatelet/internal/version"
	"github.com/owenrumney/go-sarif/v3/pkg/report/v210/sarif"
)

// SARIFFormatter writes findings as SARIF 2.1.0 JSON so policy lint
// results can flow into code scanning services.
type SARIFFormatter struct {
	writer     io.Writer
	policyPath string
}

// NewSARIFFormatter creates a new SARIF formatter. policyPath locates
// the linted policy file in result locations.
func NewSARIFFormatter(writer io.Writer, policyPath string) *SARIFFormatter {
	return &SARIFFormatter{
		writer:     writer,
		policyPath: policyPath,
	}
}

// Format writes the findings as a SARIF report.
func (f *SARIFFormatter) Format(findings []Finding) error {
	report := sarif.NewReport()

	run := sarif.NewRunWithInformationURI("gatelet-lint", "https://gatelet.dev")
	info := version.Get()
	run.Tool.Driver.Version = &info.Version

	f.addRules(run)
	f.addResults(run, findings)

	report.AddRun(run)

	if err := report.Write(f.writer); err != nil {
		return fmt.Errorf("failed to write SARIF output: %w", err)
	}
	_, err := f.writer.Write([]byte("\n"))
	return err
}

func (f *SARIFFormatter) addRules(run *sarif.Run) {
	for _, r := range Rules() {
		rule := sarif.NewReportingDescriptor().WithID(r.ID)
		rule.WithName(r.ID)

		desc := r.Description
		rule.WithShortDescription(&sarif.MultiformatMessageString{
			Text: &desc,
		})
		rule.WithDefaultConfiguration(&sarif.ReportingConfiguration{
			Level: string(r.Level),
		})

		run.Tool.Driver.AddRule(rule)
	}
}

func (f *SARIFFormatter) addResults(run *sarif.Run, findings []Finding) {
	for _, finding := range findings {
		result := sarif.NewRuleResult(finding.RuleID)
		result.Level = string(finding.Level)
		result.Message = sarif.NewTextMessage(finding.Message)

		if f.policyPath != "" {
			pLoc := sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithURI(normalizeURI(f.policyPath)))
			result.Locations = []*sarif.Location{sarif.NewLocation().WithPhysicalLocation(pLoc)}
		}

		props := sarif.NewPropertyBag()
		props.Add("capability", string(finding.Capability))
		if finding.Pattern != "" {
			props.Add("pattern", finding.Pattern)
		}
		result.WithProperties(props)

		run.AddResult(result)
	}
}

// normalizeURI converts a file path to a SARIF-compliant URI.
func normalizeURI(path string) string {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	return "file://" + filepath.ToSlash(path)
}
