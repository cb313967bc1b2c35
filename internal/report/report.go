// Package report renders a command's Output as a markdown summary or a
// sanitized HTML page, for archiving next to CI logs.
package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"

	"bakery/pkg/machine"
)

// Render builds a markdown summary for any per-command Output.
func Render(out machine.Output) string {
	var b strings.Builder

	switch o := out.(type) {
	case *machine.BuildOutput:
		b.WriteString("# Build report\n\n")
		writeStatus(&b, o.Summary())
		for _, target := range o.Targets {
			fmt.Fprintf(&b, "## Builder `%s`\n\n", target)
			for _, artifact := range o.Artifacts[target] {
				fmt.Fprintf(&b, "- artifact `%s`\n", artifact.ID)
				for _, file := range artifact.Files {
					fmt.Fprintf(&b, "  - `%s`\n", file)
				}
			}
			b.WriteString("\n")
		}
		writeErrors(&b, o.Errors)
	case *machine.ValidateOutput:
		b.WriteString("# Validation report\n\n")
		writeStatus(&b, o.Summary())
		writeErrors(&b, o.Errors)
	case *machine.PushOutput:
		b.WriteString("# Push report\n\n")
		writeStatus(&b, o.Summary())
		if o.ErrorText != "" {
			fmt.Fprintf(&b, "```\n%s\n```\n", o.ErrorText)
		}
	case *machine.InspectOutput:
		b.WriteString("# Template structure\n\n")
		writeNames(&b, "Variables", o.Variables)
		writeNames(&b, "Builders", o.Builders)
		writeNames(&b, "Provisioners", o.Provisioners)
	case *machine.VersionOutput:
		fmt.Fprintf(&b, "# Packer version\n\n`%s`\n", o.Version)
	case *machine.FixOutput:
		b.WriteString("# Fix report\n\n")
		writeStatus(&b, o.Summary())
		if o.ErrorText != "" {
			fmt.Fprintf(&b, "```\n%s\n```\n", o.ErrorText)
		}
	default:
		b.WriteString("# Report\n\n")
		writeStatus(&b, out.Summary())
	}

	if n := len(out.Summary().DecodeErrors); n > 0 {
		fmt.Fprintf(&b, "\n%d line(s) could not be decoded.\n", n)
	}
	return b.String()
}

func writeStatus(b *strings.Builder, r machine.Result) {
	if r.Success {
		b.WriteString("**Status: success**\n\n")
		return
	}
	fmt.Fprintf(b, "**Status: failed** (exit status %d)\n\n", r.ExitStatus)
}

func writeErrors(b *strings.Builder, errs []machine.TargetError) {
	if len(errs) == 0 {
		return
	}
	b.WriteString("## Errors\n\n")
	for _, e := range errs {
		target := e.Target
		if target == "" {
			target = "global"
		}
		fmt.Fprintf(b, "- `%s`: %s\n", target, e.Message)
	}
}

func writeNames(b *strings.Builder, heading string, names []string) {
	fmt.Fprintf(b, "## %s\n\n", heading)
	if len(names) == 0 {
		b.WriteString("(none)\n\n")
		return
	}
	for _, name := range names {
		fmt.Fprintf(b, "- `%s`\n", name)
	}
	b.WriteString("\n")
}

// RenderHTML converts the markdown summary to sanitized HTML. blackfriday
// parses the markdown and bluemonday strips anything unsafe, so error text
// coming straight from the external process cannot inject markup.
func RenderHTML(out machine.Output) string {
	unsafeHTML := blackfriday.Run(
		[]byte(Render(out)),
		blackfriday.WithExtensions(
			blackfriday.CommonExtensions|
				blackfriday.AutoHeadingIDs,
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "span")
	policy.AllowAttrs("id").Matching(bluemonday.SpaceSeparatedTokens).OnElements("h1", "h2", "h3", "h4", "h5", "h6")

	return string(policy.SanitizeBytes(unsafeHTML))
}

// WriteFile writes the HTML report to path.
func WriteFile(path string, out machine.Output) error {
	if err := os.WriteFile(path, []byte(RenderHTML(out)), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
