package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"storefront/internal/auth"
)

// OutputFormat represents the supported output formats for CLI commands.
type OutputFormat string

const (
	// OutputFormatTable formats output as a kubectl-style plain table
	OutputFormatTable OutputFormat = "table"
	// OutputFormatJSON formats output as JSON
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML formats output as YAML
	OutputFormatYAML OutputFormat = "yaml"
)

// ValidateOutputFormat validates that the given format string is a supported output format.
func ValidateOutputFormat(format string) error {
	switch OutputFormat(format) {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return nil
	default:
		return fmt.Errorf("invalid output format %q: must be one of table, json, yaml", format)
	}
}

// Printer writes command results. Progress and hints go to Err and are
// dropped in quiet mode; results go to Out.
type Printer struct {
	Out    io.Writer
	Err    io.Writer
	Format OutputFormat
	Quiet  bool

	now func() time.Time
}

// NewPrinter creates a printer from the common flags.
func NewPrinter(out, errOut io.Writer, flags *CommandFlags) *Printer {
	return &Printer{
		Out:    out,
		Err:    errOut,
		Format: OutputFormat(flags.OutputFormat),
		Quiet:  flags.Quiet,
		now:    time.Now,
	}
}

// Progressf prints a progress message unless quiet.
func (p *Printer) Progressf(format string, args ...interface{}) {
	if !p.Quiet {
		fmt.Fprintf(p.Err, format, args...)
	}
}

// Structured writes v as JSON or YAML. It reports false for table output so
// the caller renders its own table.
func (p *Printer) Structured(v interface{}) (bool, error) {
	switch p.Format {
	case OutputFormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, fmt.Errorf("failed to encode JSON: %w", err)
		}
		fmt.Fprintln(p.Out, string(data))
		return true, nil
	case OutputFormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return true, fmt.Errorf("failed to convert to YAML: %w", err)
		}
		fmt.Fprint(p.Out, string(data))
		return true, nil
	default:
		return false, nil
	}
}

// PrintSession renders the status of a session.
func (p *Printer) PrintSession(view SessionView) error {
	if done, err := p.Structured(view); done {
		return err
	}

	tw := p.detailTable()
	tw.AppendRow([]string{"Session", fmt.Sprintf("%s (%s)", view.Session, view.Storage)})
	tw.AppendRow([]string{"Status", formatState(view.State)})
	if identity := firstOf(view.Email, view.Subject); identity != "" {
		tw.AppendRow([]string{"Identity", identity})
	}
	if view.ExpiresAt != nil {
		tw.AppendRow([]string{"Expires", FormatExpiry(*view.ExpiresAt, p.now())})
	}
	if view.Authenticated() {
		refresh := text.FgYellow.Sprint("Not available (re-auth required on expiry)")
		if view.HasRefreshToken {
			refresh = text.FgGreen.Sprint("Available")
			if view.RefreshExpiresAt != nil {
				refresh += fmt.Sprintf(", expires %s", FormatExpiry(*view.RefreshExpiresAt, p.now()))
			}
		}
		tw.AppendRow([]string{"Refresh", refresh})
	}
	tw.Render()

	if !view.Authenticated() {
		p.Progressf("\nRun: storefront auth login --session %s\n", view.Session)
	}
	return nil
}

// PrintIdentity renders the identity carried by the session's access token.
func (p *Printer) PrintIdentity(view SessionView) error {
	if done, err := p.Structured(view); done {
		return err
	}

	tw := p.detailTable()
	tw.AppendRow([]string{"Subject", view.Subject})
	if view.Name != "" {
		tw.AppendRow([]string{"Name", view.Name})
	}
	tw.AppendRow([]string{"Email", view.Email})
	tw.AppendRow([]string{"Role", view.Role})
	tw.AppendRow([]string{"Authorities", strings.Join(view.Authorities, ", ")})
	if len(view.Scopes) > 0 {
		tw.AppendRow([]string{"Scopes", strings.Join(view.Scopes, " ")})
	}
	if view.ExpiresAt != nil {
		tw.AppendRow([]string{"Expires", FormatExpiry(*view.ExpiresAt, p.now())})
	}
	tw.Render()
	return nil
}

func (p *Printer) detailTable() *PlainTableWriter {
	tw := NewPlainTableWriter(p.Out)
	tw.SetHeaders([]string{"Field", "Value"})
	tw.SetNoHeaders(true)
	return tw
}

func formatState(state string) string {
	switch state {
	case auth.AuthStateAuthenticated.String():
		return text.FgGreen.Sprint("Authenticated")
	case auth.AuthStateRenewing.String():
		return text.FgCyan.Sprint("Renewing")
	case auth.AuthStateAwaitingCallback.String():
		return text.FgYellow.Sprint("Waiting for browser sign-in")
	default:
		return text.FgYellow.Sprint("Not authenticated")
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
