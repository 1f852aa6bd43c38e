package web

// components.go holds the HTML fragments returned to htmx clients. They are
// small enough to write as templ.ComponentFunc values directly.

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/JonMunkholm/memberimport/internal/core"
	"github.com/a-h/templ"
)

// ErrorAlert renders a dismissible error box with the support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert"><p class="alert-message">%s</p>`,
			templ.EscapeString(message))
		if err != nil {
			return err
		}
		if action != "" {
			if _, err := fmt.Fprintf(w, `<p class="alert-action">%s</p>`, templ.EscapeString(action)); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(w, `<p class="alert-code">Code: %s</p></div>`, templ.EscapeString(code))
		return err
	})
}

// ResultSummary renders the counts and per-row errors of a finished import.
func ResultSummary(sessionID string, phase core.ImportPhase, result *core.ImportResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<section class="import-result" data-session="%s" data-status="%s"><dl>`,
			templ.EscapeString(sessionID), templ.EscapeString(string(phase))); err != nil {
			return err
		}

		counts := []struct {
			label string
			value int
		}{
			{"Total", result.Total},
			{"Imported", result.Successful},
			{"Failed", result.Failed},
			{"Skipped", result.Skipped},
		}
		for _, c := range counts {
			if _, err := fmt.Fprintf(w, `<dt>%s</dt><dd>%d</dd>`, c.label, c.value); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</dl>`); err != nil {
			return err
		}

		if len(result.Errors) > 0 {
			if _, err := io.WriteString(w, `<ul class="import-errors">`); err != nil {
				return err
			}
			for _, e := range result.Errors {
				if _, err := fmt.Fprintf(w, `<li>%s</li>`, templ.EscapeString(e)); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, `</ul><a href="/api/imports/%s/errors.csv">Download errors</a>`,
				templ.EscapeString(sessionID)); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, `</section>`)
		return err
	})
}

// HistoryTable renders recent import runs.
func HistoryTable(runs []core.ImportRun) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(runs) == 0 {
			_, err := io.WriteString(w, `<p class="empty">No imports yet</p>`)
			return err
		}

		if _, err := io.WriteString(w, `<table class="import-history"><thead><tr>`+
			`<th>File</th><th>Status</th><th>Total</th><th>Imported</th><th>Failed</th><th>Finished</th>`+
			`</tr></thead><tbody>`); err != nil {
			return err
		}
		for _, run := range runs {
			_, err := fmt.Fprintf(w, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				templ.EscapeString(run.FileName),
				templ.EscapeString(string(run.Status)),
				strconv.Itoa(run.Total),
				strconv.Itoa(run.Successful),
				strconv.Itoa(run.Failed),
				run.FinishedAt.Format("2006-01-02 15:04"),
			)
			if err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table>`)
		return err
	})
}
