package cli

import (
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Spin shows a spinner with msg until the returned function is called with
// the outcome. Nothing is shown in quiet mode.
func (p *Printer) Spin(msg string) func(ok bool) {
	if p.Quiet {
		return func(bool) {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(p.Err))
	s.Suffix = " " + msg
	s.Start()
	return func(ok bool) {
		if !ok {
			s.FinalMSG = text.FgRed.Sprint("❌ "+msg) + "\n"
		}
		s.Stop()
	}
}
