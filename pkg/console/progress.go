package console

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
)

// Progress reports a slow step such as a schema download. On a terminal it animates
// until the step ends; on any other writer only the closing message is written.
type Progress struct {
	out     io.Writer
	spinner *spinner.Spinner
}

// NewProgress prepares progress output for message on out, which is normally stderr
// so stdout stays free for reports
func NewProgress(out io.Writer, message string) *Progress {
	p := &Progress{out: out}
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		p.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriterFile(f))
		p.spinner.Suffix = " " + message
		_ = p.spinner.Color("cyan")
	}
	return p
}

func (p *Progress) Start() {
	if p.spinner != nil {
		p.spinner.Start()
	}
}

// Step renames the step in progress
func (p *Progress) Step(message string) {
	if p.spinner != nil {
		p.spinner.Lock()
		p.spinner.Suffix = " " + message
		p.spinner.Unlock()
	}
}

// Stop ends the step without a message
func (p *Progress) Stop() {
	if p.spinner != nil {
		p.spinner.Stop()
	}
}

// Done ends the step and leaves message in place of the animation
func (p *Progress) Done(message string) {
	if p.spinner == nil || !p.spinner.Active() {
		p.Stop()
		fmt.Fprintln(p.out, message)
		return
	}
	p.spinner.Lock()
	p.spinner.FinalMSG = message + "\n"
	p.spinner.Unlock()
	p.spinner.Stop()
}
