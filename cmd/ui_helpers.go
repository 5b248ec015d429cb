package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"

	"dbscript/cli/internal/logging"
)

var spinnerFrames = []string{"-", "\\", "|", "/"}

// startInlineSpinner shows rotating frames followed by text on a single line
// until the returned function is called. The cursor is hidden meanwhile and the
// line is cleared on stop.
func startInlineSpinner(w io.Writer, text string, interval time.Duration) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	var once sync.Once

	cursor.Hide()
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				line := fmt.Sprintf("%s %s", spinnerFrames[i%len(spinnerFrames)], text)
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s %s", spinnerFrames[i%len(spinnerFrames)], text)
				i++
			}
		}
	}()
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			cursor.Show()
		})
	}
}

// printFailure prints err inside a red box with secrets masked.
func printFailure(title string, err error) {
	pterm.Println(pterm.DefaultBox.
		WithTitle(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(title)).
		WithTopPadding(1).WithBottomPadding(1).WithLeftPadding(1).WithRightPadding(1).
		Sprint(logging.PresentError("", err)))
}
