package render

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/shipctl/ship/internal/util"
	"github.com/shipctl/ship/pkg/session"
	"github.com/shipctl/ship/pkg/types"
)

// Slogan is printed under the version header.
const Slogan = "Don't sink the ship :D"

const (
	clearLine       = "\r\033[K"
	separatorWidth  = 54
	timestampLayout = "2006-01-02 15:04:05"
)

// Options configures a Terminal.
type Options struct {
	// Verbose prints the analysis trail of every scanned stack.
	Verbose bool
	// NoColor disables ANSI colors.
	NoColor bool
	// Now stamps update lines; nil means time.Now.
	Now func() time.Time
}

// Terminal renders run progress to a writer and reads confirmations from a reader.
//
// Terminal implements actions.Observer. Its methods are called from a single goroutine.
type Terminal struct {
	out     io.Writer
	in      *bufio.Reader
	verbose bool
	now     func() time.Time
	pulling bool

	bold    *color.Color
	cyan    *color.Color
	gray    *color.Color
	green   *color.Color
	success *color.Color
	red     *color.Color
	yellow  *color.Color
}

// New creates a Terminal writing to out and prompting on in.
func New(out io.Writer, in io.Reader, opts Options) *Terminal {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	t := &Terminal{
		out:     out,
		in:      bufio.NewReader(in),
		verbose: opts.Verbose,
		now:     opts.Now,
		bold:    color.New(color.Bold),
		cyan:    color.New(color.FgCyan, color.Bold),
		gray:    color.New(color.FgHiBlack),
		green:   color.New(color.FgGreen),
		success: color.New(color.FgGreen, color.Bold),
		red:     color.New(color.FgRed),
		yellow:  color.New(color.FgYellow, color.Bold),
	}

	if opts.NoColor {
		for _, c := range []*color.Color{t.bold, t.cyan, t.gray, t.green, t.success, t.red, t.yellow} {
			c.DisableColor()
		}
	}

	return t
}

// Header prints the version banner.
func (t *Terminal) Header(version string) {
	fmt.Fprintf(t.out, "%s\n", t.cyan.Sprintf("ship %s", version))
	fmt.Fprintf(t.out, "%s\n", t.yellow.Sprint(Slogan))
}

// NoTargets explains that nothing was selected for scanning.
func (t *Terminal) NoTargets() {
	fmt.Fprintln(t.out, t.yellow.Sprint("No targets found. Use -a to scan all or specify a directory."))
}

// AlreadyRunning reports that another update holds the lock.
func (t *Terminal) AlreadyRunning() {
	fmt.Fprintln(t.out, t.red.Sprint("Error: Already running."))
}

// ScanStarted prints the scan banner.
func (t *Terminal) ScanStarted(total int) {
	fmt.Fprintln(t.out, t.bold.Sprintf("Scanning %d stacks...", total))
}

// ResultReceived redraws the progress line and, when verbose, prints the analysis trail.
func (t *Terminal) ResultReceived(result types.Result, progress *session.Progress) {
	fmt.Fprintf(t.out, "%s%s Checked: %s", clearLine, t.gray.Sprint(progress.String()), t.bold.Sprint(result.Target.String()))

	if t.verbose {
		fmt.Fprintf(t.out, "\n%s %s%s\n\n", t.cyan.Sprint("Analysis:"), t.bold.Sprint(result.Target.String()), result.Outcome.Trail())
	}
}

// ScanFinished clears the progress line.
func (t *Terminal) ScanFinished(*session.Report) {
	fmt.Fprint(t.out, clearLine)
}

// Summary lists the stacks that will be updated and those that could not be confirmed.
func (t *Terminal) Summary(report *session.Report, force bool) {
	updatable := names(report.Updatable())

	if len(updatable) == 0 {
		fmt.Fprintf(t.out, "\n%s\n", t.success.Sprint("Everything is at the latest version."))
	} else {
		label := "Updates available for:"
		if force {
			label = "Ready to update (Force Mode):"
		}

		fmt.Fprintf(t.out, "\n%s %s\n", t.cyan.Sprint(label), t.bold.Sprint(strings.Join(updatable, " ")))
	}

	if limited := names(report.RateLimited()); len(limited) > 0 {
		fmt.Fprintf(t.out, "%s %s\n",
			t.yellow.Sprint("Rate limited, could not confirm:"), strings.Join(limited, " "))
	}
}

// Confirm asks whether to proceed; an empty answer or "y" accepts.
func (t *Terminal) Confirm(*session.Report) bool {
	fmt.Fprint(t.out, "\nProceed with update? [Y/n] ")

	answer, err := t.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || answer == "") {
		fmt.Fprintln(t.out)

		return false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "", "y":
		return true
	default:
		return false
	}
}

// StackStarted prints the stack heading and the pull step.
func (t *Terminal) StackStarted(target types.Target) {
	stamp := t.gray.Sprintf("[%s]", t.now().Format(timestampLayout))
	fmt.Fprintf(t.out, "%s %s %s\n", stamp, t.cyan.Sprint("➜ STACK:"), t.bold.Sprint(target.BaseName()))
	fmt.Fprint(t.out, "   ├─ [INFO] Pulling...")

	t.pulling = true
}

// PullFinished completes the pull step line.
func (t *Terminal) PullFinished(_ types.Target, err error) {
	t.pulling = false

	if err != nil {
		fmt.Fprintln(t.out, t.red.Sprint(" Failed."))

		return
	}

	fmt.Fprintln(t.out, " Done.")
}

// RecreateStarted prints the recreate step.
func (t *Terminal) RecreateStarted(types.Target) {
	fmt.Fprintln(t.out, t.green.Sprint("   ├─ [NEW] Recreating (Force)..."))
}

// StackFinished prints the stack verdict and a separator.
func (t *Terminal) StackFinished(result types.UpdateResult) {
	if t.pulling {
		t.pulling = false

		fmt.Fprintln(t.out, t.red.Sprint(" Skipped."))
	}

	if result.Success() {
		fmt.Fprintln(t.out, t.green.Sprint("   └─ [SUCCESS]."))
	} else {
		fmt.Fprintln(t.out, t.red.Sprint("   └─ [FAILED]."))
	}

	fmt.Fprintln(t.out, t.gray.Sprint("   "+strings.Repeat("─", separatorWidth)))
}

// PruneFinished reports the dangling image prune.
func (t *Terminal) PruneFinished(report types.PruneReport, err error) {
	if err != nil {
		fmt.Fprintln(t.out, t.red.Sprintf("Prune failed: %v", err))

		return
	}

	fmt.Fprintf(t.out, "Pruned %d dangling images (%s reclaimed)\n",
		report.ImagesDeleted, util.FormatBytes(report.SpaceReclaimed))
}

func names(results []types.Result) []string {
	out := make([]string, 0, len(results))
	for _, result := range results {
		out = append(out, result.Target.String())
	}

	return out
}
