package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"trebleshot/internal/config"
	"trebleshot/internal/reporter"
	"trebleshot/pkg/types"
	"trebleshot/pkg/utils"

	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// Progress displays a running transfer
type Progress interface {
	reporter.Observer

	// Start sets the number of items and bytes the transfer moves
	Start(items int, bytes int64)
	// Finish stops the display and prints the summary
	Finish(summary reporter.Summary)
}

// NewProgress returns the display selected by style ("items" or "total")
func NewProgress(style, operation string, out *os.File) Progress {
	isTerminal := term.IsTerminal(int(out.Fd()))
	if style == config.ProgressTotal {
		return newTotalBar(operation, out, isTerminal)
	}
	return newItemBars(operation, out, isTerminal)
}

// itemBars draws one bar per item
type itemBars struct {
	mu         sync.Mutex
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	operation  string

	items   int
	started int
	bars    map[int64]*mpb.Bar
	names   map[int64]string
	sizes   map[int64]int64
}

func newItemBars(operation string, out io.Writer, isTerminal bool) *itemBars {
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(200*time.Millisecond),
			mpb.WithWidth(80),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &itemBars{
		progress:   p,
		out:        out,
		isTerminal: isTerminal,
		operation:  operation,
		bars:       make(map[int64]*mpb.Bar),
		names:      make(map[int64]string),
		sizes:      make(map[int64]int64),
	}
}

func (b *itemBars) Start(items int, bytes int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = items
}

// println writes above the bars
func (b *itemBars) println(format string, args ...any) {
	msg := fmt.Sprintf(format+"\n", args...)
	if b.isTerminal {
		b.progress.Write([]byte(msg))
		return
	}
	io.WriteString(b.out, msg)
}

func (b *itemBars) Observe(update types.ProgressUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if update.Item != nil {
		b.addBar(update.ItemID, *update.Item)
	}

	bar := b.bars[update.ItemID]
	if bar != nil && update.NewBytes > 0 {
		bar.IncrInt64(int64(update.NewBytes))
	}

	switch {
	case update.Flag.State == types.Done:
		if bar != nil {
			bar.SetTotal(b.sizes[update.ItemID], true)
			delete(b.bars, update.ItemID)
		}
		b.println("✓ %s (%s)", b.name(update.ItemID), utils.FormatFileSize(b.sizes[update.ItemID]))
	case update.Flag.IsError():
		if bar != nil {
			bar.Abort(false)
			delete(b.bars, update.ItemID)
		}
		b.println("✗ %s", b.name(update.ItemID))
	}
}

func (b *itemBars) addBar(id int64, meta types.ItemMetadata) {
	if _, ok := b.names[id]; ok {
		return
	}
	b.started++
	b.names[id] = meta.Name
	b.sizes[id] = meta.Size

	label := fmt.Sprintf("[%d/%d] %s", b.started, b.items, meta.Name)
	if !b.isTerminal {
		b.println("%s %s (%s)", b.operation, label, utils.FormatFileSize(meta.Size))
		return
	}

	b.bars[id] = b.progress.New(meta.Size,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(label, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Name("  "),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.BarRemoveOnComplete(),
	)
}

func (b *itemBars) name(id int64) string {
	if name, ok := b.names[id]; ok {
		return name
	}
	return fmt.Sprintf("item %d", id)
}

func (b *itemBars) Finish(summary reporter.Summary) {
	b.mu.Lock()
	// Bars of items that never reached a final state would keep Wait blocked
	for id, bar := range b.bars {
		bar.Abort(false)
		delete(b.bars, id)
	}
	b.mu.Unlock()

	b.progress.Wait()
	printSummary(b.out, b.operation, summary)
}

// totalBar draws a single bar for the whole transfer
type totalBar struct {
	mu        sync.Mutex
	bar       *progressbar.ProgressBar
	out       io.Writer
	operation string
}

func newTotalBar(operation string, out io.Writer, isTerminal bool) *totalBar {
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription(operation+"..."),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetVisibility(isTerminal),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetPredictTime(false),
	)
	return &totalBar{bar: bar, out: out, operation: operation}
}

func (t *totalBar) Start(items int, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bar.ChangeMax64(bytes)
	t.bar.Describe(fmt.Sprintf("%s %d items", t.operation, items))
}

func (t *totalBar) Observe(update types.ProgressUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if update.Item != nil {
		t.bar.Describe(fmt.Sprintf("%s %s", t.operation, update.Item.Name))
	}
	if update.NewBytes > 0 {
		_ = t.bar.Add64(int64(update.NewBytes))
	}
}

func (t *totalBar) Finish(summary reporter.Summary) {
	t.mu.Lock()
	_ = t.bar.Finish()
	t.mu.Unlock()
	printSummary(t.out, t.operation, summary)
}

func printSummary(w io.Writer, operation string, s reporter.Summary) {
	throughput := 0.0
	if secs := s.Duration.Seconds(); secs > 0 {
		throughput = float64(s.Bytes) / secs / (1024 * 1024)
	}

	fmt.Fprintf(w, "\n=============================================\n")
	fmt.Fprintf(w, "%s finished\n", operation)
	fmt.Fprintf(w, "+ Items completed: %d\n", s.Done)
	if s.Interrupted > 0 {
		fmt.Fprintf(w, "+ Items interrupted: %d\n", s.Interrupted)
	}
	fmt.Fprintf(w, "+ Total bytes: %s\n", utils.FormatFileSize(int64(s.Bytes)))
	fmt.Fprintf(w, "+ Transfer time: %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "+ Average throughput: %.2f MB/s\n", throughput)
	fmt.Fprintf(w, "=============================================\n")
}
