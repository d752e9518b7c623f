package ui

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"trebleshot/internal/tree"
)

var iconSymbols = map[tree.Icon]string{
	tree.IconDeviceHub: "⇄",
	tree.IconWeb:       "◎",
	tree.IconFolder:    "▸",
	tree.IconSave:      "▣",
	tree.IconImage:     "◩",
	tree.IconVideo:     "▶",
	tree.IconAudio:     "♪",
	tree.IconText:      "≡",
	tree.IconArchive:   "◫",
	tree.IconFile:      "·",
}

// RenderOptions controls the browse view output
type RenderOptions struct {
	Formatter tree.Formatter
	Grouped   bool
}

// RenderTree writes one row per node: icon, name, the three texts and a state mark
func RenderTree(w io.Writer, nodes []tree.Node, opts RenderOptions) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	if !opts.Grouped {
		for _, n := range nodes {
			writeRow(tw, n, opts.Formatter)
		}
		return tw.Flush()
	}

	for i, g := range tree.Sections(nodes) {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "%s\n", strings.ToUpper(g.Title))
		for _, n := range g.Nodes {
			writeRow(tw, n, opts.Formatter)
		}
	}
	return tw.Flush()
}

// HistoryEntry is one transfer and the status node of its root directory
type HistoryEntry struct {
	ID      string
	Created time.Time
	Status  tree.Node
}

// RenderHistory lists transfers with their root status line
func RenderHistory(w io.Writer, entries []HistoryEntry, f tree.Formatter) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Created.Local().Format("2006-01-02 15:04"),
			e.Status.FirstText(f), e.Status.SecondText(f), e.Status.ThirdText(f), mark(e.Status))
	}
	return tw.Flush()
}

func writeRow(w io.Writer, n tree.Node, f tree.Formatter) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		symbol(n.Icon()), n.Name(), n.FirstText(f), n.SecondText(f), n.ThirdText(f), mark(n))
}

func symbol(icon tree.Icon) string {
	if s, ok := iconSymbols[icon]; ok {
		return s
	}
	return iconSymbols[tree.IconFile]
}

// mark summarises the state flags of a node
func mark(n tree.Node) string {
	switch {
	case n.HasIssues():
		return "!"
	case n.IsOngoing():
		return "~"
	case n.IsComplete():
		return "✓"
	default:
		return ""
	}
}
