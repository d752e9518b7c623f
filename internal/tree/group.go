package tree

import (
	"sort"
	"strings"
)

// Section is the heading a node is listed under when grouping is on
type Section int

const (
	SectionStatus Section = iota
	SectionFolderOngoing
	SectionFolder
	SectionFileOngoing
	SectionFileError
	SectionFile
)

// Title returns the heading text of the section
func (s Section) Title() string {
	switch s {
	case SectionStatus:
		return "Transfer details"
	case SectionFolder:
		return "Folder"
	case SectionFolderOngoing, SectionFileOngoing:
		return "Ongoing"
	case SectionFileError:
		return "Interrupted"
	default:
		return "File"
	}
}

// Group returns the section of a node. Status and storage rows share the
// details section; folders are never split by state.
func Group(n Node) Section {
	switch n.Kind() {
	case KindStatus, KindStorage:
		return SectionStatus
	case KindFolder:
		return SectionFolder
	}
	switch {
	case n.HasIssues():
		return SectionFileError
	case n.IsOngoing():
		return SectionFileOngoing
	default:
		return SectionFile
	}
}

// SectionGroup is one heading with its nodes
type SectionGroup struct {
	Section Section
	Title   string
	Nodes   []Node
}

// Sections splits nodes into their sections, keeping node order within each
func Sections(nodes []Node) []SectionGroup {
	bySection := make(map[Section]*SectionGroup)
	var groups []*SectionGroup

	for _, n := range nodes {
		s := Group(n)
		g, ok := bySection[s]
		if !ok {
			g = &SectionGroup{Section: s, Title: s.Title()}
			bySection[s] = g
			groups = append(groups, g)
		}
		g.Nodes = append(g.Nodes, n)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Section < groups[j].Section
	})

	out := make([]SectionGroup, len(groups))
	for i, g := range groups {
		out[i] = *g
	}
	return out
}

// Filter keeps nodes whose name, or MIME type for items, contains any of the
// keywords. Status and storage rows are always kept.
func Filter(nodes []Node, keywords []string) []Node {
	if len(keywords) == 0 {
		return nodes
	}

	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	if len(lowered) == 0 {
		return nodes
	}

	var out []Node
	for _, n := range nodes {
		if matches(n, lowered) {
			out = append(out, n)
		}
	}
	return out
}

func matches(n Node, keywords []string) bool {
	switch n.Kind() {
	case KindStatus, KindStorage:
		return true
	}

	name := strings.ToLower(n.Name())
	var mime string
	if item, ok := n.(*ItemNode); ok {
		mime = strings.ToLower(item.Item.MimeType)
	}
	for _, k := range keywords {
		if strings.Contains(name, k) || (mime != "" && strings.Contains(mime, k)) {
			return true
		}
	}
	return false
}
