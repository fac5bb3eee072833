// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pdiddy/oafetch/pkg/types"
)

// Node is one level of unavailable.json. A node is either a branch keyed
// by hierarchy value or paper title, or a leaf holding one paper summary.
type Node struct {
	Leaf     *types.UnavailableEntry
	Children map[string]*Node
}

// NewTree returns an empty root.
func NewTree() *Node {
	return &Node{Children: make(map[string]*Node)}
}

// IsLeaf reports whether n holds a paper summary.
func (n *Node) IsLeaf() bool { return n.Leaf != nil }

// Upsert stores entry under path, keyed by its title. It reports whether
// an existing leaf was replaced. A node of the other kind is never
// overwritten: a leaf sitting on a path segment moves into the new branch,
// and a leaf whose title names a branch is stored inside that branch.
func (n *Node) Upsert(path []string, entry types.UnavailableEntry) (replaced bool) {
	cur := n
	for _, key := range path {
		cur = cur.branch(key)
	}
	for {
		existing, ok := cur.Children[entry.Title]
		if !ok || existing.IsLeaf() {
			replaced = ok
			break
		}
		cur = existing
	}
	e := entry
	cur.Children[entry.Title] = &Node{Leaf: &e}
	return replaced
}

// branch returns the branch child at key, creating it when missing. A leaf
// found at key is moved into the new branch under its own title.
func (n *Node) branch(key string) *Node {
	next, ok := n.Children[key]
	if ok && !next.IsLeaf() {
		return next
	}
	b := NewTree()
	if ok {
		b.Children[next.Leaf.Title] = next
	}
	n.Children[key] = b
	return b
}

// Lookup returns the node at path, if any.
func (n *Node) Lookup(path ...string) (*Node, bool) {
	cur := n
	for _, key := range path {
		if cur.IsLeaf() {
			return nil, false
		}
		next, ok := cur.Children[key]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Walk calls fn for every leaf with the branch keys leading to it.
func (n *Node) Walk(fn func(path []string, entry types.UnavailableEntry)) {
	n.walk(nil, fn)
}

func (n *Node) walk(path []string, fn func([]string, types.UnavailableEntry)) {
	if n.IsLeaf() {
		fn(path, *n.Leaf)
		return
	}
	keys := make([]string, 0, len(n.Children))
	for k := range n.Children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		child := n.Children[k]
		if child.IsLeaf() {
			child.walk(path, fn)
			continue
		}
		child.walk(append(path[:len(path):len(path)], k), fn)
	}
}

// Len counts the leaves under n.
func (n *Node) Len() int {
	count := 0
	n.Walk(func([]string, types.UnavailableEntry) { count++ })
	return count
}

// MarshalJSON writes a leaf as its summary object and a branch as an
// object of its children.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n.IsLeaf() {
		return json.Marshal(n.Leaf)
	}
	if n.Children == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(n.Children)
}

// UnmarshalJSON detects a leaf by a "title" member holding a string.
func (n *Node) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	if raw, ok := members["title"]; ok && isJSONString(raw) {
		var leaf types.UnavailableEntry
		if err := json.Unmarshal(data, &leaf); err != nil {
			return fmt.Errorf("leaf %s: %w", raw, err)
		}
		n.Leaf, n.Children = &leaf, nil
		return nil
	}
	n.Leaf = nil
	n.Children = make(map[string]*Node, len(members))
	for key, raw := range members {
		child := &Node{}
		if err := json.Unmarshal(raw, child); err != nil {
			return fmt.Errorf("%q: %w", key, err)
		}
		n.Children[key] = child
	}
	return nil
}

func isJSONString(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) > 0 && bytes.TrimSpace(raw)[0] == '"'
}

// Print writes the tree as an indented outline.
func (n *Node) Print(w io.Writer) {
	var last []string
	n.Walk(func(path []string, e types.UnavailableEntry) {
		common := 0
		for common < len(path) && common < len(last) && path[common] == last[common] {
			common++
		}
		for i := common; i < len(path); i++ {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", i), path[i])
		}
		year := ""
		if e.Year != nil {
			year = fmt.Sprintf(" (%d)", *e.Year)
		}
		fmt.Fprintf(w, "%s- %s%s [%s]\n", strings.Repeat("  ", len(path)), e.Title, year, e.Reason)
		last = path
	})
}
