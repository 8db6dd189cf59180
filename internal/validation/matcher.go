// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package validation

import "strings"

// keywordMatcher finds every occurrence of a fixed set of keywords in one
// pass over the text using an Aho-Corasick automaton. Matching is
// case-insensitive. The automaton is immutable once built and safe for
// concurrent use.
type keywordMatcher struct {
	root     *acNode
	keywords []string
}

type acNode struct {
	children map[rune]*acNode
	failure  *acNode
	output   []int // indices into keywords ending at this node
}

// keywordMatch is one occurrence of a keyword. Start and End are byte
// offsets into the lower-cased text.
type keywordMatch struct {
	Keyword string
	Start   int
	End     int
}

func newACNode() *acNode {
	return &acNode{children: make(map[rune]*acNode)}
}

func newKeywordMatcher(keywords ...string) *keywordMatcher {
	m := &keywordMatcher{root: newACNode()}
	for _, k := range keywords {
		if k == "" {
			continue
		}
		k = strings.ToLower(k)
		m.keywords = append(m.keywords, k)

		node := m.root
		for _, ch := range k {
			if node.children[ch] == nil {
				node.children[ch] = newACNode()
			}
			node = node.children[ch]
		}
		node.output = append(node.output, len(m.keywords)-1)
	}
	m.buildFailureLinks()
	return m
}

// buildFailureLinks links every node to its longest proper suffix (BFS).
func (m *keywordMatcher) buildFailureLinks() {
	queue := make([]*acNode, 0, len(m.root.children))
	for _, child := range m.root.children {
		child.failure = m.root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for ch, child := range current.children {
			queue = append(queue, child)

			fail := current.failure
			for fail != nil && fail.children[ch] == nil {
				fail = fail.failure
			}
			if fail == nil {
				child.failure = m.root
				continue
			}
			child.failure = fail.children[ch]
			child.output = append(child.output, child.failure.output...)
		}
	}
}

// search returns all keyword occurrences in text, which must already be
// lower case.
func (m *keywordMatcher) search(text string) []keywordMatch {
	var matches []keywordMatch
	node := m.root

	for i, ch := range text {
		for node != nil && node.children[ch] == nil {
			node = node.failure
		}
		if node == nil {
			node = m.root
			continue
		}
		node = node.children[ch]

		end := i + len(string(ch))
		for _, idx := range node.output {
			k := m.keywords[idx]
			matches = append(matches, keywordMatch{Keyword: k, Start: end - len(k), End: end})
		}
	}
	return matches
}
