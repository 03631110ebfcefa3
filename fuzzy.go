package main

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// fuzzyMatch performs fuzzy matching and returns match status and positions.
// It matches characters from search in order within text (case-insensitive).
// Positions are rune indices into text.
func fuzzyMatch(search, text string) (bool, []int) {
	needle := []rune(strings.ToLower(search))
	if len(needle) == 0 {
		return true, nil
	}

	var positions []int
	searchIdx := 0
	for i, char := range []rune(strings.ToLower(text)) {
		if searchIdx < len(needle) && char == needle[searchIdx] {
			positions = append(positions, i)
			searchIdx++
		}
	}

	return searchIdx == len(needle), positions
}

// isPrefixMatch reports whether text starts with search, ignoring case.
func isPrefixMatch(search, text string) bool {
	return strings.HasPrefix(strings.ToLower(text), strings.ToLower(search))
}

// calculateFiltered filters items by search. Prefix matches come first, then
// other fuzzy matches, each group in original order. positions[i] holds the
// matched rune indices of filtered[i].
func calculateFiltered(items []string, search string) ([]string, map[int][]int) {
	filtered := []string{}
	positions := make(map[int][]int)

	if search == "" {
		filtered = append(filtered, items...)
		return filtered, positions
	}

	var fuzzy []string
	var fuzzyPositions [][]int
	for _, item := range items {
		if isPrefixMatch(search, item) {
			n := utf8.RuneCountInString(search)
			pos := make([]int, n)
			for i := range pos {
				pos[i] = i
			}
			positions[len(filtered)] = pos
			filtered = append(filtered, item)
			continue
		}
		if ok, pos := fuzzyMatch(search, item); ok {
			fuzzy = append(fuzzy, item)
			fuzzyPositions = append(fuzzyPositions, pos)
		}
	}
	for i, item := range fuzzy {
		positions[len(filtered)] = fuzzyPositions[i]
		filtered = append(filtered, item)
	}
	return filtered, positions
}

// cleanTableNames removes newlines and whitespace from table names
func cleanTableNames(tables []string) []string {
	cleaned := make([]string, 0, len(tables))
	for _, table := range tables {
		name := strings.TrimSpace(strings.ReplaceAll(table, "\n", ""))
		if name != "" {
			cleaned = append(cleaned, name)
		}
	}
	return cleaned
}

var matchStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))

// highlightMatches renders text with the matched runes emphasised.
func highlightMatches(text string, positions []int) string {
	if len(positions) == 0 {
		return text
	}
	hit := make(map[int]bool, len(positions))
	for _, p := range positions {
		hit[p] = true
	}

	var b strings.Builder
	for i, r := range []rune(text) {
		if hit[i] {
			b.WriteString(matchStyle.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
