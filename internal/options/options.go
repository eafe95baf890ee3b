// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package options recovers a structured list of selectable choices from
// free-form assistant text.
//
// The agent is prompted to end messages that offer the user a decision with
// a run of option lines like:
//
//	1. **Helical bundle** — compact, easy to express
//	2. **Beta sheet scaffold** — wider interface
//	**Something else** — describe your own approach
//
// Parsing is pure and deterministic: the same text always yields the same
// body and option list, so it can be re-run against historical messages.
package options

import (
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// PARSED OPTION
// =============================================================================

// Option is one selectable choice recovered from message text.
type Option struct {
	// Number is the display number: explicit from the source text, or
	// positional when the line carried no number.
	Number int

	// Label is the bolded option label.
	Label string

	// Description is the trailing description after the dash separator,
	// empty when the line has none.
	Description string

	// Freeform marks a choice whose effect is "focus the input for custom
	// text" rather than submitting the label as a canned reply.
	Freeform bool
}

// =============================================================================
// LINE GRAMMAR
// =============================================================================

var (
	// numberedLine matches `<int>. **<label>**<rest>`.
	numberedLine = regexp.MustCompile(`^\s*(\d+)\.\s*\*\*(.+?)\*\*(.*)$`)

	// bareLine matches `**<label>**<rest>` (positionally numbered).
	bareLine = regexp.MustCompile(`^\s*\*\*(.+?)\*\*(.*)$`)
)

// freeformIndicators are label phrases meaning "let me type my own answer".
// Matching is case-insensitive on the whole label.
var freeformIndicators = []string{
	"something else",
	"other",
	"custom",
	"let me describe",
	"none of these",
	"describe my own",
}

// maxTrailingSkip is how many trailing non-option lines (closing questions,
// commentary) may sit below the option run.
const maxTrailingSkip = 3

// minOptions is the smallest run that counts as an option block.
const minOptions = 2

// isOptionLine reports whether the line matches the option grammar.
func isOptionLine(line string) bool {
	return numberedLine.MatchString(line) || bareLine.MatchString(line)
}

// parseLine extracts the option from a matching line. position is the
// 1-based index used when the line carries no explicit number.
func parseLine(line string, position int) Option {
	var label, rest string
	number := position

	if m := numberedLine.FindStringSubmatch(line); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			number = n
		}
		label, rest = m[2], m[3]
	} else if m := bareLine.FindStringSubmatch(line); m != nil {
		label, rest = m[1], m[2]
	}

	opt := Option{
		Number:   number,
		Label:    strings.TrimSpace(label),
		Freeform: isFreeformLabel(label),
	}
	opt.Description = splitDescription(rest)
	return opt
}

// splitDescription extracts the trailing description from the remainder of
// an option line. The separator is the LAST em-dash or en-dash, so dashes
// inside the label's remainder (e.g. the range in "(25–30) – wide") split
// at the final dash only.
func splitDescription(rest string) string {
	idx := strings.LastIndexAny(rest, "—–")
	if idx < 0 {
		return ""
	}
	// Both dashes are multi-byte; skip the full rune.
	_, size := decodeDash(rest[idx:])
	return strings.TrimSpace(rest[idx+size:])
}

// decodeDash returns the dash rune at the start of s and its byte size.
func decodeDash(s string) (rune, int) {
	for _, r := range s {
		return r, len(string(r))
	}
	return 0, 0
}

// isFreeformLabel reports whether the label is one of the fixed freeform
// indicators.
func isFreeformLabel(label string) bool {
	l := strings.ToLower(strings.TrimSpace(label))
	for _, indicator := range freeformIndicators {
		if l == indicator || strings.HasPrefix(l, indicator+" ") {
			return true
		}
	}
	return false
}

// =============================================================================
// BLOCK PARSER
// =============================================================================

// Parse splits full message text into body text and an ordered option list.
// When the text holds fewer than two contiguous option lines, the original
// text is returned unchanged with a nil option list.
func Parse(text string) (string, []Option) {
	lines := strings.Split(text, "\n")

	// Trim trailing blank lines.
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	if end == 0 {
		return text, nil
	}

	// Skip up to maxTrailingSkip trailing non-option lines.
	last := end - 1
	skipped := 0
	for last >= 0 && skipped < maxTrailingSkip && !isOptionLine(lines[last]) {
		if strings.TrimSpace(lines[last]) != "" {
			skipped++
		}
		last--
	}
	if last < 0 || !isOptionLine(lines[last]) {
		return text, nil
	}

	// Scan backward through the option run. Blank lines inside the run are
	// skipped without breaking it.
	first := last
	for i := last; i >= 0; i-- {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !isOptionLine(line) {
			break
		}
		first = i
	}

	var optLines []string
	for i := first; i <= last; i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		optLines = append(optLines, lines[i])
	}
	if len(optLines) < minOptions {
		return text, nil
	}

	opts := make([]Option, 0, len(optLines))
	for i, line := range optLines {
		opts = append(opts, parseLine(line, i+1))
	}

	body := strings.TrimRight(strings.Join(lines[:first], "\n"), " \t\n\r")
	return body, opts
}

// =============================================================================
// SELECTION RECOVERY
// =============================================================================

// MatchSelection finds the option a user reply selected: a case-insensitive
// exact match on the label, or an exact numeric match on the option number.
// Returns the option index and true, or -1 and false when nothing matches.
func MatchSelection(opts []Option, reply string) (int, bool) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return -1, false
	}

	for i, opt := range opts {
		if strings.EqualFold(opt.Label, reply) {
			return i, true
		}
	}

	if n, err := strconv.Atoi(reply); err == nil {
		for i, opt := range opts {
			if opt.Number == n {
				return i, true
			}
		}
	}

	return -1, false
}
