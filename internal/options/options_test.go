// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ExplicitNumbers(t *testing.T) {
	body, opts := Parse("1. **A** — x\n2. **B** — y")

	assert.Equal(t, "", body)
	require.Len(t, opts, 2)
	assert.Equal(t, Option{Number: 1, Label: "A", Description: "x"}, opts[0])
	assert.Equal(t, Option{Number: 2, Label: "B", Description: "y"}, opts[1])
}

func TestParse_NoOptions(t *testing.T) {
	text := "Just a sentence."
	body, opts := Parse(text)

	assert.Equal(t, text, body)
	assert.Empty(t, opts)
}

// A single option line is not an option block.
func TestParse_SingleLineIsNotABlock(t *testing.T) {
	text := "Pick one:\n1. **A** — x"
	body, opts := Parse(text)

	assert.Equal(t, text, body)
	assert.Empty(t, opts)
}

func TestParse_InternalDashNotSeparator(t *testing.T) {
	_, opts := Parse("**Range (25–30)** — wide\n**Range (31–40)** — wider")

	require.Len(t, opts, 2)
	assert.Equal(t, "Range (25–30)", opts[0].Label)
	assert.Equal(t, "wide", opts[0].Description)
	assert.Equal(t, "Range (31–40)", opts[1].Label)
	assert.Equal(t, "wider", opts[1].Description)
}

func TestParse_PositionalNumbering(t *testing.T) {
	_, opts := Parse("**First**\n**Second**\n**Third**")

	require.Len(t, opts, 3)
	assert.Equal(t, 1, opts[0].Number)
	assert.Equal(t, 2, opts[1].Number)
	assert.Equal(t, 3, opts[2].Number)
	assert.Equal(t, "", opts[0].Description)
}

func TestParse_BodyAndTrailingQuestion(t *testing.T) {
	text := "Here are some scaffold strategies to consider.\n" +
		"\n" +
		"1. **Helical bundle** — compact and stable\n" +
		"2. **Beta sheet** — wider interface\n" +
		"3. **Something else** — describe your own\n" +
		"\n" +
		"Which direction sounds right to you?\n"

	body, opts := Parse(text)

	assert.Equal(t, "Here are some scaffold strategies to consider.", body)
	require.Len(t, opts, 3)
	assert.Equal(t, "Helical bundle", opts[0].Label)
	assert.False(t, opts[0].Freeform)
	assert.True(t, opts[2].Freeform)
}

func TestParse_BlankLinesInsideRun(t *testing.T) {
	text := "Choose:\n1. **A** — x\n\n2. **B** — y"
	body, opts := Parse(text)

	assert.Equal(t, "Choose:", body)
	require.Len(t, opts, 2)
}

// More than three trailing non-option lines means the text is treated as
// plain prose.
func TestParse_TooMuchTrailingCommentary(t *testing.T) {
	text := "1. **A** — x\n2. **B** — y\none\ntwo\nthree\nfour"
	body, opts := Parse(text)

	assert.Equal(t, text, body)
	assert.Empty(t, opts)
}

func TestParse_FreeformIndicators(t *testing.T) {
	tests := []struct {
		label    string
		freeform bool
	}{
		{"Something else", true},
		{"Other", true},
		{"Custom", true},
		{"Let me describe", true},
		{"None of these", true},
		{"Helical bundle", false},
		{"Customize the linker", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			_, opts := Parse("**" + tt.label + "** — a\n**Padding** — b")
			require.Len(t, opts, 2)
			assert.Equal(t, tt.freeform, opts[0].Freeform)
		})
	}
}

func TestMatchSelection(t *testing.T) {
	opts := []Option{
		{Number: 1, Label: "Helical bundle"},
		{Number: 2, Label: "Beta sheet"},
		{Number: 7, Label: "Something else", Freeform: true},
	}

	tests := []struct {
		name    string
		reply   string
		wantIdx int
		wantOK  bool
	}{
		{"exact label", "Beta sheet", 1, true},
		{"case-insensitive label", "helical BUNDLE", 0, true},
		{"numeric reply", "2", 1, true},
		{"explicit non-positional number", "7", 2, true},
		{"no match", "something entirely different", -1, false},
		{"number not present", "3", -1, false},
		{"empty reply", "   ", -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := MatchSelection(opts, tt.reply)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantIdx, idx)
		})
	}
}
