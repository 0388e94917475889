// Package prompt assembles the instruction text sent to the completion model.
//
// A prompt is an ordered list of sections. Each Section is a pure function of
// the Input that either contributes a block of text or opts out. Creation and
// modification use different section lists; Build picks one based on whether
// the request carries an existing plan.
package prompt

import (
	"strings"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/merge"
)

// Unknown is rendered for any optional value the caller did not supply.
const Unknown = "Unknown"

// Input is everything a section may read.
type Input struct {
	Request domain.TravelRequest
	// Split is set for modification requests.
	Split *merge.Split
}

// Section renders one block of the prompt. ok is false when the section does
// not apply to the input.
type Section func(in Input) (text string, ok bool)

// Prompt is the builder's output.
type Prompt struct {
	// Instruction is the full text sent to the model, Example included.
	Instruction string
	// Example is the literal answer template embedded at the end.
	Example string
}

// CreateSections is the section order for a new plan.
var CreateSections = []Section{
	Flights,
	Lodging,
	Requirement,
	DateRange,
	PartySize,
	ImageGuidance,
	Rules,
}

// ModifySections is the section order for regenerating part of a plan.
var ModifySections = []Section{
	PreservationRules,
	Need,
	ExistingSchedules,
	Flights,
	Lodging,
	DateRange,
	PartySize,
	ImageGuidance,
}

// Build renders the prompt for req. A non-nil split selects modification.
func Build(req domain.TravelRequest, split *merge.Split) Prompt {
	in := Input{Request: req, Split: split}
	if split != nil {
		return Render(in, ModifySections, ModifyExample)
	}
	return Render(in, CreateSections, CreateExample)
}

// Render joins the applicable sections followed by the example block.
func Render(in Input, sections []Section, example string) Prompt {
	var b strings.Builder
	for _, s := range sections {
		text, ok := s(in)
		if !ok {
			continue
		}
		b.WriteString(strings.TrimRight(text, "\n"))
		b.WriteString("\n\n")
	}
	b.WriteString(example)
	return Prompt{Instruction: b.String(), Example: example}
}

// orUnknown returns s, or Unknown when s is empty.
func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}

// clock returns the HH:MM part of an ISO timestamp. Values without a "T"
// are returned unchanged.
func clock(ts string) string {
	_, after, found := strings.Cut(ts, "T")
	if !found {
		return ts
	}
	if len(after) > 5 {
		return after[:5]
	}
	return after
}
