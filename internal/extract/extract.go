// Package extract pulls the structured sections an agent was instructed to
// emit (<summary>, <feedback>, <response>) out of its final answer text.
package extract

import (
	"regexp"
	"strings"
)

var (
	summaryRe  = regexp.MustCompile(`(?s)<summary>(.*?)</summary>`)
	feedbackRe = regexp.MustCompile(`(?s)<feedback>(.*?)</feedback>`)
	responseRe = regexp.MustCompile(`(?s)<response>(.*?)</response>`)
)

// Sections holds the extracted parts of a structured answer. A nil field
// means the corresponding tag pair was absent. Partial structured output is
// expected and valid; extraction never fails.
type Sections struct {
	Summary  *string
	Feedback *string
	Response *string
}

// Parse extracts each tagged section independently: first occurrence,
// non-greedy, spanning newlines, trimmed of surrounding whitespace.
func Parse(content string) Sections {
	return Sections{
		Summary:  firstMatch(summaryRe, content),
		Feedback: firstMatch(feedbackRe, content),
		Response: firstMatch(responseRe, content),
	}
}

func firstMatch(re *regexp.Regexp, content string) *string {
	m := re.FindStringSubmatch(content)
	if m == nil {
		return nil
	}
	s := strings.TrimSpace(m[1])
	return &s
}
