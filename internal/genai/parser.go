package genai

import (
	"fmt"
	"regexp"
	"strings"
)

// correctMarker is the trailing tag the generation prompt asks for on correct
// options. It is stripped from the stored option text.
const correctMarker = "(Correcta)"

var optionLine = regexp.MustCompile(`^[a-z]\)\s*`)

// ParsedOption is one answer option parsed from generated text.
type ParsedOption struct {
	Text    string
	Correct bool
}

// ParsedQuestion is one question block parsed from generated text.
type ParsedQuestion struct {
	Text    string
	Options []ParsedOption
}

// ParseQuestions parses generated quiz text with an explicit grammar: blocks
// separated by blank lines, a question line first, then lettered option lines
// ("a) ..."), each optionally ending in the correctness marker. Malformed
// blocks are reported as errors instead of being silently mis-parsed.
func ParseQuestions(text string) ([]ParsedQuestion, error) {
	blocks := splitBlocks(text)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no question blocks in generated text")
	}

	questions := make([]ParsedQuestion, 0, len(blocks))
	for i, block := range blocks {
		question, err := parseBlock(block)
		if err != nil {
			return nil, fmt.Errorf("question block %d: %w", i+1, err)
		}
		questions = append(questions, question)
	}
	return questions, nil
}

func parseBlock(lines []string) (ParsedQuestion, error) {
	question := ParsedQuestion{Text: lines[0]}
	if optionLine.MatchString(question.Text) {
		return ParsedQuestion{}, fmt.Errorf("block starts with an option line %q", question.Text)
	}

	for _, line := range lines[1:] {
		if !optionLine.MatchString(line) {
			return ParsedQuestion{}, fmt.Errorf("expected lettered option line, got %q", line)
		}
		text := optionLine.ReplaceAllString(line, "")
		correct := strings.Contains(text, correctMarker)
		text = strings.TrimSpace(strings.ReplaceAll(text, correctMarker, ""))
		if text == "" {
			return ParsedQuestion{}, fmt.Errorf("empty option text in %q", line)
		}
		question.Options = append(question.Options, ParsedOption{Text: text, Correct: correct})
	}

	if len(question.Options) < 2 {
		return ParsedQuestion{}, fmt.Errorf("question %q has %d options, need at least 2", question.Text, len(question.Options))
	}
	return question, nil
}

// ParseLines extracts one idea per non-empty line, for word-cloud, ranking and
// subtopic generation.
func ParseLines(text string) []string {
	lines := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func splitBlocks(text string) [][]string {
	blocks := make([][]string, 0)
	current := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}
