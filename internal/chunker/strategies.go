package chunker

import (
	"regexp"
	"strings"
)

var sentenceBoundary = regexp.MustCompile(`(?s)([.!?]+)(\s+)`)
var paragraphBoundary = regexp.MustCompile(`\n\s*\n+`)
var headingLine = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+(.+?)[ \t]*$`)

// splitBySize splits text into rune-bounded windows of size maxSize with
// overlap characters of repeated context between consecutive windows.
func splitBySize(text string, maxSize, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	if overlap < 0 || overlap >= maxSize {
		overlap = 0
	}

	var parts []string
	step := maxSize - overlap
	for start := 0; start < len(runes); start += step {
		end := start + maxSize
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return parts
}

// groupBySize greedily packs a sequence of atomic units (sentences or
// paragraphs) into windows of at most maxSize runes plus the single space
// that joins the last unit (the size check does not count that space),
// falling back to splitBySize for any single unit that alone exceeds maxSize.
func groupBySize(units []string, maxSize, overlap int) []string {
	var out []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
		}
	}

	for _, u := range units {
		if strings.TrimSpace(u) == "" {
			continue
		}
		if len([]rune(u)) > maxSize {
			flush()
			out = append(out, splitBySize(u, maxSize, overlap)...)
			continue
		}
		if current.Len() > 0 && len([]rune(current.String()))+len([]rune(u)) > maxSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(u)
	}
	flush()
	return out
}

// splitSentences breaks text on sentence-terminal punctuation.
func splitSentences(text string) []string {
	matches := sentenceBoundary.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}

	var sentences []string
	last := 0
	for _, m := range matches {
		sentences = append(sentences, text[last:m[1]])
		last = m[1]
	}
	if last < len(text) {
		sentences = append(sentences, text[last:])
	}
	return sentences
}

// splitParagraphs breaks text on blank-line boundaries.
func splitParagraphs(text string) []string {
	return paragraphBoundary.Split(text, -1)
}

// headingSection is one heading-delimited section of a document, together
// with its ancestor heading chain.
type headingSection struct {
	title      string
	titleChain []string
	body       string
}

// splitHeadings partitions text into sections delimited by Markdown-style
// `#`..`######` heading lines, tracking the ancestor chain by heading depth.
// Content preceding the first heading becomes a section with an empty
// title and titleChain.
func splitHeadings(text string) []headingSection {
	locs := headingLine.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return []headingSection{{body: text}}
	}

	var sections []headingSection
	var stack []string // ancestor titles, index 0 = level 1

	// leading content before the first heading
	if locs[0][0] > 0 {
		lead := text[:locs[0][0]]
		if strings.TrimSpace(lead) != "" {
			sections = append(sections, headingSection{body: lead})
		}
	}

	for i, loc := range locs {
		hashes := text[loc[2]:loc[3]]
		title := strings.TrimSpace(text[loc[4]:loc[5]])
		level := len(hashes)

		bodyStart := loc[1]
		bodyEnd := len(text)
		if i+1 < len(locs) {
			bodyEnd = locs[i+1][0]
		}
		body := text[bodyStart:bodyEnd]

		if level-1 < len(stack) {
			stack = stack[:level-1]
		}
		for len(stack) < level-1 {
			stack = append(stack, "")
		}
		chain := append(append([]string{}, stack...), title)

		sections = append(sections, headingSection{
			title:      title,
			titleChain: chain,
			body:       body,
		})

		if level-1 == len(stack) {
			stack = append(stack, title)
		} else if level-1 < len(stack) {
			stack = append(stack[:level-1], title)
		}
	}

	return sections
}
