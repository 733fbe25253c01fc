package extract

import "strings"

// sentenceSpan is a sentence with its character offsets into the paragraph.
type sentenceSpan struct {
	text  string
	start int
	end   int
}

// splitSentences splits paragraph text on sentence-final punctuation,
// keeping exact offsets. Trailing quote marks stay with their sentence.
func splitSentences(text string) []sentenceSpan {
	var spans []sentenceSpan
	start := 0
	for i := 0; i < len(text); {
		r := text[i]
		if r == '.' || r == '!' || r == '?' {
			end := i + 1
			// Consume runs of terminators (ellipsis, "?!") and closing quotes.
			for end < len(text) {
				c := text[end]
				if c == '.' || c == '!' || c == '?' || c == '"' {
					end++
					continue
				}
				if strings.HasPrefix(text[end:], "»") || strings.HasPrefix(text[end:], "”") {
					end += len("»")
					continue
				}
				if strings.HasPrefix(text[end:], "…") {
					end += len("…")
					continue
				}
				break
			}
			if s := strings.TrimSpace(text[start:end]); s != "" {
				spans = append(spans, trimmedSpan(text, start, end))
			}
			start = end
			i = end
			continue
		}
		if strings.HasPrefix(text[i:], "…") {
			end := i + len("…")
			if s := strings.TrimSpace(text[start:end]); s != "" {
				spans = append(spans, trimmedSpan(text, start, end))
			}
			start = end
			i = end
			continue
		}
		i++
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		spans = append(spans, trimmedSpan(text, start, len(text)))
	}
	return spans
}

// trimmedSpan narrows [start,end) to exclude surrounding whitespace.
func trimmedSpan(text string, start, end int) sentenceSpan {
	for start < end {
		c := text[start]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			start++
			continue
		}
		break
	}
	for end > start {
		c := text[end-1]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			end--
			continue
		}
		break
	}
	return sentenceSpan{text: text[start:end], start: start, end: end}
}
