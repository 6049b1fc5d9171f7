package template

import "strings"

// WrapText wraps text to the given width, breaking at spaces and, inside
// overlong words, after hyphens. Words are never broken mid-way; a word with
// no break point longer than width is left on its own line.
func WrapText(text string, width int) string {
	if width <= 0 {
		return text
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		out = append(out, wrapLine(line, width)...)
	}
	return strings.Join(out, "\n")
}

func wrapLine(line string, width int) []string {
	if len(line) <= width {
		return []string{line}
	}

	var (
		lines   []string
		current string
	)
	for _, word := range strings.Fields(line) {
		for len(word) > width {
			// try to split an overlong word after a hyphen
			idx := strings.LastIndex(word[:width], "-")
			if idx < 0 {
				break
			}
			part := word[:idx+1]
			if current != "" {
				part = current + " " + part
				current = ""
			}
			lines = append(lines, part)
			word = word[idx+1:]
		}

		switch {
		case current == "":
			current = word
		case len(current)+1+len(word) <= width:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" || len(lines) == 0 {
		lines = append(lines, current)
	}
	return lines
}
