package normalize

import (
	"context"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type wordKind int

const (
	kindUnit wordKind = iota + 1
	kindTeen
	kindTen
	kindHundred
	kindScale
)

type numberWord struct {
	kind  wordKind
	value int64
}

var numberWords = map[string]numberWord{
	"zero": {kindUnit, 0}, "one": {kindUnit, 1}, "two": {kindUnit, 2}, "three": {kindUnit, 3},
	"four": {kindUnit, 4}, "five": {kindUnit, 5}, "six": {kindUnit, 6}, "seven": {kindUnit, 7},
	"eight": {kindUnit, 8}, "nine": {kindUnit, 9},
	"ten": {kindTeen, 10}, "eleven": {kindTeen, 11}, "twelve": {kindTeen, 12}, "thirteen": {kindTeen, 13},
	"fourteen": {kindTeen, 14}, "fifteen": {kindTeen, 15}, "sixteen": {kindTeen, 16},
	"seventeen": {kindTeen, 17}, "eighteen": {kindTeen, 18}, "nineteen": {kindTeen, 19},
	"twenty": {kindTen, 20}, "thirty": {kindTen, 30}, "forty": {kindTen, 40}, "fifty": {kindTen, 50},
	"sixty": {kindTen, 60}, "seventy": {kindTen, 70}, "eighty": {kindTen, 80}, "ninety": {kindTen, 90},
	"hundred":  {kindHundred, 100},
	"thousand": {kindScale, 1_000}, "million": {kindScale, 1_000_000}, "billion": {kindScale, 1_000_000_000},
}

// Numbers rewrites spelled-out English cardinals as digits, e.g.
// "one hundred and five" becomes "105". Lone digit words such as "one"
// are left alone because they are usually not quantities.
type Numbers struct{}

func (Numbers) Normalize(_ context.Context, text string) (string, error) {
	spans := fieldSpans(text)
	tokens := make([]string, len(spans))
	for i, sp := range spans {
		tokens[i] = text[sp[0]:sp[1]]
	}

	var b strings.Builder
	b.Grow(len(text))
	copied := 0
	for i := 0; i < len(tokens); {
		end, words, trailing := collectSpan(tokens, i)
		if end == i {
			i++
			continue
		}

		if digits, ok := parseCardinal(words); ok {
			b.WriteString(text[copied:spans[i][0]])
			b.WriteString(digits)
			b.WriteString(trailing)
			copied = spans[end-1][1]
		}
		i = end
	}
	b.WriteString(text[copied:])

	return b.String(), nil
}

// fieldSpans returns the [start, end) byte offsets of the whitespace
// separated fields of text.
func fieldSpans(text string) [][2]int {
	var spans [][2]int
	start := -1
	for i, r := range text {
		switch {
		case unicode.IsSpace(r) && start >= 0:
			spans = append(spans, [2]int{start, i})
			start = -1
		case !unicode.IsSpace(r) && start < 0:
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(text)})
	}
	return spans
}

// collectSpan returns the end of the run of number tokens starting at
// start, the lower-cased words in it, and punctuation trailing the last one.
func collectSpan(tokens []string, start int) (int, []string, string) {
	var words []string
	var trailing string
	end := start

	for end < len(tokens) {
		core, trail := splitTrailingPunct(tokens[end])
		parts, ok := numberParts(core)
		if !ok {
			break
		}
		if len(parts) == 1 && parts[0] == "and" {
			if len(words) == 0 || trail != "" || end+1 >= len(tokens) {
				break
			}
			next, _ := splitTrailingPunct(tokens[end+1])
			if nextParts, ok := numberParts(next); !ok || nextParts[0] == "and" {
				break
			}
		}

		words = append(words, parts...)
		end++
		if trail != "" {
			trailing = trail
			break
		}
	}

	return end, words, trailing
}

func numberParts(core string) ([]string, bool) {
	if core == "" {
		return nil, false
	}
	lower := strings.ToLower(core)
	if lower == "and" {
		return []string{"and"}, true
	}

	parts := strings.Split(lower, "-")
	for _, part := range parts {
		if _, ok := numberWords[part]; !ok {
			return nil, false
		}
	}
	return parts, true
}

func splitTrailingPunct(token string) (string, string) {
	idx := len(token)
	for idx > 0 {
		r, size := utf8.DecodeLastRuneInString(token[:idx])
		if !unicode.IsPunct(r) || r == '-' {
			break
		}
		idx -= size
	}
	return token[:idx], token[idx:]
}

func parseCardinal(words []string) (string, bool) {
	if len(words) == 0 {
		return "", false
	}

	if digits, ok := digitSequence(words); ok {
		return digits, true
	}

	var (
		total     int64
		current   int64
		last      wordKind
		lastScale int64
	)

	for i, word := range words {
		if word == "and" {
			if last != kindHundred && last != kindScale {
				return "", false
			}
			continue
		}

		w := numberWords[word]
		switch w.kind {
		case kindUnit:
			if w.value == 0 && len(words) > 1 {
				return "", false
			}
			if last != 0 && last != kindTen && last != kindHundred && last != kindScale {
				return "", false
			}
			current += w.value
		case kindTeen, kindTen:
			if last != 0 && last != kindHundred && last != kindScale {
				return "", false
			}
			current += w.value
		case kindHundred:
			if last != kindUnit && last != kindTeen {
				return "", false
			}
			current *= 100
		case kindScale:
			if current == 0 || (lastScale != 0 && w.value >= lastScale) {
				return "", false
			}
			total += current * w.value
			current = 0
			lastScale = w.value
		}
		last = w.kind

		if i == 0 && len(words) == 1 && w.kind == kindUnit {
			return "", false
		}
	}

	return strconv.FormatInt(total+current, 10), true
}

// digitSequence handles digits read one by one, e.g. "four two" -> "42".
func digitSequence(words []string) (string, bool) {
	if len(words) < 2 {
		return "", false
	}

	var b strings.Builder
	for _, word := range words {
		w, ok := numberWords[word]
		if !ok || w.kind != kindUnit {
			return "", false
		}
		b.WriteString(strconv.FormatInt(w.value, 10))
	}
	return b.String(), true
}
