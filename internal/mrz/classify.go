package mrz

// minLines is the smallest line count of any supported format.
const minLines = 2

// Classify selects the format whose line count and line-length window match
// the trailing lines of cleaned input. TD1, TD2 and TD3 have distinct
// signatures, so at most one layout can match a given tail.
func Classify(cleaned []string) (*Format, error) {
	if len(cleaned) < minLines {
		return nil, failf(StageClassifying, ErrMalformedInput,
			"need at least %d non-empty lines, got %d", minLines, len(cleaned))
	}
	for _, f := range classifyOrder {
		if matches(f, cleaned) {
			return f, nil
		}
	}
	return nil, failf(StageClassifying, ErrUnsupportedFormat,
		"no layout matches %d lines of lengths %v", len(cleaned), lengths(cleaned))
}

func matches(f *Format, cleaned []string) bool {
	if len(cleaned) < f.lines {
		return false
	}
	tail := cleaned[len(cleaned)-f.lines:]
	for i, l := range tail {
		if !f.acceptsLength(i, len(l)) {
			return false
		}
	}
	return true
}

func lengths(lines []string) []int {
	out := make([]int, len(lines))
	for i, l := range lines {
		out[i] = len(l)
	}
	return out
}
