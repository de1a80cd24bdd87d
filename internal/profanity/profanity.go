// Package profanity filters user-supplied text before it is stored or
// broadcast. Matching runs over a normalized view of the input (lower-cased,
// leet-speak folded, punctuation and spacing stripped) so padded or disguised
// spellings still hit, while masking is applied to the original runes.
package profanity

import (
	"fmt"
	"os"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"gopkg.in/yaml.v3"
)

const defaultMask = '*'

// Filter detects and masks configured words in free-form text.
type Filter struct {
	machine *goahocorasick.Machine
	mask    rune
}

// New builds a Filter from the given word list.
func New(words []string) (*Filter, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("profanity: empty word list")
	}
	patterns := make([][]rune, len(words))
	for i, w := range words {
		patterns[i] = normalizeRunes([]rune(w))
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, fmt.Errorf("profanity: build matcher: %w", err)
	}
	return &Filter{machine: m, mask: defaultMask}, nil
}

// MustNew is New for word lists known at compile time.
func MustNew(words []string) *Filter {
	f, err := New(words)
	if err != nil {
		panic(err)
	}
	return f
}

// Default returns a Filter over the built-in word list.
func Default() *Filter {
	return MustNew(defaultWords)
}

// IsProfane reports whether text contains at least one filtered word.
func (f *Filter) IsProfane(text string) bool {
	norm, _ := normalize(text)
	if len(norm) == 0 {
		return false
	}
	return len(f.machine.MultiPatternSearch(norm, true)) > 0
}

// Clean returns text with every filtered word masked. Spacing and
// punctuation of the original are preserved.
func (f *Filter) Clean(text string) string {
	norm, origIdx := normalize(text)
	if len(norm) == 0 {
		return text
	}
	spans := f.machine.MultiPatternSearch(norm, false)
	if len(spans) == 0 {
		return text
	}

	orig := []rune(text)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			orig[i] = f.mask
		}
	}
	return string(orig)
}

// wordsFile is the YAML shape of an external word list.
type wordsFile struct {
	Words []string `yaml:"words"`
}

// LoadWords reads a YAML word list of the form `words: [...]`.
func LoadWords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profanity: read word list: %w", err)
	}
	var wf wordsFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("profanity: parse word list: %w", err)
	}
	if len(wf.Words) == 0 {
		return nil, fmt.Errorf("profanity: word list %s is empty", path)
	}
	return wf.Words, nil
}

// normalize lower-cases, folds leet speak and drops noise runes, keeping a
// mapping from normalized positions back to original rune indices.
func normalize(input string) ([]rune, []int) {
	orig := []rune(input)
	norm := make([]rune, 0, len(orig))
	origIdx := make([]int, 0, len(orig))
	for i, r := range orig {
		clean := foldRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return norm, origIdx
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := foldRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// foldRune maps common leet-speak substitutions back to letters.
func foldRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

// isNoise reports runes skipped during matching.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
