package analyzer

import "strings"

// PorterStemmer implements the Porter stemming algorithm. Suffix rules are
// matched longest first so results do not depend on iteration order.
type PorterStemmer struct{}

func NewPorterStemmer() *PorterStemmer {
	return &PorterStemmer{}
}

// Stem returns the stem of a lowercase ASCII word. Shorter words and words
// with non-ASCII letters are returned unchanged.
func (p *PorterStemmer) Stem(word string) string {
	word = strings.ToLower(word)
	if len(word) < 3 || !isASCII(word) {
		return word
	}
	w := stemWord(word)
	w.step1ab()
	w.step1c()
	w.replaceLongest(step2Rules, 0)
	w.replaceLongest(step3Rules, 0)
	w.step4()
	w.step5()
	return string(w)
}

type rule struct {
	suffix, replacement string
}

// Sorted by descending suffix length within each table.
var step2Rules = []rule{
	{"ational", "ate"}, {"iveness", "ive"}, {"fulness", "ful"}, {"ousness", "ous"}, {"ization", "ize"},
	{"tional", "tion"}, {"biliti", "ble"},
	{"entli", "ent"}, {"ousli", "ous"}, {"ation", "ate"}, {"alism", "al"}, {"aliti", "al"}, {"iviti", "ive"},
	{"enci", "ence"}, {"anci", "ance"}, {"izer", "ize"}, {"abli", "able"}, {"alli", "al"}, {"ator", "ate"},
	{"eli", "e"},
}

var step3Rules = []rule{
	{"icate", "ic"}, {"ative", ""}, {"alize", "al"}, {"iciti", "ic"},
	{"ical", "ic"}, {"ness", ""},
	{"ful", ""},
}

var step4Suffixes = []string{
	"ement",
	"ance", "ence", "able", "ible", "ment",
	"ant", "ent", "ion", "ism", "ate", "iti", "ous", "ive", "ize",
	"al", "er", "ic", "ou",
}

type stemWord []byte

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}

func (w stemWord) consonant(i int) bool {
	switch w[i] {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	case 'y':
		return i == 0 || !w.consonant(i-1)
	}
	return true
}

// measure counts VC sequences in w[:end].
func (w stemWord) measure(end int) int {
	m, i := 0, 0
	for i < end && w.consonant(i) {
		i++
	}
	for i < end {
		for i < end && !w.consonant(i) {
			i++
		}
		if i >= end {
			break
		}
		m++
		for i < end && w.consonant(i) {
			i++
		}
	}
	return m
}

func (w stemWord) hasVowel(end int) bool {
	for i := 0; i < end; i++ {
		if !w.consonant(i) {
			return true
		}
	}
	return false
}

func (w stemWord) doubleConsonant(end int) bool {
	return end >= 2 && w[end-1] == w[end-2] && w.consonant(end-1)
}

func (w stemWord) cvc(end int) bool {
	if end < 3 || !w.consonant(end-3) || w.consonant(end-2) || !w.consonant(end-1) {
		return false
	}
	c := w[end-1]
	return c != 'w' && c != 'x' && c != 'y'
}

func (w stemWord) hasSuffix(s string) bool {
	return strings.HasSuffix(string(w), s)
}

func (w *stemWord) setSuffix(n int, repl string) {
	*w = append((*w)[:len(*w)-n], repl...)
}

// replaceLongest applies the longest matching rule when the remaining stem
// has measure > minMeasure. Only the longest match is considered.
func (w *stemWord) replaceLongest(rules []rule, minMeasure int) {
	for _, r := range rules {
		if !w.hasSuffix(r.suffix) {
			continue
		}
		if w.measure(len(*w)-len(r.suffix)) > minMeasure {
			w.setSuffix(len(r.suffix), r.replacement)
		}
		return
	}
}

func (w *stemWord) step1ab() {
	switch {
	case w.hasSuffix("sses"), w.hasSuffix("ies"):
		w.setSuffix(2, "")
	case w.hasSuffix("ss"):
	case w.hasSuffix("s"):
		w.setSuffix(1, "")
	}

	if w.hasSuffix("eed") {
		if w.measure(len(*w)-3) > 0 {
			w.setSuffix(1, "")
		}
		return
	}

	trimmed := false
	for _, suf := range []string{"ed", "ing"} {
		if w.hasSuffix(suf) && w.hasVowel(len(*w)-len(suf)) {
			w.setSuffix(len(suf), "")
			trimmed = true
			break
		}
	}
	if !trimmed {
		return
	}

	n := len(*w)
	switch {
	case w.hasSuffix("at"), w.hasSuffix("bl"), w.hasSuffix("iz"):
		w.setSuffix(0, "e")
	case w.doubleConsonant(n) && !strings.ContainsRune("lsz", rune((*w)[n-1])):
		w.setSuffix(1, "")
	case w.measure(n) == 1 && w.cvc(n):
		w.setSuffix(0, "e")
	}
}

func (w *stemWord) step1c() {
	if w.hasSuffix("y") && w.hasVowel(len(*w)-1) {
		w.setSuffix(1, "i")
	}
}

func (w *stemWord) step4() {
	for _, suf := range step4Suffixes {
		if !w.hasSuffix(suf) {
			continue
		}
		end := len(*w) - len(suf)
		if w.measure(end) > 1 && (suf != "ion" || (end > 0 && ((*w)[end-1] == 's' || (*w)[end-1] == 't'))) {
			w.setSuffix(len(suf), "")
		}
		return
	}
}

func (w *stemWord) step5() {
	if w.hasSuffix("e") {
		end := len(*w) - 1
		if m := w.measure(end); m > 1 || (m == 1 && !w.cvc(end)) {
			w.setSuffix(1, "")
		}
	}
	n := len(*w)
	if w.measure(n) > 1 && w.doubleConsonant(n) && (*w)[n-1] == 'l' {
		w.setSuffix(1, "")
	}
}
