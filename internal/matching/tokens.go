package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const minTokenLength = 3

// stopwords are frequent words in Brazilian statement descriptions that carry no matching signal
var stopwords = map[string]struct{}{
	"dos": {}, "das": {}, "para": {}, "com": {}, "por": {}, "pela": {}, "pelo": {},
	"que": {}, "uma": {}, "ref": {}, "referente": {}, "pagamento": {}, "recebimento": {},
	"parcela": {}, "transf": {}, "transferencia": {}, "pix": {}, "ted": {}, "doc": {},
}

// Normalize lowercases s and strips diacritics
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	return strings.ToLower(result)
}

// Tokens splits a description into a set of comparable terms
func Tokens(s string) map[string]struct{} {
	fields := strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < minTokenLength {
			continue
		}
		if _, skip := stopwords[f]; skip {
			continue
		}
		tokens[f] = struct{}{}
	}
	return tokens
}

// Overlap is the overlap coefficient |A∩B| / min(|A|,|B|), 0 when either set is empty
func Overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	common := 0
	for t := range small {
		if _, ok := large[t]; ok {
			common++
		}
	}
	return float64(common) / float64(len(small))
}
