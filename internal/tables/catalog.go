package tables

import (
	"sort"
	"strings"
)

// allVariations lists every glyph offered in the variation picker for a
// lowercase letter. Uppercase letters are derived at init.
var allVariations = map[string][]string{
	"a": {"à", "á", "â", "ä", "æ", "ã", "å", "ā", "ă", "ą"},
	"c": {"ç", "ć", "č", "ĉ", "ċ"},
	"d": {"ď", "đ", "ð"},
	"e": {"è", "é", "ê", "ë", "ē", "ė", "ę", "ě", "€"},
	"g": {"ğ", "ĝ", "ġ", "ģ"},
	"h": {"ĥ", "ħ"},
	"i": {"ì", "í", "î", "ï", "ī", "į", "ı"},
	"j": {"ĵ"},
	"k": {"ķ"},
	"l": {"ł", "ľ", "ĺ", "ļ"},
	"n": {"ñ", "ń", "ň", "ņ"},
	"o": {"ò", "ó", "ô", "ö", "õ", "ø", "ō", "ő", "œ", "º"},
	"r": {"ř", "ŕ", "ŗ"},
	"s": {"ß", "ś", "š", "ş", "ŝ", "§"},
	"t": {"ť", "ţ", "þ"},
	"u": {"ù", "ú", "û", "ü", "ū", "ů", "ű", "ų"},
	"w": {"ŵ"},
	"y": {"ý", "ÿ", "ŷ"},
	"z": {"ž", "ź", "ż"},
}

func init() {
	upper := make(map[string][]string, len(allVariations))
	for letter, list := range allVariations {
		ul := make([]string, 0, len(list))
		for _, g := range list {
			if u := strings.ToUpper(g); u != g {
				ul = append(ul, u)
			}
		}
		if len(ul) > 0 {
			upper[strings.ToUpper(letter)] = ul
		}
	}
	for letter, list := range upper {
		allVariations[letter] = list
	}
}

// AllVariations returns the picker choices for letter. The reference table
// is never mutated; callers receive a copy.
func AllVariations(letter string) []string {
	return append([]string(nil), allVariations[letter]...)
}

// VariationLetters returns every letter that has picker choices, sorted.
func VariationLetters() []string {
	out := make([]string, 0, len(allVariations))
	for l := range allVariations {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
