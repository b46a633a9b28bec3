// Package unittext normalises raw unit text before catalog matching. It is a
// pure function layer: no I/O, no state, safe for concurrent use.
package unittext

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases, trims, collapses internal whitespace runs to a
// single space and strips periods. NFKC folding runs first so presentation
// forms like the superscript in "g/m²" compare equal to "g/m2". Empty input
// normalises to the empty string. Normalize is idempotent.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.ReplaceAll(text, ".", "")
	return strings.Join(strings.Fields(text), " ")
}

// Standardize maps a normalised spelling variant to its canonical search
// term. Unknown input is returned unchanged. The table below is accumulated
// domain knowledge of how garment suppliers write units; treat it as an
// append-only dictionary.
func Standardize(normalized string) string {
	if canonical, ok := standardTerms[normalized]; ok {
		return canonical
	}
	return normalized
}

var standardTerms = map[string]string{
	// weight
	"kg":         "kilogram",
	"kgs":        "kilogram",
	"kilo":       "kilogram",
	"kilos":      "kilogram",
	"kilograms":  "kilogram",
	"g":          "gram",
	"gm":         "gram",
	"gms":        "gram",
	"grams":      "gram",
	"mg":         "milligram",
	"lb":         "pound",
	"lbs":        "pound",
	"pounds":     "pound",
	"oz":         "ounce",
	"ounces":     "ounce",
	"ton":        "tonne",
	"tons":       "tonne",
	"mt":         "tonne",
	"metric ton": "tonne",

	// fabric weight
	"gsm":   "gsm",
	"g/m2":  "gsm",
	"g/sqm": "gsm",
	"gr/m2": "gsm",
	"oz/yd2": "ounce per square yard",
	"oz/yd":  "ounce per square yard",

	// length
	"m":           "meter",
	"mtr":         "meter",
	"mtrs":        "meter",
	"meters":      "meter",
	"metre":       "meter",
	"metres":      "meter",
	"cm":          "centimeter",
	"cms":         "centimeter",
	"centimeters": "centimeter",
	"mm":          "millimeter",
	"in":          "inch",
	"inches":      "inch",
	"ft":          "foot",
	"feet":        "foot",
	"yd":          "yard",
	"yds":         "yard",
	"yards":       "yard",

	// count / packaging
	"pc":     "piece",
	"pcs":    "piece",
	"pieces": "piece",
	"each":   "piece",
	"ea":     "piece",
	"nos":    "piece",
	"no":     "piece",
	"unit":   "piece",
	"units":  "piece",
	"dz":     "dozen",
	"dzn":    "dozen",
	"doz":    "dozen",
	"dozens": "dozen",
	"gr":     "gross",
	"set":    "set",
	"sets":   "set",
	"pr":     "pair",
	"pair":   "pair",
	"pairs":  "pair",
	"roll":   "roll",
	"rolls":  "roll",
	"cone":   "cone",
	"cones":  "cone",
	"box":    "box",
	"boxes":  "box",
	"ctn":    "carton",
	"carton": "carton",
	"cartons": "carton",
	"bag":    "bag",
	"bags":   "bag",

	// regional
	"mon":   "maund",
	"maund": "maund",
	"seer":  "seer",
	"gaj":   "yard",
	"guz":   "yard",
	"hath":  "cubit",
}
