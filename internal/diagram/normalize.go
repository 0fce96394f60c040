package diagram

import (
	"strings"
	"unicode"
)

// labelAliases corrects known backend vocabulary drift before the
// generic heuristics run. Keys are lower-cased trimmed labels, values
// are mapping keys.
var labelAliases = map[string]string{
	"gej":                     "gastroesophageal_junction",
	"ge junction":             "gastroesophageal_junction",
	"egj":                     "gastroesophageal_junction",
	"squamocolumnar junction": "z_line",
	"scj":                     "z_line",
	"body":                    "gastric_body",
	"stomach body":            "gastric_body",
	"corpus":                  "gastric_body",
	"duodenum":                "duodenal_bulb",
	"d1":                      "duodenal_bulb",
	"d2":                      "duodenum_second_portion",
	"second part of duodenum": "duodenum_second_portion",
	"angularis":               "incisura",
	"incisura angularis":      "incisura",
	"retroflex":               "retroflexion",
	"retroflexed":             "retroflexion",
	"upper esophagus":         "esophagus_proximal",
	"middle esophagus":        "esophagus_mid",
	"lower esophagus":         "esophagus_distal",
}

// UnlabeledKey buckets images whose label is empty after cleaning.
const UnlabeledKey = "unlabeled"

// Normalized is the outcome of resolving a raw label against the
// mapping. Location is nil when the label stayed unmapped.
type Normalized struct {
	Key      string
	Display  string
	Location *Location
}

func (n Normalized) Mapped() bool { return n.Location != nil }

// Normalize resolves a backend label to a diagram location. The
// pipeline order is deliberate: aliases first, then direct key, then
// display names, then a slugified retry; the raw cleaned label is the
// last-resort bucket key so label variants still group consistently.
func (m Mapping) Normalize(label string) Normalized {
	cleaned := strings.TrimSpace(label)
	if cleaned == "" {
		return Normalized{Key: UnlabeledKey, Display: "Unlabeled"}
	}
	lower := strings.ToLower(cleaned)

	if key, ok := labelAliases[lower]; ok {
		if loc, ok := m[key]; ok {
			return Normalized{Key: key, Display: loc.DisplayName, Location: &loc}
		}
	}

	if loc, ok := m[lower]; ok {
		return Normalized{Key: lower, Display: loc.DisplayName, Location: &loc}
	}

	for key, loc := range m {
		if strings.ToLower(loc.DisplayName) == lower {
			return Normalized{Key: key, Display: loc.DisplayName, Location: &loc}
		}
	}

	if slug := Slugify(cleaned); slug != "" {
		if loc, ok := m[slug]; ok {
			return Normalized{Key: slug, Display: loc.DisplayName, Location: &loc}
		}
	}

	return Normalized{Key: cleaned, Display: cleaned}
}

// Slugify collapses non-alphanumeric runs to single underscores and
// trims them from the ends.
func Slugify(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		} else {
			pendingSep = true
		}
	}
	return b.String()
}
