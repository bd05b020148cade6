package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Unit is a detected sub-unit candidate: a zero-padded lot key plus its
// display name.
type Unit struct {
	Key  string
	Name string
}

// Detector finds sub-unit candidates in extracted text and carves out the
// text excerpt relevant to one of them. Detection heuristics evolve
// independently of the sequencing and assembly contracts.
type Detector interface {
	Detect(text string) []Unit
	Excerpt(text, key string, limit int) string
}

// lotKeywords maps lot keys to the domain keyword clusters that signal
// the trade's presence in a French construction tender.
var lotKeywords = map[string][]string{
	"01": {"gros œuvre", "gros oeuvre", "fondation", "structure", "béton", "maçonnerie"},
	"02": {"charpente", "couverture", "menuiserie bois", "ossature"},
	"03": {"cloison", "placo", "faux plafond", "isolation", "doublage"},
	"04": {"menuiserie aluminium", "menuiserie alu", "menuiserie métallique", "fenêtre", "baie"},
	"05": {"revêtement", "carrelage", "peinture", "enduit"},
	"06": {"plomberie", "sanitaire", "chauffage"},
	"07": {"électricité", "courant fort", "éclairage", "tableau électrique"},
	"08": {"climatisation", "vmc", "cvc", "ventilation"},
	"09": {"cuisine", "aménagement intérieur", "mobilier"},
	"10": {"ascenseur", "monte-charge", "élévateur"},
	"11": {"serrurerie", "métallerie", "garde-corps"},
	"12": {"vrd", "voirie", "assainissement", "terrassement"},
	"13": {"espace vert", "paysager", "plantation"},
}

// lotNames is the standard trade name per lot key.
var lotNames = map[string]string{
	"00": "Prestations générales",
	"01": "Gros Œuvre",
	"02": "Charpente Couverture Menuiserie Bois",
	"03": "Cloisons Isolation Faux Plafonds",
	"04": "Menuiseries Extérieures",
	"05": "Revêtements Sols Murs Peinture",
	"06": "Plomberie Sanitaire Chauffage",
	"07": "Électricité",
	"08": "Climatisation Ventilation",
	"09": "Aménagements Intérieurs",
	"10": "Ascenseurs Monte-Charges",
	"11": "Serrurerie Métallerie",
	"12": "VRD Voiries Réseaux Divers",
	"13": "Espaces Verts Paysagers",
}

var lotMarkerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)lot\s+(\d{1,2})`),
	regexp.MustCompile(`(?i)lot\s+n[°o]\s*(\d{1,2})`),
	regexp.MustCompile(`(?i)marché\s+(\d{1,2})`),
}

// anyLotMarker matches any explicit lot heading; used to bound excerpts.
var anyLotMarker = regexp.MustCompile(`(?i)lot\s+n?[°o]?\s*\d{1,2}`)

// KeywordDetector detects lots by explicit "Lot NN" markers and by trade
// keyword clusters.
type KeywordDetector struct {
	// ContextWindow is the amount of text taken after each keyword hit
	// when no explicit lot section exists.
	ContextWindow int
}

func NewKeywordDetector() *KeywordDetector {
	return &KeywordDetector{ContextWindow: 10_000}
}

// LotName resolves a lot key to its display name.
func LotName(key string) string {
	if n, ok := lotNames[key]; ok {
		return n
	}
	return fmt.Sprintf("Lot %s", key)
}

// Detect returns the unique lot keys present in the text, in ascending
// key order. Deterministic for identical input.
func (d *KeywordDetector) Detect(text string) []Unit {
	lower := strings.ToLower(text)
	seen := map[string]bool{}

	for _, re := range lotMarkerPatterns {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			key := m[1]
			if len(key) == 1 {
				key = "0" + key
			}
			seen[key] = true
		}
	}

	for key, kws := range lotKeywords {
		for _, kw := range kws {
			if strings.Contains(lower, kw) {
				seen[key] = true
				break
			}
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	units := make([]Unit, 0, len(keys))
	for _, k := range keys {
		units = append(units, Unit{Key: k, Name: LotName(k)})
	}
	return units
}

// Excerpt extracts the text most relevant to one lot, bounded by limit.
// Preference order: the explicit "Lot NN" section, then keyword-hit
// windows, then a plain document prefix.
func (d *KeywordDetector) Excerpt(text, key string, limit int) string {
	if limit <= 0 || limit > len(text) {
		limit = len(text)
	}

	if sec := d.lotSection(text, key); sec != "" {
		return truncate(sec, limit)
	}

	// Below this size a keyword window carries too little signal to be
	// worth preferring over a plain prefix.
	const minWindow = 5_000
	if win := d.keywordWindows(text, key, limit); len(win) >= minWindow {
		return truncate(win, limit)
	}

	return truncate(text, limit)
}

// lotSection finds the explicit "Lot NN ..." heading and returns the text
// up to the next lot heading.
func (d *KeywordDetector) lotSection(text, key string) string {
	num := strings.TrimLeft(key, "0")
	if num == "" {
		num = "0"
	}
	head := regexp.MustCompile(`(?i)lot\s+n?[°o]?\s*0?` + regexp.QuoteMeta(num) + `\b`)
	loc := head.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if next := anyLotMarker.FindStringIndex(rest); next != nil {
		return text[loc[0] : loc[1]+next[0]]
	}
	return text[loc[0]:]
}

// keywordWindows concatenates a context window after each line containing
// one of the lot's keywords, stopping once the cap is reached. Lines are
// split from the original text and lowercased one at a time: case folding
// can change a rune's byte width, so offsets computed over a lowercased
// copy of the whole document would not be valid slice bounds.
func (d *KeywordDetector) keywordWindows(text, key string, limit int) string {
	kws := lotKeywords[key]
	if len(kws) == 0 {
		return ""
	}

	var b strings.Builder
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		hit := false
		for _, kw := range kws {
			if strings.Contains(lower, kw) {
				hit = true
				break
			}
		}
		if hit {
			end := offset + d.ContextWindow
			if end > len(text) {
				end = len(text)
			}
			b.WriteString(text[offset:end])
			b.WriteString("\n")
			if b.Len() >= limit {
				break
			}
		}
		offset += len(line) + 1
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
