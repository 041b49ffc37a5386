package matching

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// stopWords are ignored during token matching. The list includes generic
// marketplace filler ("looking", "bulk", "wholesale") that carries no
// matching signal.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(
		"a an the and or but in on at to for of with by from is are was were be been " +
			"being have has had do does did will would could should may might shall can it its " +
			"this that these those i we you he she they me us him her them my our your " +
			"his their per each every some any no not all both few more most other such only " +
			"same so than too very just also about up out if then else when where how what " +
			"which who whom why as into " +
			"need needed needs want wanted require required looking seeking available supply demand item items " +
			"product products material materials high quality good best new used fresh bulk wholesale") {
		stopWords[w] = struct{}{}
	}
	for _, cluster := range synonymClusters {
		canonical := cluster[0]
		for _, word := range cluster {
			synonymMap[word] = canonical
		}
	}
}

// synonymClusters map common supply-chain variants to one canonical token.
var synonymClusters = [][]string{
	{"rice", "basmati", "paddy"},
	{"wheat", "flour", "atta", "maida"},
	{"steel", "iron", "metal", "alloy"},
	{"wood", "timber", "lumber", "plywood"},
	{"cement", "concrete"},
	{"pipe", "pipes", "piping", "tube", "tubes", "tubing"},
	{"generator", "generators", "genset"},
	{"solar", "photovoltaic", "pv"},
	{"battery", "batteries", "cell", "cells", "accumulator"},
	{"medical", "healthcare", "pharma", "pharmaceutical"},
	{"mask", "masks", "n95"},
	{"gloves", "glove"},
	{"sanitizer", "sanitiser", "disinfectant"},
	{"tablet", "tablets", "pills", "capsules", "medicine"},
	{"cotton", "fabric", "textile", "cloth"},
	{"oil"},
	{"sugar", "jaggery", "sweetener"},
	{"pulses", "dal", "lentils", "beans", "legumes"},
	{"fertilizer", "fertiliser", "manure", "compost"},
	{"pesticide", "insecticide", "herbicide"},
	{"pump", "pumps"},
	{"wire", "wires", "cable", "cables", "wiring"},
	{"brick", "bricks", "block", "blocks"},
	{"plastic", "polythene", "polymer", "pvc"},
	{"paper", "cardboard", "packaging"},
	{"tarpaulin", "tarp", "tarps", "tent", "tents", "shelter"},
	{"blanket", "blankets", "bedding", "quilt"},
	{"water"},
	{"food", "rations", "mre"},
	{"kit", "kits", "set", "sets", "package", "packages"},
}

var synonymMap = map[string]string{}

// Tokenize lowercases, strips punctuation, drops stop words and short
// tokens, and maps synonyms to canonical form.
func Tokenize(text string) map[string]struct{} {
	tokens := map[string]struct{}{}
	if text == "" {
		return tokens
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)

	for _, t := range strings.Fields(cleaned) {
		if len(t) < 2 {
			continue
		}
		if _, ok := stopWords[t]; ok {
			continue
		}
		if canonical, ok := synonymMap[t]; ok {
			t = canonical
		}
		tokens[t] = struct{}{}
	}
	return tokens
}

// levenshteinRatio converts edit distance to a 0..1 similarity.
func levenshteinRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

// tokenOverlap scores two token sets with a Jaccard-like metric that also
// credits fuzzy token pairs above fuzzyTokenThreshold.
func tokenOverlap(tokens1, tokens2 map[string]struct{}) float64 {
	if len(tokens1) == 0 || len(tokens2) == 0 {
		return 0
	}

	exact := 0
	var remaining1, remaining2 []string
	for t := range tokens1 {
		if _, ok := tokens2[t]; ok {
			exact++
		} else {
			remaining1 = append(remaining1, t)
		}
	}
	for t := range tokens2 {
		if _, ok := tokens1[t]; !ok {
			remaining2 = append(remaining2, t)
		}
	}
	// Map iteration order is random; sort for a deterministic score.
	sortStrings(remaining1)
	sortStrings(remaining2)

	fuzzy := 0.0
	matched2 := map[string]struct{}{}
	for _, t1 := range remaining1 {
		bestScore := 0.0
		bestMatch := ""
		for _, t2 := range remaining2 {
			if _, used := matched2[t2]; used {
				continue
			}
			var score float64
			if strings.Contains(t1, t2) || strings.Contains(t2, t1) {
				score = containedTokenScore
			} else {
				score = levenshteinRatio(t1, t2)
			}
			if score > bestScore && score >= fuzzyTokenThreshold {
				bestScore = score
				bestMatch = t2
			}
		}
		if bestMatch != "" {
			fuzzy += bestScore
			matched2[bestMatch] = struct{}{}
		}
	}

	union := len(tokens1) + len(remaining2)
	if union == 0 {
		return 0
	}
	return clamp01((float64(exact) + fuzzy) / float64(union))
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// StringSimilarity combines edit distance, token overlap and substring
// containment, taking the best strategy.
func StringSimilarity(str1, str2 string) float64 {
	if str1 == "" || str2 == "" {
		return 0
	}
	s1 := strings.ToLower(strings.TrimSpace(str1))
	s2 := strings.ToLower(strings.TrimSpace(str2))
	if s1 == s2 {
		return 1
	}

	levScore := levenshteinRatio(s1, s2)
	tokenScore := tokenOverlap(Tokenize(s1), Tokenize(s2))

	substringScore := 0.0
	if strings.Contains(s1, s2) || strings.Contains(s2, s1) {
		shorter, longer := len(s1), len(s2)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		substringScore = float64(shorter) / float64(longer)
		if substringScore < containedStringFloor {
			substringScore = containedStringFloor
		}
	}

	return math3max(levScore, tokenScore, substringScore)
}

func math3max(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
