package extractor

import (
	"strings"
	"unicode"
)

// noiseRunes is the extended-Latin character set typical of mis-decoded
// binary data. Its presence in a token marks the token as garbage.
const noiseRunes = "ÃÂâ€¦¢™œžŸ¡¤¥¦§¨ª«¬®¯°±²³´µ¶·¸¹º»¼½¾¿×÷ðþÐÞ"

func isNoiseRune(r rune) bool {
	return strings.ContainsRune(noiseRunes, r)
}

// normalizeText cleans a raw candidate: control characters are stripped, runs
// of noise characters collapse away, and tokens that still carry noise are
// dropped whole.
func normalizeText(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	noiseSeen := false
	prevNoise := false
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(' ')
			prevNoise = false
		case unicode.IsControl(r):
			prevNoise = false
		case isNoiseRune(r):
			noiseSeen = true
			// Collapse a noise run into a single marker so the token
			// filter below can see it.
			if !prevNoise {
				b.WriteRune(r)
			}
			prevNoise = true
		default:
			b.WriteRune(r)
			prevNoise = false
		}
	}

	cleaned := b.String()
	if !noiseSeen {
		return collapseSpaces(cleaned)
	}

	tokens := strings.Fields(cleaned)
	kept := tokens[:0]
	for _, tok := range tokens {
		if !strings.ContainsAny(tok, noiseRunes) {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
