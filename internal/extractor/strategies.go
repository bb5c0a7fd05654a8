package extractor

import (
	"bytes"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

var (
	textObjectRegex = regexp.MustCompile(`(?s)BT(.*?)ET`)
	literalRegex    = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)`)
)

// extractTextObjects pulls parenthesized literals out of BT/ET text objects,
// decodes PDF string escapes, and joins fragments with single spaces.
func extractTextObjects(data []byte) string {
	objects := textObjectRegex.FindAllSubmatch(data, -1)
	if len(objects) == 0 {
		return ""
	}

	var b strings.Builder
	for _, obj := range objects {
		for _, lit := range literalRegex.FindAllSubmatch(obj[1], -1) {
			fragment := decodeEscapes(string(lit[1]))
			if fragment == "" {
				continue
			}
			joinFragment(&b, fragment)
		}
	}
	return b.String()
}

// joinFragment appends fragment, inserting one space when neither side
// already ends/starts with whitespace.
func joinFragment(b *strings.Builder, fragment string) {
	if b.Len() > 0 {
		prev := b.String()
		lastRune, _ := utf8.DecodeLastRuneInString(prev)
		firstRune, _ := utf8.DecodeRuneInString(fragment)
		if !unicode.IsSpace(lastRune) && !unicode.IsSpace(firstRune) {
			b.WriteByte(' ')
		}
	}
	b.WriteString(fragment)
}

// decodeEscapes resolves PDF literal-string escapes: octal byte escapes,
// \n, \r, \t, and escaped delimiters.
func decodeEscapes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch next := s[i]; next {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '(', ')', '\\':
			b.WriteByte(next)
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j-i < 3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			if v, err := strconv.ParseUint(s[i:j], 8, 16); err == nil && v < 256 {
				b.WriteByte(byte(v))
			}
			i = j - 1
		default:
			b.WriteByte(next)
		}
	}
	return b.String()
}

const (
	minStreamLength = 50
	maxStreamsKept  = 10
	minStreamTokens = 20
)

// extractRawStreams scrapes stream/endstream blocks: keeps the ten longest
// streams over 50 bytes, strips non-printable bytes, and keeps only streams
// whose cleaned content still reads like text (>= 20 tokens).
func extractRawStreams(data []byte) string {
	streams := collectStreams(data)
	if len(streams) == 0 {
		return ""
	}

	sort.Slice(streams, func(i, j int) bool { return len(streams[i]) > len(streams[j]) })
	if len(streams) > maxStreamsKept {
		streams = streams[:maxStreamsKept]
	}

	var parts []string
	for _, s := range streams {
		cleaned := stripNonPrintable(s)
		if len(strings.Fields(cleaned)) >= minStreamTokens {
			parts = append(parts, cleaned)
		}
	}
	return strings.Join(parts, "\n")
}

func collectStreams(data []byte) [][]byte {
	var streams [][]byte
	rest := data
	for {
		start := bytes.Index(rest, []byte("stream"))
		if start < 0 {
			break
		}
		body := rest[start+len("stream"):]
		end := bytes.Index(body, []byte("endstream"))
		if end < 0 {
			break
		}
		if end > minStreamLength {
			streams = append(streams, body[:end])
		}
		rest = body[end+len("endstream"):]
	}
	return streams
}

func stripNonPrintable(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if c >= 0x20 && c < 0x7f || c == '\n' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// extractParentheticals is the loose variant of text-object extraction: every
// parenthesized literal in the file, no BT/ET requirement, filtered to tokens
// of length >= 3 containing at least one alphanumeric.
func extractParentheticals(data []byte) string {
	literals := literalRegex.FindAllSubmatch(data, -1)
	if len(literals) == 0 {
		return ""
	}

	var tokens []string
	for _, lit := range literals {
		decoded := decodeEscapes(string(lit[1]))
		for _, tok := range strings.Fields(decoded) {
			if len(tok) >= 3 && hasAlphanumeric(tok) {
				tokens = append(tokens, tok)
			}
		}
	}
	return strings.Join(tokens, " ")
}

func hasAlphanumeric(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// extractByEncoding sweeps byte-level decodings in order of decreasing
// precision and returns the first decode that yields plausible text.
func extractByEncoding(data []byte) string {
	attempts := []func([]byte) string{
		decodeUTF16BE,
		decodeLatin1Whitelist,
		decodeFrequencyWhitelist,
		decodeUnicodeRange,
	}
	for _, attempt := range attempts {
		if s := attempt(data); plausibleText(s) {
			return s
		}
	}
	return ""
}

const (
	minPlausibleTokens = 50
	minTokenLetters    = 2
)

// plausibleText accepts a decode only if it yields at least 50 tokens of
// length >= 3 with at least 2 letters each.
func plausibleText(s string) bool {
	count := 0
	for _, tok := range strings.Fields(s) {
		if len(tok) < 3 {
			continue
		}
		letters := 0
		for _, r := range tok {
			if unicode.IsLetter(r) {
				letters++
			}
		}
		if letters >= minTokenLetters {
			count++
			if count >= minPlausibleTokens {
				return true
			}
		}
	}
	return false
}

// decodeUTF16BE reads the data as 16-bit big-endian code units.
func decodeUTF16BE(data []byte) string {
	if len(data) < 2 {
		return ""
	}
	units := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		units = append(units, uint16(data[i])<<8|uint16(data[i+1]))
	}

	var b strings.Builder
	for _, r := range utf16.Decode(units) {
		if isTextRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// decodeLatin1Whitelist maps each byte to its Latin-1 rune and keeps only
// whitelisted text characters.
func decodeLatin1Whitelist(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		r := rune(c)
		if isTextRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

const frequencyWhitelistSize = 75

// decodeFrequencyWhitelist keeps only the 75 most frequent text-like bytes,
// on the theory that real text concentrates its alphabet while binary noise
// spreads across the whole byte range.
func decodeFrequencyWhitelist(data []byte) string {
	var freq [256]int
	for _, c := range data {
		if isTextByte(c) {
			freq[c]++
		}
	}

	type byteCount struct {
		b byte
		n int
	}
	counts := make([]byteCount, 0, 256)
	for i, n := range freq {
		if n > 0 {
			counts = append(counts, byteCount{b: byte(i), n: n})
		}
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].n > counts[j].n })
	if len(counts) > frequencyWhitelistSize {
		counts = counts[:frequencyWhitelistSize]
	}

	var allowed [256]bool
	for _, c := range counts {
		allowed[c.b] = true
	}

	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if allowed[c] {
			b.WriteRune(rune(c))
		}
	}
	return b.String()
}

// decodeUnicodeRange decodes as UTF-8, dropping invalid sequences, and keeps
// a broad range of letter/number/punctuation runes.
func decodeUnicodeRange(data []byte) string {
	var b strings.Builder
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if isTextRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isTextRune(r rune) bool {
	if r == '\n' || r == '\t' || r == ' ' {
		return true
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func isTextByte(c byte) bool {
	return c == '\n' || c == '\t' || (c >= 0x20 && c < 0x7f) || c >= 0xc0
}
