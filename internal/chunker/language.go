package chunker

import "unicode"

// scriptSampleSize bounds the detection scan; long documents settle the
// question well before this.
const scriptSampleSize = 4000

// DetectScript applies a majority-script heuristic: if more than half
// of the letter-like runes in the sample are CJK ideographs, the text
// is chunked in CJK mode.
func DetectScript(runes []rune) Mode {
	sample := runes
	if len(sample) > scriptSampleSize {
		sample = sample[:scriptSampleSize]
	}
	letters := 0
	cjk := 0
	for _, r := range sample {
		if isCJK(r) {
			cjk++
			letters++
		} else if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters > 0 && cjk*2 > letters {
		return ModeCJK
	}
	return ModeLatin
}

// isCJK matches the CJK ideograph blocks: Extension A, the unified
// block, and the compatibility block.
func isCJK(r rune) bool {
	return (r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0xF900 && r <= 0xFAFF)
}
