package quality

import (
	"strings"
	"unicode"

	"github.com/notedrop/seiri/internal/models"
)

// Corruption heuristic thresholds. Each triggered heuristic adds one point
// to the corruption score; >=3 is corrupted, 1-2 poor, 0 good.
const (
	singleCharRatioMax   = 0.25
	nonAlnumRatioMax     = 0.30
	recognizableRatioMin = 0.40
	spacedLetterMax      = 5
	artifactTokenMax     = 10
	noisePunctRatioMax   = 0.10
	shortRunMax          = 15
)

// punctAllowList are characters that appear in legitimate study text and do
// not count toward non-alphanumeric density.
const punctAllowList = `.,;:!?'"()[]-+=*/%$#&@_ ` + "\n\t\r"

// noisePunct are characters recognizers emit when they misread strokes.
const noisePunct = `~^|\{}<>` + "`"

// artifactTokens are short junk tokens recognizers commonly produce from
// stroke fragments.
var artifactTokens = map[string]bool{
	"rn": true, "ii": true, "ll": true, "vv": true,
	"cl": true, "li": true, "nn": true, "iii": true,
	"lll": true, "rnm": true,
}

// realShortWords are legitimate one- and two-letter English words that must
// not count as meaningless short tokens.
var realShortWords = map[string]bool{
	"a": true, "i": true, "am": true, "an": true, "as": true,
	"at": true, "be": true, "by": true, "do": true, "go": true,
	"he": true, "if": true, "in": true, "is": true, "it": true,
	"me": true, "my": true, "no": true, "of": true, "on": true,
	"or": true, "so": true, "to": true, "up": true, "us": true,
	"we": true,
}

// AssessText scores raw extracted text for recognizer corruption. The bucket
// routes prompt selection downstream; even corrupted text is still sent for
// classification with lowered expected confidence.
func (a *Assessor) AssessText(text string) models.TextQualityReport {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.TextQualityReport{Quality: models.TextGood}
	}

	words := strings.Fields(trimmed)
	var signals []string

	if ratio(countSingleChar(words), len(words)) > singleCharRatioMax {
		signals = append(signals, "excessive single-character tokens")
	}
	if nonAlnumRatio(trimmed) > nonAlnumRatioMax {
		signals = append(signals, "excessive non-alphanumeric characters")
	}
	if ratio(countRecognizable(words), len(words)) < recognizableRatioMin {
		signals = append(signals, "few recognizable words")
	}
	if countSpacedLetterRuns(words) > spacedLetterMax {
		signals = append(signals, "spaced-letter noise patterns")
	}
	if countArtifactTokens(words) > artifactTokenMax {
		signals = append(signals, "repeated recognizer artifact tokens")
	}
	if noisePunctRatio(trimmed) > noisePunctRatioMax {
		signals = append(signals, "noise punctuation density")
	}
	if countShortTokenRuns(words) > shortRunMax {
		signals = append(signals, "meaningless short-token runs")
	}

	report := models.TextQualityReport{Score: len(signals), Signals: signals}
	switch {
	case report.Score >= 3:
		report.Quality = models.TextCorrupted
	case report.Score >= 1:
		report.Quality = models.TextPoor
	default:
		report.Quality = models.TextGood
	}
	return report
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func countSingleChar(words []string) int {
	n := 0
	for _, w := range words {
		if len([]rune(w)) == 1 {
			n++
		}
	}
	return n
}

func nonAlnumRatio(text string) float64 {
	total, bad := 0, 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			continue
		}
		if strings.ContainsRune(punctAllowList, r) {
			continue
		}
		bad++
	}
	return ratio(bad, total)
}

func noisePunctRatio(text string) float64 {
	total, noisy := 0, 0
	for _, r := range text {
		total++
		if strings.ContainsRune(noisePunct, r) {
			noisy++
		}
	}
	return ratio(noisy, total)
}

// countRecognizable counts words of length >=3 whose characters are more
// than 70% alphabetic.
func countRecognizable(words []string) int {
	n := 0
	for _, w := range words {
		runes := []rune(w)
		if len(runes) < 3 {
			continue
		}
		alpha := 0
		for _, r := range runes {
			if unicode.IsLetter(r) {
				alpha++
			}
		}
		if float64(alpha)/float64(len(runes)) > 0.7 {
			n++
		}
	}
	return n
}

// countSpacedLetterRuns counts adjacent pairs of standalone letters, the
// "h e l l o" smear pattern.
func countSpacedLetterRuns(words []string) int {
	n := 0
	for i := 0; i+1 < len(words); i++ {
		if isSingleLetter(words[i]) && isSingleLetter(words[i+1]) {
			n++
		}
	}
	return n
}

func isSingleLetter(w string) bool {
	runes := []rune(w)
	return len(runes) == 1 && unicode.IsLetter(runes[0])
}

func countArtifactTokens(words []string) int {
	n := 0
	for _, w := range words {
		if artifactTokens[strings.ToLower(w)] {
			n++
		}
	}
	return n
}

// countShortTokenRuns counts adjacent pairs of short tokens that are not
// real words.
func countShortTokenRuns(words []string) int {
	n := 0
	for i := 0; i+1 < len(words); i++ {
		if isMeaninglessShort(words[i]) && isMeaninglessShort(words[i+1]) {
			n++
		}
	}
	return n
}

func isMeaninglessShort(w string) bool {
	if len([]rune(w)) > 2 {
		return false
	}
	return !realShortWords[strings.ToLower(w)]
}
