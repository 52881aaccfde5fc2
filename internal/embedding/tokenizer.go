package embedding

import (
	"strings"
	"unicode"
)

// BERT special token IDs.
const (
	tokenCLS = 101
	tokenSEP = 102
)

// tokenizer produces the three BERT-style input slices (input_ids,
// attention_mask, token_type_ids), padded to maxTokens.
type tokenizer interface {
	tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// hashTokenizer is a word-level tokenizer with hash-derived token IDs. It is
// not vocabulary-accurate, but it is deterministic, dependency-free, and
// good enough for similarity ranking of study notes: identical phrases map
// to identical ID sequences.
type hashTokenizer struct {
	vocabSize int
}

func newHashTokenizer() *hashTokenizer {
	return &hashTokenizer{vocabSize: 30000}
}

func (t *hashTokenizer) tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = tokenCLS
	attentionMask[0] = 1

	pos := 1
	for _, word := range strings.Fields(text) {
		if pos >= maxTokens-1 {
			break
		}
		// Case and trailing punctuation differences should not change
		// the token stream.
		word = strings.TrimFunc(strings.ToLower(word), unicode.IsPunct)
		if word == "" {
			continue
		}
		inputIDs[pos] = int64(hashWord(word) % t.vocabSize)
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = tokenSEP
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// hashWord is a deterministic non-negative string hash.
func hashWord(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
