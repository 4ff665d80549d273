package indexer

import (
	"strings"
	"unicode"
)

const (
	// minChunkChars is the floor below which a trailing chunk is folded into
	// its predecessor instead of being emitted on its own.
	minChunkChars = 50

	// charsPerToken is the estimate used to bound chunk size without a
	// tokenizer. Close enough for English prose.
	charsPerToken = 4
)

// estimateTokens approximates the token count of a text.
func estimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// ChunkText splits text into chunks of roughly maxTokens tokens, breaking at
// sentence boundaries. Consecutive chunks share roughly overlapTokens tokens
// of trailing context so that a fact straddling a boundary stays retrievable.
//
// A single sentence longer than maxTokens becomes its own oversized chunk
// rather than being cut mid-sentence.
func ChunkText(text string, maxTokens, overlapTokens int) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.TrimSpace(strings.Join(current, " ")))
		current = nil
		currentTokens = 0
	}

	for _, sentence := range sentences {
		tokens := estimateTokens(sentence)

		if currentTokens > 0 && currentTokens+tokens > maxTokens {
			overlap := tailWords(strings.Join(current, " "), overlapTokens)
			flush()
			if overlap != "" {
				current = append(current, overlap)
				currentTokens = estimateTokens(overlap)
			}
		}

		current = append(current, sentence)
		currentTokens += tokens
	}
	flush()

	// Fold a tiny trailing chunk into its predecessor.
	if n := len(chunks); n > 1 && len(chunks[n-1]) < minChunkChars {
		chunks[n-2] = chunks[n-2] + " " + chunks[n-1]
		chunks = chunks[:n-1]
	}

	return chunks
}

// splitSentences breaks text into sentences on terminal punctuation followed
// by whitespace. Newlines also terminate sentences so list items and short
// lines become their own units.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\n' {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
			continue
		}

		b.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			next := rune(' ')
			if i+1 < len(runes) {
				next = runes[i+1]
			}
			if unicode.IsSpace(next) {
				if s := strings.TrimSpace(b.String()); s != "" {
					sentences = append(sentences, s)
				}
				b.Reset()
			}
		}
	}

	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// tailWords returns the trailing words of text amounting to roughly the given
// token budget.
func tailWords(text string, tokens int) string {
	if tokens <= 0 {
		return ""
	}

	words := strings.Fields(text)
	budget := tokens * charsPerToken

	var size int
	start := len(words)
	for start > 0 {
		next := size + len(words[start-1]) + 1
		if next > budget {
			break
		}
		size = next
		start--
	}

	if start == len(words) {
		return ""
	}
	return strings.Join(words[start:], " ")
}
