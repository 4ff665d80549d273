package indexer

import (
	"strings"
	"testing"
)

func TestChunkText_SmallTextSingleChunk(t *testing.T) {
	text := "The office wifi password rotates every quarter. Ask IT for the current one."

	chunks := ChunkText(text, 400, 50)
	if len(chunks) != 1 {
		t.Fatalf("ChunkText() returned %d chunks, want 1", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("ChunkText() = %q, want original text", chunks[0])
	}
}

func TestChunkText_Empty(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty string", text: ""},
		{name: "whitespace only", text: "   \n\t  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if chunks := ChunkText(tt.text, 400, 50); len(chunks) != 0 {
				t.Errorf("ChunkText() = %d chunks, want 0", len(chunks))
			}
		})
	}
}

func TestChunkText_Deterministic(t *testing.T) {
	text := strings.Repeat("Every network device must be registered with IT before use. ", 40)

	first := ChunkText(text, 100, 20)
	second := ChunkText(text, 100, 20)

	if len(first) != len(second) {
		t.Fatalf("ChunkText() not deterministic: %d vs %d chunks", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("ChunkText() chunk[%d] differs between runs", i)
		}
	}
}

func TestChunkText_RespectsSentenceBoundaries(t *testing.T) {
	var sentences []string
	for i := 0; i < 30; i++ {
		sentences = append(sentences, "Sentence number "+strings.Repeat("x", 20)+" ends here.")
	}
	text := strings.Join(sentences, " ")

	chunks := ChunkText(text, 60, 0)

	if len(chunks) < 2 {
		t.Fatalf("ChunkText() returned %d chunks, want several", len(chunks))
	}
	for i, chunk := range chunks {
		if !strings.HasSuffix(chunk, ".") {
			t.Errorf("chunk[%d] does not end at a sentence boundary: %q", i, chunk)
		}
	}
}

func TestChunkText_CoversAllSentences(t *testing.T) {
	var sentences []string
	for i := 0; i < 25; i++ {
		sentences = append(sentences, "Fact "+string(rune('A'+i))+" is documented here with enough words to count.")
	}
	text := strings.Join(sentences, " ")

	chunks := ChunkText(text, 50, 10)
	joined := strings.Join(chunks, " ")

	for _, sentence := range sentences {
		if !strings.Contains(joined, sentence) {
			t.Errorf("sentence %q missing from chunk output", sentence)
		}
	}
}

func TestChunkText_OverlapSharesTrailingWords(t *testing.T) {
	var sentences []string
	for i := 0; i < 20; i++ {
		sentences = append(sentences, "Numbered sentence "+string(rune('a'+i))+" carries enough words to matter in chunking.")
	}
	text := strings.Join(sentences, " ")

	chunks := ChunkText(text, 60, 15)
	if len(chunks) < 2 {
		t.Fatalf("ChunkText() returned %d chunks, want at least 2", len(chunks))
	}

	// Each chunk after the first starts with words repeated from the tail of
	// the previous chunk.
	for i := 1; i < len(chunks); i++ {
		words := strings.Fields(chunks[i])
		head := strings.Join(words[:3], " ")
		if !strings.Contains(chunks[i-1], head) {
			t.Errorf("chunk[%d] head %q not found in chunk[%d]", i, head, i-1)
		}
	}
}

func TestChunkText_NoOverlapWhenZero(t *testing.T) {
	var sentences []string
	for i := 0; i < 10; i++ {
		sentences = append(sentences, "Unique sentence marker "+string(rune('a'+i))+" with a deliberately padded ending clause.")
	}
	text := strings.Join(sentences, " ")

	chunks := ChunkText(text, 40, 0)

	total := 0
	for _, chunk := range chunks {
		total += len(strings.Fields(chunk))
	}
	if total != len(strings.Fields(text)) {
		t.Errorf("with zero overlap, total words = %d, want %d", total, len(strings.Fields(text)))
	}
}

func TestChunkText_OversizedSentenceKeptWhole(t *testing.T) {
	long := "This single sentence runs far beyond the chunk budget " + strings.Repeat("and keeps going ", 40) + "until it finally stops."

	chunks := ChunkText(long, 20, 5)
	if len(chunks) != 1 {
		t.Fatalf("ChunkText() split an unbreakable sentence into %d chunks", len(chunks))
	}
}

func TestChunkText_TinyTrailingChunkMerged(t *testing.T) {
	text := strings.Repeat("A solid sentence with plenty of words to fill the budget nicely. ", 8) + "End."

	chunks := ChunkText(text, 40, 0)
	for i, chunk := range chunks {
		if len(chunk) < minChunkChars && len(chunks) > 1 {
			t.Errorf("chunk[%d] is %d chars, below the %d floor", i, len(chunk), minChunkChars)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "periods",
			text: "First sentence. Second sentence. Third.",
			want: []string{"First sentence.", "Second sentence.", "Third."},
		},
		{
			name: "mixed punctuation",
			text: "Really? Yes! Good.",
			want: []string{"Really?", "Yes!", "Good."},
		},
		{
			name: "newlines split",
			text: "Line one\nLine two",
			want: []string{"Line one", "Line two"},
		},
		{
			name: "decimal not split",
			text: "The voltage is 3.3V on that pin.",
			want: []string{"The voltage is 3.3V on that pin."},
		},
		{
			name: "no terminal punctuation",
			text: "trailing fragment without period",
			want: []string{"trailing fragment without period"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("splitSentences() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("splitSentences()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}

	for _, tt := range tests {
		if got := estimateTokens(tt.text); got != tt.want {
			t.Errorf("estimateTokens(%d chars) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}
