package rag

// excerptLength caps the citation span, in runes.
const excerptLength = 100

// BuildCitations maps ranked candidates 1:1 into citations, preserving rank
// order. No filtering happens here; the reranker's topK already decided what
// survives.
func BuildCitations(candidates []RetrievalCandidate) []Citation {
	citations := make([]Citation, 0, len(candidates))
	for _, c := range candidates {
		citations = append(citations, Citation{
			DocumentID: c.DocumentID,
			ChunkID:    c.ChunkID,
			URI:        c.URI,
			Title:      c.Title,
			Span:       excerpt(c.Text),
			Score:      c.Score,
		})
	}
	return citations
}

// excerpt truncates text to the excerpt cap with a trailing ellipsis marker.
func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLength {
		return text
	}
	return string(runes[:excerptLength]) + "..."
}
