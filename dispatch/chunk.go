package dispatch

// Chunk splits text into contiguous rune slices of at most limit characters.
// The split is lossless: concatenating the chunks reproduces text exactly.
// Text within the limit comes back as a single chunk.
func Chunk(text string, limit int) []string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}
	chunks := make([]string, 0, (len(runes)+limit-1)/limit)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
