package chunker

// Chunk is an ordered slice of a document's text together with its
// metadata, the unit of embedding and retrieval (spec §3, Chunk entity and
// GLOSSARY). ChunkIndex, Content, Title, TitleChain and ContentHash are all
// produced by Split. The pointId is not a field here: the caller derives it
// once docId is known (pointId = H(docId, chunkIndex), spec §3).
type Chunk struct {
	ChunkIndex  int
	Content     string
	Title       string
	TitleChain  []string
	ContentHash string
}

// SplitOptions carries the optional document name used by strategies that
// want it for logging/debug purposes; spec §4.1 names it `{name?}`.
type SplitOptions struct {
	Name string
}
