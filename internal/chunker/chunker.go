// Package chunker splits a document's text into ordered chunks per spec
// §4.1 (component C1). Splitting is deterministic: identical input and
// config always produce byte-identical output, so callers may rely on
// pointId = H(docId, chunkIndex) remaining stable across re-ingestion.
package chunker

import (
	"strings"

	"github.com/example/docindex/internal/logging"
)

// Service performs document splitting according to a configured Strategy.
type Service struct {
	config *Config
	logger logging.Logger
}

// NewService creates a chunking service bound to cfg.
func NewService(cfg *Config, logger logging.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Service{config: cfg, logger: logger.WithComponent("chunker")}
}

// Split implements the C1 contract: split(text, {name?}) → ordered
// sequence of {chunkIndex, content, title?, titleChain?, contentHash}.
func (s *Service) Split(text string, opts SplitOptions) []Chunk {
	s.logger.Debug("splitting document", "strategy", string(s.config.Strategy), "name", opts.Name)

	var raw []headingSection
	switch s.config.Strategy {
	case StrategyBySize:
		raw = sectionsFromFlat(splitBySize(text, s.config.MaxChunkSize, s.config.Overlap))
	case StrategyBySentences:
		raw = sectionsFromFlat(groupBySize(splitSentences(text), s.config.MaxChunkSize, s.config.Overlap))
	case StrategyByParagraphs:
		raw = sectionsFromFlat(groupBySize(splitParagraphs(text), s.config.MaxChunkSize, s.config.Overlap))
	case StrategyByHeadings:
		raw = s.splitByHeadings(text)
	default:
		raw = sectionsFromFlat(groupBySize(splitParagraphs(text), s.config.MaxChunkSize, s.config.Overlap))
	}

	return s.toChunks(raw)
}

// sectionsFromFlat adapts a flat list of chunk bodies (no heading context)
// into the common headingSection shape so toChunks has a single assembly
// path regardless of strategy.
func sectionsFromFlat(bodies []string) []headingSection {
	sections := make([]headingSection, 0, len(bodies))
	for _, b := range bodies {
		sections = append(sections, headingSection{body: b})
	}
	return sections
}

// splitByHeadings implements spec §4.1's by_headings policy: one chunk per
// heading-delimited section, with any section exceeding maxChunkSize
// recursively split by size within the heading's title context.
func (s *Service) splitByHeadings(text string) []headingSection {
	sections := splitHeadings(text)

	var out []headingSection
	for _, sec := range sections {
		if len([]rune(sec.body)) <= s.config.MaxChunkSize {
			out = append(out, sec)
			continue
		}
		for _, piece := range splitBySize(sec.body, s.config.MaxChunkSize, s.config.Overlap) {
			out = append(out, headingSection{
				title:      sec.title,
				titleChain: sec.titleChain,
				body:       piece,
			})
		}
	}
	return out
}

// toChunks drops empty/whitespace-only sections and stamps chunkIndex and
// contentHash, per spec §4.1.
func (s *Service) toChunks(sections []headingSection) []Chunk {
	chunks := make([]Chunk, 0, len(sections))
	idx := 0
	for _, sec := range sections {
		trimmed := strings.TrimSpace(sec.body)
		if trimmed == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			ChunkIndex:  idx,
			Content:     trimmed,
			Title:       sec.title,
			TitleChain:  sec.titleChain,
			ContentHash: contentHash(trimmed),
		})
		idx++
	}
	return chunks
}
