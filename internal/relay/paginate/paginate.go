// Package paginate turns arbitrarily long answers into a bounded
// sequence of pages and tracks per-message pagination cursors.
package paginate

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// DefaultMaxPageLen is the page size in runes.
const DefaultMaxPageLen = 3500

// DefaultCacheSize bounds the format/paginate memo caches.
const DefaultCacheSize = 256

// Paginator formats and splits answers. Identical inputs are memoized
// up to the cache cap; once full the cache stops inserting.
type Paginator struct {
	maxPageLen int

	mu            sync.Mutex
	cacheSize     int
	formatCache   map[string]string
	paginateCache map[string][]string
}

// New builds a paginator. Non-positive arguments use the defaults.
func New(maxPageLen, cacheSize int) *Paginator {
	if maxPageLen <= 0 {
		maxPageLen = DefaultMaxPageLen
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &Paginator{
		maxPageLen:    maxPageLen,
		cacheSize:     cacheSize,
		formatCache:   make(map[string]string),
		paginateCache: make(map[string][]string),
	}
}

// Format cleans raw model output, memoized by input.
func (p *Paginator) Format(raw string) string {
	p.mu.Lock()
	if cached, ok := p.formatCache[raw]; ok {
		p.mu.Unlock()
		return cached
	}
	p.mu.Unlock()

	clean := Format(raw)

	p.mu.Lock()
	if len(p.formatCache) < p.cacheSize {
		p.formatCache[raw] = clean
	}
	p.mu.Unlock()
	return clean
}

// Paginate splits clean text into pages of at most the configured
// length. Text that fits is returned unchanged as a single page.
func (p *Paginator) Paginate(text string) []string {
	p.mu.Lock()
	if cached, ok := p.paginateCache[text]; ok {
		p.mu.Unlock()
		return cached
	}
	p.mu.Unlock()

	pages := split(text, p.maxPageLen)

	p.mu.Lock()
	if len(p.paginateCache) < p.cacheSize {
		p.paginateCache[text] = pages
	}
	p.mu.Unlock()
	return pages
}

// split packs paragraphs greedily into pages, falling back to packing
// by words when a single paragraph overflows the limit on its own.
// Page boundaries never land inside a word.
func split(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	paragraphs := strings.Split(text, "\n\n")
	pages := make([]string, 0, 2)
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			pages = append(pages, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	appendChunk := func(chunk string, sep string) {
		chunkLen := utf8.RuneCountInString(chunk)
		sepLen := utf8.RuneCountInString(sep)
		if currentLen > 0 && currentLen+sepLen+chunkLen > limit {
			flush()
		}
		if currentLen > 0 {
			current.WriteString(sep)
			currentLen += sepLen
		}
		current.WriteString(chunk)
		currentLen += chunkLen
	}

	for _, paragraph := range paragraphs {
		if utf8.RuneCountInString(paragraph) <= limit {
			appendChunk(paragraph, "\n\n")
			continue
		}
		for _, word := range strings.Fields(paragraph) {
			for utf8.RuneCountInString(word) > limit {
				// A single word longer than a page cannot keep the
				// page bound without a hard split.
				runes := []rune(word)
				appendChunk(string(runes[:limit]), " ")
				word = string(runes[limit:])
				flush()
			}
			appendChunk(word, " ")
		}
	}
	flush()

	if len(pages) == 0 {
		return []string{""}
	}
	return pages
}
