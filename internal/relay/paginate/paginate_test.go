package paginate

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestFormatStripsDecorations(t *testing.T) {
	raw := "## Heading\n----------\nBody text\n\n\n\nMore text\n═════\n"
	clean := Format(raw)
	require.Equal(t, "Heading\n\nBody text\n\nMore text", clean)
}

func TestFormatIsIdempotent(t *testing.T) {
	inputs := []string{
		"## Title\n\n\n\ntext with *emphasis* kept\n---",
		"plain paragraph",
		"• bullet one\n• bullet two",
		"",
		"   \n\n\n   ",
	}
	for _, raw := range inputs {
		once := Format(raw)
		require.Equal(t, once, Format(once), "Format must be idempotent for %q", raw)
	}
}

func TestFormatKeepsInlineGlyphs(t *testing.T) {
	require.Equal(t, "*bold* stays", Format("*bold* stays"))
	require.Equal(t, "a - b", Format("a - b"))
}

func TestPaginateSinglePageUnchanged(t *testing.T) {
	p := New(50, 0)
	text := "short answer"
	pages := p.Paginate(text)
	require.Equal(t, []string{text}, pages)
}

func TestPaginateExactBoundary(t *testing.T) {
	p := New(10, 0)

	exact := strings.Repeat("a", 10)
	require.Len(t, p.Paginate(exact), 1)

	over := strings.Repeat("ab ", 3) + "abc" // 12 runes, no paragraph break
	pages := p.Paginate(over)
	require.Len(t, pages, 2)
	for _, page := range pages {
		require.LessOrEqual(t, utf8.RuneCountInString(page), 10)
		require.False(t, strings.HasPrefix(page, " "))
		require.False(t, strings.HasSuffix(page, " "))
	}
	// Word boundaries survive: every word is intact.
	require.Equal(t, strings.Fields(over), strings.Fields(strings.Join(pages, " ")))
}

func TestPaginatePacksParagraphsGreedily(t *testing.T) {
	p := New(25, 0)
	text := "first para\n\nsecond para\n\nthird one here\n\nfourth"
	pages := p.Paginate(text)
	require.Greater(t, len(pages), 1)
	for _, page := range pages {
		require.LessOrEqual(t, utf8.RuneCountInString(page), 25)
	}
	// Round trip: re-joining pages with the paragraph separator
	// reconstructs the text.
	require.Equal(t, text, strings.Join(pages, "\n\n"))
}

func TestPaginateRoundTripThroughFormat(t *testing.T) {
	p := New(40, 0)
	raw := "## Answer\n\nThe first paragraph of prose.\n\n\n\nSecond paragraph here.\n\nThird paragraph closes."
	clean := p.Format(raw)
	pages := p.Paginate(clean)
	require.Equal(t, clean, strings.Join(pages, "\n\n"))
}

func TestPaginateCacheStopsInsertingWhenFull(t *testing.T) {
	p := New(100, 2)
	p.Paginate("one")
	p.Paginate("two")
	p.Paginate("three")

	p.mu.Lock()
	size := len(p.paginateCache)
	p.mu.Unlock()
	require.Equal(t, 2, size)

	// Uncached inputs still paginate correctly.
	require.Equal(t, []string{"three"}, p.Paginate("three"))
}

func TestNavigateWithinBounds(t *testing.T) {
	store := NewStateStore()
	store.Put(1, 100, []string{"p0", "p1", "p2"})

	page, index, total, err := store.Navigate(1, 100, Next)
	require.NoError(t, err)
	require.Equal(t, "p1", page)
	require.Equal(t, 1, index)
	require.Equal(t, 3, total)

	_, _, _, err = store.Navigate(1, 100, Previous)
	require.NoError(t, err)

	_, index, _, err = store.Navigate(1, 100, Previous)
	require.ErrorIs(t, err, ErrNoFurtherPages)
	require.Equal(t, 0, index, "failed navigation leaves the cursor in place")

	for i := 0; i < 2; i++ {
		_, _, _, err = store.Navigate(1, 100, Next)
		require.NoError(t, err)
	}
	_, _, _, err = store.Navigate(1, 100, Next)
	require.ErrorIs(t, err, ErrNoFurtherPages)
}

func TestSinglePageResponsesNeedNoState(t *testing.T) {
	store := NewStateStore()
	store.Put(1, 100, []string{"only page"})
	require.Equal(t, 0, store.Len())
}

func TestClearChatDropsAllCursors(t *testing.T) {
	store := NewStateStore()
	store.Put(1, 100, []string{"a", "b"})
	store.Put(1, 101, []string{"a", "b"})
	store.Put(2, 200, []string{"a", "b"})

	require.Equal(t, 2, store.ClearChat(1))
	require.Equal(t, 1, store.Len())

	store.Delete(2, 200)
	require.Equal(t, 0, store.Len())
}
