//go:build cgo

package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/relay/content"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, config.StoreConfig{
		Driver:      "libsql",
		Path:        ":memory:",
		KeepPerChat: 4,
		FlushSize:   100,
		// Keep the ticker out of the way so tests control flushing.
		FlushInterval: time.Hour,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestAppendAndRecentRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	require.NoError(t, store.Append(ctx, 100,
		content.Text(content.RoleUser, "hello"),
		content.Text(content.RoleAssistant, "hi there"),
	))

	messages, err := store.Recent(ctx, 100, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, content.RoleUser, messages[0].Role)
	require.Equal(t, "hello", messages[0].Content[0].Text)
	require.Equal(t, content.RoleAssistant, messages[1].Role)

	other, err := store.Recent(ctx, 200, 10)
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestRecentHonorsLimitAndOrder(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, store.Append(ctx, 5, content.Text(content.RoleUser, text)))
	}

	messages, err := store.Recent(ctx, 5, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "two", messages[0].Content[0].Text)
	require.Equal(t, "three", messages[1].Content[0].Text)
}

func TestFlushTrimsToRetention(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Append(ctx, 7, content.Text(content.RoleUser, "turn")))
	}

	messages, err := store.Recent(ctx, 7, 100)
	require.NoError(t, err)
	require.Len(t, messages, 4)
}

func TestImageBlocksStoredAsPlaceholder(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	require.NoError(t, store.Append(ctx, 9, content.ImageWithCaption("data:image/png;base64,AAAA", "what is this")))

	messages, err := store.Recent(ctx, 9, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "what is this\n[image]", messages[0].Content[0].Text)
}

func TestClearChatDropsStagedAndStoredRows(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	require.NoError(t, store.Append(ctx, 11, content.Text(content.RoleUser, "keep staged")))
	require.NoError(t, store.Append(ctx, 12, content.Text(content.RoleUser, "other chat")))
	require.NoError(t, store.ClearChat(ctx, 11))

	messages, err := store.Recent(ctx, 11, 10)
	require.NoError(t, err)
	require.Empty(t, messages)

	messages, err = store.Recent(ctx, 12, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
}

func TestVIPRoster(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	require.NoError(t, store.AddVIP(ctx, 42))
	require.NoError(t, store.AddVIP(ctx, 42))
	require.NoError(t, store.AddVIP(ctx, 7))

	ids, err := store.VIPs(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{7, 42}, ids)

	require.NoError(t, store.RemoveVIP(ctx, 42))
	ids, err = store.VIPs(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{7}, ids)
}
