package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopy-comms/feedvault/internal/core/domain"
)

func TestReindexCmd_EmbedsDegradedFeeds(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	// A feed stored without an embedding, as after a provider outage.
	require.NoError(t, testStore.CreateFeed(context.Background(), &domain.Feed{
		ID: "f-degraded", OwnerID: "test-owner", Name: "notes.txt",
		SourceKind:    domain.SourceKindPlainText,
		ProcessedText: "body",
		Version:       1,
		UpdatedAt:     time.Now().UTC(),
	}, nil))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"reindex"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Reindexed 1 of 1 feeds")

	feed, err := testStore.GetFeed(context.Background(), "f-degraded")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, feed.Embedding)
	assert.Equal(t, 1, feed.Version)

	// A second pass has nothing left to do.
	buf.Reset()
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "already carry an embedding")
}
