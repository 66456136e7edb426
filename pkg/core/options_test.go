package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/core-nexus/ltm-service/pkg/core"
)

func TestStoreOptionsDefaults(t *testing.T) {
	c, err := core.NewClient(testConfig(t))
	assert.NoError(t, err)
	defer func() { _ = c.Close() }()

	m, err := c.Store(testCtx(), "plain content with no options")
	assert.NoError(t, err)
	assert.NotEmpty(t, m.Content)
	assert.Empty(t, m.UserID)
}

func TestStoreOptionsApplyUserAndMetadata(t *testing.T) {
	c, err := core.NewClient(testConfig(t))
	assert.NoError(t, err)
	defer func() { _ = c.Close() }()

	m, err := c.Store(testCtx(), "scoped content",
		core.WithStoreUserID("user-1"),
		core.WithStoreConversationID("conv-1"),
		core.WithStoreMetadata(map[string]interface{}{"source": "test"}),
	)
	assert.NoError(t, err)
	assert.Equal(t, "user-1", m.UserID)
	assert.Equal(t, "conv-1", m.ConversationID)
	assert.Equal(t, "test", m.Metadata["source"])
}

func TestStoreOptionsImportanceOverride(t *testing.T) {
	c, err := core.NewClient(testConfig(t))
	assert.NoError(t, err)
	defer func() { _ = c.Close() }()

	m, err := c.Store(testCtx(), "overridden importance", core.WithImportanceScore(0.9))
	assert.NoError(t, err)
	assert.Equal(t, 0.9, m.ImportanceScore)
}
