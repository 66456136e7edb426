package core

// StoreOption configures a Store call using the functional options
// pattern, mirroring the teacher's Add/Search option style.
type StoreOption func(*StoreOptions)

// StoreOptions carries the optional parameters of a store_memory call.
type StoreOptions struct {
	// UserID and ConversationID support per-tenant and per-conversation
	// filtering on later queries.
	UserID         string
	ConversationID string

	// Metadata holds caller-supplied keys merged into the persisted
	// memory's Metadata map alongside the system-injected fields.
	Metadata map[string]interface{}

	// ImportanceScore, if non-nil, overrides the ADM Scoring Engine's
	// computed score rather than replacing it — a caller-asserted
	// importance always wins.
	ImportanceScore *float64

	// Providers restricts replication to this allow-list of provider
	// names; empty means every enabled provider.
	Providers []string

	// SkipDedup bypasses the Deduplication Service for this call
	// regardless of the configured mode, for callers that have already
	// deduplicated upstream.
	SkipDedup bool
}

// WithStoreUserID sets the owning user for a stored memory.
func WithStoreUserID(userID string) StoreOption {
	return func(o *StoreOptions) { o.UserID = userID }
}

// WithStoreConversationID sets the owning conversation for a stored memory.
func WithStoreConversationID(conversationID string) StoreOption {
	return func(o *StoreOptions) { o.ConversationID = conversationID }
}

// WithStoreMetadata merges metadata into the stored memory.
func WithStoreMetadata(metadata map[string]interface{}) StoreOption {
	return func(o *StoreOptions) { o.Metadata = metadata }
}

// WithImportanceScore overrides the ADM-computed importance score.
func WithImportanceScore(score float64) StoreOption {
	return func(o *StoreOptions) { o.ImportanceScore = &score }
}

// WithStoreProviders restricts replication to the named providers.
func WithStoreProviders(providers ...string) StoreOption {
	return func(o *StoreOptions) { o.Providers = providers }
}

// WithSkipDedup bypasses deduplication for this Store call.
func WithSkipDedup() StoreOption {
	return func(o *StoreOptions) { o.SkipDedup = true }
}

func applyStoreOptions(opts []StoreOption) *StoreOptions {
	options := &StoreOptions{Metadata: make(map[string]interface{})}
	for _, opt := range opts {
		opt(options)
	}
	if options.Metadata == nil {
		options.Metadata = make(map[string]interface{})
	}
	return options
}
