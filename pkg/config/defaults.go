package config

const (
	defaultStorageDriver = "sqlite"
	defaultAPIListen     = ":8000"

	defaultClientAPITarget = "http://localhost:8000"

	defaultGenerationModel = "gemini-2.5-flash"
	defaultEmbeddingModel  = "text-embedding-004"
	defaultModelTimeout    = 30

	defaultEmbeddingDimensions = 768

	defaultEventStreamBrokers = "localhost:9092"
	defaultEventStreamTopic   = "engram.turns"

	defaultHistoryWindow = 10
	defaultMemoryWindow  = 5
	defaultDomainWindow  = 5
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Model: ModelConfig{
			Generation:     defaultGenerationModel,
			Embedding:      defaultEmbeddingModel,
			TimeoutSeconds: defaultModelTimeout,
		},
		Embedding: EmbeddingConfig{
			Dimensions: defaultEmbeddingDimensions,
		},
		EventStream: EventStreamConfig{
			Enabled: false,
			Brokers: defaultEventStreamBrokers,
			Topic:   defaultEventStreamTopic,
		},
		Memory: MemoryConfig{
			HistoryWindow: defaultHistoryWindow,
			MemoryWindow:  defaultMemoryWindow,
			DomainWindow:  defaultDomainWindow,
		},
	}
}
