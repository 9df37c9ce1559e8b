package config

import "time"

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(botToken string) *Slack {
	return &Slack{
		botToken:        botToken,
		channelCacheTTL: time.Minute,
	}
}

// NewEmbeddingForTest creates an Embedding config for testing purposes
func NewEmbeddingForTest(projectID, location string) *Embedding {
	return &Embedding{
		projectID: projectID,
		location:  location,
		dimension: 768,
	}
}

func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

func NewRepositoryForTest(backend, sqlitePath, embeddingStore string) *Repository {
	return &Repository{
		backend:        backend,
		sqlitePath:     sqlitePath,
		embeddingStore: embeddingStore,
	}
}

func NewNotifierForTest(hubspotToken string, webhook bool) *Notifier {
	return &Notifier{hubspotToken: hubspotToken, webhook: webhook}
}
