package domain

import "time"

// CollectionConfig binds a collection name to its embedding model and vector
// dimension. Created once at collection creation and immutable afterwards;
// the dimension must equal the output length of the bound embedding model.
type CollectionConfig struct {
	Name           string    `json:"name"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	CreatedAt      time.Time `json:"created_at"`
}
