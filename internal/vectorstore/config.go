package vectorstore

import "os"

// Config recognizes the options enumerated in spec §6: "VectorStore: {url,
// collection, vectorSize, metric}."
type Config struct {
	Host           string
	Port           int
	APIKey         string
	UseTLS         bool
	Collection     string
	VectorSize     int
	Metric         Metric
}

func DefaultConfig() *Config {
	return &Config{
		Host:       "localhost",
		Port:       6334,
		Collection: "docindex_chunks",
		VectorSize: 1536,
		Metric:     MetricCosine,
	}
}

func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("DOCINDEX_VECTORSTORE_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("DOCINDEX_VECTORSTORE_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("DOCINDEX_VECTORSTORE_COLLECTION"); v != "" {
		cfg.Collection = v
	}
	if v := os.Getenv("DOCINDEX_VECTORSTORE_TLS"); v == "true" || v == "1" {
		cfg.UseTLS = true
	}
}
