package relstore

import "os"

// Config recognizes the options enumerated in spec §6: "RelStore: {path,
// journalMode=WAL, synchronous=NORMAL, foreignKeys=ON}."
type Config struct {
	Path         string
	JournalMode  string
	Synchronous  string
	ForeignKeys  bool
}

func DefaultConfig() *Config {
	return &Config{
		Path:        "docindex.db",
		JournalMode: "WAL",
		Synchronous: "NORMAL",
		ForeignKeys: true,
	}
}

func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("DOCINDEX_RELSTORE_PATH"); v != "" {
		cfg.Path = v
	}
	if v := os.Getenv("DOCINDEX_RELSTORE_JOURNAL_MODE"); v != "" {
		cfg.JournalMode = v
	}
	if v := os.Getenv("DOCINDEX_RELSTORE_SYNCHRONOUS"); v != "" {
		cfg.Synchronous = v
	}
	if v := os.Getenv("DOCINDEX_RELSTORE_FOREIGN_KEYS"); v == "0" || v == "false" {
		cfg.ForeignKeys = false
	}
}
