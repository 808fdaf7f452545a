package model

import "time"

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Security   SecurityConfig
	Cache      CacheConfig
	Extraction ExtractionConfig
	Logging    LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port    int
	Host    string
	Timeout int // seconds
}

// StorageConfig holds temp and public storage configuration
type StorageConfig struct {
	DownloadDir     string // public store, served under /downloads
	TempDir         string // staging area for in-flight downloads
	MaxFileSizeMB   int
	CleanupInterval int // seconds between cleanup sweeps
	FileTTLSeconds  int // time to live for public files
	TempMaxAgeHours int // temp files older than this are swept
}

// APIKeyConfig describes one configured API key
type APIKeyConfig struct {
	Key               string
	Name              string
	Permissions       []string // extract, download
	RequestsPerMinute int
}

// SecurityConfig holds API key and abuse tracking configuration
type SecurityConfig struct {
	Keys              []APIKeyConfig
	RequestsPerMinute int // default per-key quota
	MaxFailedAttempts int // suspicious events within an hour before an IP block
	BlockDuration     time.Duration
}

// CacheConfig holds extraction result cache configuration
type CacheConfig struct {
	Enabled bool
	MaxSize int
	TTL     time.Duration
}

// ExtractionConfig holds orchestrator and backend configuration
type ExtractionConfig struct {
	Timeout            time.Duration // per metadata extraction call
	DownloadTimeout    time.Duration // per media transfer, 0 means unbounded
	APITimeout         time.Duration // per alternate API call
	MaxConcurrent      int           // bounded backend worker slots
	RetriesPerStrategy int           // transient-error retries within one strategy
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string
	FilePath string
}
