package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"videoextract/internal/model"

	"github.com/joho/godotenv"
)

// Load loads configuration from environment variables
func Load() *model.Config {
	godotenv.Load()

	return &model.Config{
		Server: model.ServerConfig{
			Port:    getEnvInt("SERVER_PORT", 8080),
			Host:    getEnvStr("SERVER_HOST", "0.0.0.0"),
			Timeout: getEnvInt("SERVER_TIMEOUT", 300),
		},
		Storage: model.StorageConfig{
			DownloadDir:     getEnvStr("DOWNLOADS_PATH", "./downloads"),
			TempDir:         getEnvStr("TEMP_PATH", "./temp"),
			MaxFileSizeMB:   getEnvInt("MAX_FILE_SIZE_MB", 500),
			CleanupInterval: getEnvInt("STORAGE_CLEANUP_INTERVAL", 3600),
			FileTTLSeconds:  getEnvInt("FILE_TTL_SECONDS", 86400),
			TempMaxAgeHours: getEnvInt("TEMP_MAX_AGE_HOURS", 24),
		},
		Security: model.SecurityConfig{
			Keys:              parseAPIKeys(),
			RequestsPerMinute: getEnvInt("MAX_REQUESTS_PER_MINUTE", 60),
			MaxFailedAttempts: getEnvInt("MAX_FAILED_ATTEMPTS", 5),
			BlockDuration:     time.Duration(getEnvInt("BLOCK_DURATION_SECONDS", 3600)) * time.Second,
		},
		Cache: model.CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			MaxSize: getEnvInt("CACHE_MAX_SIZE", 1024),
			TTL:     time.Duration(getEnvInt("CACHE_TTL_SECONDS", 3600)) * time.Second,
		},
		Extraction: model.ExtractionConfig{
			Timeout:            time.Duration(getEnvInt("EXTRACTION_TIMEOUT_SECONDS", 30)) * time.Second,
			DownloadTimeout:    time.Duration(getEnvInt("DOWNLOAD_TIMEOUT_SECONDS", 3600)) * time.Second,
			APITimeout:         time.Duration(getEnvInt("API_TIMEOUT_SECONDS", 10)) * time.Second,
			MaxConcurrent:      getEnvInt("MAX_CONCURRENT_DOWNLOADS", 5),
			RetriesPerStrategy: getEnvInt("RETRIES_PER_STRATEGY", 2),
		},
		Logging: model.LoggingConfig{
			Level:    getEnvStr("LOG_LEVEL", "info"),
			FilePath: getEnvStr("LOG_FILE", "./log/app.log"),
		},
	}
}

// parseAPIKeys reads API_KEYS as semicolon-separated entries of the form
// key:perm1,perm2:requestsPerMinute. The permissions and limit fields are
// optional. A bare API_KEY env is accepted as a single full-access key.
func parseAPIKeys() []model.APIKeyConfig {
	defaultLimit := getEnvInt("MAX_REQUESTS_PER_MINUTE", 60)

	raw := getEnvStr("API_KEYS", "")
	if raw == "" {
		if single := getEnvStr("API_KEY", ""); single != "" {
			return []model.APIKeyConfig{{
				Key:               single,
				Name:              "default_key",
				Permissions:       []string{"extract", "download"},
				RequestsPerMinute: defaultLimit,
			}}
		}
		return nil
	}

	var keys []model.APIKeyConfig
	for i, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		fields := strings.Split(entry, ":")
		cfg := model.APIKeyConfig{
			Key:               fields[0],
			Name:              "key_" + strconv.Itoa(i+1),
			Permissions:       []string{"extract", "download"},
			RequestsPerMinute: defaultLimit,
		}
		if len(fields) > 1 && fields[1] != "" {
			var perms []string
			for _, p := range strings.Split(fields[1], ",") {
				p = strings.TrimSpace(p)
				if p == "extract" || p == "download" {
					perms = append(perms, p)
				}
			}
			if len(perms) > 0 {
				cfg.Permissions = perms
			}
		}
		if len(fields) > 2 {
			if limit, err := strconv.Atoi(fields[2]); err == nil && limit > 0 {
				cfg.RequestsPerMinute = limit
			}
		}
		keys = append(keys, cfg)
	}
	return keys
}

func getEnvStr(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	valStr := getEnvStr(key, "")
	if val, err := strconv.Atoi(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	valStr := strings.ToLower(getEnvStr(key, ""))
	if valStr == "true" || valStr == "1" || valStr == "yes" {
		return true
	}
	if valStr == "false" || valStr == "0" || valStr == "no" {
		return false
	}
	return defaultVal
}
