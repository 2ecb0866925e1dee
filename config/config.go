package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultPicturesSubDir   = "pictures"
	DefaultDisplaySubDir    = "display"
	DefaultThumbnailsSubDir = "thumbnails"
)

const (
	defaultPort                = "8080"
	defaultCORSOrigin          = "http://localhost:5173"
	defaultTransformQueueSize  = 200
	defaultNumTransformWorkers = 4
	defaultNumIdentifyWorkers  = 2
	defaultThumbnailMaxSize    = 300
	defaultWritebackDelayMs    = 2000
	defaultPictureCacheSize    = 256
	defaultRecentTagsSize      = 10
)

type Config struct {
	// bank root (sharded picture/display/thumbnail trees live under here)
	BankRoot string

	// database path
	DatabasePath string

	// search index root (picture and tag indexes live under here)
	IndexPath string

	// thumbnail generation settings
	ThumbnailMaxSize int

	// worker settings
	TransformQueueSize  int
	NumTransformWorkers int
	NumIdentifyWorkers  int

	// write-back settings
	WritebackDelay time.Duration

	// cache settings
	PictureCacheSize int
	RecentTagsSize   int

	// HTTP server settings
	Port       string
	CORSOrigin string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	root := getEnvOrDefault("BANK_ROOT", filepath.Join(".", "bank"))
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for bank root '%s': %w", root, err)
	}

	dbPath := getEnvOrDefault("DATABASE_PATH", filepath.Join(absRoot, "pictures.db"))

	indexPath := getEnvOrDefault("INDEX_PATH", filepath.Join(absRoot, "index"))
	absIndexPath, err := filepath.Abs(indexPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for index '%s': %w", indexPath, err)
	}

	thumbMaxSize := getEnvIntOrDefault("THUMBNAIL_MAX_SIZE", defaultThumbnailMaxSize)

	queueSize := getEnvIntOrDefault("TRANSFORM_QUEUE_SIZE", defaultTransformQueueSize)
	numTransform := getEnvIntOrDefault("NUM_TRANSFORM_WORKERS", defaultNumTransformWorkers)
	numIdentify := getEnvIntOrDefault("NUM_IDENTIFY_WORKERS", defaultNumIdentifyWorkers)

	writebackMs := getEnvIntOrDefault("WRITEBACK_DELAY_MS", defaultWritebackDelayMs)

	cacheSize := getEnvIntOrDefault("PICTURE_CACHE_SIZE", defaultPictureCacheSize)
	recentTags := getEnvIntOrDefault("RECENT_TAGS_SIZE", defaultRecentTagsSize)

	port := getEnvOrDefault("PORT", defaultPort)
	corsOrigin := getEnvOrDefault("CORS_ORIGIN", defaultCORSOrigin)

	cfg := Config{
		BankRoot:            absRoot,
		DatabasePath:        dbPath,
		IndexPath:           absIndexPath,
		ThumbnailMaxSize:    thumbMaxSize,
		TransformQueueSize:  queueSize,
		NumTransformWorkers: numTransform,
		NumIdentifyWorkers:  numIdentify,
		WritebackDelay:      time.Duration(writebackMs) * time.Millisecond,
		PictureCacheSize:    cacheSize,
		RecentTagsSize:      recentTags,
		Port:                port,
		CORSOrigin:          corsOrigin,
	}

	return cfg, nil
}
