package config

import (
	"fmt"
	"time"
)

const DefaultScanInterval = time.Minute

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	CloudinaryURL  string
	AllowedOrigins []string
	// ScanInterval is the period of the scheduled-start scan. The match
	// window for a room's scheduled time is exactly one interval wide.
	ScanInterval time.Duration
}

func NewConfig(serverAddr, databaseDSN, cloudinaryURL string, allowedOrigins []string, scanInterval time.Duration) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if cloudinaryURL == "" {
		return nil, fmt.Errorf("cloudinary URL cannot be empty")
	}
	if scanInterval <= 0 {
		scanInterval = DefaultScanInterval
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		CloudinaryURL:  cloudinaryURL,
		AllowedOrigins: allowedOrigins,
		ScanInterval:   scanInterval,
	}, nil
}
