// Package config provides configuration management for the LacyLights Live server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the server.
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Database configuration
	DatabaseURL string

	// DMX configuration
	DMXUniverseCount    int
	DMXRefreshRate      int           // Hz (active)
	DMXIdleRate         int           // Hz (idle)
	DMXHighRateDuration time.Duration // Duration to stay in high rate after changes

	// Art-Net configuration
	ArtNetEnabled   bool
	ArtNetPort      int
	ArtNetBroadcast string // empty means detect from the network interfaces

	// MIDI configuration
	MIDIEnabled   bool
	MIDIInputPort string // substring of the input port name; empty picks the first port

	// Timeline playback
	AnimationUpdateRateHz int
	BeatsPerBar           int

	// Persistence
	SnapshotDebounce time.Duration

	// Fixture profiles overlaid on the built-in catalog
	FixtureProfilesPath string

	// CORS configuration
	CORSOrigin string
}

// Load loads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		// Server
		Port: getEnv("PORT", "4000"),
		Env:  getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "file:./dev.db"),

		// DMX
		DMXUniverseCount:    getEnvInt("DMX_UNIVERSE_COUNT", 1),
		DMXRefreshRate:      getEnvInt("DMX_REFRESH_RATE", 60),
		DMXIdleRate:         getEnvInt("DMX_IDLE_RATE", 1),
		DMXHighRateDuration: time.Duration(getEnvInt("DMX_HIGH_RATE_DURATION", 2000)) * time.Millisecond,

		// Art-Net
		ArtNetEnabled:   getEnvBool("ARTNET_ENABLED", true),
		ArtNetPort:      getEnvInt("ARTNET_PORT", 6454),
		ArtNetBroadcast: getEnv("ARTNET_BROADCAST", ""),

		// MIDI
		MIDIEnabled:   getEnvBool("MIDI_ENABLED", true),
		MIDIInputPort: getEnv("MIDI_INPUT_PORT", ""),

		// Timeline
		AnimationUpdateRateHz: getEnvInt("ANIMATION_UPDATE_RATE", 40),
		BeatsPerBar:           getEnvInt("BEATS_PER_BAR", 4),

		// Persistence
		SnapshotDebounce: time.Duration(getEnvInt("SNAPSHOT_DEBOUNCE", 500)) * time.Millisecond,

		// Fixtures
		FixtureProfilesPath: getEnv("FIXTURE_PROFILES_PATH", ""),

		// CORS
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default value.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
