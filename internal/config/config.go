package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is read once from the environment at process start and passed into
// each adapter; nothing reads the environment after Load.
type Config struct {
	// HTTP Server
	Port string

	// Webhook handshake
	VerifyToken string

	// WhatsApp Cloud API
	WhatsAppToken         string
	WhatsAppPhoneNumberID string

	// Google Sheets
	SheetID      string
	GoogleSAJSON string

	// Local timezone for row dates and the default month label
	Timezone string

	// Backend selection ("sheets" or "memory"); empty means auto
	DataBackend string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8000"),
		VerifyToken: getEnv("VERIFY_TOKEN", "verify_me"),

		WhatsAppToken:         getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),

		SheetID:      getEnv("SHEET_ID", ""),
		GoogleSAJSON: getEnv("GOOGLE_SA_JSON", ""),

		Timezone: getEnv("TZ", "America/Mexico_City"),

		DataBackend: getEnv("DATA_BACKEND", ""),
	}
}

// Backend returns the effective ledger backend: the explicit selection when
// set, otherwise "sheets" when a spreadsheet is configured and "memory" as
// the graceful fallback.
func (c *Config) Backend() string {
	if c.DataBackend != "" {
		return c.DataBackend
	}
	if c.SheetID != "" {
		return "sheets"
	}
	return "memory"
}

// Location resolves the configured timezone name.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Validate validates the configuration and returns an error if invalid.
// Missing credentials are deliberately not errors here: the dependent
// adapters degrade to logged failures instead of blocking startup.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sheets"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.Backend() == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.Backend() == "sheets" && c.SheetID == "" {
		errors = append(errors, "SHEET_ID is required when using the sheets backend")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
