package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gatekeeper/internal/flagx"
	"github.com/dmitrijs2005/gatekeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Pointer fields distinguish keys
// that are absent from keys set to a zero value, so a partial file only
// overrides what it names.
type JsonConfig struct {
	EndpointAddrHTTP        *string         `json:"endpoint_addr_http"`
	DatabaseDSN             *string         `json:"database_dsn"`
	SecretKey               *string         `json:"secret_key"`
	SessionValidityDuration *timex.Duration `json:"session_validity_duration"`
	PasswordHashCost        *int            `json:"password_hash_cost"`
	LogFormat               *string         `json:"log_format"`
	SecureCookies           *bool           `json:"secure_cookies"`
	BootstrapUserPassword   *string         `json:"bootstrap_user_password"`
	BootstrapAdminPassword  *string         `json:"bootstrap_admin_password"`
}

// parseJson overlays values from the JSON file named by -c/-config onto
// config. Without the flag nothing is loaded. An unreadable file or invalid
// JSON panics: the process must not start on a half-read configuration.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFile(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setIf(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.SecretKey, c.SecretKey)
	if c.SessionValidityDuration != nil {
		config.SessionValidityDuration = c.SessionValidityDuration.Duration
	}
	setIf(&config.PasswordHashCost, c.PasswordHashCost)
	setIf(&config.LogFormat, c.LogFormat)
	setIf(&config.SecureCookies, c.SecureCookies)
	setIf(&config.BootstrapUserPassword, c.BootstrapUserPassword)
	setIf(&config.BootstrapAdminPassword, c.BootstrapAdminPassword)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
