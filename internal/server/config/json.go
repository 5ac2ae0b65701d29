package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/identity/internal/flagx"
	"github.com/dmitrijs2005/identity/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted. Pointer
// booleans distinguish "false" from "absent".
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	StorageDriver                string         `json:"storage_driver"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	Issuer                       string         `json:"issuer"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	PasswordMinLength            int            `json:"password_min_length"`
	PasswordRequireUpper         *bool          `json:"password_require_upper"`
	PasswordRequireLower         *bool          `json:"password_require_lower"`
	PasswordRequireDigit         *bool          `json:"password_require_digit"`
	PasswordRequireSymbol        *bool          `json:"password_require_symbol"`
	PasswordHasher               string         `json:"password_hasher"`
	SessionPolicy                string         `json:"session_policy"`
	ClaimPolicy                  string         `json:"claim_policy"`
	RequiredClaim                string         `json:"required_claim"`
	AdminEmails                  []string       `json:"admin_emails"`
	ExtraClaimTypes              []string       `json:"extra_claim_types"`
	ExtraClaimValues             []string       `json:"extra_claim_values"`
	LoginRateLimit               float64        `json:"login_rate_limit"`
	LoginRateBurst               int            `json:"login_rate_burst"`
	LogLevel                     string         `json:"log_level"`
	OTLPEndpoint                 string         `json:"otlp_endpoint"`
}

// parseJson overlays values from the JSON file named by -c/-config (or
// $IDENTITY_CONFIG) onto config. Keys missing from the file keep their
// current value. An unreadable file or invalid JSON panics: the server must
// not start on a half-read configuration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.StorageDriver, c.StorageDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.Issuer, c.Issuer)
	setString(&config.PasswordHasher, c.PasswordHasher)
	setString(&config.SessionPolicy, c.SessionPolicy)
	setString(&config.ClaimPolicy, c.ClaimPolicy)
	setString(&config.RequiredClaim, c.RequiredClaim)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.OTLPEndpoint, c.OTLPEndpoint)

	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration > 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.PasswordMinLength > 0 {
		config.PasswordMinLength = c.PasswordMinLength
	}
	if c.LoginRateLimit > 0 {
		config.LoginRateLimit = c.LoginRateLimit
	}
	if c.LoginRateBurst > 0 {
		config.LoginRateBurst = c.LoginRateBurst
	}

	setBool(&config.PasswordRequireUpper, c.PasswordRequireUpper)
	setBool(&config.PasswordRequireLower, c.PasswordRequireLower)
	setBool(&config.PasswordRequireDigit, c.PasswordRequireDigit)
	setBool(&config.PasswordRequireSymbol, c.PasswordRequireSymbol)

	if c.AdminEmails != nil {
		config.AdminEmails = c.AdminEmails
	}
	if c.ExtraClaimTypes != nil {
		config.ExtraClaimTypes = c.ExtraClaimTypes
	}
	if c.ExtraClaimValues != nil {
		config.ExtraClaimValues = c.ExtraClaimValues
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
