package config

import (
	"os"
	"time"

	"github.com/go-yaml/yaml"

	"github.com/campusworks/edubase/internal/domain"
)

type Config struct {
	Site   Site   `yaml:"site"`
	Server Server `yaml:"server"`
	Users  []User `yaml:"users"`
}

type Site struct {
	Name                 string `yaml:"name"`
	IdentityProviderURL  string `yaml:"identityProviderUrl"`
	RequireDeleteComment bool   `yaml:"requireDeleteComment"`
	EnlistBatchLimit     int    `yaml:"enlistBatchLimit"`
	ActionTokenTTL       string `yaml:"actionTokenTTL"`
}

type Server struct {
	Addr           string `yaml:"addr"`
	PostgresDsn    string `yaml:"postgresDsn"`
	RedisAddr      string `yaml:"redisAddr"`
	RedisDB        int    `yaml:"redisDB"`
	MemcachedAddr  string `yaml:"memcachedAddr"`
	ViewCacheTTL   string `yaml:"viewCacheTTL"`
	EnableTrace    bool   `yaml:"enableTrace"`
	TraceEndpoint  string `yaml:"traceEndpoint"`
}

type User struct {
	Token string `yaml:"token"`
	ID    int64  `yaml:"id"`
	Name  string `yaml:"name"`
	Admin bool   `yaml:"admin"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	return config, nil
}

// Settings converts the site section into domain settings, falling back
// to the defaults for anything unset.
func (c Config) Settings() domain.Settings {
	settings := domain.DefaultSettings()
	settings.RequireDeleteComment = c.Site.RequireDeleteComment
	if c.Site.EnlistBatchLimit > 0 {
		settings.EnlistBatchLimit = c.Site.EnlistBatchLimit
	}
	if c.Site.ActionTokenTTL != "" {
		if ttl, err := time.ParseDuration(c.Site.ActionTokenTTL); err == nil && ttl > 0 {
			settings.ActionTokenTTL = ttl
		}
	}
	return settings
}

// Credentials converts the users section for the auth and permission
// services.
func (c Config) Credentials() []domain.Credential {
	creds := make([]domain.Credential, 0, len(c.Users))
	for _, u := range c.Users {
		creds = append(creds, domain.Credential{
			Token:  u.Token,
			UserID: u.ID,
			Name:   u.Name,
			Admin:  u.Admin,
		})
	}
	return creds
}

// ViewCacheTTL parses the server's cache TTL, defaulting to a minute.
func (c Config) ViewCacheTTL() time.Duration {
	if c.Server.ViewCacheTTL != "" {
		if ttl, err := time.ParseDuration(c.Server.ViewCacheTTL); err == nil && ttl > 0 {
			return ttl
		}
	}
	return time.Minute
}
