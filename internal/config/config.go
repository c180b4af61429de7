// Package config is the configuration file of the ldmonitor CLI.
package config

import (
	"errors"
	"ldmonitor/internal/components/configutil"
	"ldmonitor/internal/components/telemetry"
	"ldmonitor/internal/credit"
	"ldmonitor/internal/trustlevel"
	"net/url"
	"os"
	"strings"
)

const FileName = "ldmonitor.json5"

type Config struct {
	// Cookies maps a host to the raw Cookie header a logged-in browser sends it,
	// ex. "linux.do": "_t=...; _forum_session=...".
	Cookies map[string]string `json:"cookies"`
	// DbPath is a sqlite file, or a libsql:// url.
	DbPath     string `json:"db_path"`
	ForumUrl   string `json:"forum_url"`
	ConnectUrl string `json:"connect_url"`
	CreditUrl  string `json:"credit_url"`
	// PagePath is the forum page identity is resolved from.
	PagePath  string `json:"page_path"`
	UserAgent string `json:"user_agent"`
	// LocalStorage stands in for the forum's browser local storage, ex.
	// "discourse_current_user": "{\"username\": \"...\"}".
	LocalStorage      map[string]string `json:"local_storage"`
	RequestsPerSecond float64           `json:"requests_per_second"`
	Telemetry         telemetry.Config  `json:"telemetry"`
}

func Defaults() Config {
	return Config{
		DbPath:            "ldmonitor.db",
		ForumUrl:          trustlevel.DefaultForumUrl,
		ConnectUrl:        trustlevel.DefaultConnectUrl,
		CreditUrl:         credit.DefaultBaseUrl,
		PagePath:          "/",
		RequestsPerSecond: 2,
	}
}

// Load reads the config at path, or searches for ldmonitor.json5 from the cwd
// upwards when path is empty. A missing file is not an error, the defaults are
// returned with an empty source.
func Load(path string) (cfg Config, source string, err error) {
	if path != "" {
		cfg, err = configutil.ReadConfig[Config](path)
		source = path
	} else {
		cfg, source, err = configutil.ReadRecursively[Config](FileName)
	}
	if errors.Is(err, os.ErrNotExist) {
		if path != "" {
			return Config{}, "", err
		}
		return Defaults(), "", nil
	}
	if err != nil {
		return Config{}, "", err
	}

	cfg, err = configutil.WithDefaults(cfg, Defaults())
	if err != nil {
		return Config{}, "", err
	}
	return cfg, source, nil
}

// PageUrl is the forum page identity is resolved from.
func (c Config) PageUrl() string {
	return strings.TrimSuffix(c.ForumUrl, "/") + "/" + strings.TrimPrefix(c.PagePath, "/")
}

// DiscourseHosts are the hosts json requests get the discourse headers for.
func (c Config) DiscourseHosts() []string {
	parsed, err := url.Parse(c.ForumUrl)
	if err != nil || parsed.Hostname() == "" {
		return []string{"linux.do"}
	}
	return []string{parsed.Hostname()}
}
