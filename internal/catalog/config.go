package catalog

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	// restPrefix is where a Supabase project serves PostgREST.
	restPrefix = "/rest/v1"

	defaultClientInfo = "gamestore/1.0.0"
	defaultTimeout    = 15 * time.Second
	defaultRetries    = 2
	defaultBackoff    = 100 * time.Millisecond
)

var schemaName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Config describes one Supabase project as seen through its REST API.
type Config struct {
	// ProjectURL is the project root, e.g. https://xyz.supabase.co. A URL
	// that already ends in /rest/v1 is accepted.
	ProjectURL string
	// AnonKey is sent both as apikey and as the bearer token, so requests
	// run under the anon role and row-level security applies.
	AnonKey string

	// Schema selects a non-public schema through the Accept-Profile and
	// Content-Profile headers. Empty means the project's default.
	Schema string
	// ClientInfo is reported in X-Client-Info.
	ClientInfo string

	Timeout     time.Duration // per logical call, retries included (default 15s)
	MaxRetries  int           // negative disables retries (default 2)
	BaseBackoff time.Duration // default 100ms

	HTTPClient *http.Client
}

// normalize applies defaults and trims the project URL down to its root.
func (c Config) normalize() Config {
	c.ProjectURL = strings.TrimRight(strings.TrimSpace(c.ProjectURL), "/")
	c.ProjectURL = strings.TrimSuffix(c.ProjectURL, restPrefix)

	if c.ClientInfo == "" {
		c.ClientInfo = defaultClientInfo
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	switch {
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	case c.MaxRetries == 0:
		c.MaxRetries = defaultRetries
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = defaultBackoff
	}
	return c
}

// validate reports every problem at once. Plain http is only allowed for
// loopback hosts (local Supabase and tests).
func (c Config) validate() error {
	var errs []error

	if c.ProjectURL == "" {
		errs = append(errs, errors.New("project URL is required"))
	} else if u, err := url.Parse(c.ProjectURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("project URL %q is not an absolute URL", c.ProjectURL))
	} else {
		switch {
		case u.Scheme == "https":
		case u.Scheme == "http" && isLoopback(u.Hostname()):
		default:
			errs = append(errs, fmt.Errorf("project URL %q must use https", c.ProjectURL))
		}
		if u.Path != "" || u.RawQuery != "" {
			errs = append(errs, fmt.Errorf("project URL %q must not carry a path or query", c.ProjectURL))
		}
	}

	if c.AnonKey == "" {
		errs = append(errs, errors.New("anon key is required"))
	}
	if c.Schema != "" && !schemaName.MatchString(c.Schema) {
		errs = append(errs, fmt.Errorf("schema %q is not a valid identifier", c.Schema))
	}

	return errors.Join(errs...)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// restBase is the PostgREST root every request path is joined onto.
func (c Config) restBase() string {
	return c.ProjectURL + restPrefix
}

// authorize sets the headers the gateway needs on every request. The
// schema profile header depends on the method: reads use Accept-Profile,
// writes and RPC calls use Content-Profile.
func (c Config) authorize(req *http.Request) {
	req.Header.Set("apikey", c.AnonKey)
	req.Header.Set("Authorization", "Bearer "+c.AnonKey)
	req.Header.Set("X-Client-Info", c.ClientInfo)

	if c.Schema == "" {
		return
	}
	switch req.Method {
	case http.MethodGet, http.MethodHead:
		req.Header.Set("Accept-Profile", c.Schema)
	default:
		req.Header.Set("Content-Profile", c.Schema)
	}
}

// newTransport clones the default transport. Every request goes to the
// same host, so the per-host idle pool is raised to match the total.
func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 64
	t.MaxIdleConnsPerHost = 64
	return t
}
