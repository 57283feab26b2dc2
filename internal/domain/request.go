package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OutboundRequest describes one HTTP call issued through the bridge. Tag is chosen
// by the issuer and copied unchanged onto the resulting event.
type OutboundRequest struct {
	Tag           string            `json:"tag"`
	Scheme        string            `json:"scheme,omitempty"`
	Host          string            `json:"host"`
	Path          string            `json:"path"`
	Method        string            `json:"method,omitempty"`
	Query         url.Values        `json:"query,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          json.RawMessage   `json:"body,omitempty"`
	TimeoutMS     int64             `json:"timeout_ms,omitempty"`
	Authenticated bool              `json:"authenticated,omitempty"`
}

func (r OutboundRequest) Timeout() time.Duration {
	if r.TimeoutMS <= 0 {
		return 0
	}
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

func (r OutboundRequest) HTTPMethod() string {
	if strings.TrimSpace(r.Method) == "" {
		return http.MethodGet
	}
	return strings.ToUpper(strings.TrimSpace(r.Method))
}

func (r OutboundRequest) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return errors.New("request host is required")
	}
	if r.Path != "" && !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("request path %q must start with /", r.Path)
	}
	scheme := r.scheme()
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("request scheme must be http or https, got %q", scheme)
	}
	return nil
}

// URL joins scheme, host, path and query. Query values already present in Path
// are kept and merged with Query.
func (r OutboundRequest) URL() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	base, err := url.Parse(r.scheme() + "://" + strings.TrimSpace(r.Host))
	if err != nil {
		return "", fmt.Errorf("parse request host: %w", err)
	}
	if base.Host == "" {
		return "", errors.New("request host is required")
	}

	endpoint, err := base.Parse(r.Path)
	if err != nil {
		return "", fmt.Errorf("parse request path: %w", err)
	}

	if len(r.Query) > 0 {
		values := endpoint.Query()
		for key, vals := range r.Query {
			for _, v := range vals {
				values.Add(key, v)
			}
		}
		endpoint.RawQuery = values.Encode()
	}

	return endpoint.String(), nil
}

// Targets reports whether the request goes to scheme://host.
func (r OutboundRequest) Targets(scheme, host string) bool {
	return host != "" &&
		r.scheme() == strings.ToLower(strings.TrimSpace(scheme)) &&
		strings.EqualFold(strings.TrimSpace(r.Host), strings.TrimSpace(host))
}

func (r OutboundRequest) scheme() string {
	if strings.TrimSpace(r.Scheme) == "" {
		return "https"
	}
	return strings.ToLower(strings.TrimSpace(r.Scheme))
}

// SplitBaseURL turns "https://api.twitch.tv" into its scheme and host so configured
// base URLs can be expressed as OutboundRequests.
func SplitBaseURL(raw string) (scheme string, host string, err error) {
	if raw == "" {
		return "", "", errors.New("base url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", "", errors.New("base url must use http or https")
	}
	if parsed.Host == "" {
		return "", "", errors.New("base url host is required")
	}
	return parsed.Scheme, parsed.Host, nil
}
