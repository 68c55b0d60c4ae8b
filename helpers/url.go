package helpers

import (
	"fmt"
	"net/url"
	"strings"
)

// WithQueryParam returns rawURL with key set to value. An existing key keeps its
// position and loses any repeated values; a new key is appended. All other
// parameters are left as they were.
func WithQueryParam(rawURL, key, value string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	pair := url.QueryEscape(key) + "=" + url.QueryEscape(value)

	var parts []string
	replaced := false
	if u.RawQuery != "" {
		for _, part := range strings.Split(u.RawQuery, "&") {
			name, _, _ := strings.Cut(part, "=")
			if decoded, err := url.QueryUnescape(name); err == nil && decoded == key {
				if !replaced {
					parts = append(parts, pair)
					replaced = true
				}
				continue
			}
			parts = append(parts, part)
		}
	}
	if !replaced {
		parts = append(parts, pair)
	}

	u.RawQuery = strings.Join(parts, "&")
	return u.String(), nil
}

// JoinPath appends path to the site root, trimming trailing slashes from root.
func JoinPath(root, path string) string {
	return strings.TrimRight(root, "/") + path
}

// PathAndQuery returns the path and query of rawURL, "/" when the path is empty.
func PathAndQuery(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path, nil
}
