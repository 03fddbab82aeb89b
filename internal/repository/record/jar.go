package record

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
)

type jarStore struct {
	jar  http.CookieJar
	site *url.URL
}

// NewJar returns an in-process Store that behaves like the browser's cookie storage for site:
// path "/", SameSite=Lax, Secure iff site is HTTPS, expiry enforced by the jar.
func NewJar(site string) (Store, error) {
	u, err := url.Parse(site)
	if err != nil {
		return nil, fmt.Errorf("record jar: parse site: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("record jar: site %q has no host", site)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("record jar: %w", err)
	}
	root := *u
	root.Path = "/"
	root.RawQuery = ""
	root.Fragment = ""
	return &jarStore{jar: jar, site: &root}, nil
}

func (s *jarStore) Get(_ context.Context, key string) (string, bool, error) {
	for _, c := range s.jar.Cookies(s.site) {
		if c.Name == key {
			return c.Value, true, nil
		}
	}
	return "", false, nil
}

func (s *jarStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c := s.cookie(key, value)
	if ttl > 0 {
		c.Expires = time.Now().Add(ttl)
		c.MaxAge = int(ttl.Seconds())
	}
	s.jar.SetCookies(s.site, []*http.Cookie{c})
	return nil
}

func (s *jarStore) Delete(_ context.Context, key string) error {
	c := s.cookie(key, "")
	c.MaxAge = -1
	s.jar.SetCookies(s.site, []*http.Cookie{c})
	return nil
}

func (s *jarStore) cookie(key, value string) *http.Cookie {
	return &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   s.site.Scheme == "https",
	}
}
