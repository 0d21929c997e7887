package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/sitewatch/internal/domain"
)

type sitesFile struct {
	Sites []fileSite `yaml:"sites"`
}

// fileSite defaults enabled to true when the key is absent.
type fileSite struct {
	Name                string `yaml:"name"`
	URL                 string `yaml:"url"`
	Enabled             *bool  `yaml:"enabled"`
	AutoRefresh         bool   `yaml:"auto_refresh"`
	AutoRefreshInterval int    `yaml:"auto_refresh_interval"`
	APIKey              string `yaml:"api_key"`
	AccessToken         string `yaml:"access_token"`
	UserID              string `yaml:"user_id"`
}

func (f fileSite) site() domain.Site {
	return domain.Site{
		Name:                f.Name,
		URL:                 f.URL,
		Enabled:             f.Enabled == nil || *f.Enabled,
		AutoRefresh:         f.AutoRefresh,
		AutoRefreshInterval: f.AutoRefreshInterval,
		APIKey:              f.APIKey,
		AccessToken:         f.AccessToken,
		UserID:              f.UserID,
	}
}

// LoadSites reads and validates a YAML sites file. A missing file yields an
// empty list.
func LoadSites(path string) ([]domain.Site, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}
	return ParseSites(b)
}

func ParseSites(b []byte) ([]domain.Site, error) {
	var f sitesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse sites file: %w", err)
	}
	out := make([]domain.Site, 0, len(f.Sites))
	for _, fs := range f.Sites {
		out = append(out, fs.site())
	}
	if err := domain.ValidateSites(out); err != nil {
		return nil, err
	}
	return out, nil
}

// SiteSet is the current site list shared by the API, the batch runner and
// the auto-refresher.
type SiteSet struct {
	mu    sync.RWMutex
	sites []domain.Site
}

func NewSiteSet(sites []domain.Site) *SiteSet {
	return &SiteSet{sites: append([]domain.Site(nil), sites...)}
}

// Replace swaps the list after validating it.
func (s *SiteSet) Replace(sites []domain.Site) error {
	if err := domain.ValidateSites(sites); err != nil {
		return err
	}
	s.mu.Lock()
	s.sites = append([]domain.Site(nil), sites...)
	s.mu.Unlock()
	return nil
}

func (s *SiteSet) All() []domain.Site {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Site(nil), s.sites...)
}

func (s *SiteSet) Lookup(name string) (domain.Site, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, site := range s.sites {
		if site.Name == name {
			return site, true
		}
	}
	return domain.Site{}, false
}
