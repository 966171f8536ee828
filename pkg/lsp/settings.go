package lsp

import (
	"sync"

	"github.com/dipievil/drone-ci-ex-helper/pkg/validation"
	"github.com/goccy/go-json"
)

// settingsCache remembers the settings of each open document. Clients that cannot
// answer workspace/configuration get the global settings instead.
type settingsCache struct {
	mu     sync.Mutex
	global validation.Settings
	byURI  map[string]validation.Settings
}

func newSettingsCache() *settingsCache {
	return &settingsCache{
		global: validation.DefaultSettings(),
		byURI:  make(map[string]validation.Settings),
	}
}

// get returns cached settings for uri, calling fetch on a miss. A nil fetch means the
// client has no configuration capability.
func (c *settingsCache) get(uri string, fetch func(uri string) (validation.Settings, error)) validation.Settings {
	c.mu.Lock()
	if fetch == nil {
		defer c.mu.Unlock()
		return c.global
	}
	if s, ok := c.byURI[uri]; ok {
		c.mu.Unlock()
		return s
	}
	c.mu.Unlock()

	s, err := fetch(uri)
	if err != nil {
		log.Warningf("Using default settings for %s: %s", uri, err)
		return validation.DefaultSettings()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byURI[uri] = s
	return s
}

// reset drops every cached entry
func (c *settingsCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.byURI)
}

func (c *settingsCache) forget(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byURI, uri)
}

func (c *settingsCache) setGlobal(s validation.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.global = s
}

func (c *settingsCache) globalSettings() validation.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.global
}

// decodeSettings overlays a client configuration value on the defaults. A missing or
// null value yields the defaults.
func decodeSettings(raw any) (validation.Settings, error) {
	s := validation.DefaultSettings()
	if raw == nil {
		return s, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return validation.DefaultSettings(), err
	}
	return s, nil
}

// sectionOf extracts the droneCI section from a didChangeConfiguration payload
func sectionOf(settings any, section string) any {
	m, ok := settings.(map[string]any)
	if !ok {
		return nil
	}
	return m[section]
}
