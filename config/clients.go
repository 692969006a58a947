package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/use-agent/rankwatch/serp"
	"gopkg.in/yaml.v3"
)

// ErrNoClients is returned when the clients file configures nothing to track.
var ErrNoClients = errors.New("no clients configured")

// Client is one tracked site and its keywords, in configured order.
type Client struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Domain   string   `json:"domain"`
	Keywords []string `json:"keywords"`
}

// File is the parsed clients file.
type File struct {
	Clients  []Client
	Scraping *ScrapingOverrides
}

// ScrapingOverrides are optional scraping settings from the clients file.
// They take precedence over environment defaults.
type ScrapingOverrides struct {
	ResultsPerPage       *int     `yaml:"results_per_page"`
	DelayBetweenRequests *float64 `yaml:"delay_between_requests"` // seconds
	Strategy             *string  `yaml:"strategy"`
	APIKey               *string  `yaml:"api_key"`
}

type clientEntry struct {
	Name     string   `yaml:"name"`
	Domain   string   `yaml:"domain"`
	Keywords []string `yaml:"keywords"`
}

type fileDoc struct {
	Clients  yaml.Node          `yaml:"clients"`
	Scraping *ScrapingOverrides `yaml:"scraping"`
}

// LoadClients reads and validates the clients file at path.
func LoadClients(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading clients file: %w", err)
	}
	return ParseClients(data)
}

// ParseClients parses a clients document. Client order follows the document.
func ParseClients(data []byte) (*File, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing clients file: %w", err)
	}
	if doc.Clients.Kind != yaml.MappingNode || len(doc.Clients.Content) == 0 {
		return nil, ErrNoClients
	}

	f := &File{Scraping: doc.Scraping}
	seen := make(map[string]struct{})
	for i := 0; i+1 < len(doc.Clients.Content); i += 2 {
		id := strings.TrimSpace(doc.Clients.Content[i].Value)
		var entry clientEntry
		if err := doc.Clients.Content[i+1].Decode(&entry); err != nil {
			return nil, fmt.Errorf("parsing client %q: %w", id, err)
		}
		c, err := entry.validate(id)
		if err != nil {
			return nil, fmt.Errorf("validating client %q: %w", id, err)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate client id %q", id)
		}
		seen[id] = struct{}{}
		f.Clients = append(f.Clients, c)
	}
	return f, nil
}

func (e clientEntry) validate(id string) (Client, error) {
	if id == "" {
		return Client{}, fmt.Errorf("client id is required")
	}
	if strings.TrimSpace(e.Domain) == "" {
		return Client{}, fmt.Errorf("domain is required")
	}
	domain := serp.NormalizeDomain(e.Domain)
	if domain == "" {
		return Client{}, fmt.Errorf("invalid domain %q", e.Domain)
	}
	keywords := make([]string, 0, len(e.Keywords))
	dedup := make(map[string]struct{}, len(e.Keywords))
	for _, kw := range e.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, ok := dedup[kw]; ok {
			continue
		}
		dedup[kw] = struct{}{}
		keywords = append(keywords, kw)
	}
	if len(keywords) == 0 {
		return Client{}, fmt.Errorf("at least one keyword is required")
	}
	name := strings.TrimSpace(e.Name)
	if name == "" {
		name = id
	}
	return Client{ID: id, Name: name, Domain: domain, Keywords: keywords}, nil
}

// Apply copies file-level scraping overrides onto cfg.
func (f *File) Apply(cfg *Config) {
	if f == nil || f.Scraping == nil {
		return
	}
	o := f.Scraping
	if o.ResultsPerPage != nil && *o.ResultsPerPage > 0 {
		cfg.Scraping.ResultsPerPage = *o.ResultsPerPage
	}
	if o.DelayBetweenRequests != nil && *o.DelayBetweenRequests >= 0 {
		cfg.Scraping.DelayBetweenRequests = time.Duration(*o.DelayBetweenRequests * float64(time.Second))
	}
	if o.Strategy != nil && *o.Strategy != "" {
		cfg.Scraping.Strategy = *o.Strategy
	}
	if o.APIKey != nil && *o.APIKey != "" {
		cfg.Scraping.APIKey = *o.APIKey
	}
}

// Find returns the client with the given id.
func (f *File) Find(id string) (Client, bool) {
	for _, c := range f.Clients {
		if c.ID == id {
			return c, true
		}
	}
	return Client{}, false
}
