package config

import (
	"sync"

	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/ports"
)

var _ ports.SettingsProvider = (*Provider)(nil)

// Provider hands out the current settings snapshot and accepts reloads.
type Provider struct {
	mu       sync.RWMutex
	settings domain.Settings
}

func NewProvider(s SettingsConfig) *Provider {
	return &Provider{settings: s.Snapshot()}
}

func (p *Provider) Settings() domain.Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.settings
	s.FeedURLs = append([]string(nil), s.FeedURLs...)
	return s
}

// Update swaps in new settings and reports whether the schedule moved.
func (p *Provider) Update(s SettingsConfig) (scheduleChanged bool) {
	next := s.Snapshot()
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.settings
	p.settings = next
	return prev.ScheduleTime != next.ScheduleTime || prev.Location.String() != next.Location.String()
}
