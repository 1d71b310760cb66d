package ratelimit

import (
	"regexp"
	"strings"
	"time"
)

var botPattern = regexp.MustCompile(`(?i)bot|crawler|spider|scraper|curl|wget|python-requests|scrapy|phantomjs|headless`)

// anomalyScoreLocked scores one arrival 0..100. Caller holds l.mu.
// The score is advisory: crossing the threshold reports suspicious
// activity to the audit stream but never blocks by itself.
func (l *Limiter) anomalyScoreLocked(req Request) int {
	score := 0

	ua := strings.TrimSpace(req.UserAgent)
	if len(ua) < 10 {
		score += 20
	}
	if botPattern.MatchString(ua) {
		score += 25
	}

	// Arrivals from this identity in the last minute.
	key := identityKey(req)
	cutoff := req.At.Add(-time.Minute)
	recent := l.arrivals[key][:0]
	for _, t := range l.arrivals[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, req.At)
	l.arrivals[key] = recent
	switch {
	case len(recent) > 1000:
		score += 30
	case len(recent) > 500:
		score += 15
	}

	switch {
	case inList(l.cfg.HighRiskCountries, req.Country):
		score += 30
	case inList(l.cfg.MediumRiskCountries, req.Country):
		score += 15
	}

	hour := req.At.Hour()
	if hour >= 22 || hour < 6 {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

func inList(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
