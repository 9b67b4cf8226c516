package security

import (
	"strings"
	"time"

	sec "github.com/NordCoder/Gatehouse/internal/domain/security"
)

// Rule is one detection heuristic evaluated over a user's recent events.
// Events arrive newest first.
type Rule struct {
	Pattern  string
	Severity sec.Severity
	Action   sec.Action
	Match    func(now time.Time, events []sec.Event) bool
}

func defaultRules() []Rule {
	return []Rule{
		{
			Pattern:  "rapid_token_refresh",
			Severity: sec.SeverityHigh,
			Action:   sec.ActionRotateTokens,
			Match: func(now time.Time, events []sec.Event) bool {
				return countByType(events, sec.EventTokenRefresh, now.Add(-5*time.Minute)) > 10
			},
		},
		{
			Pattern:  "multiple_ip_addresses",
			Severity: sec.SeverityHigh,
			Action:   sec.ActionRotateTokens,
			Match: func(now time.Time, events []sec.Event) bool {
				return distinctIPs(events, now.Add(-30*time.Minute)) > 5
			},
		},
		{
			Pattern:  "impossible_travel",
			Severity: sec.SeverityCritical,
			Action:   sec.ActionRotateTokens,
			Match: func(now time.Time, events []sec.Event) bool {
				return distinctIPs(events, now.Add(-time.Hour),
					sec.EventLogin, sec.EventTokenRefresh) > 3
			},
		},
		{
			Pattern:  "frequent_failed_auth",
			Severity: sec.SeverityMedium,
			Action:   sec.ActionRequireVerification,
			Match: func(now time.Time, events []sec.Event) bool {
				return countByType(events, sec.EventAuthFailed, now.Add(-15*time.Minute)) > 5
			},
		},
		{
			Pattern:  "suspicious_user_agent",
			Severity: sec.SeverityMedium,
			Action:   sec.ActionNone,
			Match: func(_ time.Time, events []sec.Event) bool {
				if len(events) == 0 {
					return false
				}
				return suspiciousUserAgent(events[0].UserAgent)
			},
		},
	}
}

var suspiciousAgents = []string{
	"curl", "wget", "python-requests", "go-http-client", "scrapy", "sqlmap", "bot", "scanner",
}

func suspiciousUserAgent(ua string) bool {
	ua = strings.ToLower(strings.TrimSpace(ua))
	if ua == "" {
		return true
	}
	for _, marker := range suspiciousAgents {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}

func countByType(events []sec.Event, t sec.EventType, since time.Time) int {
	n := 0
	for _, ev := range events {
		if ev.Type == t && !ev.Timestamp.Before(since) {
			n++
		}
	}
	return n
}

// distinctIPs counts unique source addresses since the cutoff. With no type
// filter every event counts.
func distinctIPs(events []sec.Event, since time.Time, types ...sec.EventType) int {
	seen := make(map[string]struct{})
	for _, ev := range events {
		if ev.IP == "" || ev.Timestamp.Before(since) {
			continue
		}
		if len(types) > 0 && !typeIn(ev.Type, types) {
			continue
		}
		seen[ev.IP] = struct{}{}
	}
	return len(seen)
}

func typeIn(t sec.EventType, types []sec.EventType) bool {
	for _, candidate := range types {
		if t == candidate {
			return true
		}
	}
	return false
}
