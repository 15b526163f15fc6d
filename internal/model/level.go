package model

import (
	"strings"
	"sync"
)

// Severity values for the built-in levels. Custom levels slot in between.
const (
	LevelDebug    = 10
	LevelInfo     = 20
	LevelWarning  = 30
	LevelError    = 40
	LevelCritical = 50
)

// Level identifies how severe a log entry is. The five built-in levels are
// always available; additional levels can be registered at startup.
type Level struct {
	Name     string `json:"name"`
	Severity int    `json:"severity"`
	Icon     string `json:"icon,omitempty"`
}

var (
	levelMu  sync.RWMutex
	levelSet = map[string]Level{
		"DEBUG":    {Name: "DEBUG", Severity: LevelDebug},
		"INFO":     {Name: "INFO", Severity: LevelInfo},
		"WARNING":  {Name: "WARNING", Severity: LevelWarning},
		"ERROR":    {Name: "ERROR", Severity: LevelError},
		"CRITICAL": {Name: "CRITICAL", Severity: LevelCritical},
	}
)

// RegisterLevel adds a custom level. Registering a name that already exists
// (including the built-ins) returns false and leaves the registry unchanged.
func RegisterLevel(name string, severity int, icon string) bool {
	key := strings.ToUpper(strings.TrimSpace(name))
	if key == "" {
		return false
	}

	levelMu.Lock()
	defer levelMu.Unlock()

	if _, exists := levelSet[key]; exists {
		return false
	}
	levelSet[key] = Level{Name: key, Severity: severity, Icon: icon}
	return true
}

// ParseLevel resolves a level name. Unknown names map to INFO so that a
// malformed producer can never stall the pipeline.
func ParseLevel(name string) Level {
	key := strings.ToUpper(strings.TrimSpace(name))
	if key == "WARN" {
		key = "WARNING"
	}
	if key == "FATAL" {
		key = "CRITICAL"
	}

	levelMu.RLock()
	defer levelMu.RUnlock()

	if lvl, ok := levelSet[key]; ok {
		return lvl
	}
	return levelSet["INFO"]
}

func (l Level) String() string {
	return l.Name
}

// IsError reports whether the level is at or above ERROR severity.
func (l Level) IsError() bool {
	return l.Severity >= LevelError
}
