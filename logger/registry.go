package logger

import "sync"

// Named loggers let packages share one configured instance instead of each
// deriving their own from the global logger.
var (
	namedMu sync.RWMutex
	named   = make(map[string]*Logger)
)

// Register stores l under name for later retrieval with Get. Registering the
// same name again replaces the previous logger.
func Register(name string, l *Logger) {
	namedMu.Lock()
	named[name] = l
	namedMu.Unlock()
}

// Get returns the logger registered under name. Unregistered names fall back
// to a component-tagged child of the global logger, so call sites never need
// a nil check.
func Get(name string) *Logger {
	namedMu.RLock()
	l, ok := named[name]
	namedMu.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// RegisterDefaults seeds the registry with component-tagged children of the
// global logger, one per name. Call it once after Init.
func RegisterDefaults(names ...string) {
	for _, name := range names {
		Register(name, GetGlobalLogger().WithComponent(name))
	}
}
