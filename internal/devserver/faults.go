package devserver

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// Fault makes matching requests fail.
type Fault struct {
	Method     string        `json:"method" yaml:"method"`
	Path       string        `json:"path" yaml:"path"`
	StatusCode int           `json:"status_code" yaml:"status_code"`
	Message    string        `json:"message,omitempty" yaml:"message,omitempty"`
	Delay      time.Duration `json:"delay,omitempty" yaml:"delay,omitempty"`
	// Times limits how often the fault fires; 0 means until removed.
	Times int `json:"times,omitempty" yaml:"times,omitempty"`
}

func (f Fault) key() string {
	method := strings.ToUpper(f.Method)
	if method == "" {
		method = "*"
	}
	return method + " " + strings.TrimRight(f.Path, "/")
}

// matches reports whether the fault applies to method and path. A fault
// path matches itself and everything below it.
func (f Fault) matches(method, path string) bool {
	if f.Method != "" && f.Method != "*" && !strings.EqualFold(f.Method, method) {
		return false
	}
	prefix := strings.TrimRight(f.Path, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// FaultRegistry manages injected faults.
type FaultRegistry struct {
	mu     sync.Mutex
	faults map[string]*Fault
}

// NewFaultRegistry creates an empty registry.
func NewFaultRegistry() *FaultRegistry {
	return &FaultRegistry{faults: make(map[string]*Fault)}
}

// Set injects a fault, replacing any fault with the same method and path.
func (fr *FaultRegistry) Set(f Fault) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if f.StatusCode == 0 {
		f.StatusCode = http.StatusInternalServerError
	}
	fr.faults[f.key()] = &f
}

// Remove removes the fault with the same method and path.
func (fr *FaultRegistry) Remove(f Fault) bool {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	_, existed := fr.faults[f.key()]
	delete(fr.faults, f.key())
	return existed
}

// Check returns the fault for a request, consuming one use.
func (fr *FaultRegistry) Check(method, path string) *Fault {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	for k, f := range fr.faults {
		if !f.matches(method, path) {
			continue
		}
		hit := *f
		if f.Times > 0 {
			f.Times--
			if f.Times == 0 {
				delete(fr.faults, k)
			}
		}
		return &hit
	}
	return nil
}

// All returns the registered faults.
func (fr *FaultRegistry) All() []Fault {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	out := make([]Fault, 0, len(fr.faults))
	for _, f := range fr.faults {
		out = append(out, *f)
	}
	return out
}

// Reset clears all faults.
func (fr *FaultRegistry) Reset() {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.faults = make(map[string]*Fault)
}

// Middleware fails matching requests before they reach a handler.
// Admin routes are never faulted.
func (fr *FaultRegistry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/admin/") {
			next.ServeHTTP(w, r)
			return
		}
		if f := fr.Check(r.Method, r.URL.Path); f != nil {
			if f.Delay > 0 {
				select {
				case <-time.After(f.Delay):
				case <-r.Context().Done():
					return
				}
			}
			msg := f.Message
			if msg == "" {
				msg = http.StatusText(f.StatusCode)
			}
			Error(w, f.StatusCode, msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}
