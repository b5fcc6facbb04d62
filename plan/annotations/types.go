// Package annotations records structured events while plans are parsed,
// converted and partitioned, and formats them for humans.
package annotations

import (
	"sync"
	"time"
)

// Event name constants following hierarchical naming pattern
const (
	// Single plan lifecycle
	PlanParsed        = "plan/parsed"
	PlanConverted     = "plan/converted"
	PipelinesAssigned = "pipelines/assigned"
	TimingAnnotated   = "timing/annotated"

	// Conversion warnings
	OperatorUnrecognized = "operator/unrecognized"
	OperatorPlaceholder  = "operator/placeholder"

	// Classification
	StageFallback = "stage/fallback"

	// Batch processing
	CacheHit           = "cache/hit"
	BatchPlanCompleted = "batch/plan.completed"
	BatchCompleted     = "batch/completed"
)

// Event represents a single annotation event.
type Event struct {
	Name    string                 // Event name using hierarchical constants above
	Start   time.Time              // Start timestamp
	End     time.Time              // End timestamp
	Latency time.Duration          // Duration (End - Start)
	Data    map[string]interface{} // Additional event-specific data
}

// Handler processes annotation events as they occur.
type Handler func(event Event)

// Collector accumulates events. A nil *Collector discards everything, so
// callers never need to check before recording.
type Collector struct {
	handler Handler
	mu      sync.Mutex
	events  []Event
}

// NewCollector creates a new annotation collector. A nil handler only
// accumulates events.
func NewCollector(handler Handler) *Collector {
	return &Collector{
		handler: handler,
		events:  make([]Event, 0, 32),
	}
}

// Add records a new event.
// Thread-safe for concurrent access.
func (c *Collector) Add(event Event) {
	if c == nil {
		return
	}

	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	// Call handler outside the lock to avoid deadlocks
	if c.handler != nil {
		c.handler(event)
	}
}

// AddTiming records an event that started at start and ends now.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if c == nil {
		return
	}

	end := time.Now()
	c.Add(Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	})
}

// AddPoint records an instantaneous event.
func (c *Collector) AddPoint(name string, data map[string]interface{}) {
	if c == nil {
		return
	}

	now := time.Now()
	c.Add(Event{Name: name, Start: now, End: now, Data: data})
}

// Events returns a copy of all collected events.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	eventsCopy := make([]Event, len(c.events))
	copy(eventsCopy, c.events)
	return eventsCopy
}

// Named returns the collected events with the given name.
func (c *Collector) Named(name string) []Event {
	var out []Event
	for _, e := range c.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the collector for reuse.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
