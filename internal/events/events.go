package events

// Event is a browser activity event. Events are applied strictly in
// arrival order by the dispatcher goroutine.
type Event interface {
	// Type is a stable name used for logging and metrics
	Type() string
}

// TabActivated fires when a different tab becomes the active one
type TabActivated struct {
	TabID int    `json:"tab_id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Type implements Event
func (TabActivated) Type() string { return "tab_activated" }

// TabUpdated fires when a tab's URL or title changes, typically an
// in-tab navigation
type TabUpdated struct {
	TabID int    `json:"tab_id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Type implements Event
func (TabUpdated) Type() string { return "tab_updated" }

// FocusChanged fires when the browser window gains or loses focus.
// When focus is regained the event carries the active tab so tracking
// resumes immediately.
type FocusChanged struct {
	Focused bool   `json:"focused"`
	TabID   *int   `json:"tab_id,omitempty"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Type implements Event
func (FocusChanged) Type() string { return "focus_changed" }

// TabClosed fires when a tab is closed
type TabClosed struct {
	TabID int `json:"tab_id"`
}

// Type implements Event
func (TabClosed) Type() string { return "tab_closed" }

// Tick forces a commit of the open interval. The dispatcher generates
// these itself on its tick interval; clients may also send them.
type Tick struct{}

// Type implements Event
func (Tick) Type() string { return "tick" }
