package tracker

import "github.com/littleCareless/dish-tab-time/internal/policy"

// ActiveTabState is the single attribution cursor: which resource is
// currently being viewed and since when. The dispatcher goroutine owns
// it exclusively, so no locking is needed.
type ActiveTabState struct {
	// TabID is nil when no tab is active (browser unfocused or all
	// tabs closed)
	TabID *int

	URL   string
	Title string

	// LastActiveMS is the cursor: the moment time attribution for the
	// current resource started
	LastActiveMS int64

	// Status is the last evaluated limit status, valid for StatusDomain
	Status       policy.Status
	StatusDomain string
}

// SetActive points the cursor at a new resource starting at nowMS
func (s *ActiveTabState) SetActive(tabID int, url, title string, nowMS int64) {
	id := tabID
	s.TabID = &id
	s.URL = url
	s.Title = title
	s.LastActiveMS = nowMS
}

// Clear drops the cursor; no resource is being attributed
func (s *ActiveTabState) Clear() {
	s.TabID = nil
	s.URL = ""
	s.Title = ""
	s.LastActiveMS = 0
}

// Active reports whether the cursor points at a trackable resource
func (s *ActiveTabState) Active() bool {
	return s.TabID != nil && s.URL != ""
}
