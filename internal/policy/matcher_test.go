package policy

import (
	"testing"

	"github.com/littleCareless/dish-tab-time/internal/storage"
	"github.com/rs/zerolog"
)

func testMatcher() *Matcher {
	return NewMatcher(16, zerolog.New(nil).Level(zerolog.Disabled))
}

func TestMatcher_ExactAndDefault(t *testing.T) {
	m := testMatcher()

	tests := []struct {
		name    string
		domain  string
		limit   storage.WebsiteLimit
		matches bool
	}{
		{
			name:    "empty pattern matches own domain",
			domain:  "example.com",
			limit:   storage.WebsiteLimit{Domain: "example.com"},
			matches: true,
		},
		{
			name:    "empty pattern does not match subdomain",
			domain:  "www.example.com",
			limit:   storage.WebsiteLimit{Domain: "example.com"},
			matches: false,
		},
		{
			name:    "exact pattern matches",
			domain:  "example.com",
			limit:   storage.WebsiteLimit{Domain: "other.com", MatchPattern: "example.com"},
			matches: true,
		},
		{
			name:    "exact pattern is case insensitive",
			domain:  "Example.COM",
			limit:   storage.WebsiteLimit{Domain: "x", MatchPattern: "example.com"},
			matches: true,
		},
		{
			name:    "empty domain never matches",
			domain:  "",
			limit:   storage.WebsiteLimit{Domain: "example.com", MatchPattern: "*"},
			matches: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Matches(tt.domain, tt.limit); got != tt.matches {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.domain, tt.limit.MatchPattern, got, tt.matches)
			}
		})
	}
}

func TestMatcher_SubdomainPattern(t *testing.T) {
	m := testMatcher()

	limit := storage.WebsiteLimit{Domain: "example.com", MatchPattern: "*.example.com"}

	tests := []struct {
		domain  string
		matches bool
	}{
		{"a.example.com", true},
		{"deep.a.example.com", true},
		{"example.com", true},
		{"evilexample.com", false},
		{"example.com.attacker.net", false},
	}

	for _, tt := range tests {
		if got := m.Matches(tt.domain, limit); got != tt.matches {
			t.Errorf("Matches(%q, *.example.com) = %v, want %v", tt.domain, got, tt.matches)
		}
	}
}

func TestMatcher_Wildcard(t *testing.T) {
	m := testMatcher()

	tests := []struct {
		pattern string
		domain  string
		matches bool
	}{
		{"*oo*", "foo", true},
		{"*oo*", "foo.com", true},
		{"*oo*", "bar.com", false},
		{"news.*", "news.example.com", true},
		{"news.*", "example.com", false},
		{"*", "anything.com", true},
	}

	for _, tt := range tests {
		limit := storage.WebsiteLimit{Domain: "x", MatchPattern: tt.pattern}
		if got := m.Matches(tt.domain, limit); got != tt.matches {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.domain, tt.pattern, got, tt.matches)
		}
	}
}

func TestMatcher_WildcardQuotesMetaCharacters(t *testing.T) {
	m := testMatcher()

	// The dot must not behave as a regex wildcard
	limit := storage.WebsiteLimit{Domain: "x", MatchPattern: "a.com*"}
	if m.Matches("axcom.net", limit) {
		t.Error("Expected literal dot in wildcard pattern")
	}
	if !m.Matches("a.com.cn", limit) {
		t.Error("Expected a.com* to match a.com.cn")
	}
}

func TestMatcher_Regex(t *testing.T) {
	m := testMatcher()

	tests := []struct {
		pattern string
		domain  string
		matches bool
	}{
		{`/^x\./`, "x.y.com", true},
		{`/^x\./`, "ax.y.com", false},
		{`/google\.(com|de)$/`, "google.de", true},
		{`/google\.(com|de)$/`, "google.fr", false},
	}

	for _, tt := range tests {
		limit := storage.WebsiteLimit{Domain: "x", MatchPattern: tt.pattern}
		if got := m.Matches(tt.domain, limit); got != tt.matches {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.domain, tt.pattern, got, tt.matches)
		}
	}
}

func TestMatcher_InvalidRegexFailsClosed(t *testing.T) {
	m := testMatcher()

	limit := storage.WebsiteLimit{Domain: "x", MatchPattern: "/[unclosed/"}

	// Checked twice to also exercise the cached failure path
	for i := 0; i < 2; i++ {
		if m.Matches("anything.com", limit) {
			t.Error("Expected invalid regex to match nothing")
		}
	}
}
