package linkmatch

import (
	"strings"
	"testing"
)

func TestMatcher_Find(t *testing.T) {
	m := New()

	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"embedded youtu.be", "check this out https://youtu.be/abc123 cool", "https://youtu.be/abc123", true},
		{"youtube watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"shorts", "look:https://youtube.com/shorts/xyz", "https://youtube.com/shorts/xyz", true},
		{"facebook", "http://facebook.com/watch/?v=1", "http://facebook.com/watch/?v=1", true},
		{"fb.watch", "fb https://fb.watch/abcd/", "https://fb.watch/abcd/", true},
		{"instagram reel", "https://www.instagram.com/reel/C1/ nice", "https://www.instagram.com/reel/C1/", true},
		{"tiktok", "https://tiktok.com/@user/video/1", "https://tiktok.com/@user/video/1", true},
		{"uppercase host", "HTTPS://WWW.YOUTUBE.COM/watch?v=1", "HTTPS://WWW.YOUTUBE.COM/watch?v=1", true},
		{"invalid percent escape", "see https://youtu.be/abc%zz now", "https://youtu.be/abc%zz", true},
		{"trailing percent", "https://www.tiktok.com/@a/video/1%", "https://www.tiktok.com/@a/video/1%", true},
		{"first of two", "https://tiktok.com/a then https://youtu.be/b", "https://tiktok.com/a", true},
		{"skips other domains first", "https://vimeo.com/1 and https://youtu.be/b", "https://youtu.be/b", true},
		{"no scheme", "youtube.com/watch?v=1", "", false},
		{"ftp scheme", "ftp://youtube.com/x", "", false},
		{"host without path", "https://youtube.com", "", false},
		{"lookalike suffix", "https://youtube.com.evil.net/x", "", false},
		{"lookalike prefix", "https://notyoutube.com/x", "", false},
		{"subdomain", "https://m.youtube.com/watch?v=1", "", false},
		{"other domain", "https://vimeo.com/12345", "", false},
		{"plain text", "hello world", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Find(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("Find(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Find(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestMatcher_ExtractsWithNoise(t *testing.T) {
	m := New()
	urls := []string{
		"https://youtu.be/abc123",
		"https://www.youtube.com/watch?v=abc&t=10",
		"http://instagram.com/p/XYZ/",
		"https://fb.watch/q1w2e3/",
		"https://www.tiktok.com/@someone/video/123",
		"https://facebook.com/reel/55",
	}
	prefixes := []string{"", "hey ", "😀 ", "line1\nline2 ", "(see) "}
	suffixes := []string{"", " thanks", "\tok", "\nbye", " https://vimeo.com/1"}

	for _, u := range urls {
		for _, p := range prefixes {
			for _, s := range suffixes {
				text := p + u + s
				got, ok := m.Find(text)
				if !ok || got != u {
					t.Errorf("Find(%q) = %q, %v; want %q", text, got, ok, u)
				}
			}
		}
	}
}

func TestMatcher_NoFalsePositives(t *testing.T) {
	m := New()
	corpus := []string{
		"https://vimeo.com/123",
		"https://twitter.com/user/status/1",
		"https://x.com/i/status/1",
		"https://example.com/?next=youtube.com",
		"https://youtube.co/watch",
		"https://youtu.bee/abc",
		"https://tiktok.company/x",
		"www.youtube.com/watch?v=1",
		"mailto:someone@youtube.com",
		"just some words about youtube and tiktok",
		"https:// youtube.com/x",
	}
	for _, text := range corpus {
		if got, ok := m.Find(text); ok {
			t.Errorf("Find(%q) = %q, want no match", text, got)
		}
	}
}

func TestNew_CustomHosts(t *testing.T) {
	m := New("vimeo.com")
	if _, ok := m.Find("https://youtu.be/abc"); ok {
		t.Error("custom matcher should not match default hosts")
	}
	if got, ok := m.Find("see https://www.vimeo.com/42"); !ok || got != "https://www.vimeo.com/42" {
		t.Errorf("Find = %q, %v", got, ok)
	}
}

func FuzzMatcher_ResultIsAllowListed(f *testing.F) {
	f.Add("check this out https://youtu.be/abc123 cool")
	f.Add("https://vimeo.com/1")
	f.Add("https://youtube.com.evil.net/x")
	f.Add("")

	m := New()
	f.Fuzz(func(t *testing.T, text string) {
		got, ok := m.Find(text)
		if !ok {
			if got != "" {
				t.Fatalf("no match but got %q", got)
			}
			return
		}
		if !strings.Contains(text, got) {
			t.Fatalf("match %q is not a substring of input", got)
		}
		_, rest, found := strings.Cut(got, "://")
		if !found {
			t.Fatalf("match %q has no scheme", got)
		}
		host, _, _ := strings.Cut(rest, "/")
		host = strings.TrimPrefix(strings.ToLower(host), "www.")
		allowed := false
		for _, h := range DefaultHosts {
			if host == h {
				allowed = true
			}
		}
		if !allowed {
			t.Fatalf("match %q has host %q outside the allow-list", got, host)
		}
	})
}
