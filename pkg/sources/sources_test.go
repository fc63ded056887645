package sources

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadRegistryYAML(t *testing.T) {
	path := writeFile(t, "sources.yaml", `
sources:
  - id: hn
    name: Hacker News
    type: rss
    source_url: https://news.example.com/rss
    rate_limit:
      capacity: 2
      refill_per_second: 0.5
      max_wait_seconds: 30
  - id: times
    name: The Times
    type: news_sitemap
    source_url: https://times.example.com/news-sitemap.xml
    config:
      user_agent: digest-bot/1.0
`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.All()) != 2 {
		t.Fatalf("loaded %d sources, want 2", len(reg.All()))
	}

	hn, ok := reg.ByID("hn")
	if !ok {
		t.Fatalf("hn not found")
	}
	if hn.RateLimit == nil || hn.RateLimit.Capacity != 2 {
		t.Fatalf("rate limit override not loaded: %+v", hn.RateLimit)
	}

	times, _ := reg.ByID("times")
	if got := ConfigString(times, ConfigUserAgentKey, ""); got != "digest-bot/1.0" {
		t.Fatalf("user_agent = %q", got)
	}
	if headers := Headers(times); headers["User-Agent"] != "digest-bot/1.0" {
		t.Fatalf("headers = %v", headers)
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	path := writeFile(t, "sources.json", `{
  "sources": [
    {"id": "hn", "name": "Hacker News", "type": "rss", "source_url": "https://news.example.com/rss"}
  ]
}`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if _, ok := reg.ByID("hn"); !ok {
		t.Fatalf("hn not found")
	}
}

func TestLoadRegistryRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"missing id": `
sources:
  - name: X
    type: rss
    source_url: https://x.example/rss
`,
		"missing url": `
sources:
  - id: x
    name: X
    type: rss
`,
		"duplicate id": `
sources:
  - id: x
    name: X
    type: rss
    source_url: https://x.example/rss
  - id: x
    name: Y
    type: rss
    source_url: https://y.example/rss
`,
		"bad rate limit": `
sources:
  - id: x
    name: X
    type: rss
    source_url: https://x.example/rss
    rate_limit:
      capacity: 0
      refill_per_second: 1
`,
	}

	for name, content := range cases {
		path := writeFile(t, "sources.yaml", content)
		if _, err := LoadRegistry(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadRegistryEmptyPath(t *testing.T) {
	if _, err := LoadRegistry("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
