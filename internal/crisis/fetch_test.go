package crisis

import (
	"net/url"
	"strings"
	"testing"
)

func TestReadableText(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head><title>Crisis lines</title><style>body { color: red; }</style></head>
<body>
<script>trackVisit();</script>
<article>
<h1>National crisis lines</h1>
<p>Call 1925 for the suicide prevention hotline, available around the clock.</p>
<p>The lifeline association operates 1995 for emotional support in every region
of the country, with trained volunteers answering day and night.</p>
</article>
</body>
</html>`

	u, err := url.Parse("https://example.org/help")
	if err != nil {
		t.Fatal(err)
	}

	text := readableText(u, []byte(page))
	if !strings.Contains(text, "1925") || !strings.Contains(text, "1995") {
		t.Errorf("extracted text missing hotline numbers:\n%s", text)
	}
	if strings.Contains(text, "trackVisit") {
		t.Errorf("script content leaked into text:\n%s", text)
	}
	if strings.Contains(text, "color: red") {
		t.Errorf("style content leaked into text:\n%s", text)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	got := collapseWhitespace("  a\n\n b\t\tc  ")
	if got != "a b c" {
		t.Errorf("collapseWhitespace() = %q, want %q", got, "a b c")
	}
}

func TestNewPageFetcherDefaults(t *testing.T) {
	f := NewPageFetcher(FetchConfig{}, nil)
	if f.cfg.Parallelism != defaultFetchParallelism {
		t.Errorf("Parallelism = %d, want %d", f.cfg.Parallelism, defaultFetchParallelism)
	}
	if f.cfg.Delay != defaultFetchDelay {
		t.Errorf("Delay = %v, want %v", f.cfg.Delay, defaultFetchDelay)
	}
	if f.cfg.Timeout != defaultFetchTimeout {
		t.Errorf("Timeout = %v, want %v", f.cfg.Timeout, defaultFetchTimeout)
	}
}
