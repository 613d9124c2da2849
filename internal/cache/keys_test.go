package cache

import "testing"

func TestKey_LowercasesAndTrims(t *testing.T) {
	got := Key(KindTitleSearch, "  The Hobbit  ", nil)
	want := "search:title:the hobbit"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestKey_CanonicalizesISBNHyphens(t *testing.T) {
	got := Key(KindISBNLookup, "978-0-439-70818-0", nil)
	want := "search:isbn:9780439708180"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestKey_SortsParamsAlphabetically(t *testing.T) {
	got := Key(KindAuthorSearch, "rowling", map[string]string{"page": "2", "limit": "10"})
	want := "author:search:rowling?limit=10&page=2"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestKey_Deterministic(t *testing.T) {
	a := Key(KindTitleSearch, "Dune", map[string]string{"lang": "en"})
	b := Key(KindTitleSearch, "Dune", map[string]string{"lang": "en"})
	if a != b {
		t.Fatalf("same inputs produced different keys: %q vs %q", a, b)
	}
}

func TestColdIndexAndResultsKeys(t *testing.T) {
	if got, want := ColdIndexKey("search:title:dune"), "cold-index:search:title:dune"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got, want := ResultsKey("ai_scan", "job-123"), "ai_scan-results:job-123"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
