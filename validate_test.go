package main

import "testing"

func TestIsValidISBN(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"9780439708180", true},
		{"978-0-439-70818-0", true},
		{"0439708184", true},
		{"043970818X", true},
		{"043970818x", false},
		{"", false},
		{"12345", false},
		{"97804397081800", false},
		{"not-an-isbn", false},
	}

	for _, c := range cases {
		if got := isValidISBN(c.in); got != c.want {
			t.Errorf("isValidISBN(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
