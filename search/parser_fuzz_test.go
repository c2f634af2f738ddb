package search

import (
	"testing"
)

func FuzzParser(f *testing.F) {
	seedCases := []string{
		"protocol:tcp AND bytes:>1000000",
		"severity:high AND (status:1",
		`device_name:"*Laptop*" OR -mac:aa:bb:cc:dd:ee:ff`,
		"timestamp:[2024-01-01 TO 2024-12-31] NOT source_ip:192.168.*",
		"bytes:1-5MB || domain:a.com,*.b.com",
		`message:"say \"hi\" \\ \*"`,
		"0000000000:[0000000000 TO 0000000000]:",
		`a:"b"c`,
	}

	for _, seed := range seedCases {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, query string) {
		if len(query) > 10000 {
			return
		}
		tree, err := Parse(query)
		if err != nil {
			if _, ok := err.(*SyntaxError); !ok {
				t.Fatalf("unexpected error type %T", err)
			}
			return
		}
		if tree == nil {
			t.Fatal("tree is nil but no error")
		}

		canonical := Format(tree)
		if len(canonical) > MaxQueryLength {
			return
		}
		again, err := Parse(canonical)
		if err != nil {
			t.Fatalf("canonical form %q does not parse: %v", canonical, err)
		}
		if Format(again) != canonical {
			t.Fatalf("canonical form is not stable: %q vs %q", canonical, Format(again))
		}
	})
}
