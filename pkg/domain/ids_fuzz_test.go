package domain

import (
	"testing"
)

// FuzzParseRunID checks that parsing never panics and that accepted ids
// round-trip unchanged.
func FuzzParseRunID(f *testing.F) {
	f.Add("")
	f.Add("r1")
	f.Add("run_1767323045000_abcdef12")
	f.Add("'; DROP TABLE match_runs;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseRunID(input)
		if err != nil {
			return
		}
		again, err := ParseRunID(id)
		if err != nil {
			t.Fatalf("accepted id failed round-trip: %v", err)
		}
		if again != id {
			t.Fatalf("round-trip changed id: %q -> %q", id, again)
		}
	})
}
