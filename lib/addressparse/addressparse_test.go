package addressparse

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		input    string
		expected Address
		ok       bool
	}{
		{
			input: "123 Main St, Springfield, IL 62704",
			expected: Address{
				Street: "123 Main St",
				City:   "Springfield",
				State:  "IL",
				Zip:    "62704",
			},
			ok: true,
		},
		{
			input: "456 Oak Ave, Durham NC 27701",
			expected: Address{
				Street: "456 Oak Ave",
				City:   "Durham",
				State:  "NC",
				Zip:    "27701",
			},
			ok: true,
		},
		{
			input: "789 Pine Rd, Austin, tx 73301-1234",
			expected: Address{
				Street: "789 Pine Rd",
				City:   "Austin",
				State:  "TX",
				Zip:    "73301-1234",
			},
			ok: true,
		},
		{
			// no pattern matches, comma-split fallback with a lone zip
			input: "12 Elm Street, Springfield, 62704",
			expected: Address{
				Street: "12 Elm Street",
				City:   "Springfield",
				Zip:    "62704",
			},
			ok: true,
		},
		{
			// trailing part is neither zip nor state, street+city only
			input: "12 Elm Street, Springfield, Apartment",
			expected: Address{
				Street: "12 Elm Street",
				City:   "Springfield",
			},
			ok: true,
		},
		{
			input: "just a street",
			ok:    false,
		},
		{
			input: "",
			ok:    false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, ok := Parse(tc.input)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v got %v", tc.ok, ok)
			}
			if !ok {
				return
			}
			diff := cmp.Diff(tc.expected, got)
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}
