package textutil

import "testing"

func TestNormalizeCode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "store50", want: "STORE50"},
		{name: "surrounding space", in: "  STORE50  ", want: "STORE50"},
		{name: "inner space", in: "STORE 50", want: "STORE50"},
		{name: "full width digits", in: "STORE５０", want: "STORE50"},
		{name: "empty", in: "   ", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeCode(tc.in); got != tc.want {
				t.Fatalf("NormalizeCode(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
