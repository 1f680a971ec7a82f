package arxivid

import "testing"

func TestCanonicalStripsVersion(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"2501.01234v2":                        "2501.01234",
		"2501.01234v12":                       "2501.01234",
		"2501.01234":                          "2501.01234",
		"arXiv:2501.01234v1":                  "2501.01234",
		"http://arxiv.org/abs/2501.01234v3":   "2501.01234",
		"https://arxiv.org/abs/2501.01234":    "2501.01234",
		"https://arxiv.org/abs/math.GT/03091": "math.GT/03091",
		"math.GT/0309136v1":                   "math.GT/0309136",
		"  2501.01234v2  ":                    "2501.01234",
	}

	for raw, want := range cases {
		if got := Canonical(raw); got != want {
			t.Fatalf("Canonical(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestCanonicalIdempotent(t *testing.T) {
	t.Parallel()

	raws := []string{"2501.01234v2", "arXiv:2501.01234", "http://arxiv.org/abs/cs/0101001v9"}
	for _, raw := range raws {
		once := Canonical(raw)
		if twice := Canonical(once); twice != once {
			t.Fatalf("Canonical not idempotent for %q: %q -> %q", raw, once, twice)
		}
	}
}

func TestRevisionsCollapse(t *testing.T) {
	t.Parallel()

	a := Canonical("http://arxiv.org/abs/2501.01234v1")
	b := Canonical("2501.01234v4")
	if a != b {
		t.Fatalf("revisions did not collapse: %q vs %q", a, b)
	}
}

func TestAbsURL(t *testing.T) {
	t.Parallel()

	if got := AbsURL("2501.01234"); got != "https://arxiv.org/abs/2501.01234" {
		t.Fatalf("unexpected abs url: %s", got)
	}
}
