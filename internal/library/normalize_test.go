package library

import "testing"

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Motörhead", "motorhead"},
		{"MOTORHEAD", "motorhead"},
		{"Blue Öyster Cult", "blue oyster cult"},
		{"Sigur Rós", "sigur ros"},
		{"Mønster", "monster"},
		{"Encyclopædia", "encyclopaedia"},
		{"Straße", "strasse"},
		{"Þorri", "thorri"},
		{"Œuvre", "oeuvre"},
		{"Me & You", "me and you"},
		{"İstanbul", "istanbul"},
		{"plain name", "plain name"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeName(c.in); got != c.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeNameDistinguishesDistinctNames(t *testing.T) {
	// Folding only conflates spelling variants of the same name; names
	// that differ in content keep distinct keys in any script.
	pairs := [][2]string{
		{"Кино", "Кони"},
		{"ДДТ", "ГДТ"},
		{"東京事変", "東京事件"},
		{"도쿄", "서울"},
		{"Σίγμα", "Σήμα"},
		{"עומר", "עומד"},
		{"Beatles", "Beetles"},
	}
	for _, p := range pairs {
		if NormalizeName(p[0]) == NormalizeName(p[1]) {
			t.Errorf("NormalizeName conflates %q and %q as %q", p[0], p[1], NormalizeName(p[0]))
		}
	}
}

func TestNormalizeNameIdempotent(t *testing.T) {
	for _, in := range []string{"Motörhead", "Me & You", "İstanbul", "Straße"} {
		once := NormalizeName(in)
		if twice := NormalizeName(once); twice != once {
			t.Errorf("NormalizeName not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}

func TestSplitPrefix(t *testing.T) {
	prefixes := []string{"The", "A", "An"}
	cases := []struct {
		in         string
		wantPrefix string
		wantBase   string
	}{
		{"The Beatles", "The", "Beatles"},
		{"the beatles", "the", "beatles"},
		{"The  Beatles", "The", "Beatles"},
		{"A Perfect Circle", "A", "Perfect Circle"},
		{"An Author", "An", "Author"},
		{"Therapy?", "", "Therapy?"},
		{"Beatles", "", "Beatles"},
		{"The", "", "The"},
		{"The ", "", "The"},
		{"  Slayer  ", "", "Slayer"},
	}
	for _, c := range cases {
		prefix, base := SplitPrefix(c.in, prefixes)
		if prefix != c.wantPrefix || base != c.wantBase {
			t.Errorf("SplitPrefix(%q) = (%q, %q), want (%q, %q)",
				c.in, prefix, base, c.wantPrefix, c.wantBase)
		}
	}
}

func TestSplitPrefixSingleWordOnly(t *testing.T) {
	// Only one leading article is recognized, never two.
	prefix, base := SplitPrefix("The A Team", []string{"The", "A"})
	if prefix != "The" || base != "A Team" {
		t.Errorf("SplitPrefix(The A Team) = (%q, %q), want (The, A Team)", prefix, base)
	}
}
