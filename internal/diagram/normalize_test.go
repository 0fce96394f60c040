package diagram

import "testing"

func testMapping(t *testing.T) Mapping {
	t.Helper()
	m, err := LoadMapping("")
	if err != nil {
		t.Fatalf("LoadMapping: %v", err)
	}
	return m
}

func TestNormalize_DirectKey(t *testing.T) {
	m := testMapping(t)
	n := m.Normalize("z_line")
	if n.Key != "z_line" || !n.Mapped() {
		t.Errorf("n = %+v", n)
	}
	if n.Display != "Z-line" {
		t.Errorf("display = %q", n.Display)
	}
}

func TestNormalize_AliasBeforeHeuristics(t *testing.T) {
	m := testMapping(t)
	n := m.Normalize("GEJ")
	if n.Key != "gastroesophageal_junction" {
		t.Errorf("alias GEJ resolved to %q", n.Key)
	}
}

func TestNormalize_AliasAndDisplayNameSameBucket(t *testing.T) {
	m := testMapping(t)
	a := m.Normalize("GEJ")
	b := m.Normalize("gastroesophageal junction (gej)")
	if a.Key != b.Key {
		t.Errorf("alias bucket %q != display-name bucket %q", a.Key, b.Key)
	}
}

func TestNormalize_DisplayName(t *testing.T) {
	m := testMapping(t)
	n := m.Normalize("Gastric body")
	if n.Key != "gastric_body" {
		t.Errorf("key = %q", n.Key)
	}
}

func TestNormalize_SlugFallback(t *testing.T) {
	m := testMapping(t)
	for _, label := range []string{"Z-line", "z line", "Z  Line!"} {
		n := m.Normalize(label)
		if n.Key != "z_line" {
			t.Errorf("Normalize(%q).Key = %q, want z_line", label, n.Key)
		}
	}
}

func TestNormalize_UnmappedKeepsCleanedLabel(t *testing.T) {
	m := testMapping(t)
	n := m.Normalize("  Polyp at splenic flexure  ")
	if n.Mapped() {
		t.Error("should be unmapped")
	}
	if n.Key != "Polyp at splenic flexure" {
		t.Errorf("key = %q", n.Key)
	}
}

func TestNormalize_EmptyLabel(t *testing.T) {
	m := testMapping(t)
	n := m.Normalize("   ")
	if n.Key != UnlabeledKey {
		t.Errorf("key = %q", n.Key)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	m := testMapping(t)
	labels := []string{
		"Z-line", "GEJ", "antrum", "Gastric body", "Fundus",
		"something unknown", "", "D2", "retroflexed",
	}
	for _, label := range labels {
		first := m.Normalize(label)
		second := m.Normalize(first.Key)
		if second.Key != first.Key {
			t.Errorf("Normalize not idempotent for %q: %q then %q", label, first.Key, second.Key)
		}
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Z-line":             "z_line",
		"  z   line  ":       "z_line",
		"Duodenal Bulb":      "duodenal_bulb",
		"__weird__":          "weird",
		"(GEJ)":              "gej",
		"a!!b??c":            "a_b_c",
		"":                   "",
		"!!!":                "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseMapping_Validation(t *testing.T) {
	if _, err := ParseMapping([]byte(`{}`)); err == nil {
		t.Error("empty mapping should be rejected")
	}
	if _, err := ParseMapping([]byte(`{"x": {"x": 2.0, "y": 0.5}}`)); err == nil {
		t.Error("out-of-range coordinates should be rejected")
	}
	if _, err := ParseMapping([]byte(`not json`)); err == nil {
		t.Error("garbage should be rejected")
	}
}
