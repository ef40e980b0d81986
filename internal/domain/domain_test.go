package domain

import (
	"encoding/json"
	"testing"
)

func TestNextSearchEngine(t *testing.T) {
	cases := []struct {
		current SearchEngine
		next    SearchEngine
		ok      bool
	}{
		{EngineMusicBrainz, EngineDiscogs, true},
		{EngineDiscogs, EngineBandcamp, true},
		{EngineBandcamp, "", false},
		{"spotify", "", false},
	}
	for _, tc := range cases {
		next, ok := NextSearchEngine(tc.current)
		if next != tc.next || ok != tc.ok {
			t.Fatalf("NextSearchEngine(%q) = (%q, %v), want (%q, %v)", tc.current, next, ok, tc.next, tc.ok)
		}
	}
}

func TestParseSearchEngine(t *testing.T) {
	cases := map[string]SearchEngine{
		"MusicBrainz": EngineMusicBrainz,
		" mb ":        EngineMusicBrainz,
		"DISCOGS":     EngineDiscogs,
		"bc":          EngineBandcamp,
	}
	for raw, want := range cases {
		got, ok := ParseSearchEngine(raw)
		if !ok || got != want {
			t.Fatalf("ParseSearchEngine(%q) = (%q, %v), want %q", raw, got, ok, want)
		}
	}
	if _, ok := ParseSearchEngine("tidal"); ok {
		t.Fatalf("unknown engine should not parse")
	}
}

func TestSuitabilityOrdering(t *testing.T) {
	order := []Suitability{SuitabilityPerfect, SuitabilityGood, SuitabilityWarning, SuitabilityBad}
	for i := 0; i < len(order)-1; i++ {
		if !order[i].Better(order[i+1]) || order[i+1].Better(order[i]) {
			t.Fatalf("%s should rank above %s", order[i], order[i+1])
		}
	}
	if SuitabilityGood.Better(SuitabilityGood) {
		t.Fatalf("a level is not better than itself")
	}

	glyphs := map[string]bool{}
	for _, s := range order {
		glyphs[s.Glyph()] = true
	}
	if len(glyphs) != 4 {
		t.Fatalf("each level needs its own glyph")
	}
}

func TestSuitabilityMarshalsAsText(t *testing.T) {
	data, err := json.Marshal(OptionReport{Suitability: SuitabilityWarning})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["suitability"] != "warning" {
		t.Fatalf("unexpected suitability encoding %v", raw["suitability"])
	}
}

func TestCanonicalReleaseHelpers(t *testing.T) {
	release := CanonicalRelease{Years: []string{"1994", "2004"}, TrackTitles: []string{"a", "b", "c"}}
	if release.NewestYear() != "2004" {
		t.Fatalf("unexpected newest year %q", release.NewestYear())
	}
	if release.ExpectedTracks() != 3 {
		t.Fatalf("tracklist length should be used without bounds, got %d", release.ExpectedTracks())
	}
	release.MinTracks, release.MaxTracks = 10, 12
	if release.ExpectedTracks() != 10 {
		t.Fatalf("minimum bound should win, got %d", release.ExpectedTracks())
	}
	if (CanonicalRelease{}).NewestYear() != "" {
		t.Fatalf("unknown year should be empty")
	}

	clone := release.Clone()
	clone.Years[0] = "1900"
	clone.TrackTitles[0] = "changed"
	if release.Years[0] != "1994" || release.TrackTitles[0] != "a" {
		t.Fatalf("clone must not share slices")
	}
}

func TestRawCandidateOfficial(t *testing.T) {
	for status, want := range map[string]bool{"": true, "official": true, "Official": true, "bootleg": false, "promotion": false} {
		if got := (RawCandidate{Status: status}).Official(); got != want {
			t.Fatalf("Official(%q) = %v, want %v", status, got, want)
		}
	}
}

func TestFolderInfoComplete(t *testing.T) {
	if (FolderInfo{Artist: "A"}).Complete() || !(FolderInfo{Artist: "A", Album: "B"}).Complete() {
		t.Fatalf("complete requires artist and album")
	}
}
