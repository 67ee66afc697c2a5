package run

import (
	"encoding/json"
	"testing"
)

func TestParseProgressRoundTrip(t *testing.T) {
	payload, ok := ParseProgress(`__PROGRESS__ {"pct":0.5,"totals":{"all":10},"done":{"all":5}}`)
	if !ok {
		t.Fatal("progress line not recognized")
	}
	var doc struct {
		Pct    float64        `json:"pct"`
		Totals map[string]int `json:"totals"`
		Done   map[string]int `json:"done"`
	}
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		t.Fatalf("payload not parseable: %v", err)
	}
	if doc.Pct != 0.5 || doc.Totals["all"] != 10 || doc.Done["all"] != 5 {
		t.Fatalf("payload mangled: %+v", doc)
	}
}

func TestParseProgressAllPrefixes(t *testing.T) {
	for _, line := range []string{
		`__PROGRESS_INIT__ {"totals":{"all":3}}`,
		`__PROGRESS__ {"pct":0.2}`,
		`__PROGRESS_END__ {"pct":1}`,
	} {
		if _, ok := ParseProgress(line); !ok {
			t.Fatalf("prefix not recognized: %q", line)
		}
	}
}

func TestParseProgressMalformedFallsBack(t *testing.T) {
	if _, ok := ParseProgress("__PROGRESS__ not-json"); ok {
		t.Fatal("malformed payload accepted as progress")
	}
	if _, ok := ParseProgress("__PROGRESS__no-space {}"); ok {
		t.Fatal("missing marker space accepted")
	}
	if _, ok := ParseProgress("plain output line"); ok {
		t.Fatal("plain line accepted as progress")
	}
}
