package principal

import "testing"

func TestParseNormalizesCase(t *testing.T) {
	p, err := Parse("0xABCDEF1234567890abcdef1234567890ABCDEF12")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p != Principal("0xabcdef1234567890abcdef1234567890abcdef12") {
		t.Fatalf("expected lowercased handle, got %s", p)
	}
}

func TestParseRejectsMalformedHandles(t *testing.T) {
	for _, in := range []string{
		"",
		"0x",
		"abcdef1234567890abcdef1234567890abcdef12",    // missing prefix
		"0xabcdef1234567890abcdef1234567890abcdef1",   // too short
		"0xabcdef1234567890abcdef1234567890abcdef123", // too long
		"0xzzcdef1234567890abcdef1234567890abcdef12",  // non-hex
	} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) should fail", in)
		}
	}
}

func TestShort(t *testing.T) {
	p := MustParse("0x1234567890abcdef1234567890abcdef12345678")
	if got := p.Short(); got != "0x1234…5678" {
		t.Fatalf("unexpected short form %q", got)
	}
}

func TestIsZero(t *testing.T) {
	var p Principal
	if !p.IsZero() {
		t.Fatal("zero value must report IsZero")
	}
	if MustParse("0x1234567890abcdef1234567890abcdef12345678").IsZero() {
		t.Fatal("valid principal must not report IsZero")
	}
}
