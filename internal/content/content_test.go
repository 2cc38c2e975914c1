package content

import (
	"testing"
)

// TestExportParseRoundTrip verifies an exported document parses back to an
// equivalent value.
func TestExportParseRoundTrip(t *testing.T) {
	original := New("intent-1", "text", "a short poem about lighthouses", "markdown")
	original.Provenance = &Provenance{
		OriginalContentID:  "earlier-id",
		RefinementFeedback: "make it shorter",
	}

	data, err := original.ExportJSON()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	parsed, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if parsed.ID != original.ID {
		t.Errorf("id = %s, want %s", parsed.ID, original.ID)
	}
	if parsed.Body != original.Body {
		t.Errorf("body = %q", parsed.Body)
	}
	if parsed.ContentType != "text" || parsed.Format != "markdown" {
		t.Errorf("type/format = %s/%s", parsed.ContentType, parsed.Format)
	}
	if parsed.Provenance == nil || parsed.Provenance.OriginalContentID != "earlier-id" {
		t.Errorf("provenance not preserved: %+v", parsed.Provenance)
	}
	if !parsed.CreatedAt.Equal(original.CreatedAt) {
		t.Errorf("created at = %v, want %v", parsed.CreatedAt, original.CreatedAt)
	}
}

// TestParseRejectsMissingID verifies documents without an id are rejected.
func TestParseRejectsMissingID(t *testing.T) {
	if _, err := ParseJSON([]byte(`{"content_type": "text", "body": "x"}`)); err == nil {
		t.Error("expected error for missing id")
	}
	if _, err := ParseJSON([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed document")
	}
}

// TestIsText verifies text detection across content types.
func TestIsText(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"text", true},
		{"mixed", true},
		{"image", false},
		{"voice", false},
		{"video", false},
	}
	for _, tt := range tests {
		c := New("", tt.contentType, "body", "")
		if got := c.IsText(); got != tt.want {
			t.Errorf("IsText(%s) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}

// TestNewAssignsDistinctIDs verifies fresh ids per content.
func TestNewAssignsDistinctIDs(t *testing.T) {
	a := New("i", "text", "one", "")
	b := New("i", "text", "two", "")
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("ids not distinct: %s vs %s", a.ID, b.ID)
	}
}
