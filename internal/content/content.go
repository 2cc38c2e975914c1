// Package content holds the generated-content domain type. Binary asset
// storage is external; the body here is text or a reference to an external
// asset.
package content

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Provenance records where a refined version came from.
type Provenance struct {
	OriginalContentID  string `json:"original_content_id"`
	RefinementFeedback string `json:"refinement_feedback,omitempty"`
}

// GeneratedContent is one produced piece of content.
type GeneratedContent struct {
	ID          string      `json:"id"`
	IntentID    string      `json:"intent_id,omitempty"`
	ContentType string      `json:"content_type"` // text, image, voice, video, mixed
	Body        string      `json:"body"`
	Format      string      `json:"format,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Provenance  *Provenance `json:"provenance,omitempty"`
}

// New creates a GeneratedContent with a fresh id and timestamp.
func New(intentID, contentType, body, format string) *GeneratedContent {
	return &GeneratedContent{
		ID:          uuid.New().String(),
		IntentID:    intentID,
		ContentType: contentType,
		Body:        body,
		Format:      format,
		CreatedAt:   time.Now(),
	}
}

// IsText reports whether the content carries refinable text.
func (c *GeneratedContent) IsText() bool {
	return c.ContentType == "text" || c.ContentType == "mixed"
}

// ExportJSON serializes the content for transport or storage.
func (c *GeneratedContent) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ParseJSON parses a previously exported content document.
func ParseJSON(data []byte) (*GeneratedContent, error) {
	var c GeneratedContent
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing content: %w", err)
	}
	if c.ID == "" {
		return nil, fmt.Errorf("parsing content: missing id")
	}
	return &c, nil
}
