package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github/itish2003/repair-agent/models"
)

// Expander loads the full structured guide record behind a match.
type Expander interface {
	Expand(filename string) (models.GuideDetails, error)
}

// GuideExpander reads repair guide records from a directory of JSON files.
type GuideExpander struct {
	guidesDir string
}

// NewGuideExpander creates an expander over the given guides directory.
func NewGuideExpander(guidesDir string) *GuideExpander {
	return &GuideExpander{guidesDir: guidesDir}
}

// Expand implements Expander. The filename is the join key from the index
// metadata; a missing or unreadable record is an error the caller degrades
// on, never a crash.
func (e *GuideExpander) Expand(filename string) (models.GuideDetails, error) {
	var details models.GuideDetails

	if filename == "" {
		return details, fmt.Errorf("filename not provided in match metadata")
	}
	if !strings.HasSuffix(filename, ".json") {
		return details, fmt.Errorf("guide record %q is not a JSON file", filename)
	}
	// filepath.Base prevents the filename from escaping the guides directory.
	path := filepath.Join(e.guidesDir, filepath.Base(filename))

	raw, err := os.ReadFile(path)
	if err != nil {
		return details, fmt.Errorf("failed to read guide record %s: %w", filename, err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return details, fmt.Errorf("guide record %s is not valid JSON: %w", filename, err)
	}

	details.Title = ExtractTitle(data)
	details.Tools = firstPresent(data, "tools", "tools_needed", "tools_and_materials")
	details.Steps = data["steps"]
	details.EmbedCode = data["embed_code"]
	details.EmbedGuide = data["embed_guide"]
	return details, nil
}

// ExtractTitle pulls a guide title out of a loosely structured record,
// checking the metadata section before falling back to the root level.
func ExtractTitle(data map[string]interface{}) string {
	if meta, ok := data["metadata"].(map[string]interface{}); ok {
		if title, ok := meta["title"].(string); ok && title != "" {
			return strings.TrimSpace(title)
		}
		if title, ok := meta["guide_title"].(string); ok && title != "" {
			return strings.TrimSpace(title)
		}
	}
	if title, ok := data["title"].(string); ok && title != "" {
		return strings.TrimSpace(title)
	}
	return ""
}

func firstPresent(data map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := data[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
