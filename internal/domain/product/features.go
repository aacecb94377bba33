package product

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FeatureSet is the normalized capability set carried by products and
// licenses. Stored feature arrays historically mixed plain strings with
// structured objects ({"slug": "...", "label": "..."}); both shapes decode
// into bare slugs so nothing downstream has to branch on the legacy form.
type FeatureSet []string

func (fs *FeatureSet) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("feature set must be a JSON array: %w", err)
	}

	out := make(FeatureSet, 0, len(raw))
	for _, item := range raw {
		var slug string
		if err := json.Unmarshal(item, &slug); err == nil {
			out = appendSlug(out, slug)
			continue
		}

		var obj struct {
			Slug string `json:"slug"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("unrecognized feature entry %s: %w", item, err)
		}
		if obj.Slug != "" {
			out = appendSlug(out, obj.Slug)
		} else {
			out = appendSlug(out, obj.Name)
		}
	}

	*fs = out
	return nil
}

func (fs FeatureSet) MarshalJSON() ([]byte, error) {
	if fs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(fs))
}

// Contains matches feature slugs case-insensitively.
func (fs FeatureSet) Contains(slug string) bool {
	for _, f := range fs {
		if strings.EqualFold(f, slug) {
			return true
		}
	}
	return false
}

func appendSlug(fs FeatureSet, slug string) FeatureSet {
	slug = strings.TrimSpace(slug)
	if slug == "" || fs.Contains(slug) {
		return fs
	}
	return append(fs, slug)
}
