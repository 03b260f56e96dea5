package functions

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/bytedance/sonic"
)

// text decodes a JSON string, and tolerates numbers and booleans the model
// sometimes emits for string parameters.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		return fmt.Errorf("expected a string, got %s", data)
	}
	*t = text(data)
	return nil
}

var searchTemplates = []string{
	"document_%s.txt",
	"project_%s.pdf",
	"image_%s.jpg",
	"code_%s.js",
}

// searchResults synthesizes between one and three matches, optionally
// restricted to an extension such as "pdf" or ".jpg".
func searchResults(query, fileType string, rnd RandomSource) []string {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fileType), "."))

	candidates := make([]string, 0, len(searchTemplates))
	for _, tmpl := range searchTemplates {
		name := fmt.Sprintf(tmpl, query)
		if ext != "" && strings.TrimPrefix(path.Ext(name), ".") != ext {
			continue
		}
		candidates = append(candidates, name)
	}

	if len(candidates) == 0 {
		return []string{}
	}
	n := min(rnd.Intn(3)+1, len(candidates))
	return candidates[:n]
}
