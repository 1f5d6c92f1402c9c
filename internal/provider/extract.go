package provider

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// contentPart is one element of a multimodal message content array
type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
	InlineData *struct {
		MimeType string `json:"mime_type"`
		Data     string `json:"data"`
	} `json:"inline_data,omitempty"`
}

// extractContent handles both wire content shapes: a plain string, or an
// array of typed parts where image payloads arrive as base64 data URLs or
// as a nested inline-data object.
func extractContent(raw json.RawMessage) (string, [][]byte, error) {
	if len(raw) == 0 {
		return "", nil, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil, nil
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	var images [][]byte
	for _, part := range parts {
		switch {
		case part.Text != "":
			sb.WriteString(part.Text)
		case part.ImageURL != nil:
			if data, ok := decodeDataURL(part.ImageURL.URL); ok {
				images = append(images, data)
			}
		case part.InlineData != nil:
			if data, err := base64.StdEncoding.DecodeString(part.InlineData.Data); err == nil {
				images = append(images, data)
			}
		}
	}

	return sb.String(), images, nil
}

// decodeDataURL decodes a "data:<mime>;base64,<payload>" URL
func decodeDataURL(url string) ([]byte, bool) {
	if !strings.HasPrefix(url, "data:") {
		return nil, false
	}
	idx := strings.Index(url, ";base64,")
	if idx < 0 {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(url[idx+len(";base64,"):])
	if err != nil {
		return nil, false
	}
	return data, true
}
