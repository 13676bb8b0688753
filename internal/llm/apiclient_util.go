package llm

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// splitDataURI decodes a base64 data URI into its MIME type and bytes.
func splitDataURI(uri string) (string, []byte, error) {
	mime, b64, err := splitDataURIBase64(uri)
	if err != nil {
		return "", nil, err
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", nil, fmt.Errorf("decoding data URI: %w", err)
	}
	return mime, data, nil
}

// splitDataURIBase64 returns the MIME type and the still-encoded payload.
func splitDataURIBase64(uri string) (string, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", "", fmt.Errorf("not a data URI")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", fmt.Errorf("malformed data URI")
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", "", fmt.Errorf("data URI is not base64 encoded")
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	return mime, payload, nil
}

// prependSystem folds any RoleSystem history entries into the system prompt,
// in order, for providers that take the system prompt out of band.
func prependSystem(system string, msgs []Message) string {
	parts := []string{}
	if system != "" {
		parts = append(parts, system)
	}
	for _, m := range msgs {
		if m.Role == RoleSystem && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
