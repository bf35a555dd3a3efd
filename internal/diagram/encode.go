// Package diagram encodes PlantUML text for a PlantUML server and fetches
// the rendered PNG.
package diagram

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

const (
	zlibHeaderLen  = 2
	zlibTrailerLen = 4
)

// Encode compresses text with zlib, strips the zlib header and Adler-32
// trailer, and encodes the raw deflate stream as URL-safe base64.
func Encode(text string) string {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	// writes into a bytes.Buffer cannot fail
	_, _ = zw.Write([]byte(text))
	_ = zw.Close()

	compressed := buf.Bytes()
	raw := compressed[zlibHeaderLen : len(compressed)-zlibTrailerLen]
	return base64.URLEncoding.EncodeToString(raw)
}

// Decode reverses Encode
func Decode(token string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("invalid diagram token: %w", err)
	}

	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	text, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to inflate diagram token: %w", err)
	}
	return string(text), nil
}

var plantUMLBlock = regexp.MustCompile(`(?s)@startuml.*?@enduml`)

// ExtractPlantUML returns the first @startuml … @enduml block in text, or
// text itself (trimmed) when there is none. Models tend to wrap diagrams in
// prose or code fences.
func ExtractPlantUML(text string) string {
	if block := plantUMLBlock.FindString(text); block != "" {
		return block
	}
	return strings.TrimSpace(text)
}
