// Package media turns channel media references into inline data URIs.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/soyeahso/cupid/internal/domain"
)

// DefaultMIME is used when the downloaded bytes do not sniff as an image.
const DefaultMIME = "image/jpeg"

// ResolutionError reports a failed download or read of a media reference.
type ResolutionError struct {
	Ref string
	Op  string // "download" | "read"
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("media %s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// EncodeDataURI downloads ref through src, reads it and returns it as a
// base64 data URI. The downloaded file is always removed, even when reading
// it fails.
func EncodeDataURI(ctx context.Context, src domain.MediaSource, ref string) (string, error) {
	if src == nil {
		return "", &ResolutionError{Ref: ref, Op: "download", Err: fmt.Errorf("channel cannot download media")}
	}
	path, err := src.Download(ctx, ref)
	if err != nil {
		return "", &ResolutionError{Ref: ref, Op: "download", Err: err}
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ResolutionError{Ref: ref, Op: "read", Err: err}
	}
	return DataURI(data), nil
}

// DataURI encodes data with its sniffed image MIME type.
func DataURI(data []byte) string {
	return "data:" + DetectMIME(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DetectMIME sniffs data and falls back to DefaultMIME for anything that is
// not recognisably an image.
func DetectMIME(data []byte) string {
	if len(data) == 0 {
		return DefaultMIME
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return DefaultMIME
	}
	return mime
}
