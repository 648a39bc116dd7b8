package bridge

import (
	"context"
	"log/slog"
	"unicode/utf8"
)

const previewLen = 120

// logPayload logs a transfer at INFO (size and file) and at DEBUG a text
// preview of up to 120 characters, or only the size for binary data.
func logPayload(event, path string, data []byte) {
	slog.Info(event, "path", path, "size_bytes", len(data))

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	if !utf8.Valid(data) {
		slog.Debug("clipboard payload", "binary", true, "size_bytes", len(data))
		return
	}
	preview := []rune(string(data))
	if len(preview) > previewLen {
		slog.Debug("clipboard payload", "preview", string(preview[:previewLen])+"…")
		return
	}
	slog.Debug("clipboard payload", "preview", string(preview))
}
