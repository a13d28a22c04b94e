package analysis

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	// Frame decode support beyond the stdlib formats.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/mediamod/analysis-server/internal/logger"
)

// stageFrame validates that data decodes as an image and writes it to a
// temporary file for the duration of backend inference. The returned cleanup
// must run on every exit path.
func stageFrame(data []byte) (string, func(), error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("not a decodable image: %w", err)
	}
	logger.Debug("Staging", "frame decoded as %s (%d bytes)", format, len(data))

	return stageBytes(data, "frame-*.jpg")
}

// stageAudio writes audio bytes to a temporary file. Audio content is not
// decoded here (the speech backend owns that); only empty input is rejected.
// The suffix is taken from the filename hint so the backend can sniff the
// container format, defaulting to .wav.
func stageAudio(data []byte, filenameHint string) (string, func(), error) {
	if len(data) == 0 {
		return "", nil, fmt.Errorf("empty audio payload")
	}

	suffix := ".wav"
	if ext := filepath.Ext(filenameHint); ext != "" && isSafeSuffix(ext) {
		suffix = strings.ToLower(ext)
	}

	return stageBytes(data, "audio-*"+suffix)
}

func stageBytes(data []byte, pattern string) (string, func(), error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}

	path := tmp.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("Staging", "failed to remove %s: %v", path, err)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}

	return path, cleanup, nil
}

// isSafeSuffix rejects hints that would escape the temp file pattern.
func isSafeSuffix(ext string) bool {
	if len(ext) > 8 {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return len(ext) > 1
}
