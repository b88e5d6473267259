package llmgateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
)

// visionSentinel is returned whenever vision preprocessing fails for any
// reason, so the downstream headline prompt is told explicitly not to
// guess at image content rather than silently omitting it (§4.4).
const visionSentinel = "[image unavailable: could not be analyzed — do not speculate about its contents]"

const (
	maxVisionDimension = 1024
	minVisionDimension = 32
	alignment          = 32
)

var rejectedTextMarkers = []string{"<!DOCTYPE", "<html", "{\"error", "access denied", "Access Denied"}

// Vision fetches imageURL, validates and recompresses it to fit the
// model's expected input shape, and returns the model's text output. Any
// failure along the way yields the stable sentinel instead of an error.
func (g *OllamaGateway) Vision(ctx context.Context, imageURL string) (string, error) {
	data, err := func() ([]byte, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, visionTimeout)
		defer cancel()
		return fetchImageBytes(fetchCtx, g.client, imageURL)
	}()
	if err != nil {
		g.logger.Warn("vision fetch failed", "url", imageURL, "error", err)
		return visionSentinel, nil
	}

	if !looksLikeImage(data) {
		g.logger.Warn("vision input failed magic-byte sniff", "url", imageURL)
		return visionSentinel, nil
	}

	encoded, err := prepareImage(data)
	if err != nil {
		g.logger.Warn("vision image preprocessing failed", "url", imageURL, "error", err)
		return visionSentinel, nil
	}

	description, err := g.describeImage(ctx, encoded)
	if err != nil {
		g.logger.Warn("vision model call failed", "url", imageURL, "error", err)
		return visionSentinel, nil
	}
	return description, nil
}

func fetchImageBytes(ctx context.Context, client *http.Client, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 20<<20))
}

// looksLikeImage sniffs JPEG (FF D8), PNG (89 50 4E 47) and WebP
// (RIFF....WEBP) magic bytes, and rejects bodies that look like an HTML
// error page, a JSON error payload, or a literal "access denied" string
// (§4.4).
func looksLikeImage(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	for _, marker := range rejectedTextMarkers {
		if bytes.Contains(data[:min(len(data), 512)], []byte(marker)) {
			return false
		}
	}

	if bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		return true
	}
	if bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47}) {
		return true
	}
	if bytes.HasPrefix(data, []byte("RIFF")) && bytes.Contains(data[:12], []byte("WEBP")) {
		return true
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// prepareImage decodes data, constrains its long side to
// maxVisionDimension while aligning both dimensions to a multiple of
// alignment (minimum minVisionDimension), recompresses as JPEG, and
// base64-encodes the result.
func prepareImage(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	width, height := alignedSize(bounds.Dx(), bounds.Dy())

	resized := imaging.Resize(img, width, height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("encoding jpeg: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// alignedSize scales (w, h) so the long side is at most
// maxVisionDimension, then rounds both dimensions to the nearest
// multiple of alignment, clamped to at least minVisionDimension (§8:
// boundary cases 1x1 -> 32x32, 2048x1024 -> 1024x512, 2000x2000 ->
// 1024x1024).
func alignedSize(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return minVisionDimension, minVisionDimension
	}

	scale := 1.0
	long := w
	if h > long {
		long = h
	}
	if long > maxVisionDimension {
		scale = float64(maxVisionDimension) / float64(long)
	}

	scaledW := int(float64(w) * scale)
	scaledH := int(float64(h) * scale)

	return alignTo(scaledW), alignTo(scaledH)
}

func alignTo(n int) int {
	aligned := ((n + alignment/2) / alignment) * alignment
	if aligned < minVisionDimension {
		return minVisionDimension
	}
	return aligned
}

func (g *OllamaGateway) describeImage(ctx context.Context, base64JPEG string) (string, error) {
	prompt := "Describe what is shown in this image in one or two sentences."
	content := fmt.Sprintf("%s\n\n[image/jpeg;base64,%s]", prompt, base64JPEG)

	messages := []ChatMessage{{Role: "user", Content: content}}
	stream, err := g.streamChat(ctx, g.visionModel, messages)
	if err != nil {
		return "", err
	}
	defer stream.Cancel()

	for stream.Next() {
	}
	if err := stream.Err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(stream.FullText()), nil
}
