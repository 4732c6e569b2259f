package assets

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// OCREngine extracts text from one slide image. Implementations are external
// collaborators: any failure degrades to a null ocr_text, never a hard one.
type OCREngine interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// TesseractEngine shells out to a locally installed tesseract binary.
type TesseractEngine struct {
	// Binary is the tesseract executable. Default: "tesseract".
	Binary string
	// Timeout bounds one extraction. Default: 20s.
	Timeout time.Duration
}

// ExtractText runs tesseract on the image and returns collapsed plain text.
func (e *TesseractEngine) ExtractText(ctx context.Context, imagePath string) (string, error) {
	bin := e.Binary
	if bin == "" {
		bin = "tesseract"
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, imagePath, "stdout")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract %s: %w (%s)", imagePath, err, strings.TrimSpace(stderr.String()))
	}
	return strings.Join(strings.Fields(out.String()), " "), nil
}
