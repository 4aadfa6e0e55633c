// Package extract pulls plain text out of stored résumé PDFs for text-only scorers.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"resumind-backend/internal/shared/storage/object"
)

// ErrNoText is returned when a PDF parses but yields no text (scanned images).
var ErrNoText = errors.New("document contains no extractable text")

// Text reads the PDF at path from store and returns its plain text.
func Text(ctx context.Context, store object.Store, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := object.ReadAll(ctx, store, path)
	if err != nil {
		return "", fmt.Errorf("extract text path=%s: %w", path, err)
	}
	text, err := PDFText(raw)
	if err != nil {
		return "", fmt.Errorf("extract text path=%s: %w", path, err)
	}
	return text, nil
}

// PDFText extracts text from an in-memory PDF.
func PDFText(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", errors.New("empty pdf data")
	}
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	out := normalizeWhitespace(buf.String())
	if out == "" {
		return "", ErrNoText
	}
	return out, nil
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
