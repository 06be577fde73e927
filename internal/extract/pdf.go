package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// minTextLayerChars is the cutoff below which a PDF's embedded text layer is
// considered empty (scanned document) and OCR takes over.
const minTextLayerChars = 50

// PDFExtractor reads the embedded text layer of a PDF and falls back to
// rasterize-and-OCR when the layer is missing or force-requested. OCR shells
// out to pdftoppm and tesseract, one page at a time, tolerating individual
// page failures.
type PDFExtractor struct {
	PdftoppmBinary  string
	TesseractBinary string
	Timeout         time.Duration
	Runner          CommandRunner
}

// NewPDFExtractor creates a PDF extractor using the system OCR tools.
func NewPDFExtractor(pdftoppm, tesseract string, timeout time.Duration) *PDFExtractor {
	return &PDFExtractor{
		PdftoppmBinary:  pdftoppm,
		TesseractBinary: tesseract,
		Timeout:         timeout,
		Runner:          RunCommand,
	}
}

// Extract returns the PDF's text and the method used ("pdf-text" or
// "pdf-ocr").
func (p *PDFExtractor) Extract(ctx context.Context, path string, forceOCR bool) (string, string, error) {
	if !forceOCR {
		text, err := p.textLayer(path)
		if err == nil && len(strings.TrimSpace(text)) >= minTextLayerChars {
			return text, "pdf-text", nil
		}
		if err != nil {
			slog.Warn("pdf text layer unreadable, trying OCR", "path", filepath.Base(path), "error", err)
		}
	}

	text, err := p.ocr(ctx, path)
	if err != nil {
		return "", "", err
	}
	return text, "pdf-ocr", nil
}

// textLayer reads the embedded text of every page. Encrypted documents get
// one empty-password unlock attempt, which covers most "protected" exports.
func (p *PDFExtractor) textLayer(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		f2, err2 := os.Open(path)
		if err2 != nil {
			return "", fmt.Errorf("open pdf: %w", err)
		}
		st, err2 := f2.Stat()
		if err2 != nil {
			f2.Close()
			return "", fmt.Errorf("open pdf: %w", err)
		}
		r2, err2 := pdf.NewReaderEncrypted(f2, st.Size(), func() string { return "" })
		if err2 != nil {
			f2.Close()
			return "", fmt.Errorf("open pdf: %w", err)
		}
		f, r = f2, r2
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("pdf page unreadable", "page", i, "error", err)
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// ocr rasterizes the document to PNG pages and runs tesseract on each one.
// A failed page is logged and skipped; only a fully empty result is an error.
func (p *PDFExtractor) ocr(ctx context.Context, path string) (string, error) {
	tempDir, err := os.MkdirTemp("", "pdf-ocr-*")
	if err != nil {
		return "", fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	cctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	prefix := filepath.Join(tempDir, "page")
	if _, err := p.Runner(cctx, p.PdftoppmBinary, "-png", "-r", "200", path, prefix); err != nil {
		return "", fmt.Errorf("rasterize pdf: %w", err)
	}

	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil || len(pages) == 0 {
		return "", fmt.Errorf("no pages rasterized")
	}

	var parts []string
	for i, page := range pages {
		outBase := filepath.Join(tempDir, "ocr-"+strconv.Itoa(i))
		if _, err := p.Runner(cctx, p.TesseractBinary, page, outBase); err != nil {
			slog.Warn("ocr page failed", "page", i+1, "error", err)
			continue
		}
		raw, err := os.ReadFile(outBase + ".txt")
		if err != nil {
			slog.Warn("ocr output unreadable", "page", i+1, "error", err)
			continue
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("ocr produced no text")
	}
	return strings.Join(parts, "\n\n"), nil
}
