package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// FileExtractor turns an uploaded document into plain text. Dispatch is by
// file extension; unknown extensions return ErrUnsupportedFile so the caller
// can record a failure placeholder.
type FileExtractor struct {
	PDF          *PDFExtractor
	Audio        AudioTranscriber
	MaxBodyChars int
}

// ErrUnsupportedFile is returned for extensions the extractor cannot handle.
var ErrUnsupportedFile = fmt.Errorf("unsupported file type")

// NewFileExtractor creates a file extractor with the given PDF and audio
// backends.
func NewFileExtractor(pdf *PDFExtractor, audio AudioTranscriber, maxBodyChars int) *FileExtractor {
	return &FileExtractor{PDF: pdf, Audio: audio, MaxBodyChars: maxBodyChars}
}

// Extract reads the document at path and returns its text. filename carries
// the original upload name whose extension picks the parser. forceOCR only
// affects PDFs.
func (f *FileExtractor) Extract(ctx context.Context, path, filename string, forceOCR bool) (*Result, error) {
	var (
		body   string
		method string
		err    error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		body, method, err = f.PDF.Extract(ctx, path, forceOCR)
	case ".docx":
		body, err = extractDocx(path)
		method = "docx"
	case ".xlsx":
		body, err = extractXlsx(path)
		method = "xlsx"
	case ".txt", ".md", ".csv", ".json":
		body, err = readTextFile(path)
		method = "plain-text"
	case ".mp3", ".mp4", ".wav", ".m4a", ".webm":
		if f.Audio == nil {
			return nil, fmt.Errorf("audio transcription is not configured")
		}
		body, err = f.Audio.TranscribeFile(ctx, path)
		method = "audio-transcription"
	default:
		return nil, ErrUnsupportedFile
	}
	if err != nil {
		return nil, err
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("no text extracted from %s", filename)
	}
	if f.MaxBodyChars > 0 && len(body) > f.MaxBodyChars {
		body = body[:f.MaxBodyChars] + TruncationMarker
	}

	title := strings.TrimSuffix(filename, filepath.Ext(filename))
	return &Result{Title: title, Body: body, Method: method}, nil
}

// extractDocx pulls paragraph text from word/document.xml inside the zip.
func extractDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	var doc io.ReadCloser
	for _, zf := range zr.File {
		if zf.Name == "word/document.xml" {
			doc, err = zf.Open()
			if err != nil {
				return "", fmt.Errorf("open docx body: %w", err)
			}
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("docx has no document body")
	}
	defer doc.Close()

	// Walk the XML stream collecting w:t runs, breaking paragraphs at w:p.
	dec := xml.NewDecoder(doc)
	var sb strings.Builder
	var inText bool
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

// extractXlsx renders each sheet as tab-separated rows under a sheet header.
func extractXlsx(path string) (string, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer wb.Close()

	var sb strings.Builder
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		sb.WriteString("## " + sheet + "\n")
		for _, row := range rows {
			if line := strings.TrimSpace(strings.Join(row, "\t")); line != "" {
				sb.WriteString(line + "\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// readTextFile reads a plain-text file, decoding as UTF-8 with a Latin-1
// fallback for legacy exports.
func readTextFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	// Latin-1: each byte maps directly to the same code point.
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes), nil
}
