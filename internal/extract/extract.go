// Package extract turns local inputs into plain text: uploaded documents for
// preview and length checks, and web pages for text analysis.
package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var ErrUnsupported = errors.New("extract: unsupported file type")

// Document is the text pulled out of one file.
type Document struct {
	Name string
	Ext  string
	Size int64
	Text string
}

// File reads path and extracts its text.
func File(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	text, err := Bytes(ctx, filepath.Base(path), data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	return &Document{
		Name: filepath.Base(path),
		Ext:  strings.ToLower(filepath.Ext(path)),
		Size: int64(len(data)),
		Text: text,
	}, nil
}

// Bytes extracts text from an in-memory file, choosing the format from the
// file name's extension.
func Bytes(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md":
		return plain(data)
	case ".csv":
		return extractCSV(data)
	case ".srt":
		return extractSRT(data)
	case ".pdf":
		return extractPDF(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
}

func plain(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", errors.New("file is not valid UTF-8 text")
	}
	return strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n")), nil
}

// extractCSV joins the cells of every row with spaces, one row per line.
func extractCSV(data []byte) (string, error) {
	text, err := plain(data)
	if err != nil {
		return "", err
	}
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var lines []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse csv: %w", err)
		}
		var cells []string
		for _, c := range rec {
			if c = strings.TrimSpace(c); c != "" {
				cells = append(cells, c)
			}
		}
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, " "))
		}
	}
	return strings.Join(lines, "\n"), nil
}

var (
	srtTimeLineRe = regexp.MustCompile(`^\d{2}:\d{2}:\d{2},\d{3} --> \d{2}:\d{2}:\d{2},\d{3}`)
	srtIndexRe    = regexp.MustCompile(`^\d+$`)
	srtTagRe      = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
)

// extractSRT keeps only subtitle text, dropping cue indexes, timing lines
// and inline formatting tags.
func extractSRT(data []byte) (string, error) {
	text, err := plain(data)
	if err != nil {
		return "", err
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || srtIndexRe.MatchString(line) || srtTimeLineRe.MatchString(line) {
			continue
		}
		if line = strings.TrimSpace(srtTagRe.ReplaceAllString(line, "")); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), nil
}

func extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	content, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, content); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// Preview returns at most n characters of text, cut on a rune boundary.
func Preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:n])) + "..."
}
