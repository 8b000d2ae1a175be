package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPDFText validates the document with pdfcpu, dumps the page content
// streams, and decodes the text-showing operators from them.
func extractPDFText(data []byte) (string, error) {
	workDir, err := os.MkdirTemp("", "pdf-extract-*")
	if err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inFile := filepath.Join(workDir, "in.pdf")
	if err := os.WriteFile(inFile, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to stage PDF: %w", err)
	}

	outDir := filepath.Join(workDir, "content")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create content dir: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ExtractContentFile(inFile, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("pdfcpu content extraction: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("failed to list content files: %w", err)
	}

	var pages []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			return "", fmt.Errorf("failed to read content stream: %w", err)
		}
		if page := decodeTextOperators(content); page != "" {
			pages = append(pages, page)
		}
	}

	return strings.Join(pages, "\n"), nil
}

// decodeTextOperators pulls the string literals out of a PDF content
// stream. Literals appear as parenthesized strings consumed by Tj/TJ/'
// operators; nesting and backslash escapes follow the PDF string syntax.
func decodeTextOperators(content []byte) string {
	var out strings.Builder
	depth := 0
	escaped := false

	for i := 0; i < len(content); i++ {
		c := content[i]

		if depth == 0 {
			if c == '(' {
				depth = 1
			}
			continue
		}

		if escaped {
			switch c {
			case 'n':
				out.WriteByte('\n')
			case 't':
				out.WriteByte('\t')
			case 'r', 'b', 'f':
				out.WriteByte(' ')
			case '(', ')', '\\':
				out.WriteByte(c)
			}
			escaped = false
			continue
		}

		switch c {
		case '\\':
			escaped = true
		case '(':
			depth++
			out.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				out.WriteByte(' ')
			} else {
				out.WriteByte(c)
			}
		default:
			out.WriteByte(c)
		}
	}

	return strings.TrimSpace(out.String())
}
