package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"

	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
)

const pageExtractTimeout = 10 * time.Second

// sidecar is the optional <name>.json written next to a transcript by the transcription stage.
type sidecar struct {
	DocumentId  string            `json:"document_id"`
	Title       string            `json:"title"`
	Source      string            `json:"source"`
	Published   string            `json:"published"`
	Duration    float64           `json:"duration"` // seconds
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

func getDocType(docPath string) commonModels.DocType {
	switch strings.ToLower(filepath.Ext(docPath)) {
	case ".pdf":
		return commonModels.PDF
	case ".docx":
		return commonModels.DOCX
	case ".txt":
		return commonModels.TXT
	case ".rtf":
		return commonModels.RTF
	case ".odt":
		return commonModels.ODT
	default:
		return commonModels.ERR
	}
}

// Supported reports whether name has an extension the loader can extract text from.
func Supported(name string) bool {
	return getDocType(name) != commonModels.ERR
}

// LoadFile reads a transcript and the sidecar metadata next to it, if any.
func LoadFile(path string) (commonModels.Document, error) {
	return LoadNamed(path, filepath.Base(path))
}

// LoadNamed reads the transcript stored at path as if it were called name, which supplies the
// document id, the title and the file type when no sidecar says otherwise.
func LoadNamed(path, name string) (commonModels.Document, error) {
	docType := getDocType(name)
	if docType == commonModels.ERR {
		return commonModels.Document{}, ragErrors.Ingestion("load", "unsupported file type %q", filepath.Ext(name))
	}

	text, err := extractText(path, docType)
	if err != nil {
		return commonModels.Document{}, ragErrors.New(ragErrors.KindIngestion, "load", name, err)
	}
	if !utf8.ValidString(text) {
		return commonModels.Document{}, ragErrors.Ingestion("load", "%s is not valid UTF-8", name)
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	doc := commonModels.Document{
		Id:          stem,
		Title:       stem,
		Source:      name,
		Text:        text,
		ContentType: docType,
	}

	meta, err := readSidecar(strings.TrimSuffix(path, filepath.Ext(path)) + ".json")
	if err != nil {
		return commonModels.Document{}, ragErrors.New(ragErrors.KindIngestion, "load sidecar", name, err)
	}
	if meta != nil {
		applySidecar(&doc, meta)
	}
	return doc, nil
}

// LoadDir loads every supported transcript directly inside dir, in name order. Files that cannot
// be read are logged and reported as failures; an error is returned only when dir itself cannot be listed.
func LoadDir(dir string) ([]commonModels.Document, []DocumentFailure, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, ragErrors.New(ragErrors.KindIngestion, "load directory", dir, err)
	}

	var docs []commonModels.Document
	var failures []DocumentFailure
	for _, entry := range entries {
		if entry.IsDir() || !Supported(entry.Name()) {
			continue
		}
		doc, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err == nil && strings.TrimSpace(doc.Text) == "" {
			err = ragErrors.Ingestion("load", "%s has no text", entry.Name())
		}
		if err != nil {
			logger.Warn("skipping unreadable transcript", "dir", dir, "file", entry.Name(), "error", err)
			failures = append(failures, DocumentFailure{DocumentId: entry.Name(), Error: err.Error()})
			continue
		}
		docs = append(docs, doc)
	}
	logger.Info("transcript directory loaded", "dir", dir, "documents", len(docs), "failures", len(failures))
	return docs, failures, nil
}

func readSidecar(path string) (*sidecar, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta sidecar
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return &meta, nil
}

func applySidecar(doc *commonModels.Document, meta *sidecar) {
	if meta.DocumentId != "" {
		doc.Id = meta.DocumentId
	}
	if meta.Title != "" {
		doc.Title = meta.Title
	}
	if meta.Source != "" {
		doc.Source = meta.Source
	}
	if meta.Duration > 0 {
		doc.Duration = time.Duration(meta.Duration * float64(time.Second))
	}
	doc.Description = meta.Description
	doc.Metadata = meta.Metadata
	if meta.Published != "" {
		if t, ok := parsePublished(meta.Published); ok {
			doc.Published = t
		} else {
			logger.Warn("ignoring unparseable publish date", "document", doc.Id, "published", meta.Published)
		}
	}
}

func parsePublished(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, time.RFC1123Z, time.RFC1123, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func extractText(path string, contentType commonModels.DocType) (string, error) {
	switch contentType {
	case commonModels.PDF:
		return extractPDF(path)
	case commonModels.DOCX, commonModels.TXT, commonModels.RTF, commonModels.ODT:
		return extractWithCat(path)
	default:
		return "", fmt.Errorf("unsupported content type: %s", contentType)
	}
}

func extractPDF(path string) (string, error) {
	f, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []string
	numPages := f.NumPage()
	logger.Debug("extracting pdf", "path", path, "pages", numPages)
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := protectExtract(page)
		if err != nil {
			// a broken page should not sink the whole transcript
			logger.Warn("skipping unreadable pdf page", "path", path, "page", i, "error", err)
			continue
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, "\n\n"), nil
}

// extractWithCat reads a .odt, .docx, .rtf or plaintext file.
func extractWithCat(path string) (string, error) {
	text, err := cat.File(path)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return text, nil
}

func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(pageExtractTimeout):
		return "", errors.New("page extraction timed out")
	}
}
