package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dshills/watchgraph/internal/schema"
)

// MaxEvidenceBytes is the largest file accepted for upload.
const MaxEvidenceBytes = 25 * 1024 * 1024

// EvidenceTypes lists the accepted file extensions, without the dot.
var EvidenceTypes = []string{"pdf", "png", "jpg", "jpeg", "xlsx", "docx", "csv"}

var (
	ErrEvidenceType = errors.New("evidence file type not allowed (allowed: " + strings.Join(EvidenceTypes, ", ") + ")")
	ErrEvidenceSize = fmt.Errorf("evidence file exceeds %d MiB", MaxEvidenceBytes/(1024*1024))
)

// CheckEvidence validates a file name and size before upload.
func CheckEvidence(name string, size int64) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" || !slices.Contains(EvidenceTypes, ext) {
		return fmt.Errorf("%s: %w", name, ErrEvidenceType)
	}
	if size > MaxEvidenceBytes {
		return fmt.Errorf("%s: %w", name, ErrEvidenceSize)
	}
	return nil
}

type evidenceList struct {
	Items []schema.Evidence `json:"items"`
}

// ListEvidence returns the evidence attached to a mapping.
func (c *Client) ListEvidence(ctx context.Context, mappingID string) ([]schema.Evidence, error) {
	var out evidenceList
	if err := c.doJSON(ctx, http.MethodGet, "/api/requirements/"+escape(mappingID)+"/evidence", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// UploadEvidence attaches the file at path to a mapping.
func (c *Client) UploadEvidence(ctx context.Context, mappingID, path string) (schema.Evidence, error) {
	info, err := os.Stat(path)
	if err != nil {
		return schema.Evidence{}, fmt.Errorf("evidence file: %w", err)
	}
	if info.IsDir() {
		return schema.Evidence{}, fmt.Errorf("evidence file %s is a directory", path)
	}
	if err := CheckEvidence(info.Name(), info.Size()); err != nil {
		return schema.Evidence{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return schema.Evidence{}, fmt.Errorf("evidence file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", info.Name())
	if err != nil {
		return schema.Evidence{}, fmt.Errorf("building upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return schema.Evidence{}, fmt.Errorf("reading evidence file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return schema.Evidence{}, fmt.Errorf("building upload: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, "/api/requirements/"+escape(mappingID)+"/evidence", &buf, mw.FormDataContentType())
	if err != nil {
		return schema.Evidence{}, err
	}
	var ev schema.Evidence
	if err := decode(raw, &ev); err != nil {
		return schema.Evidence{}, err
	}
	return ev, nil
}

type downloadResponse struct {
	DownloadURL string `json:"download_url"`
}

// EvidenceDownloadURL returns a signed, time-limited download URL.
func (c *Client) EvidenceDownloadURL(ctx context.Context, evidenceID string) (string, error) {
	var out downloadResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/evidence/"+escape(evidenceID)+"/download", nil, &out); err != nil {
		return "", err
	}
	if out.DownloadURL == "" {
		return "", errors.New("download response: download_url is missing")
	}
	return out.DownloadURL, nil
}

// DeleteEvidence removes an evidence record.
func (c *Client) DeleteEvidence(ctx context.Context, evidenceID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/evidence/"+escape(evidenceID), nil, nil)
}
