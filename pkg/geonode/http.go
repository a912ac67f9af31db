package geonode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/avorra/geobridge/pkg/credentials"
	"github.com/avorra/geobridge/pkg/logger"
)

// doer is the request core shared by both dialects: it attaches the
// resolved credential, executes the request, and classifies failures
// into the typed taxonomy. Authentication failures are classified
// exactly once per call and never retried here.
type doer struct {
	baseURL    string
	cred       credentials.Credential
	httpClient *http.Client
	log        *logger.Logger
}

func (d *doer) authorize(req *http.Request) {
	switch d.cred.Type {
	case credentials.TypeBasic:
		req.SetBasicAuth(d.cred.Username, d.cred.Password)
	case credentials.TypeToken:
		req.Header.Set("Authorization", "Bearer "+d.cred.Token)
	}
}

func (d *doer) do(req *http.Request) (*http.Response, error) {
	d.authorize(req)

	resp, err := d.httpClient.Do(req)

	if err != nil {
		return nil, classifyTransport(err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, classifyStatus(resp.StatusCode, readServerMessage(resp.Body))
	}

	return resp, nil
}

// getJSON performs a GET and decodes the JSON response into out.
func (d *doer) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)

	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := d.do(req)

	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}

	return nil
}

// probe issues a GET and checks that the URL answers 2xx. Used by
// API detection.
func (d *doer) probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)

	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := d.do(req)

	if err != nil {
		return err
	}

	resp.Body.Close()

	return nil
}

// getRaw performs a GET and returns the raw body. Used for style
// documents, which are XML, not JSON.
func (d *doer) getRaw(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)

	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.do(req)

	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)

	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	return body, nil
}

// postMultipart uploads the named files plus form fields and decodes
// the JSON response into out (out may be nil).
func (d *doer) postMultipart(ctx context.Context, method, url string, fields map[string]string, files map[string]string, out interface{}) error {
	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	for name, path := range files {
		f, err := os.Open(path)

		if err != nil {
			return fmt.Errorf("failed to open payload file %s: %w", path, err)
		}

		part, err := w.CreateFormFile(name, filepath.Base(path))

		if err != nil {
			f.Close()
			return fmt.Errorf("failed to create form file %s: %w", name, err)
		}

		if _, err := io.Copy(part, f); err != nil {
			f.Close()
			return fmt.Errorf("failed to copy payload file %s: %w", path, err)
		}

		f.Close()
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, &buf)

	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := d.do(req)

	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", url, err)
		}
	}

	return nil
}

// delete issues a DELETE. A 404 reports success so deletion stays
// idempotent: deleting an already-absent resource is not a failure.
func (d *doer) delete(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)

	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.do(req)

	if err != nil {
		var ge *Error
		if errors.As(err, &ge) && ge.HTTPStatus == http.StatusNotFound {
			d.log.Debug("delete target already absent", "url", url)
			return nil
		}
		return err
	}

	resp.Body.Close()

	return nil
}

func readServerMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))

	if err != nil || len(raw) == 0 {
		return ""
	}

	// GeoNode error payloads vary; try the common JSON shapes before
	// falling back to the raw body.
	var wrapped struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}

	if err := json.Unmarshal(raw, &wrapped); err == nil {
		if wrapped.Detail != "" {
			return wrapped.Detail
		}
		if wrapped.Error != "" {
			return wrapped.Error
		}
	}

	return string(raw)
}
