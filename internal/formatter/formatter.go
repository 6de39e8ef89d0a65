// package formatter writes exported collections to disk as JSON or CSV, plus a manifest and optional zip archive
package formatter

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/spotx/internal/models"
)

const ManifestName = "export_manifest.json"

// Formats lists the supported output formats.
var Formats = []string{"json", "csv"}

// wrapperKeys are the keys saved-item records nest their entity under, e.g. {"added_at", "track"}.
var wrapperKeys = []string{"track", "album", "show", "episode", "audiobook"}

// ToJSON renders a collection as indented {"total", "items"} JSON.
func ToJSON(col *models.Collection) ([]byte, error) {
	data, err := json.MarshalIndent(col, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", col.Resource, err)
	}
	return append(data, '\n'), nil
}

// ToCSV flattens a collection into one row per item with columns: Position, ID, Name, Artists, URI, Added At
func ToCSV(col *models.Collection) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Position", "ID", "Name", "Artists", "URI", "Added At"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, raw := range col.Items {
		row := summarize(raw)
		record := []string{strconv.Itoa(i + 1), row.ID, row.Name, strings.Join(row.Artists, "; "), row.URI, row.AddedAt}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// Summary is the flat view of one exported item used for CSV rows.
type Summary struct {
	ID      string
	Name    string
	URI     string
	AddedAt string
	Artists []string
}

type entity struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URI     string `json:"uri"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Publisher string `json:"publisher"`
}

// summarize extracts the common fields, unwrapping saved-item records.
func summarize(raw json.RawMessage) Summary {
	var record map[string]json.RawMessage
	if err := json.Unmarshal(raw, &record); err != nil {
		return Summary{}
	}

	var s Summary
	_ = json.Unmarshal(record["added_at"], &s.AddedAt)

	body := raw
	for _, key := range wrapperKeys {
		if inner, ok := record[key]; ok && len(inner) > 0 && inner[0] == '{' {
			body = inner
			break
		}
	}

	var e entity
	if err := json.Unmarshal(body, &e); err != nil {
		return s
	}
	s.ID, s.Name, s.URI = e.ID, e.Name, e.URI
	for _, a := range e.Artists {
		s.Artists = append(s.Artists, a.Name)
	}
	for _, a := range e.Authors {
		s.Artists = append(s.Artists, a.Name)
	}
	if len(s.Artists) == 0 && e.Publisher != "" {
		s.Artists = []string{e.Publisher}
	}
	return s
}

// WriteCollection writes col to dir as <resource>.<format> and returns the file path.
func WriteCollection(dir string, col *models.Collection, format string) (string, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case "csv":
		data, err = ToCSV(col)
	case "json", "":
		format = "json"
		data, err = ToJSON(col)
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, col.Resource+"."+format)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// WriteManifest writes a summary of run to dir and returns the file path.
func WriteManifest(dir string, run *models.ExportRun) (string, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// Archive zips the regular files under dir into zipPath, with paths relative to dir.
func Archive(dir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	zw := zip.NewWriter(out)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == absPath(zipPath) {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return addFile(zw, path, filepath.ToSlash(rel))
	})

	closeErr := zw.Close()
	if err := out.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	if walkErr != nil {
		_ = os.Remove(zipPath)
		return fmt.Errorf("failed to archive %s: %w", dir, walkErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to finish archive: %w", closeErr)
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
