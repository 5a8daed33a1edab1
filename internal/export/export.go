// Package export serializes repository contents to deterministic JSON and
// JSONL files with per-file manifests and content hashes.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ajitpratap0/orgforge/internal/ids"
	"github.com/ajitpratap0/orgforge/internal/models"
	"github.com/ajitpratap0/orgforge/internal/okg"
)

// ManifestEntry describes one exported file.
type ManifestEntry struct {
	Filename      string    `json:"filename"`
	RecordCount   int       `json:"record_count"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	ContentHash   string    `json:"content_hash"`
	ExportedAt    time.Time `json:"exported_at"`
}

// Writer exports data files into a single output directory. Writes are
// idempotent: target files are overwritten.
type Writer struct {
	outDir string
	logger *slog.Logger
}

// NewWriter creates a writer rooted at outDir.
func NewWriter(outDir string, logger *slog.Logger) *Writer {
	return &Writer{outDir: outDir, logger: logger}
}

// WriteJSON serializes v with sorted keys, 2-space indentation, UTF-8,
// non-ASCII preserved literally.
func (w *Writer) WriteJSON(v any, filename string) (ManifestEntry, error) {
	data, err := marshalCanonical(v, true)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("serializing %s: %w", filename, err)
	}
	hash, err := ids.ContentFingerprint(v)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("fingerprinting %s: %w", filename, err)
	}
	return w.writeFile(filename, data, recordCount(v), hash)
}

// WriteJSONL serializes items one compact JSON object per line. The file
// hash is the order-invariant batch fingerprint of the items.
func (w *Writer) WriteJSONL(items []any, filename string) (ManifestEntry, error) {
	var buf bytes.Buffer
	for _, item := range items {
		line, err := marshalCanonical(item, false)
		if err != nil {
			return ManifestEntry{}, fmt.Errorf("serializing %s: %w", filename, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	hash, err := ids.BatchFingerprint(items)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("fingerprinting %s: %w", filename, err)
	}
	return w.writeFile(filename, buf.Bytes(), len(items), hash)
}

func (w *Writer) writeFile(filename string, data []byte, records int, hash string) (ManifestEntry, error) {
	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		return ManifestEntry{}, fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(w.outDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ManifestEntry{}, fmt.Errorf("writing %s: %w", filename, err)
	}
	entry := ManifestEntry{
		Filename:      filename,
		RecordCount:   records,
		FileSizeBytes: int64(len(data)),
		ContentHash:   hash,
		ExportedAt:    time.Now().UTC(),
	}
	w.logger.Info("export completed", "filename", filename, "records", records, "bytes", entry.FileSizeBytes)
	return entry, nil
}

// ExportTickets writes jira.json: the ticket array sorted ascending by
// ticket ID.
func (w *Writer) ExportTickets(repo *okg.Repository) (ManifestEntry, error) {
	return w.WriteJSON(repo.Tickets(), "jira.json")
}

// ExportMailboxes writes mail_<person_id>.jsonl for every person with at
// least one message, each mailbox sorted ascending by timestamp. Returns
// one manifest entry per file.
func (w *Writer) ExportMailboxes(repo *okg.Repository) ([]ManifestEntry, error) {
	var entries []ManifestEntry
	for _, personID := range repo.MailboxOwners() {
		messages := append([]models.MailMessage(nil), repo.GetPersonMail(personID)...)
		if len(messages) == 0 {
			continue
		}
		sort.SliceStable(messages, func(i, j int) bool {
			return messages[i].Timestamp.Before(messages[j].Timestamp)
		})
		items := make([]any, len(messages))
		for i, m := range messages {
			items[i] = m
		}
		entry, err := w.WriteJSONL(items, fmt.Sprintf("mail_%s.jsonl", personID))
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// marshalCanonical renders v as JSON with recursively sorted keys and,
// optionally, 2-space indentation. HTML escaping is off so non-ASCII and
// angle brackets survive byte-for-byte.
func marshalCanonical(v any, indent bool) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	// Encoder appends a newline; compact lines add their own.
	return bytes.TrimRight(out, "\n"), nil
}

func recordCount(v any) int {
	raw, err := json.Marshal(v)
	if err != nil {
		return 1
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return 1
	}
	if list, ok := generic.([]any); ok {
		return len(list)
	}
	return 1
}
