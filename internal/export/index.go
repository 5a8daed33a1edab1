package export

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/orgforge/internal/ids"
	"github.com/ajitpratap0/orgforge/internal/okg"
)

const (
	generatorVersion = "1.0.0"
	schemaVersion    = "1.0"
)

// IndexStatistics extends entity counts with categorical breakdowns.
type IndexStatistics struct {
	okg.Statistics
	TicketsByType     map[string]int `json:"tickets_by_type"`
	TicketsByPriority map[string]int `json:"tickets_by_priority"`
	MailByCategory    map[string]int `json:"mail_by_category"`
}

// BuildStatistics computes the index statistics block from the repository.
func BuildStatistics(repo *okg.Repository) IndexStatistics {
	stats := IndexStatistics{
		Statistics:        repo.Statistics(),
		TicketsByType:     make(map[string]int),
		TicketsByPriority: make(map[string]int),
		MailByCategory:    make(map[string]int),
	}
	for _, t := range repo.Tickets() {
		stats.TicketsByType[string(t.Type)]++
		stats.TicketsByPriority[string(t.Priority)]++
	}
	for _, personID := range repo.MailboxOwners() {
		for _, m := range repo.GetPersonMail(personID) {
			stats.MailByCategory[string(m.Category)]++
		}
	}
	return stats
}

// WriteIndex writes index.json: generation metadata, the aggregated file
// manifest, statistics, and an integrity block whose manifest_hash is the
// order-invariant batch fingerprint of all manifest entries.
func (w *Writer) WriteIndex(manifests []ManifestEntry, stats IndexStatistics, runID string, seed int64) (ManifestEntry, error) {
	totalRecords := 0
	for _, m := range manifests {
		totalRecords += m.RecordCount
	}
	manifestHash, err := ids.BatchFingerprint(manifests)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("hashing manifest: %w", err)
	}

	index := map[string]any{
		"generation_metadata": map[string]any{
			"generated_at":      time.Now().UTC().Format(time.RFC3339),
			"generator_version": generatorVersion,
			"schema_version":    schemaVersion,
			"run_id":            runID,
			"seed":              seed,
		},
		"file_manifest": manifests,
		"statistics":    stats,
		"integrity": map[string]any{
			"total_files":   len(manifests),
			"total_records": totalRecords,
			"manifest_hash": manifestHash,
		},
	}
	return w.WriteJSON(index, "index.json")
}
