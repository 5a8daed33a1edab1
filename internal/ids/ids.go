// Package ids provides deterministic identifier generation and content
// fingerprinting for reproducible dataset builds.
package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ticketNumberBase keeps generated ticket numbers in a realistic range
// instead of starting at 1.
const ticketNumberBase = 1400

// Generator mints IDs from a seed and a per-prefix counter map. Counters
// are monotonic and process-local; restoring a counter snapshot is required
// for cross-run determinism on resume. Not safe for concurrent use — the
// workflow owns a single instance.
type Generator struct {
	seed     int64
	counters map[string]int
}

// NewGenerator creates a generator with all counters at zero.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		seed:     seed,
		counters: make(map[string]int),
	}
}

// Seed returns the seed the generator was created with.
func (g *Generator) Seed() int64 {
	return g.seed
}

func (g *Generator) next(prefix string) int {
	g.counters[prefix]++
	return g.counters[prefix]
}

// PersonID returns the next person ID, e.g. PER-0001.
func (g *Generator) PersonID() string {
	return fmt.Sprintf("PER-%04d", g.next("PER"))
}

// TeamID derives a team ID from the team name, e.g. TEAM-PAY.
func (g *Generator) TeamID(name string) string {
	key := strings.ReplaceAll(strings.ToUpper(name), " ", "")
	if len(key) > 3 {
		key = key[:3]
	}
	return "TEAM-" + key
}

// ProjectID derives a project ID from the project key, e.g. PROJ-PAY.
func (g *Generator) ProjectID(key string) string {
	return "PROJ-" + strings.ToUpper(key)
}

// EpicID returns the next epic ID for a project key, e.g. EPIC-PAY-01.
func (g *Generator) EpicID(projectKey string) string {
	counter := g.next("EPIC-" + projectKey)
	return fmt.Sprintf("EPIC-%s-%02d", strings.ToUpper(projectKey), counter)
}

// TicketID returns the next ticket ID for a project key, e.g. PAY-1401.
func (g *Generator) TicketID(projectKey string) string {
	counter := g.next("TICKET-" + projectKey)
	return fmt.Sprintf("%s-%d", strings.ToUpper(projectKey), ticketNumberBase+counter)
}

// SprintID returns the next sprint ID, e.g. SPRINT-1.
func (g *Generator) SprintID() string {
	return fmt.Sprintf("SPRINT-%d", g.next("SPRINT"))
}

// ThreadID returns the next mail thread ID, e.g. MAIL-TH-009.
func (g *Generator) ThreadID() string {
	return fmt.Sprintf("MAIL-TH-%03d", g.next("THREAD"))
}

// MessageID returns the next mail message ID, e.g. MSG-031.
func (g *Generator) MessageID() string {
	return fmt.Sprintf("MSG-%03d", g.next("MSG"))
}

// Snapshot returns a copy of the counter state for checkpointing.
func (g *Generator) Snapshot() map[string]int {
	out := make(map[string]int, len(g.counters))
	for k, v := range g.counters {
		out[k] = v
	}
	return out
}

// Restore replaces the counter state, typically from a checkpoint snapshot.
func (g *Generator) Restore(counters map[string]int) {
	g.counters = make(map[string]int, len(counters))
	for k, v := range counters {
		g.counters[k] = v
	}
}

// Reset clears all counters.
func (g *Generator) Reset() {
	g.counters = make(map[string]int)
}

// canonicalize produces a stable representation of v: JSON with map keys
// sorted recursively. Structs are round-tripped through generic maps so
// field declaration order does not leak into the hash.
func canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshalling for fingerprint: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("normalizing for fingerprint: %w", err)
	}
	// encoding/json writes map keys in sorted order.
	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonical marshalling: %w", err)
	}
	return canonical, nil
}

// ContentFingerprint returns the SHA-256 hex digest of the canonical form
// of v, for single-artifact integrity checks.
func ContentFingerprint(v any) (string, error) {
	canonical, err := canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// BatchFingerprint hashes the sorted set of each item's individual
// fingerprint, so the result is invariant under item reordering.
func BatchFingerprint[T any](items []T) (string, error) {
	fingerprints := make([]string, 0, len(items))
	for _, item := range items {
		fp, err := ContentFingerprint(item)
		if err != nil {
			return "", err
		}
		fingerprints = append(fingerprints, fp)
	}
	sort.Strings(fingerprints)
	sum := sha256.Sum256([]byte(strings.Join(fingerprints, ":")))
	return hex.EncodeToString(sum[:]), nil
}

// VerifyIntegrity reports whether v's fingerprint matches the expected hash.
func VerifyIntegrity(v any, expected string) bool {
	actual, err := ContentFingerprint(v)
	if err != nil {
		return false
	}
	return actual == expected
}

// ShortHash returns the first n hex characters of content's SHA-256 digest.
func ShortHash(content string, n int) string {
	sum := sha256.Sum256([]byte(content))
	full := hex.EncodeToString(sum[:])
	if n > len(full) {
		n = len(full)
	}
	return full[:n]
}
