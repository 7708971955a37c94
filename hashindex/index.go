// Package hashindex stores known image hash codes with their provenance and
// answers nearest-match queries under a Hamming distance threshold. Matching
// is a linear scan, which is fine at the volumes a guild produces; bucketing
// by hash prefix is the upgrade path if that ever changes.
package hashindex

import (
	"log/slog"
	"math/bits"
	"sort"
	"sync"
	"time"

	"github.com/cufee/botto-guardian/database"
)

// Index - Shared hash record index, write-through to the persistent store
type Index struct {
	mu      sync.RWMutex
	records []database.HashRecord
	db      *database.Store
	cap     int
	logger  *slog.Logger
}

// Match - A record within the queried distance of a candidate code
type Match struct {
	database.HashRecord
	Distance int
}

// Load - Build the index and warm it from the persistent store
func Load(db *database.Store, cap int, logger *slog.Logger) (*Index, error) {
	records, err := db.LoadHashRecords()
	if err != nil {
		return nil, err
	}
	logger.Info("hash index loaded", "records", len(records), "cap", cap)
	return &Index{records: records, db: db, cap: cap, logger: logger}, nil
}

// Insert - Store a hash record. Re-inserting the same (hash, message,
// attachment) is a no-op, so re-evaluating a message never duplicates records.
func (idx *Index) Insert(r database.HashRecord) error {
	if r.Disposition == "" {
		r.Disposition = database.DispositionObserved
	}
	if r.FirstSeen.IsZero() {
		r.FirstSeen = time.Now().UTC()
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, have := range idx.records {
		if have.Hash == r.Hash && have.MessageID == r.MessageID && have.Attachment == r.Attachment {
			return nil
		}
	}
	if err := idx.db.PutHashRecord(r); err != nil {
		return err
	}
	idx.records = append(idx.records, r)
	idx.evictLocked()
	return nil
}

// FindMatches - All records within maxDistance of code, ascending by
// distance then first-seen time. Scope is the posting guild unless global.
func (idx *Index) FindMatches(code uint64, guildID string, global bool, maxDistance int) []Match {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var matches []Match
	for _, r := range idx.records {
		if !global && r.GuildID != guildID {
			continue
		}
		d := bits.OnesCount64(r.Hash ^ code)
		if d <= maxDistance {
			matches = append(matches, Match{HashRecord: r, Distance: d})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].FirstSeen.Before(matches[j].FirstSeen)
	})
	return matches
}

// Flag - Mark every observed record with this exact code as flagged. When the
// code was never seen before, a bare flagged record is created so content
// banned elsewhere is caught on first appearance here.
func (idx *Index) Flag(code uint64, guildID string) (int, error) {
	return idx.setDisposition(code, guildID, database.DispositionFlagged)
}

// Clear - Mark every observed record with this exact code as cleared
func (idx *Index) Clear(code uint64, guildID string) (int, error) {
	return idx.setDisposition(code, guildID, database.DispositionCleared)
}

func (idx *Index) setDisposition(code uint64, guildID, disposition string) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	changed := 0
	seen := false
	for i, r := range idx.records {
		if r.Hash != code {
			continue
		}
		seen = true
		// Observed is the only state a moderator action can move.
		if r.Disposition != database.DispositionObserved {
			continue
		}
		r.Disposition = disposition
		if err := idx.db.PutHashRecord(r); err != nil {
			return changed, err
		}
		idx.records[i] = r
		changed++
	}

	if !seen && disposition == database.DispositionFlagged {
		r := database.HashRecord{
			Hash:        code,
			GuildID:     guildID,
			FirstSeen:   time.Now().UTC(),
			Disposition: database.DispositionFlagged,
		}
		if err := idx.db.PutHashRecord(r); err != nil {
			return changed, err
		}
		idx.records = append(idx.records, r)
		changed++
	}
	return changed, nil
}

// Len - Current record count
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// Flagged records are pinned, they only leave via explicit moderator removal.
func (idx *Index) evictLocked() {
	for idx.cap > 0 && len(idx.records) > idx.cap {
		victim := idx.oldestLocked(database.DispositionObserved)
		if victim < 0 {
			victim = idx.oldestLocked(database.DispositionCleared)
		}
		if victim < 0 {
			return
		}
		r := idx.records[victim]
		if err := idx.db.DeleteHashRecord(r); err != nil {
			idx.logger.Warn("hash record eviction failed", "err", err)
			return
		}
		idx.records = append(idx.records[:victim], idx.records[victim+1:]...)
		idx.logger.Debug("hash record evicted", "guild", r.GuildID, "disposition", r.Disposition)
	}
}

func (idx *Index) oldestLocked(disposition string) int {
	oldest := -1
	for i, r := range idx.records {
		if r.Disposition != disposition {
			continue
		}
		if oldest < 0 || r.FirstSeen.Before(idx.records[oldest].FirstSeen) {
			oldest = i
		}
	}
	return oldest
}
