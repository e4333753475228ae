package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/pydverify/backend/pkg/logger"
)

// ReadJournal returns the records of a capped JSON-array log. A missing
// file is an empty journal; a corrupt one is reported as ErrCorrupt.
func ReadJournal[T any](s *Store, name string) ([]T, error) {
	var records []T
	if err := s.readJSON(name, &records); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return records, nil
}

// AppendCapped appends record to the journal and keeps only the newest
// limit records. Read, append and rewrite all happen under the store lock.
func AppendCapped[T any](s *Store, name string, record T, limit int) error {
	return s.withLock(func() error {
		records, err := ReadJournal[T](s, name)
		if err != nil {
			logger.Warn("Journal unreadable, starting a new one",
				zap.String("journal", name),
				zap.Error(err),
			)
			records = nil
		}

		records = append(records, record)
		if limit > 0 && len(records) > limit {
			records = records[len(records)-limit:]
		}

		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", name, err)
		}
		if err := atomicWrite(s.Path(name), data); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		return nil
	})
}
