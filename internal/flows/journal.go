package flows

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrEthical07/goGuard/identity"
	"github.com/MrEthical07/goGuard/session"
)

const journalKeyPrefix = "merge_journal:"

// StorageJournal keeps one in-flight MergeRecord per email as JSON in a
// session.Storage.
type StorageJournal struct {
	storage session.Storage
}

// NewStorageJournal creates a journal over storage.
func NewStorageJournal(storage session.Storage) *StorageJournal {
	return &StorageJournal{storage: storage}
}

func (j *StorageJournal) key(email string) string {
	return journalKeyPrefix + identity.NormalizeEmail(email)
}

func (j *StorageJournal) Load(ctx context.Context, email string) (*identity.MergeRecord, error) {
	raw, ok, err := j.storage.Get(ctx, j.key(email))
	if err != nil || !ok {
		return nil, err
	}
	var rec identity.MergeRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode merge journal: %w", err)
	}
	return &rec, nil
}

func (j *StorageJournal) Save(ctx context.Context, record identity.MergeRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return j.storage.Set(ctx, j.key(record.Email), string(raw), 0)
}

func (j *StorageJournal) Delete(ctx context.Context, email string) error {
	return j.storage.Delete(ctx, j.key(email))
}
