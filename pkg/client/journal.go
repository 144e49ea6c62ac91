package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fystack/mpcium-client/pkg/event"
	"github.com/fystack/mpcium-client/pkg/kvstore"
	"github.com/fystack/mpcium-client/pkg/messaging"
	"github.com/samber/lo"
)

const journalPrefix = "pending/"

var ErrUnknownCategory = errors.New("unknown request category")

// PendingRequest is a submitted request whose result has not been handled.
type PendingRequest struct {
	Category    string                `json:"category"`
	ID          string                `json:"id"`
	Path        messaging.PublishPath `json:"path"`
	SubmittedAt time.Time             `json:"submitted_at"`
}

// Journal records submitted requests until their result is acknowledged.
type Journal struct {
	// mu orders Update against Resolve so a resolved entry is never
	// written back.
	mu    sync.Mutex
	store kvstore.KVStore
	now   func() time.Time
}

func NewJournal(store kvstore.KVStore) *Journal {
	return &Journal{store: store, now: time.Now}
}

// OpenJournal opens an encrypted on-disk journal at path.
func OpenJournal(path, password string) (*Journal, error) {
	key, err := kvstore.DeriveEncryptionKey(path, password)
	if err != nil {
		return nil, fmt.Errorf("derive journal key: %w", err)
	}
	store, err := kvstore.NewBadgerKVStore(kvstore.BadgerOptions{Path: path, EncryptionKey: key})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return NewJournal(store), nil
}

func journalKey(category, id string) string {
	return journalPrefix + category + "/" + id
}

func (j *Journal) Record(category, id string, path messaging.PublishPath) error {
	data, err := json.Marshal(PendingRequest{
		Category:    category,
		ID:          id,
		Path:        path,
		SubmittedAt: j.now().UTC(),
	})
	if err != nil {
		return err
	}
	return j.store.Put(journalKey(category, id), data)
}

// Update changes the publish path of a recorded request. A request that was
// already resolved is left alone.
func (j *Journal) Update(category, id string, path messaging.PublishPath) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	key := journalKey(category, id)
	data, err := j.store.Get(key)
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var req PendingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("corrupt journal entry %s/%s: %w", category, id, err)
	}
	req.Path = path
	if data, err = json.Marshal(req); err != nil {
		return err
	}
	return j.store.Put(key, data)
}

func (j *Journal) Resolve(category, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.store.Delete(journalKey(category, id))
}

// Pending lists unresolved requests of one category, or of all categories
// when category is empty, oldest first.
func (j *Journal) Pending(category string) ([]PendingRequest, error) {
	prefix := journalPrefix
	if category != "" {
		if !lo.ContainsBy(event.Categories(), func(c event.Category) bool { return c.Name == category }) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
		}
		prefix = journalPrefix + category + "/"
	}

	var pending []PendingRequest
	err := j.store.Scan(prefix, func(key string, value []byte) error {
		var req PendingRequest
		if err := json.Unmarshal(value, &req); err != nil {
			return fmt.Errorf("corrupt journal entry %s: %w", strings.TrimPrefix(key, journalPrefix), err)
		}
		pending = append(pending, req)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(pending, func(a, b int) bool {
		return pending[a].SubmittedAt.Before(pending[b].SubmittedAt)
	})
	return pending, nil
}

func (j *Journal) Close() error {
	return j.store.Close()
}
