package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"citizenportal/internal/domain"
)

// FileStore keeps the collection as one JSON array file named after CollectionKey,
// the same layout the browser portal used. Writers are serialized within one process only.
type FileStore struct {
	Path   string
	Logger logrus.FieldLogger

	mu sync.Mutex
}

// NewFileStore stores the collection under dir.
func NewFileStore(dir string, logger logrus.FieldLogger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FileStore{Path: filepath.Join(dir, CollectionKey+".json"), Logger: logger}, nil
}

func (s *FileStore) LoadAll(ctx context.Context) ([]domain.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) load() ([]domain.Request, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Request{}, nil
		}
		return nil, err
	}
	var out []domain.Request
	if err := json.Unmarshal(data, &out); err != nil {
		s.Logger.WithError(err).WithField("path", s.Path).Warn("request collection unreadable; treating as empty")
		return []domain.Request{}, nil
	}
	if out == nil {
		out = []domain.Request{}
	}
	return out, nil
}

func (s *FileStore) SaveAll(ctx context.Context, requests []domain.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(requests)
}

// save writes a sibling temp file and renames it over the collection.
func (s *FileStore) save(requests []domain.Request) error {
	if requests == nil {
		requests = []domain.Request{}
	}
	data, err := json.Marshal(requests)
	if err != nil {
		return fmt.Errorf("encode requests: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.Path), CollectionKey+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.Path)
}

func (s *FileStore) Insert(ctx context.Context, r domain.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range all {
		if existing.ReferenceID == r.ReferenceID {
			return ErrDuplicate
		}
	}
	return s.save(append(all, r))
}

func (s *FileStore) Get(ctx context.Context, referenceID string) (domain.Request, error) {
	all, err := s.LoadAll(ctx)
	if err != nil {
		return domain.Request{}, err
	}
	for _, r := range all {
		if r.ReferenceID == referenceID {
			return r, nil
		}
	}
	return domain.Request{}, ErrNotFound
}

func (s *FileStore) Update(ctx context.Context, referenceID string, fn func(*domain.Request) error) (domain.Request, error) {
	if err := ctx.Err(); err != nil {
		return domain.Request{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return domain.Request{}, err
	}
	for i := range all {
		if all[i].ReferenceID != referenceID {
			continue
		}
		updated := all[i].Clone()
		if err := fn(&updated); err != nil {
			return domain.Request{}, err
		}
		updated.ReferenceID = referenceID
		all[i] = updated
		if err := s.save(all); err != nil {
			return domain.Request{}, err
		}
		return updated, nil
	}
	return domain.Request{}, ErrNotFound
}

func (s *FileStore) List(ctx context.Context, f Filter) ([]domain.Request, error) {
	all, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].SubmittedAt != all[j].SubmittedAt {
			return all[i].SubmittedAt > all[j].SubmittedAt
		}
		return all[i].ReferenceID > all[j].ReferenceID
	})
	res := []domain.Request{}
	for _, r := range all {
		if !f.Matches(r) || !f.After(r) {
			continue
		}
		res = append(res, r)
		if f.Limit > 0 && len(res) == f.Limit {
			break
		}
	}
	return res, nil
}

func (s *FileStore) Close() error { return nil }
