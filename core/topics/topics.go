package topics

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"endorsegraph/core/notify"
	"endorsegraph/core/storage"
	"endorsegraph/types/ids"
)

var (
	ErrTopicNotFound    = errors.New("topic not found")
	ErrNotTopicOwner    = errors.New("caller does not own the topic")
	ErrAlreadyFinalized = errors.New("topic already finalized")
	// ErrNotFinalized gates transfer: topics are non-transferable until
	// their record is finalized.
	ErrNotFinalized = errors.New("topic not finalized")
)

// Topic is a scored-relationship category. Score records reference topics by
// ID; the ledger itself never consults this registry.
type Topic struct {
	ID        uint64      `json:"id"`
	Owner     ids.Address `json:"owner"`
	Name      string      `json:"name"`
	URI       string      `json:"uri"`
	Finalized bool        `json:"finalized"`
}

// Registry holds topic records. IDs are sequential from 0 and never reused.
type Registry struct {
	mu     sync.Mutex
	topics []Topic
	bus    *notify.Bus
	store  *storage.Store // nil for in-memory registries
}

func New(bus *notify.Bus, store *storage.Store) (*Registry, error) {
	r := &Registry{bus: bus, store: store}
	if store != nil {
		if err := r.reload(); err != nil {
			return nil, fmt.Errorf("reload topics: %w", err)
		}
	}
	return r, nil
}

func (r *Registry) reload() error {
	v, err := r.store.GetMeta("topics")
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal(v, &r.topics)
}

// persist writes the whole topic table. Topics are few and mutable
// (finalized flag, owner), so they live under a metadata key rather than in
// an append-only log.
func (r *Registry) persist() error {
	if r.store == nil {
		return nil
	}
	b, err := json.Marshal(r.topics)
	if err != nil {
		return err
	}
	return r.store.PutMeta("topics", b)
}

// Create registers a new topic owned by creator and returns its ID.
func (r *Registry) Create(creator ids.Address, name, uri string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := Topic{
		ID:    uint64(len(r.topics)),
		Owner: creator,
		Name:  name,
		URI:   uri,
	}
	r.topics = append(r.topics, t)
	if err := r.persist(); err != nil {
		r.topics = r.topics[:len(r.topics)-1]
		return 0, err
	}
	r.bus.Emit(notify.TopicCreated{TopicID: t.ID, Creator: creator, Name: name})
	return t.ID, nil
}

// Get returns the topic with the given ID.
func (r *Registry) Get(id uint64) (Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id >= uint64(len(r.topics)) {
		return Topic{}, ErrTopicNotFound
	}
	return r.topics[id], nil
}

// Count returns the number of registered topics.
func (r *Registry) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint64(len(r.topics))
}

// SetURI updates a topic's URI. Owner only, and only before finalization.
func (r *Registry) SetURI(caller ids.Address, id uint64, uri string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.mutable(caller, id)
	if err != nil {
		return err
	}
	if t.Finalized {
		return ErrAlreadyFinalized
	}
	old := t.URI
	t.URI = uri
	if err := r.persist(); err != nil {
		t.URI = old
		return err
	}
	return nil
}

// Finalize marks a topic record immutable and transferable. Owner only.
func (r *Registry) Finalize(caller ids.Address, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.mutable(caller, id)
	if err != nil {
		return err
	}
	if t.Finalized {
		return ErrAlreadyFinalized
	}
	t.Finalized = true
	if err := r.persist(); err != nil {
		t.Finalized = false
		return err
	}
	r.bus.Emit(notify.TopicFinalized{TopicID: id})
	return nil
}

// Transfer moves ownership of a finalized topic. Owner only; rejected with
// ErrNotFinalized before finalization.
func (r *Registry) Transfer(caller ids.Address, id uint64, to ids.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.mutable(caller, id)
	if err != nil {
		return err
	}
	if !t.Finalized {
		return ErrNotFinalized
	}
	old := t.Owner
	t.Owner = to
	if err := r.persist(); err != nil {
		t.Owner = old
		return err
	}
	return nil
}

func (r *Registry) mutable(caller ids.Address, id uint64) (*Topic, error) {
	if id >= uint64(len(r.topics)) {
		return nil, ErrTopicNotFound
	}
	t := &r.topics[id]
	if t.Owner != caller {
		return nil, ErrNotTopicOwner
	}
	return t, nil
}

type seedTopic struct {
	Name  string `yaml:"name"`
	URI   string `yaml:"uri"`
	Owner string `yaml:"owner"`
}

// LoadSeed bootstraps topics from a YAML catalog file. Already-seeded
// registries (count > 0) are left alone.
func (r *Registry) LoadSeed(path string) error {
	if r.Count() > 0 {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var seeds []seedTopic
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("parse topic seed: %w", err)
	}
	for _, s := range seeds {
		owner, err := ids.AddressFromString(s.Owner)
		if err != nil {
			return fmt.Errorf("topic %q: bad owner: %w", s.Name, err)
		}
		if _, err := r.Create(owner, s.Name, s.URI); err != nil {
			return err
		}
	}
	return nil
}
