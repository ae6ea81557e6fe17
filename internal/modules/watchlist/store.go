// Package watchlist implements the watched-coins store.
package watchlist

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/coindeck/internal/domain"
	"github.com/aristath/coindeck/internal/events"
	"github.com/aristath/coindeck/internal/storage"
)

// watchlistStoreVersion is the current schema version of the persisted
// watchlist document. Version 0 is the bare item array.
const watchlistStoreVersion = 1

// Item is one watched coin.
type Item struct {
	ID      string    `json:"id"`
	CoinID  string    `json:"coinId"`
	Symbol  string    `json:"symbol"`
	Name    string    `json:"name"`
	Image   string    `json:"image,omitempty"`
	AddedAt time.Time `json:"addedAt"`
}

// watchlistDocument is the persisted shape of the watchlist store.
type watchlistDocument struct {
	Items []Item `json:"items"`
}

// Store owns the watchlist collection.
type Store struct {
	mu    sync.RWMutex
	items []Item
	store *storage.Repository
	bus   *events.Bus
	log   zerolog.Logger
}

// NewStore creates a watchlist store, loading any persisted items.
func NewStore(store *storage.Repository, bus *events.Bus, log zerolog.Logger) (*Store, error) {
	s := &Store{
		store: store,
		bus:   bus,
		log:   log.With().Str("store", "watchlist").Logger(),
	}

	var doc watchlistDocument
	found, err := store.Load(storage.NamespaceWatchlist, watchlistStoreVersion, migrateWatchlistDocument, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to load watchlist store: %w", err)
	}
	if found {
		s.items = doc.Items
		s.log.Info().Int("items", len(s.items)).Msg("Loaded watchlist store")
	}

	return s, nil
}

// migrateWatchlistDocument upgrades older persisted payloads.
// Version 0 stored the item array directly, without an envelope.
func migrateWatchlistDocument(fromVersion int, data json.RawMessage) (json.RawMessage, error) {
	switch fromVersion {
	case 0:
		var items []Item
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to decode version 0 watchlist array: %w", err)
		}
		return json.Marshal(watchlistDocument{Items: items})
	default:
		return nil, fmt.Errorf("no migration registered from version %d", fromVersion)
	}
}

// Add appends a coin to the watchlist. Watching the same coin twice is
// rejected as a validation error.
func (s *Store) Add(coinID, symbol, name, image string) (Item, error) {
	if coinID == "" {
		return Item{}, domain.NewValidationError("coin_id", "coin id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items {
		if item.CoinID == coinID {
			return Item{}, domain.NewValidationError("coin_id", "coin is already watched")
		}
	}

	item := Item{
		ID:      uuid.New().String(),
		CoinID:  coinID,
		Symbol:  symbol,
		Name:    name,
		Image:   image,
		AddedAt: time.Now().UTC(),
	}

	s.items = append(s.items, item)
	if err := s.persist(); err != nil {
		s.items = s.items[:len(s.items)-1]
		return Item{}, err
	}

	if s.bus != nil {
		s.bus.Publish(events.WatchlistChanged, &events.WatchlistChangedData{CoinID: coinID})
	}
	return item, nil
}

// Remove deletes a watchlist entry by ID.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			coinID := s.items[i].CoinID
			prev := s.items
			s.items = append(append([]Item(nil), s.items[:i]...), s.items[i+1:]...)
			if err := s.persist(); err != nil {
				s.items = prev
				return err
			}
			if s.bus != nil {
				s.bus.Publish(events.WatchlistChanged, &events.WatchlistChangedData{CoinID: coinID, Removed: true})
			}
			return nil
		}
	}
	return domain.NewValidationError("id", "watchlist entry not found")
}

// List returns a snapshot copy of the watchlist.
func (s *Store) List() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// IsWatched reports whether a coin is on the watchlist.
func (s *Store) IsWatched(coinID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.CoinID == coinID {
			return true
		}
	}
	return false
}

// CoinIDs returns the distinct watched coin IDs in insertion order.
func (s *Store) CoinIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.items))
	for _, item := range s.items {
		ids = append(ids, item.CoinID)
	}
	return ids
}

// persist writes the collection back to the document store.
// Callers must hold the write lock.
func (s *Store) persist() error {
	return s.store.Save(storage.NamespaceWatchlist, watchlistStoreVersion, watchlistDocument{Items: s.items})
}
