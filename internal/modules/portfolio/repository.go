package portfolio

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/coindeck/internal/domain"
	"github.com/aristath/coindeck/internal/storage"
)

// lotStoreVersion is the current schema version of the persisted holdings
// document. Version 0 is the bare lot array written by older builds.
const lotStoreVersion = 1

// lotDocument is the persisted shape of the holdings store.
type lotDocument struct {
	Lots []Lot `json:"lots"`
}

// LotRepository owns all lot records. The collection lives in memory and
// is written back to the document store after every mutation, so readers
// always observe a complete, persisted state.
type LotRepository struct {
	mu    sync.RWMutex
	lots  []Lot
	store *storage.Repository
	log   zerolog.Logger
}

// NewLotRepository creates a lot repository, loading any persisted
// holdings document and migrating it to the current version.
func NewLotRepository(store *storage.Repository, log zerolog.Logger) (*LotRepository, error) {
	r := &LotRepository{
		store: store,
		log:   log.With().Str("repo", "lots").Logger(),
	}

	var doc lotDocument
	found, err := store.Load(storage.NamespaceHoldings, lotStoreVersion, migrateLotDocument, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings store: %w", err)
	}
	if found {
		r.lots = doc.Lots
		r.log.Info().Int("lots", len(r.lots)).Msg("Loaded holdings store")
	}

	return r, nil
}

// migrateLotDocument upgrades older persisted payloads.
// Version 0 stored the lot array directly, without an envelope.
func migrateLotDocument(fromVersion int, data json.RawMessage) (json.RawMessage, error) {
	switch fromVersion {
	case 0:
		var lots []Lot
		if err := json.Unmarshal(data, &lots); err != nil {
			return nil, fmt.Errorf("failed to decode version 0 lot array: %w", err)
		}
		return json.Marshal(lotDocument{Lots: lots})
	default:
		return nil, fmt.Errorf("no migration registered from version %d", fromVersion)
	}
}

// persist writes the current collection back to the document store.
// Callers must hold the write lock.
func (r *LotRepository) persist() error {
	return r.store.Save(storage.NamespaceHoldings, lotStoreVersion, lotDocument{Lots: r.lots})
}

// Add appends a new lot and returns it with generated ID and timestamps.
func (r *LotRepository) Add(coinID, symbol, name string, amount, buyPrice float64, buyDate time.Time, notes string) (Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	lot := Lot{
		ID:        uuid.New().String(),
		CoinID:    coinID,
		Symbol:    symbol,
		Name:      name,
		Amount:    amount,
		BuyPrice:  buyPrice,
		BuyDate:   buyDate,
		Notes:     notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.lots = append(r.lots, lot)
	if err := r.persist(); err != nil {
		// Roll the in-memory append back so state matches disk
		r.lots = r.lots[:len(r.lots)-1]
		return Lot{}, err
	}

	return lot, nil
}

// Get returns the lot with the given ID.
func (r *LotRepository) Get(id string) (Lot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, lot := range r.lots {
		if lot.ID == id {
			return lot, nil
		}
	}
	return Lot{}, domain.ErrLotNotFound
}

// List returns a snapshot copy of all lots in insertion order.
func (r *LotRepository) List() []Lot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Lot, len(r.lots))
	copy(out, r.lots)
	return out
}

// ListByCoin returns a snapshot copy of the lots for one coin,
// in insertion order.
func (r *LotRepository) ListByCoin(coinID string) []Lot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Lot
	for _, lot := range r.lots {
		if lot.CoinID == coinID {
			out = append(out, lot)
		}
	}
	return out
}

// UpdateAmount sets a lot's amount. The new amount must be positive;
// removing a lot entirely goes through Delete.
func (r *LotRepository) UpdateAmount(id string, amount float64) (Lot, error) {
	if amount <= 0 {
		return Lot{}, domain.NewValidationError("amount", "amount must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.lots {
		if r.lots[i].ID == id {
			prev := r.lots[i]
			r.lots[i].Amount = amount
			r.lots[i].UpdatedAt = time.Now().UTC()
			if err := r.persist(); err != nil {
				r.lots[i] = prev
				return Lot{}, err
			}
			return r.lots[i], nil
		}
	}
	return Lot{}, domain.ErrLotNotFound
}

// UpdateNotes sets a lot's free-text notes.
func (r *LotRepository) UpdateNotes(id, notes string) (Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.lots {
		if r.lots[i].ID == id {
			prev := r.lots[i]
			r.lots[i].Notes = notes
			r.lots[i].UpdatedAt = time.Now().UTC()
			if err := r.persist(); err != nil {
				r.lots[i] = prev
				return Lot{}, err
			}
			return r.lots[i], nil
		}
	}
	return Lot{}, domain.ErrLotNotFound
}

// Delete removes a lot from the store.
func (r *LotRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.lots {
		if r.lots[i].ID == id {
			prev := r.lots
			r.lots = append(append([]Lot(nil), r.lots[:i]...), r.lots[i+1:]...)
			if err := r.persist(); err != nil {
				r.lots = prev
				return err
			}
			return nil
		}
	}
	return domain.ErrLotNotFound
}

// ApplySale removes exhausted lots and updates the partially reduced one
// in a single persisted write, so a sale never leaves a half-applied
// collection on disk.
func (r *LotRepository) ApplySale(removedIDs []string, updated *Lot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make(map[string]bool, len(removedIDs))
	for _, id := range removedIDs {
		removed[id] = true
	}

	next := make([]Lot, 0, len(r.lots))
	for _, lot := range r.lots {
		if removed[lot.ID] {
			continue
		}
		if updated != nil && lot.ID == updated.ID {
			next = append(next, *updated)
			continue
		}
		next = append(next, lot)
	}

	prev := r.lots
	r.lots = next
	if err := r.persist(); err != nil {
		r.lots = prev
		return err
	}
	return nil
}
