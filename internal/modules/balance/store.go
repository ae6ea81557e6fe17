// Package balance implements the virtual cash balance store.
package balance

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/coindeck/internal/domain"
	"github.com/aristath/coindeck/internal/events"
	"github.com/aristath/coindeck/internal/storage"
)

// balanceStoreVersion is the current schema version of the persisted
// balance document. Version 0 is the bare scalar written by older builds.
const balanceStoreVersion = 1

// balanceDocument is the persisted shape of the balance store.
type balanceDocument struct {
	Balance float64 `json:"balance"`
}

// Store owns the single cash balance scalar. The balance can never go
// negative: withdrawals that would overdraw fail atomically and leave
// the balance unchanged.
type Store struct {
	mu      sync.Mutex
	balance float64
	store   *storage.Repository
	bus     *events.Bus
	log     zerolog.Logger
}

// NewStore creates a balance store, loading any persisted balance.
func NewStore(store *storage.Repository, bus *events.Bus, log zerolog.Logger) (*Store, error) {
	s := &Store{
		store: store,
		bus:   bus,
		log:   log.With().Str("store", "balance").Logger(),
	}

	var doc balanceDocument
	found, err := store.Load(storage.NamespaceBalance, balanceStoreVersion, migrateBalanceDocument, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance store: %w", err)
	}
	if found {
		s.balance = doc.Balance
		s.log.Info().Float64("balance", s.balance).Msg("Loaded balance store")
	}

	return s, nil
}

// migrateBalanceDocument upgrades older persisted payloads.
// Version 0 stored the scalar directly, without an envelope.
func migrateBalanceDocument(fromVersion int, data json.RawMessage) (json.RawMessage, error) {
	switch fromVersion {
	case 0:
		var bal float64
		if err := json.Unmarshal(data, &bal); err != nil {
			return nil, fmt.Errorf("failed to decode version 0 balance: %w", err)
		}
		return json.Marshal(balanceDocument{Balance: bal})
	default:
		return nil, fmt.Errorf("no migration registered from version %d", fromVersion)
	}
}

// Balance returns the current cash balance.
func (s *Store) Balance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// Deposit credits the balance. Amount must be positive.
func (s *Store) Deposit(amount float64) error {
	if amount <= 0 {
		return domain.NewValidationError("amount", "amount must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.balance
	s.balance += amount
	if err := s.persist(); err != nil {
		s.balance = prev
		return err
	}

	s.publishChange(amount, "deposit")
	return nil
}

// Withdraw debits the balance. Returns false without mutating state when
// the requested amount exceeds the available balance; there is no
// partial withdrawal.
func (s *Store) Withdraw(amount float64) (bool, error) {
	if amount <= 0 {
		return false, domain.NewValidationError("amount", "amount must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.balance < amount {
		return false, nil
	}

	prev := s.balance
	s.balance -= amount
	if err := s.persist(); err != nil {
		s.balance = prev
		return false, err
	}

	s.publishChange(-amount, "withdraw")
	return true, nil
}

// Reset sets the balance back to zero.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.balance
	s.balance = 0
	if err := s.persist(); err != nil {
		s.balance = prev
		return err
	}

	s.publishChange(-prev, "reset")
	return nil
}

// persist writes the balance back to the document store.
// Callers must hold the lock.
func (s *Store) persist() error {
	return s.store.Save(storage.NamespaceBalance, balanceStoreVersion, balanceDocument{Balance: s.balance})
}

// publishChange emits a BalanceChanged event. Callers must hold the lock.
func (s *Store) publishChange(delta float64, reason string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.BalanceChanged, &events.BalanceChangedData{
		Balance: s.balance,
		Delta:   delta,
		Reason:  reason,
	})
}
