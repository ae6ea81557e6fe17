package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// PriceUpdatedData contains data for PriceUpdated events
type PriceUpdatedData struct {
	CoinIDs []string `json:"coin_ids"`
	Count   int      `json:"count"`
}

// EventType returns the event type for PriceUpdatedData
func (d *PriceUpdatedData) EventType() EventType {
	return PriceUpdated
}

// LotAddedData contains data for LotAdded events
type LotAddedData struct {
	LotID  string  `json:"lot_id"`
	CoinID string  `json:"coin_id"`
	Amount float64 `json:"amount"`
	Cost   float64 `json:"cost"`
}

// EventType returns the event type for LotAddedData
func (d *LotAddedData) EventType() EventType {
	return LotAdded
}

// LotUpdatedData contains data for LotUpdated events
type LotUpdatedData struct {
	LotID  string  `json:"lot_id"`
	CoinID string  `json:"coin_id"`
	Amount float64 `json:"amount"`
}

// EventType returns the event type for LotUpdatedData
func (d *LotUpdatedData) EventType() EventType {
	return LotUpdated
}

// LotSoldData contains data for LotSold events
type LotSoldData struct {
	CoinID       string  `json:"coin_id"`
	Amount       float64 `json:"amount"`
	Proceeds     float64 `json:"proceeds"`
	LotsRemoved  int     `json:"lots_removed"`
	LotsModified int     `json:"lots_modified"`
}

// EventType returns the event type for LotSoldData
func (d *LotSoldData) EventType() EventType {
	return LotSold
}

// BalanceChangedData contains data for BalanceChanged events
type BalanceChangedData struct {
	Balance float64 `json:"balance"`
	Delta   float64 `json:"delta"`
	Reason  string  `json:"reason,omitempty"`
}

// EventType returns the event type for BalanceChangedData
func (d *BalanceChangedData) EventType() EventType {
	return BalanceChanged
}

// WatchlistChangedData contains data for WatchlistChanged events
type WatchlistChangedData struct {
	CoinID  string `json:"coin_id"`
	Removed bool   `json:"removed,omitempty"`
}

// EventType returns the event type for WatchlistChangedData
func (d *WatchlistChangedData) EventType() EventType {
	return WatchlistChanged
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}
