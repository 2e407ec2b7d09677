package database

import (
	"database/sql"
	"fmt"
	"time"
)

// WatchlistEntry is a tracked symbol. Symbol is the canonical form,
// RawSymbol is whatever spelling the provider originally reported.
type WatchlistEntry struct {
	Symbol    string    `json:"symbol"`
	RawSymbol string    `json:"raw_symbol"`
	Provider  string    `json:"provider"`
	AddedAt   time.Time `json:"added_at"`
}

// Snapshot is one stored analysis result for a symbol.
type Snapshot struct {
	ID           int64     `json:"id"`
	Symbol       string    `json:"symbol"`
	RSI          float64   `json:"rsi"`
	MACD         float64   `json:"macd"`
	MACDSignal   float64   `json:"macd_signal"`
	MACDHist     float64   `json:"macd_hist"`
	BBUpper      float64   `json:"bb_upper"`
	BBMiddle     float64   `json:"bb_middle"`
	BBLower      float64   `json:"bb_lower"`
	EMA50        float64   `json:"ema_50"`
	EMA200       float64   `json:"ema_200"`
	VolumeSMA    float64   `json:"volume_sma"`
	CurrentPrice float64   `json:"current_price"`
	Signal       string    `json:"signal"`
	CreatedAt    time.Time `json:"created_at"`
}

// SetSetting inserts or updates a setting. Provider may be empty for
// global settings.
func (db *DB) SetSetting(key, value, provider string) error {
	_, err := db.conn.Exec(`
		INSERT INTO settings (key, value, provider, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key, provider) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		key, value, provider)
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// GetSetting returns the value for a key, or the provided default when
// the key has never been set.
func (db *DB) GetSetting(key, provider, defaultValue string) (string, error) {
	var value string
	err := db.conn.QueryRow(
		"SELECT value FROM settings WHERE key = ? AND provider = ?",
		key, provider,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return defaultValue, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

// GetAllSettings returns every stored setting for a provider.
func (db *DB) GetAllSettings(provider string) (map[string]string, error) {
	rows, err := db.conn.Query(
		"SELECT key, value FROM settings WHERE provider = ?", provider)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// AddWatchlistEntry inserts or updates a watched symbol.
func (db *DB) AddWatchlistEntry(entry *WatchlistEntry) error {
	_, err := db.conn.Exec(`
		INSERT INTO watchlist (symbol, raw_symbol, provider, added_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET
			raw_symbol = excluded.raw_symbol,
			provider = excluded.provider`,
		entry.Symbol, entry.RawSymbol, entry.Provider)
	if err != nil {
		return fmt.Errorf("failed to save watchlist entry %s: %w", entry.Symbol, err)
	}
	return nil
}

// RemoveWatchlistEntry deletes a watched symbol. Removing a symbol that
// is not watched is not an error.
func (db *DB) RemoveWatchlistEntry(symbol string) error {
	_, err := db.conn.Exec("DELETE FROM watchlist WHERE symbol = ?", symbol)
	if err != nil {
		return fmt.Errorf("failed to remove watchlist entry %s: %w", symbol, err)
	}
	return nil
}

// GetWatchlist returns all watched symbols, newest first.
func (db *DB) GetWatchlist() ([]*WatchlistEntry, error) {
	rows, err := db.conn.Query(`
		SELECT symbol, raw_symbol, provider, added_at
		FROM watchlist
		ORDER BY added_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to read watchlist: %w", err)
	}
	defer rows.Close()

	entries := []*WatchlistEntry{}
	for rows.Next() {
		entry := &WatchlistEntry{}
		if err := rows.Scan(&entry.Symbol, &entry.RawSymbol, &entry.Provider, &entry.AddedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SaveSnapshot stores an analysis snapshot and sets its ID.
func (db *DB) SaveSnapshot(s *Snapshot) error {
	result, err := db.conn.Exec(`
		INSERT INTO snapshots (
			symbol, rsi, macd, macd_signal, macd_hist,
			bb_upper, bb_middle, bb_lower,
			ema_50, ema_200, volume_sma, current_price, signal, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		s.Symbol, s.RSI, s.MACD, s.MACDSignal, s.MACDHist,
		s.BBUpper, s.BBMiddle, s.BBLower,
		s.EMA50, s.EMA200, s.VolumeSMA, s.CurrentPrice, s.Signal)
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", s.Symbol, err)
	}
	s.ID, _ = result.LastInsertId()
	return nil
}

// GetLatestSnapshot returns the most recent snapshot for a symbol, or
// sql.ErrNoRows when the symbol has never been analyzed.
func (db *DB) GetLatestSnapshot(symbol string) (*Snapshot, error) {
	s := &Snapshot{}
	err := db.conn.QueryRow(`
		SELECT id, symbol, rsi, macd, macd_signal, macd_hist,
			bb_upper, bb_middle, bb_lower,
			ema_50, ema_200, volume_sma, current_price, signal, created_at
		FROM snapshots
		WHERE symbol = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, symbol,
	).Scan(&s.ID, &s.Symbol, &s.RSI, &s.MACD, &s.MACDSignal, &s.MACDHist,
		&s.BBUpper, &s.BBMiddle, &s.BBLower,
		&s.EMA50, &s.EMA200, &s.VolumeSMA, &s.CurrentPrice, &s.Signal, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetSnapshots returns up to limit snapshots for a symbol, newest first.
func (db *DB) GetSnapshots(symbol string, limit int) ([]*Snapshot, error) {
	rows, err := db.conn.Query(`
		SELECT id, symbol, rsi, macd, macd_signal, macd_hist,
			bb_upper, bb_middle, bb_lower,
			ema_50, ema_200, volume_sma, current_price, signal, created_at
		FROM snapshots
		WHERE symbol = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots for %s: %w", symbol, err)
	}
	defer rows.Close()

	snapshots := []*Snapshot{}
	for rows.Next() {
		s := &Snapshot{}
		if err := rows.Scan(&s.ID, &s.Symbol, &s.RSI, &s.MACD, &s.MACDSignal, &s.MACDHist,
			&s.BBUpper, &s.BBMiddle, &s.BBLower,
			&s.EMA50, &s.EMA200, &s.VolumeSMA, &s.CurrentPrice, &s.Signal, &s.CreatedAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
