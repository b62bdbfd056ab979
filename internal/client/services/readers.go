// Package services contains application services for the kiosk.
// This file defines the saved-reader service: the last connected reader is
// remembered so the next start can reconnect to it first.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/paykiosk/internal/client/repositories/preferences"
	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
	"github.com/dmitrijs2005/paykiosk/internal/dbx"
)

const (
	keyReaderID        = "reader_id"
	keyReaderSerial    = "reader_serial"
	keyDiscoveryMethod = "discovery_method"
	keyLocationID      = "location_id"
	keyDeviceType      = "reader_device_type"
)

// DefaultDiscoveryMethod is reported when nothing, or something unknown,
// was saved.
const DefaultDiscoveryMethod = terminal.BluetoothScan

// SavedReaderInfo is what the kiosk remembers about the last reader.
type SavedReaderInfo struct {
	ReaderID        string
	Serial          string
	DiscoveryMethod terminal.DiscoveryMethod
	LocationID      string
	DeviceType      string
}

// Empty reports whether no reader has been saved.
func (i SavedReaderInfo) Empty() bool {
	return i.ReaderID == "" && i.Serial == ""
}

// Matches reports whether r is the saved reader.
func (i SavedReaderInfo) Matches(r terminal.Reader) bool {
	if i.ReaderID != "" && i.ReaderID == r.ID {
		return true
	}
	return i.Serial != "" && i.Serial == r.SerialNumber
}

// ReaderPreferences persists the last connected reader.
type ReaderPreferences interface {
	Save(ctx context.Context, reader terminal.Reader, method terminal.DiscoveryMethod, locationID string) error
	Load(ctx context.Context) (SavedReaderInfo, error)
	Clear(ctx context.Context) error
}

type readerPreferences struct {
	db      *sql.DB
	newRepo func(dbx.DBTX) preferences.Repository
}

// NewReaderPreferences stores the saved reader in the preferences table of db.
func NewReaderPreferences(db *sql.DB) ReaderPreferences {
	return &readerPreferences{
		db: db,
		newRepo: func(tx dbx.DBTX) preferences.Repository {
			return preferences.NewSQLiteRepository(tx)
		},
	}
}

// Save writes every key of the reader in one transaction.
func (p *readerPreferences) Save(ctx context.Context, reader terminal.Reader, method terminal.DiscoveryMethod, locationID string) error {
	values := []struct{ key, value string }{
		{keyReaderID, reader.ID},
		{keyReaderSerial, reader.SerialNumber},
		{keyDiscoveryMethod, string(method)},
		{keyLocationID, locationID},
		{keyDeviceType, reader.DeviceType},
	}
	err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := p.newRepo(tx)
		for _, kv := range values {
			if err := repo.Set(ctx, kv.key, kv.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save reader: %w", err)
	}
	return nil
}

func (p *readerPreferences) Load(ctx context.Context) (SavedReaderInfo, error) {
	all, err := p.newRepo(p.db).List(ctx)
	if err != nil {
		return SavedReaderInfo{}, fmt.Errorf("load reader: %w", err)
	}

	method, ok := terminal.ParseDiscoveryMethod(all[keyDiscoveryMethod])
	if !ok {
		method = DefaultDiscoveryMethod
	}

	return SavedReaderInfo{
		ReaderID:        all[keyReaderID],
		Serial:          all[keyReaderSerial],
		DiscoveryMethod: method,
		LocationID:      all[keyLocationID],
		DeviceType:      all[keyDeviceType],
	}, nil
}

func (p *readerPreferences) Clear(ctx context.Context) error {
	if err := p.newRepo(p.db).Delete(ctx, keyReaderID, keyReaderSerial, keyDiscoveryMethod, keyLocationID, keyDeviceType); err != nil {
		return fmt.Errorf("clear reader: %w", err)
	}
	return nil
}
