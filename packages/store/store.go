// Package store persists workbook snapshots. every adapter saves the whole
// exported workbook under an id and loads it back through the schema
// migrations, so older snapshots upgrade on read.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// ErrNotFound is returned by Load for an unknown id
var ErrNotFound = errors.New("workbook not found")

// Store saves and loads workbook snapshots by id
type Store interface {
	Save(ctx context.Context, id string, data *spreadsheet.WorkbookData) error
	Load(ctx context.Context, id string) (*spreadsheet.WorkbookData, error)
	Delete(ctx context.Context, id string) error
	// List returns the stored ids in ascending order
	List(ctx context.Context) ([]string, error)
	Close() error
}

func encode(id string, data *spreadsheet.WorkbookData) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("empty workbook id")
	}
	if data == nil {
		return nil, fmt.Errorf("nil workbook %s", id)
	}
	raw, err := spreadsheet.MarshalWorkbook(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workbook %s: %w", id, err)
	}
	return raw, nil
}

func decode(id string, raw []byte) (*spreadsheet.WorkbookData, error) {
	data, err := spreadsheet.ParseWorkbook(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workbook %s: %w", id, err)
	}
	return data, nil
}
