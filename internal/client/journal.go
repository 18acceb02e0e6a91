package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"nivesh/internal/gamelog"
)

// Journal is the client's local trade record, one JSON file per session
// under the journal directory. It survives crashes so the finished-game
// upload never loses trades.
type Journal struct {
	path string
	rows []gamelog.TradeRow
}

func OpenJournal(dir, sessionID string) (*Journal, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".nv")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	j := &Journal{path: filepath.Join(dir, sessionID+".json")}

	raw, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return j, nil
		}
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &j.rows); err != nil {
			return nil, fmt.Errorf("parse journal %s: %w", j.path, err)
		}
	}
	return j, nil
}

func (j *Journal) Append(row gamelog.TradeRow) error {
	j.rows = append(j.rows, row)
	return j.save()
}

func (j *Journal) Rows() []gamelog.TradeRow {
	return append([]gamelog.TradeRow(nil), j.rows...)
}

func (j *Journal) save() error {
	raw, err := json.MarshalIndent(j.rows, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(j.path, raw, 0o600)
}
