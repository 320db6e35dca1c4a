package game

import (
	"fmt"
	"os"
	"path/filepath"
)

// QuickSave is the slot used when no name is given.
const QuickSave = "quicksave"

// SaveFile writes the world to path, creating missing directories.
func (s *Session) SaveFile(path string) error {
	data, err := s.Save()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	s.log.WithField("path", path).Info("world saved")
	return nil
}

// LoadFile replaces the world with the save at path. A missing file
// yields an error matching os.ErrNotExist.
func (s *Session) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if err := s.Load(data); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Slots maps save names to JSON files in Dir.
type Slots struct {
	Dir string
}

// DefaultSlots keeps saves under ~/.smadventure/saves.
func DefaultSlots() Slots {
	home, _ := os.UserHomeDir()
	return Slots{Dir: filepath.Join(home, ".smadventure", "saves")}
}

// Name returns the slot name, QuickSave for "".
func (sl Slots) Name(name string) string {
	if name == "" {
		return QuickSave
	}
	return name
}

func (sl Slots) Path(name string) string {
	return filepath.Join(sl.Dir, sl.Name(name)+".json")
}
