package types

import (
	"encoding/json"
	"fmt"
	"sync"
)

// FlagState is the completion state of an item for one recipient
type FlagState int

const (
	Pending FlagState = iota
	InProgress
	Done
	Interrupted
	Removed
)

// String returns the string representation of FlagState
func (s FlagState) String() string {
	switch s {
	case Pending:
		return "Pending"
	case InProgress:
		return "InProgress"
	case Done:
		return "Done"
	case Interrupted:
		return "Interrupted"
	case Removed:
		return "Removed"
	default:
		return "Unknown"
	}
}

// Flag is a FlagState with the byte progress that InProgress carries
type Flag struct {
	State FlagState `json:"state"`
	Bytes int64     `json:"bytes,omitempty"`
}

// FlagPending is the flag an item has before anything happened to it
var FlagPending = Flag{State: Pending}

// FlagDone marks an item as fully transferred
var FlagDone = Flag{State: Done}

// FlagInProgress returns an InProgress flag carrying the given byte count
func FlagInProgress(bytes int64) Flag {
	return Flag{State: InProgress, Bytes: bytes}
}

// FlagInterrupted marks an item whose transfer failed
var FlagInterrupted = Flag{State: Interrupted}

// IsError reports whether the flag is one of the error kinds
func (f Flag) IsError() bool {
	return f.State == Interrupted || f.State == Removed
}

// IsTerminal reports whether the flag will not change without user action
func (f Flag) IsTerminal() bool {
	return f.State == Done || f.IsError()
}

func (f Flag) String() string {
	if f.State == InProgress {
		return fmt.Sprintf("%s(%d)", f.State, f.Bytes)
	}
	return f.State.String()
}

// Ratio returns the completed fraction of size bytes this flag represents
func (f Flag) Ratio(size int64) float64 {
	switch f.State {
	case Done:
		return 1
	case InProgress:
		if size <= 0 {
			return 0
		}
		return float64(f.Bytes) / float64(size)
	default:
		return 0
	}
}

// IncomingKey is the FlagSet key used by incoming items, which have one flag
const IncomingKey = ""

// FlagSet holds the per-recipient flags of an item. It is shared between the
// store and the items it hands out, so writers and readers may run concurrently.
type FlagSet struct {
	mu    sync.RWMutex
	flags map[string]Flag
}

// NewFlagSet creates a flag set with the given initial flags
func NewFlagSet(initial map[string]Flag) *FlagSet {
	flags := make(map[string]Flag, len(initial))
	for k, v := range initial {
		flags[k] = v
	}
	return &FlagSet{flags: flags}
}

// Get returns the flag for key, Pending if absent
func (s *FlagSet) Get(key string) Flag {
	if s == nil {
		return FlagPending
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if flag, ok := s.flags[key]; ok {
		return flag
	}
	return FlagPending
}

// Set stores the flag for key
func (s *FlagSet) Set(key string, flag Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags == nil {
		s.flags = make(map[string]Flag)
	}
	s.flags[key] = flag
}

// Len returns the number of recipients that have a flag
func (s *FlagSet) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.flags)
}

// Snapshot copies the flags under a single read lock
func (s *FlagSet) Snapshot() FlagSnapshot {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(FlagSnapshot, len(s.flags))
	for k, v := range s.flags {
		snap[k] = v
	}
	return snap
}

func (s *FlagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]Flag(s.Snapshot()))
}

func (s *FlagSet) UnmarshalJSON(data []byte) error {
	var flags map[string]Flag
	if err := json.Unmarshal(data, &flags); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = flags
	return nil
}

// FlagSnapshot is an immutable copy of a FlagSet
type FlagSnapshot map[string]Flag

// Get returns the flag for key, Pending if absent
func (s FlagSnapshot) Get(key string) Flag {
	if flag, ok := s[key]; ok {
		return flag
	}
	return FlagPending
}
