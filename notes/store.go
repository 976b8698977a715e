// Package notes keeps a client-side record of mixer secret pairs. Losing a
// nullifier or secret makes a deposit unrecoverable, so the CLI persists every
// generated pair before submitting the deposit.
package notes

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"mixlend/crypto"
)

// Status tracks where a note sits in its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDeposited Status = "deposited"
	StatusLocked    Status = "locked"
	StatusWithdrawn Status = "withdrawn"
)

var bucketNotes = []byte("notes")

// Note is one saved secret pair plus everything needed to act on it later.
type Note struct {
	ID         string    `json:"id"`
	Commitment string    `json:"commitment"`
	Nullifier  string    `json:"nullifier"`
	Secret     string    `json:"secret"`
	Token      string    `json:"token"`
	Amount     string    `json:"amount"`
	Status     Status    `json:"status"`
	LoanID     uint64    `json:"loanId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Store persists notes in a local bbolt file.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the note database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("notes: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNotes)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("notes: init %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Create generates a fresh secret pair, derives its commitment, and persists
// the note before returning it.
func (s *Store) Create(token, amount string) (*Note, error) {
	nullifier, secret, err := crypto.NewSecretPair()
	if err != nil {
		return nil, fmt.Errorf("notes: generate secrets: %w", err)
	}
	now := time.Now().UTC()
	note := &Note{
		ID:         uuid.NewString(),
		Commitment: crypto.FormatHash32(crypto.Commitment(nullifier, secret)),
		Nullifier:  crypto.FormatHash32(nullifier),
		Secret:     crypto.FormatHash32(secret),
		Token:      token,
		Amount:     amount,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.put(note); err != nil {
		return nil, err
	}
	return note, nil
}

// Get returns the note with the given id, nil when absent.
func (s *Store) Get(id string) (*Note, error) {
	var note *Note
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketNotes).Get([]byte(id))
		if raw == nil {
			return nil
		}
		note = &Note{}
		return json.Unmarshal(raw, note)
	})
	if err != nil {
		return nil, fmt.Errorf("notes: get %s: %w", id, err)
	}
	return note, nil
}

// List returns all stored notes.
func (s *Store) List() ([]*Note, error) {
	var out []*Note
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNotes).ForEach(func(_, raw []byte) error {
			note := &Note{}
			if err := json.Unmarshal(raw, note); err != nil {
				return err
			}
			out = append(out, note)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("notes: list: %w", err)
	}
	return out, nil
}

// SetStatus advances the note's lifecycle and optionally records the loan it
// collateralizes.
func (s *Store) SetStatus(id string, status Status, loanID uint64) error {
	note, err := s.Get(id)
	if err != nil {
		return err
	}
	if note == nil {
		return fmt.Errorf("notes: unknown note %s", id)
	}
	note.Status = status
	if loanID != 0 {
		note.LoanID = loanID
	}
	note.UpdatedAt = time.Now().UTC()
	return s.put(note)
}

// Delete removes a note. Spent notes carry no value but keeping them around
// leaks linkage between the deposit and the withdrawal.
func (s *Store) Delete(id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNotes).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("notes: delete %s: %w", id, err)
	}
	return nil
}

func (s *Store) put(note *Note) error {
	raw, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("notes: encode %s: %w", note.ID, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNotes).Put([]byte(note.ID), raw)
	})
	if err != nil {
		return fmt.Errorf("notes: put %s: %w", note.ID, err)
	}
	return nil
}
