package client

import (
	"encoding/json"
	"os"

	"github.com/kshivamiitk/classboard/models"
)

// Identity is the durable session credential set, the local-storage
// equivalent for a headless client. Only the active role's credential is
// ever presented on rejoin: teachers carry the class key, students their
// reconnect token, never both.
type Identity struct {
	Role         models.Role `json:"role"`
	ClassID      string      `json:"class_id"`
	TeacherKey   string      `json:"teacher_key,omitempty"`
	StudentToken string      `json:"student_token,omitempty"`
	Name         string      `json:"name,omitempty"`
}

type IdentityStore struct {
	path string
}

func NewIdentityStore(path string) *IdentityStore {
	return &IdentityStore{path: path}
}

// Persist writes atomically so a crash mid-write cannot corrupt the stored
// identity; a torn credential would silently demote a student to a fresh
// token on the next rejoin.
func (s *IdentityStore) Persist(identity Identity) error {
	data, err := json.MarshalIndent(identity, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load returns the stored identity, reporting false when none exists.
func (s *IdentityStore) Load() (Identity, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Identity{}, false, nil
		}
		return Identity{}, false, err
	}
	var identity Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return Identity{}, false, err
	}
	return identity, true, nil
}

func (s *IdentityStore) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
