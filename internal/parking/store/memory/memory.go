package memory

import (
	"errors"
	"sync"
)

// ErrInjected is returned by every operation while a failure is armed with
// FailNext.
var ErrInjected = errors.New("memory store: injected failure")

// User is a stored parking_user row.
type User struct {
	ID       int64
	Username string
	Password string
	Email    string
}

// Card is a stored card row.  UserID is 0 when the card has no owner.
type Card struct {
	ID     int64
	Code   string
	UserID int64
}

// Store keeps users, cards and gate events in maps guarded by one mutex.  It
// implements both store.GateLogStore and store.RegistrationStore, and every
// method either applies all of its changes or none.
type Store struct {
	mu sync.RWMutex

	users  map[int64]User
	cards  map[int64]Card
	events []GateEvent

	nextUserID  int64
	nextCardID  int64
	nextEventID int64

	failNext int
}

func New() *Store {
	return &Store{
		users: make(map[int64]User),
		cards: make(map[int64]Card),
	}
}

// FailNext makes the next n operations return ErrInjected without touching
// any data.
func (s *Store) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// AddUser inserts a user directly, bypassing Register.  Used to seed state.
func (s *Store) AddUser(username string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextUserID++
	s.users[s.nextUserID] = User{ID: s.nextUserID, Username: username}
	return s.nextUserID
}

// AddCard inserts a card owned by userID (0 for none).
func (s *Store) AddCard(code string, userID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCardID++
	s.cards[s.nextCardID] = Card{ID: s.nextCardID, Code: code, UserID: userID}
	return s.nextCardID
}

// Users returns a snapshot of all users.
func (s *Store) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out
}

// Cards returns a snapshot of all cards.
func (s *Store) Cards() []Card {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Card, 0, len(s.cards))
	for _, c := range s.cards {
		out = append(out, c)
	}
	return out
}

// CardOwner returns the username owning code, and whether the card exists.
func (s *Store) CardOwner(code string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cardByCode(code)
	if !ok {
		return "", false
	}
	return s.users[c.UserID].Username, true
}

// Caller must hold mu.
func (s *Store) injected() error {
	if s.failNext > 0 {
		s.failNext--
		return ErrInjected
	}
	return nil
}

// Caller must hold mu.
func (s *Store) cardByCode(code string) (Card, bool) {
	for _, c := range s.cards {
		if c.Code == code {
			return c, true
		}
	}
	return Card{}, false
}

// Caller must hold mu.
func (s *Store) userByName(username string) (User, bool) {
	for _, u := range s.users {
		if u.Username == username {
			return u, true
		}
	}
	return User{}, false
}
