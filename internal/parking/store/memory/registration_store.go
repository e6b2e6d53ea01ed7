package memory

import (
	"context"
	"fmt"

	"github.com/wkrzos/parked/internal/parking/store"
)

func (s *Store) Register(_ context.Context, rec store.RegistrationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return err
	}

	// Check both constraints before writing so a failure leaves nothing behind.
	if _, ok := s.userByName(rec.Username); ok {
		return fmt.Errorf("Register insert user: username %q already exists", rec.Username)
	}
	if _, ok := s.cardByCode(rec.CardCode); ok {
		return fmt.Errorf("Register insert card: card_code %q already exists", rec.CardCode)
	}

	s.nextUserID++
	userID := s.nextUserID
	s.users[userID] = User{ID: userID, Username: rec.Username, Password: rec.Password, Email: rec.Email}

	s.nextCardID++
	s.cards[s.nextCardID] = Card{ID: s.nextCardID, Code: rec.CardCode, UserID: userID}
	return nil
}

func (s *Store) Reassign(_ context.Context, cardCode, username string) (store.ReassignResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return store.ReassignResult{}, err
	}

	u, ok := s.userByName(username)
	if !ok {
		return store.ReassignResult{}, nil
	}
	c, ok := s.cardByCode(cardCode)
	if !ok {
		return store.ReassignResult{UserFound: true}, nil
	}

	c.UserID = u.ID
	s.cards[c.ID] = c
	return store.ReassignResult{UserFound: true, CardFound: true}, nil
}

func (s *Store) Unregister(_ context.Context, cardCode string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return false, err
	}

	c, ok := s.cardByCode(cardCode)
	if !ok {
		return false, nil
	}

	delete(s.cards, c.ID)
	for i := range s.events {
		if s.events[i].CardID == c.ID {
			s.events[i].CardID = 0
		}
	}
	if c.UserID != 0 {
		delete(s.users, c.UserID)
	}
	return true, nil
}

var _ store.RegistrationStore = (*Store)(nil)
