package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/wkrzos/parked/internal/parking/store"
	"github.com/wkrzos/parked/internal/parking/types"
)

// DefaultPassword is assigned to every user created through registration.
const DefaultPassword = "defaultpassword"

// PlaceholderEmail derives the stored email from a username.
func PlaceholderEmail(username string) string {
	return strings.ToLower(strings.ReplaceAll(username, " ", "")) + "@example.com"
}

// RegistrationService handles add/edit/delete requests from the UI.
type RegistrationService struct {
	store store.RegistrationStore
	log   *zap.Logger
}

func NewRegistrationService(st store.RegistrationStore, log *zap.Logger) *RegistrationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationService{store: st, log: log.Named("registration")}
}

// Handle applies one registration action.  Status is true only when the action
// changed the datastore; lookups that match nothing and failed transactions
// both report false.
func (s *RegistrationService) Handle(ctx context.Context, req types.RegistrationRequest) (types.StatusResponse, error) {
	req.Action = strings.ToLower(strings.TrimSpace(req.Action))

	if err := validateBody(req); err != nil {
		return types.StatusResponse{}, err
	}

	resp := types.StatusResponse{Action: req.Action, CardUUID: req.CardUUID, User: req.Username}
	fields := []zap.Field{
		zap.String("action", req.Action),
		zap.String("card_uuid", req.CardUUID),
		zap.String("username", req.Username),
	}

	var (
		applied bool
		err     error
	)
	switch req.Action {
	case types.ActionAdd:
		err = s.store.Register(ctx, store.RegistrationRecord{
			CardCode: req.CardUUID,
			Username: req.Username,
			Password: DefaultPassword,
			Email:    PlaceholderEmail(req.Username),
		})
		applied = err == nil

	case types.ActionEdit:
		var res store.ReassignResult
		res, err = s.store.Reassign(ctx, req.CardUUID, req.Username)
		if err == nil {
			switch {
			case !res.UserFound:
				s.log.Info("edit: no user with that username", fields...)
			case !res.CardFound:
				s.log.Info("edit: no card with that code", fields...)
			}
			applied = res.Applied()
		}

	case types.ActionDelete:
		applied, err = s.store.Unregister(ctx, req.CardUUID)
		if err == nil && !applied {
			s.log.Info("delete: no card with that code", fields...)
		}

	default:
		return types.StatusResponse{}, ErrInvalidAction
	}

	if err != nil {
		s.log.Error("registration transaction failed", append(fields, zap.Error(err))...)
		return resp, nil
	}

	resp.Status = applied
	return resp, nil
}
