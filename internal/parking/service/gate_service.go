package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wkrzos/parked/internal/parking/store"
	"github.com/wkrzos/parked/internal/parking/types"
)

// GateService handles "entry" and "departure" requests.
type GateService struct {
	registry *GateRegistry
	store    store.GateLogStore
	log      *zap.Logger
	now      func() time.Time
}

func NewGateService(reg *GateRegistry, st store.GateLogStore, log *zap.Logger) *GateService {
	if log == nil {
		log = zap.NewNop()
	}
	return &GateService{
		registry: reg,
		store:    st,
		log:      log.Named("gate"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *GateService) Entry(ctx context.Context, req types.PassageRequest) (types.StatusResponse, error) {
	return s.pass(ctx, req, types.HeaderEntry, types.GateRoleEntry, true)
}

func (s *GateService) Departure(ctx context.Context, req types.PassageRequest) (types.StatusResponse, error) {
	return s.pass(ctx, req, types.HeaderDeparture, types.GateRoleDeparture, false)
}

// pass returns an error only for a malformed request.  A missing card or a
// failed transaction is reported through Status=false.
func (s *GateService) pass(ctx context.Context, req types.PassageRequest, action, role string, entry bool) (types.StatusResponse, error) {
	if err := validateBody(req); err != nil {
		return types.StatusResponse{}, err
	}

	resp := types.StatusResponse{Action: action, CardUUID: req.CardUUID}

	res, err := s.store.RecordPassage(ctx, store.PassageRecord{
		CardCode: req.CardUUID,
		GateID:   s.registry.GateID(role),
		Entry:    entry,
		At:       s.now(),
	})
	if err != nil {
		s.log.Error("gate transaction failed",
			zap.String("action", action),
			zap.String("card_uuid", req.CardUUID),
			zap.Error(err))
		return resp, nil
	}
	if !res.Found {
		s.log.Info("unknown card", zap.String("action", action), zap.String("card_uuid", req.CardUUID))
		return resp, nil
	}

	resp.Status = true
	resp.User = res.Username
	return resp, nil
}
