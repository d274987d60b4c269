package store

import (
	"context"

	"downshot/pkg/model"
)

// MissionStore handles mission history persistence.
type MissionStore interface {
	SaveRun(ctx context.Context, run *model.MissionRun) error
	GetRun(ctx context.Context, id string) (*model.MissionRun, error)
	ListRuns(ctx context.Context, limit int) ([]*model.MissionRun, error)
	AppendEvent(ctx context.Context, ev *model.MissionEvent) error
	ListEvents(ctx context.Context, runID string) ([]*model.MissionEvent, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
