package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hoganho/kingsroom-sub012/internal/store"
)

// Op is a control-plane operation on the scraper.
type Op string

const (
	OpStart   Op = "START"
	OpStop    Op = "STOP"
	OpEnable  Op = "ENABLE"
	OpDisable Op = "DISABLE"
	OpStatus  Op = "STATUS"
	OpReset   Op = "RESET"
)

// ControlStore is the state surface the controller manipulates.
type ControlStore interface {
	GetState(ctx context.Context, entityID string) (*store.AutoScraperState, error)
	ReleaseRun(ctx context.Context, entityID string) error
	SetEnabled(ctx context.Context, entityID string, enabled bool) error
	Reset(ctx context.Context, entityID string) error
}

// Runner starts a walk; the controller does not care how it is scheduled.
type Runner interface {
	Run(ctx context.Context) (*RunResult, error)
}

// ControlResult is the structured reply for every control operation.
// Refusals carry success=false and a message, never an error.
type ControlResult struct {
	Success bool                    `json:"success"`
	State   *store.AutoScraperState `json:"state,omitempty"`
	Message string                  `json:"message,omitempty"`
}

// Controller executes control operations against one entity's scraper.
type Controller struct {
	entityID string
	states   ControlStore
	runner   Runner
	log      *logrus.Logger

	// start launches a run without blocking the control call. Replaced in
	// tests to run synchronously.
	start func()
}

func NewController(entityID string, states ControlStore, runner Runner, log *logrus.Logger) *Controller {
	c := &Controller{entityID: entityID, states: states, runner: runner, log: log}
	c.start = func() {
		go func() {
			if _, err := runner.Run(context.Background()); err != nil {
				log.WithError(err).Error("scrape run failed")
			}
		}()
	}
	return c
}

// Execute runs one control operation.
func (c *Controller) Execute(ctx context.Context, op Op) (*ControlResult, error) {
	state, err := c.states.GetState(ctx, c.entityID)
	if err != nil {
		return nil, err
	}

	switch Op(strings.ToUpper(string(op))) {
	case OpStatus:
		return &ControlResult{Success: true, State: state}, nil

	case OpStart:
		if !state.Enabled {
			return &ControlResult{Success: false, State: state, Message: "scraper is disabled"}, nil
		}
		if state.IsRunning {
			return &ControlResult{Success: false, State: state, Message: "already running"}, nil
		}
		c.start()
		return &ControlResult{Success: true, State: state, Message: "scrape started"}, nil

	case OpStop:
		if !state.IsRunning {
			return &ControlResult{Success: false, State: state, Message: "not running"}, nil
		}
		// The walk observes the cleared flag at the top of its loop and
		// cancels the job.
		if err := c.states.ReleaseRun(ctx, c.entityID); err != nil {
			return nil, err
		}
		return c.refreshed(ctx, "stop requested")

	case OpEnable:
		if err := c.states.SetEnabled(ctx, c.entityID, true); err != nil {
			return nil, err
		}
		return c.refreshed(ctx, "scraper enabled")

	case OpDisable:
		if err := c.states.SetEnabled(ctx, c.entityID, false); err != nil {
			return nil, err
		}
		return c.refreshed(ctx, "scraper disabled")

	case OpReset:
		if state.IsRunning {
			return &ControlResult{Success: false, State: state, Message: "cannot reset while running"}, nil
		}
		if err := c.states.Reset(ctx, c.entityID); err != nil {
			return nil, err
		}
		return c.refreshed(ctx, "scraper state reset")

	default:
		return &ControlResult{Success: false, State: state, Message: fmt.Sprintf("unknown operation %q", op)}, nil
	}
}

func (c *Controller) refreshed(ctx context.Context, msg string) (*ControlResult, error) {
	state, err := c.states.GetState(ctx, c.entityID)
	if err != nil {
		return nil, err
	}
	return &ControlResult{Success: true, State: state, Message: msg}, nil
}
