// Package content produces the readings served from the menu. Generators are
// black boxes to the conversation: they get a request kind and the profile and
// return text ready to send.
package content

import (
	"context"
	"errors"
	"time"

	"github.com/astrobot/server/internal/model"
)

// ErrUnavailable means the generator could not produce content right now.
var ErrUnavailable = errors.New("content service unavailable")

// Request asks for one reading.
type Request struct {
	Kind     string
	Profile  model.Profile
	Language string
	Now      time.Time
}

// Rendered is a finished reading.
type Rendered struct {
	Text string
}

// Generator produces readings.
type Generator interface {
	Generate(ctx context.Context, req Request) (Rendered, error)
}
