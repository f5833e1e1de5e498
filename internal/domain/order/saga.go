package order

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

type compensation struct {
	name   string
	action func(ctx context.Context) error
}

// saga collects the undo steps of a checkout as resources are acquired.
type saga struct {
	compensations []compensation
}

func (s *saga) add(name string, action func(ctx context.Context) error) {
	s.compensations = append(s.compensations, compensation{name: name, action: action})
}

// compensate runs the undo steps in reverse acquisition order. It ignores
// request cancellation so a client disconnect cannot leave resources held.
// Failures are logged and do not stop the remaining steps.
func (s *saga) compensate(ctx context.Context, m *metrics) {
	ctx = context.WithoutCancel(ctx)
	lg := zctx.From(ctx)

	for i := len(s.compensations) - 1; i >= 0; i-- {
		c := s.compensations[i]
		err := c.action(ctx)
		m.compensation(ctx, c.name, err == nil)
		if err != nil {
			lg.Error("Checkout compensation failed",
				zap.String("step", c.name),
				zap.Error(err),
			)
		}
	}
}
