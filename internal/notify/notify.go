package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Notifier delivers operator-facing messages. Routine reports go through
// SendNotification; aborted cycles and failed evolution runs through SendAlert.
type Notifier interface {
	SendNotification(ctx context.Context, text string) error
	SendAlert(ctx context.Context, text string) error
}

// LogNotifier writes messages to the logger. It never fails.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendNotification(_ context.Context, text string) error {
	n.logger.Info("notification", zap.String("text", text))
	return nil
}

func (n *LogNotifier) SendAlert(_ context.Context, text string) error {
	n.logger.Warn("alert", zap.String("text", text))
	return nil
}

// Multi fans a message out to every notifier. All are tried; errors are joined.
type Multi []Notifier

func (m Multi) SendNotification(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.SendNotification(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) SendAlert(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.SendAlert(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
