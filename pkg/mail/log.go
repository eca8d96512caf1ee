package mail

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer records messages instead of sending them. Used when SMTP is not configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// SendBatch logs every message and reports it as delivered.
func (m *LogMailer) SendBatch(ctx context.Context, batch Batch) (*BatchResult, error) {
	result := &BatchResult{Results: make([]Result, 0, len(batch.Messages))}
	from := formatAddress(batch.FromAddress, batch.FromName)
	for _, msg := range batch.Messages {
		m.logger.Info("email not sent, smtp not configured",
			zap.String("from", from),
			zap.String("to", formatAddress(msg.To, msg.ToName)),
			zap.String("subject", msg.Subject),
		)
		result.Results = append(result.Results, Result{To: msg.To})
	}
	return result, nil
}
