package audit

import (
	"strconv"
	"time"

	"go.uber.org/zap"
)

type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	ActorID   int64             `json:"actor_id"`
	SubjectID int64             `json:"subject_id"`
	Amount    float64           `json:"amount,omitempty"`
	Status    string            `json:"status"`
	Details   map[string]string `json:"details,omitempty"`
}

// AuditLogger writes ledger and administrative events as structured log lines.
type AuditLogger struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.Named("audit"),
		now:    time.Now,
	}
}

// LogEntry records a debt or payment applied to a customer.
func (a *AuditLogger) LogEntry(eventType string, actorID, customerID int64, amount, newBalance float64) {
	a.log(AuditEvent{
		Timestamp: a.now(),
		EventType: eventType,
		ActorID:   actorID,
		SubjectID: customerID,
		Amount:    amount,
		Status:    "SUCCESS",
		Details:   map[string]string{"balance": strconv.FormatFloat(newBalance, 'f', -1, 64)},
	})
}

func (a *AuditLogger) LogOperation(operation string, actorID, subjectID int64, details map[string]string) {
	a.log(AuditEvent{
		Timestamp: a.now(),
		EventType: operation,
		ActorID:   actorID,
		SubjectID: subjectID,
		Status:    "SUCCESS",
		Details:   details,
	})
}

func (a *AuditLogger) LogError(operation string, actorID, subjectID int64, err error) {
	a.log(AuditEvent{
		Timestamp: a.now(),
		EventType: operation,
		ActorID:   actorID,
		SubjectID: subjectID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.String("event_type", event.EventType),
		zap.Int64("actor_id", event.ActorID),
		zap.Int64("subject_id", event.SubjectID),
		zap.String("status", event.Status),
	}
	if event.Amount != 0 {
		fields = append(fields, zap.Float64("amount", event.Amount))
	}
	if len(event.Details) > 0 {
		fields = append(fields, zap.Any("details", event.Details))
	}
	a.logger.Info("AUDIT", fields...)
}
