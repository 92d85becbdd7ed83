package events

import (
	"fmt"

	"github.com/OldStager01/heartrisk/pkg/models"
)

type Publisher struct {
	bus     *EventBus
	traceID string
}

func NewPublisher(bus *EventBus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) WithTraceID(traceID string) *Publisher {
	return &Publisher{
		bus:     p.bus,
		traceID: traceID,
	}
}

func (p *Publisher) publish(event *models.Event) {
	if p == nil || p.bus == nil {
		return
	}
	if p.traceID != "" {
		event.TraceID = p.traceID
	}
	p.bus.Publish(event)
}

func (p *Publisher) PredictionCreated(userID int, result *models.PredictionResult, recordID int64) {
	msg := fmt.Sprintf("%s prediction: cluster %d (%s)", result.ModelType, result.Cluster, result.RiskLevel)
	event := models.NewEvent(models.EventTypePredictionCreated, userID, msg).
		WithData(map[string]interface{}{
			"record_id": recordID,
			"result":    result,
		})
	p.publish(event)
}

// PredictionFailed reports a rejected or failed request. Persistence
// failures are warnings because a result was still produced.
func (p *Publisher) PredictionFailed(userID int, stage string, err error) {
	severity := models.SeverityCritical
	if stage == "persist" || stage == "validate" {
		severity = models.SeverityWarning
	}
	event := models.NewEvent(models.EventTypePredictionFailed, userID, "Prediction failed at "+stage).
		WithSeverity(severity).
		WithData(map[string]interface{}{
			"stage": stage,
			"error": err.Error(),
		})
	p.publish(event)
}

func (p *Publisher) RecordDeleted(userID int, recordID int64) {
	event := models.NewEvent(models.EventTypeRecordDeleted, userID, fmt.Sprintf("Record %d deleted", recordID)).
		WithData(map[string]interface{}{"record_id": recordID})
	p.publish(event)
}

func (p *Publisher) UserRegistered(user *models.User) {
	event := models.NewEvent(models.EventTypeUserRegistered, user.ID, "User registered: "+user.Username)
	p.publish(event)
}

func (p *Publisher) UserLoggedIn(user *models.User) {
	event := models.NewEvent(models.EventTypeUserLoggedIn, user.ID, "User logged in: "+user.Username)
	p.publish(event)
}
