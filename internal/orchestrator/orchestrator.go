package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/OldStager01/heartrisk/internal/events"
	"github.com/OldStager01/heartrisk/internal/features"
	"github.com/OldStager01/heartrisk/internal/logger"
	"github.com/OldStager01/heartrisk/internal/metrics"
	"github.com/OldStager01/heartrisk/internal/model"
	"github.com/OldStager01/heartrisk/internal/resilience"
	"github.com/OldStager01/heartrisk/pkg/models"
)

const UserIDField = "user_id"

// UserLookup answers whether a user id exists.
type UserLookup interface {
	Exists(ctx context.Context, id int) (bool, error)
}

// PredictionStore persists prediction records.
type PredictionStore interface {
	Insert(ctx context.Context, record *models.PredictionRecord) (int64, error)
	ListByUser(ctx context.Context, userID int) ([]*models.PredictionRecord, error)
	ListAll(ctx context.Context) ([]*models.PredictionRecord, error)
	Delete(ctx context.Context, recordID int64, userID int) (bool, error)
}

// AdapterSource resolves the adapter for a variant; *model.Registry
// implements it.
type AdapterSource interface {
	For(variant models.ModelVariant) (model.Adapter, error)
}

type Config struct {
	UserCacheSize   int
	EventBufferSize int
	Breaker         resilience.CircuitBreakerConfig
}

type Deps struct {
	Users     UserLookup
	Store     PredictionStore
	Adapters  AdapterSource
	Validator *features.Validator
	Metrics   *metrics.Metrics

	// Now overrides the record timestamp clock; nil uses time.Now.
	Now func() time.Time
}

// Orchestrator runs prediction requests end to end: user check, field
// validation, model dispatch, and persistence.
type Orchestrator struct {
	users     UserLookup
	store     PredictionStore
	adapters  AdapterSource
	validator *features.Validator
	metrics   *metrics.Metrics
	now       func() time.Time

	knownUsers  *lru.Cache[int, struct{}]
	breaker     *resilience.CircuitBreaker
	eventBus    *events.EventBus
	eventLogger *events.EventLogger
	publisher   *events.Publisher
}

func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Users == nil || deps.Store == nil || deps.Adapters == nil || deps.Validator == nil {
		return nil, errors.New("orchestrator: users, store, adapters and validator are required")
	}
	if cfg.UserCacheSize <= 0 {
		cfg.UserCacheSize = 1024
	}
	known, err := lru.New[int, struct{}](cfg.UserCacheSize)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: user cache: %w", err)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.Name == "" {
		breakerCfg.Name = "prediction_store"
	}
	onChange := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(name string, from, to resilience.State) {
		logger.WithFields(map[string]interface{}{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		}).Warn("Circuit breaker state changed")
		deps.Metrics.SetCircuitBreakerState(name, int(to))
		if onChange != nil {
			onChange(name, from, to)
		}
	}

	bus := events.NewEventBus(cfg.EventBufferSize)
	eventLogger := events.NewEventLogger(bus.SubscribeAll())

	return &Orchestrator{
		users:       deps.Users,
		store:       deps.Store,
		adapters:    deps.Adapters,
		validator:   deps.Validator,
		metrics:     deps.Metrics,
		now:         deps.Now,
		knownUsers:  known,
		breaker:     resilience.NewCircuitBreaker(breakerCfg),
		eventBus:    bus,
		eventLogger: eventLogger,
		publisher:   events.NewPublisher(bus),
	}, nil
}

func (o *Orchestrator) Start() {
	logger.Info("Orchestrator starting")
	o.eventLogger.Start()
}

func (o *Orchestrator) Stop() {
	logger.Info("Orchestrator stopping")
	o.eventLogger.Stop()
	o.eventBus.Close()
	logger.Info("Orchestrator stopped")
}

func (o *Orchestrator) SubscribeAllEvents() <-chan *models.Event {
	return o.eventBus.SubscribeAll()
}

func (o *Orchestrator) Publisher(ctx context.Context) *events.Publisher {
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		return o.publisher.WithTraceID(traceID)
	}
	return o.publisher
}

// Validator exposes the schemas for model selection listings.
func (o *Orchestrator) Validator() *features.Validator {
	return o.validator
}

// HandlePredictionRequest validates raw, runs the selected model and stores
// the result. A *PersistenceError is returned together with the computed
// result when only the store write failed.
func (o *Orchestrator) HandlePredictionRequest(ctx context.Context, userID, tag string, raw map[string]string) (*models.PredictionResult, error) {
	userID = strings.TrimSpace(userID)
	tag = strings.TrimSpace(tag)

	if userID == "" || tag == "" {
		verr := &features.ValidationError{MissingFields: []string{}, InvalidTypes: []string{}, UserID: userID, ModelType: tag}
		if userID == "" {
			verr.MissingFields = append(verr.MissingFields, UserIDField)
		}
		if tag == "" {
			verr.MissingFields = append(verr.MissingFields, features.ModelTypeField)
		}
		o.fail(ctx, 0, "validate", verr)
		return nil, verr
	}

	uid, err := o.resolveUser(ctx, userID)
	if err != nil {
		o.fail(ctx, 0, "lookup", err)
		return nil, err
	}

	variant, ok := models.ParseModelVariant(tag)
	if !ok {
		err := &UnsupportedModelError{Tag: tag}
		o.fail(ctx, uid, "dispatch", err)
		return nil, err
	}

	fs, err := o.validator.Validate(raw, variant)
	if err != nil {
		var verr *features.ValidationError
		if errors.As(err, &verr) {
			verr.UserID = userID
			verr.ModelType = tag
		}
		o.fail(ctx, uid, "validate", err)
		return nil, err
	}

	adapter, err := o.adapters.For(variant)
	if err != nil {
		err := &UnsupportedModelError{Tag: tag}
		o.fail(ctx, uid, "dispatch", err)
		return nil, err
	}

	started := time.Now()
	result, err := adapter.Predict(fs)
	o.metrics.ObserveInference(variant.String(), time.Since(started))
	if err != nil {
		o.fail(ctx, uid, "inference", err)
		return nil, err
	}

	record := models.NewPredictionRecord(uid, result, o.now())
	recordID, err := o.persist(ctx, record)
	if err != nil {
		perr := &PersistenceError{Op: "insert prediction", Result: result, Err: err}
		o.fail(ctx, uid, "persist", perr)
		return result, perr
	}

	o.metrics.IncPrediction(result.ModelType.String(), result.RiskLevel)
	o.Publisher(ctx).PredictionCreated(uid, result, recordID)
	logger.WithUserCtx(ctx, uid).WithFields(map[string]interface{}{
		"record_id":  recordID,
		"model_type": result.ModelType.String(),
		"cluster":    result.Cluster,
	}).Info("Prediction stored")

	return result, nil
}

func (o *Orchestrator) persist(ctx context.Context, record *models.PredictionRecord) (int64, error) {
	var id int64
	err := o.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		id, err = o.store.Insert(ctx, record)
		return err
	})
	return id, err
}

// resolveUser parses and checks a user id. Ids that are not integers can
// never exist, so they are reported as not found.
func (o *Orchestrator) resolveUser(ctx context.Context, userID string) (int, error) {
	uid, err := strconv.Atoi(userID)
	if err != nil {
		return 0, &NotFoundError{Resource: "user", ID: userID}
	}
	if err := o.ensureUser(ctx, uid); err != nil {
		return 0, err
	}
	return uid, nil
}

func (o *Orchestrator) ensureUser(ctx context.Context, uid int) error {
	if o.knownUsers.Contains(uid) {
		return nil
	}
	exists, err := o.users.Exists(ctx, uid)
	if err != nil {
		return &PersistenceError{Op: "lookup user", Err: err}
	}
	if !exists {
		return &NotFoundError{Resource: "user", ID: strconv.Itoa(uid)}
	}
	// Users are never deleted, so a positive answer stays true.
	o.knownUsers.Add(uid, struct{}{})
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, uid int, stage string, err error) {
	o.metrics.IncPredictionFailure(stage)
	o.Publisher(ctx).PredictionFailed(uid, stage, err)
}

// ListRecords returns the user's records, newest first. A known user with no
// records gets an empty, non-nil slice.
func (o *Orchestrator) ListRecords(ctx context.Context, userID string) ([]*models.PredictionRecord, error) {
	uid, err := o.resolveUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	records, err := o.store.ListByUser(ctx, uid)
	if err != nil {
		return nil, &PersistenceError{Op: "list predictions", Err: err}
	}
	if records == nil {
		records = []*models.PredictionRecord{}
	}
	return records, nil
}

func (o *Orchestrator) ListAllRecords(ctx context.Context) ([]*models.PredictionRecord, error) {
	records, err := o.store.ListAll(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list predictions", Err: err}
	}
	if records == nil {
		records = []*models.PredictionRecord{}
	}
	return records, nil
}

// DeleteRecord removes a record owned by userID. Records of other users are
// reported as not found.
func (o *Orchestrator) DeleteRecord(ctx context.Context, recordID int64, userID int) error {
	deleted, err := o.store.Delete(ctx, recordID, userID)
	if err != nil {
		return &PersistenceError{Op: "delete prediction", Err: err}
	}
	if !deleted {
		return &NotFoundError{Resource: "record", ID: strconv.FormatInt(recordID, 10)}
	}

	o.metrics.IncRecordDeleted()
	o.Publisher(ctx).RecordDeleted(userID, recordID)
	logger.WithUserCtx(ctx, userID).WithField("record_id", recordID).Info("Prediction record deleted")
	return nil
}
