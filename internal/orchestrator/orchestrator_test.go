package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/heartrisk/internal/features"
	"github.com/OldStager01/heartrisk/internal/metrics"
	"github.com/OldStager01/heartrisk/internal/model"
	"github.com/OldStager01/heartrisk/internal/resilience"
	"github.com/OldStager01/heartrisk/pkg/models"
)

var errDown = errors.New("database is down")

type fakeUsers struct {
	mu    sync.Mutex
	ids   map[int]bool
	calls int
	err   error
}

func (f *fakeUsers) Exists(_ context.Context, id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.ids[id], nil
}

type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	records   []*models.PredictionRecord
	insertErr error
	inserts   int
}

func (f *fakeStore) Insert(_ context.Context, r *models.PredictionRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.nextID++
	copied := *r
	copied.ID = f.nextID
	f.records = append(f.records, &copied)
	return f.nextID, nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID int) ([]*models.PredictionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PredictionRecord
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) ListAll(_ context.Context) ([]*models.PredictionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.PredictionRecord(nil), f.records...), nil
}

func (f *fakeStore) Delete(_ context.Context, recordID int64, userID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.records {
		if r.ID == recordID && r.UserID == userID {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type fixture struct {
	orch    *Orchestrator
	users   *fakeUsers
	store   *fakeStore
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := model.LoadRegistry("../../models")
	require.NoError(t, err)

	f := &fixture{
		users:   &fakeUsers{ids: map[int]bool{1: true, 2: true}},
		store:   &fakeStore{},
		metrics: metrics.New(),
	}
	validator := features.NewValidator(
		features.ClusterSchema(reg.Cluster.ImputationDefaults()),
		features.NeuralSchema(),
	)
	f.orch, err = New(Config{
		UserCacheSize: 8,
		Breaker:       resilience.CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Hour},
	}, Deps{
		Users:     f.users,
		Store:     f.store,
		Adapters:  reg,
		Validator: validator,
		Metrics:   f.metrics,
		Now:       func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	f.orch.Start()
	t.Cleanup(f.orch.Stop)
	return f
}

func clusterFields() map[string]string {
	return map[string]string{
		"age": "54", "sex": "1", "cp": "2", "chol": "230", "thalach": "150",
		"oldpeak": "1.2", "ca": "0", "thal": "2",
	}
}

func neuralFields() map[string]string {
	fields := clusterFields()
	fields["trestbps"] = "130"
	fields["exang"] = "0"
	fields["slope"] = "1"
	return fields
}

func TestHandlePredictionRequest_Cluster(t *testing.T) {
	f := newFixture(t)

	result, err := f.orch.HandlePredictionRequest(context.Background(), "1", "Cluster", clusterFields())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Cluster)
	assert.Equal(t, models.RiskLow, result.RiskLevel)
	assert.Equal(t, models.VariantCluster, result.ModelType)
	trestbps, ok := result.Input.Get("trestbps")
	require.True(t, ok)
	assert.Equal(t, 130.0, trestbps)

	require.Len(t, f.store.records, 1)
	rec := f.store.records[0]
	assert.Equal(t, 1, rec.UserID)
	assert.Equal(t, models.VariantCluster, rec.ModelType)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), rec.Timestamp)
	assert.Equal(t, *result, rec.Result)
	assert.Equal(t, int64(1), f.metrics.PredictionCount("Cluster", models.RiskLow))
}

func TestHandlePredictionRequest_Neural(t *testing.T) {
	f := newFixture(t)

	for _, tag := range []string{"NeuralNetwork", "Neural Network", "neural"} {
		result, err := f.orch.HandlePredictionRequest(context.Background(), "2", tag, neuralFields())
		require.NoError(t, err, tag)
		assert.Equal(t, models.VariantNeuralNetwork, result.ModelType)
		assert.Contains(t, []string{models.RiskNeuralLow, models.RiskNeuralMedium, models.RiskNeuralHigh}, result.RiskLevel)
	}
	assert.Len(t, f.store.records, 3)
}

func TestHandlePredictionRequest_Errors(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		tag    string
		fields map[string]string
		check  func(t *testing.T, err error)
		stage  string
	}{
		{
			name:   "blank user and model type",
			userID: " ",
			tag:    "",
			fields: clusterFields(),
			check: func(t *testing.T, err error) {
				var verr *features.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, []string{"user_id", "model_type"}, verr.MissingFields)
			},
			stage: "validate",
		},
		{
			name:   "unknown user",
			userID: "99",
			tag:    "Cluster",
			fields: clusterFields(),
			check: func(t *testing.T, err error) {
				var nf *NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, "99", nf.ID)
			},
			stage: "lookup",
		},
		{
			name:   "non-numeric user",
			userID: "abc",
			tag:    "Cluster",
			fields: clusterFields(),
			check: func(t *testing.T, err error) {
				var nf *NotFoundError
				require.ErrorAs(t, err, &nf)
			},
			stage: "lookup",
		},
		{
			name:   "unsupported tag",
			userID: "1",
			tag:    "svm",
			fields: clusterFields(),
			check: func(t *testing.T, err error) {
				var um *UnsupportedModelError
				require.ErrorAs(t, err, &um)
				assert.Equal(t, "svm", um.Tag)
			},
			stage: "dispatch",
		},
		{
			name:   "neural missing trestbps",
			userID: "1",
			tag:    "NeuralNetwork",
			fields: func() map[string]string {
				f := neuralFields()
				delete(f, "trestbps")
				return f
			}(),
			check: func(t *testing.T, err error) {
				var verr *features.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, []string{"trestbps"}, verr.MissingFields)
				assert.Equal(t, "1", verr.UserID)
				assert.Equal(t, "NeuralNetwork", verr.ModelType)
			},
			stage: "validate",
		},
		{
			name:   "non-numeric age",
			userID: "1",
			tag:    "Cluster",
			fields: func() map[string]string {
				f := clusterFields()
				f["age"] = "abc"
				return f
			}(),
			check: func(t *testing.T, err error) {
				var verr *features.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, []string{"age"}, verr.InvalidTypes)
			},
			stage: "validate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			result, err := f.orch.HandlePredictionRequest(context.Background(), tt.userID, tt.tag, tt.fields)
			assert.Nil(t, result)
			tt.check(t, err)
			assert.Empty(t, f.store.records)
			assert.Equal(t, int64(1), f.metrics.FailureCount(tt.stage))
		})
	}
}

func TestHandlePredictionRequest_PersistenceFailureKeepsResult(t *testing.T) {
	f := newFixture(t)
	f.store.insertErr = errDown

	result, err := f.orch.HandlePredictionRequest(context.Background(), "1", "Cluster", clusterFields())
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Cluster)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Same(t, result, perr.Result)
	assert.ErrorIs(t, err, errDown)
}

func TestHandlePredictionRequest_OpenBreakerSkipsStore(t *testing.T) {
	f := newFixture(t)
	f.store.insertErr = errDown

	for i := 0; i < 2; i++ {
		_, err := f.orch.HandlePredictionRequest(context.Background(), "1", "Cluster", clusterFields())
		require.ErrorIs(t, err, errDown)
	}

	result, err := f.orch.HandlePredictionRequest(context.Background(), "1", "Cluster", clusterFields())
	require.NotNil(t, result)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, f.store.inserts)
}

func TestHandlePredictionRequest_CachesKnownUsers(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.orch.HandlePredictionRequest(context.Background(), "1", "Cluster", clusterFields())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.users.calls)

	f.users.err = errDown
	_, err := f.orch.HandlePredictionRequest(context.Background(), "2", "Cluster", clusterFields())
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Nil(t, perr.Result)
}

func TestHandlePredictionRequest_PublishesEvents(t *testing.T) {
	f := newFixture(t)
	events := f.orch.SubscribeAllEvents()

	_, err := f.orch.HandlePredictionRequest(context.Background(), "1", "Cluster", clusterFields())
	require.NoError(t, err)

	select {
	case e := <-events:
		assert.Equal(t, models.EventTypePredictionCreated, e.Type)
		assert.Equal(t, 1, e.UserID)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestListRecords(t *testing.T) {
	f := newFixture(t)

	records, err := f.orch.ListRecords(context.Background(), "2")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	for i := 0; i < 2; i++ {
		_, err := f.orch.HandlePredictionRequest(context.Background(), "2", "Cluster", clusterFields())
		require.NoError(t, err)
	}
	records, err = f.orch.ListRecords(context.Background(), "2")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Greater(t, records[0].ID, records[1].ID)

	_, err = f.orch.ListRecords(context.Background(), "77")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)

	all, err := f.orch.ListAllRecords(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteRecord(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.HandlePredictionRequest(context.Background(), "1", "Cluster", clusterFields())
	require.NoError(t, err)
	id := f.store.records[0].ID

	var nf *NotFoundError
	require.ErrorAs(t, f.orch.DeleteRecord(context.Background(), id, 2), &nf)
	require.Len(t, f.store.records, 1)

	require.NoError(t, f.orch.DeleteRecord(context.Background(), id, 1))
	assert.Empty(t, f.store.records)

	assert.ErrorAs(t, f.orch.DeleteRecord(context.Background(), id, 1), &nf)
}
