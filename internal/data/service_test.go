package data

import (
	"context"
	"errors"
	"testing"

	"adminconsole/internal/value"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServices(t *testing.T, repo Repository) Services {
	t.Helper()
	entities, err := DefaultEntities()
	require.NoError(t, err)
	services := NewServices(entities, repo, nil)
	require.NoError(t, services.Prepare(context.Background()))
	return services
}

func TestService_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	sets, err := newTestServices(t, repo).Lookup("sets")
	require.NoError(t, err)
	ctx := context.Background()

	rec := validSet()
	rec["optionalNumber"] = value.String("7")

	result, err := sets.Create(ctx, rec)
	require.NoError(t, err)
	require.True(t, result.OK, "errors: %v", result.Errors)
	assert.NotEmpty(t, result.ID)
	assert.Nil(t, result.FieldErrors())

	doc, err := sets.Get(ctx, result.ID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.True(t, doc.Fields.Get("optionalNumber").Equal(value.Number(7)), "numeric strings are stored as numbers")
	_, present := doc.Fields["optionalPositiveNumber"]
	assert.False(t, present, "blank optional fields are not stored")
}

func TestService_CreateInvalidDoesNotWrite(t *testing.T) {
	repo := NewMemoryRepository()
	sets, err := newTestServices(t, repo).Lookup("sets")
	require.NoError(t, err)
	ctx := context.Background()

	result, err := sets.Create(ctx, value.Record{
		"name":                   value.String(""),
		"mandatoryNumber":        value.String(""),
		"uniqueNumber":           value.String("x"),
		"optionalPositiveNumber": value.Number(0),
	})
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Empty(t, result.ID)
	assert.Len(t, result.Errors, 4)

	docs, err := sets.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestService_UniquenessExcludesSelfOnUpdate(t *testing.T) {
	repo := NewMemoryRepository()
	sets, err := newTestServices(t, repo).Lookup("sets")
	require.NoError(t, err)
	ctx := context.Background()

	a, err := sets.Create(ctx, validSet())
	require.NoError(t, err)
	require.True(t, a.OK)

	// updating A with its own unique value is not a collision
	update := validSet()
	update["name"] = value.String("Set A renamed")
	res, err := sets.Update(ctx, a.ID, update)
	require.NoError(t, err)
	assert.True(t, res.OK, "errors: %v", res.Errors)
	assert.Equal(t, a.ID, res.ID)

	// a second record with the same value is
	b := validSet()
	b["name"] = value.String("Set B")
	res, err = sets.Create(ctx, b)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, map[string]string{"uniqueNumber": MsgAlreadyInUse}, res.Errors)

	// numeric strings collide with stored numbers
	b["uniqueNumber"] = value.String(" 10 ")
	res, err = sets.Create(ctx, b)
	require.NoError(t, err)
	assert.False(t, res.OK)

	docs, err := sets.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestService_UpdateIntoAnotherRecordsValue(t *testing.T) {
	repo := NewMemoryRepository()
	sets, err := newTestServices(t, repo).Lookup("sets")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = sets.Create(ctx, validSet())
	require.NoError(t, err)

	other := validSet()
	other["uniqueNumber"] = value.Number(20)
	b, err := sets.Create(ctx, other)
	require.NoError(t, err)
	require.True(t, b.OK)

	other["uniqueNumber"] = value.Number(10)
	res, err := sets.Update(ctx, b.ID, other)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Errors, "uniqueNumber")
}

func TestService_UpdateClearsOptionalFields(t *testing.T) {
	repo := NewMemoryRepository()
	sets, err := newTestServices(t, repo).Lookup("sets")
	require.NoError(t, err)
	ctx := context.Background()

	rec := validSet()
	rec["optionalNumber"] = value.Number(3)
	created, err := sets.Create(ctx, rec)
	require.NoError(t, err)

	// fields left out of the update are blank, not preserved
	res, err := sets.Update(ctx, created.ID, value.Record{
		"name":            value.String("Set A"),
		"mandatoryNumber": value.Number(2),
		"uniqueNumber":    value.Number(10),
	})
	require.NoError(t, err)
	require.True(t, res.OK)

	doc, err := sets.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, doc.Fields.Get("optionalNumber").IsAbsent())
	assert.True(t, doc.Fields.Get("mandatoryNumber").Equal(value.Number(2)))
}

func TestService_UpdateMissing(t *testing.T) {
	sets, err := newTestServices(t, NewMemoryRepository()).Lookup("sets")
	require.NoError(t, err)

	_, err = sets.Update(context.Background(), "missing", validSet())
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestService_UpdateInvalidSkipsLookup(t *testing.T) {
	sets, err := newTestServices(t, NewMemoryRepository()).Lookup("sets")
	require.NoError(t, err)

	rec := validSet()
	rec["mandatoryNumber"] = value.Null()
	res, err := sets.Update(context.Background(), "missing", rec)
	require.NoError(t, err, "validation runs before storage is touched")
	assert.Equal(t, map[string]string{"mandatoryNumber": MsgRequiredNumber}, res.Errors)
}

func TestService_UpdateChecksUniquenessBeforeExistence(t *testing.T) {
	sets, err := newTestServices(t, NewMemoryRepository()).Lookup("sets")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = sets.Create(ctx, validSet())
	require.NoError(t, err)

	res, err := sets.Update(ctx, "missing", validSet())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, map[string]string{"uniqueNumber": MsgAlreadyInUse}, res.Errors)

	fresh := validSet()
	fresh["uniqueNumber"] = value.Number(11)
	_, err = sets.Update(ctx, "missing", fresh)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestService_RemoveIsIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	sets, err := newTestServices(t, repo).Lookup("sets")
	require.NoError(t, err)
	ctx := context.Background()

	created, err := sets.Create(ctx, validSet())
	require.NoError(t, err)

	require.NoError(t, sets.Remove(ctx, created.ID))
	require.NoError(t, sets.Remove(ctx, created.ID))

	doc, err := sets.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, doc)

	// the unique value is free again
	res, err := sets.Create(ctx, validSet())
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestService_CompetitionsHaveNoUniqueness(t *testing.T) {
	competitions, err := newTestServices(t, NewMemoryRepository()).Lookup("competitions")
	require.NoError(t, err)
	ctx := context.Background()

	rec := value.FormValues{"title": "Cup", "number1": "1", "number2": ""}.Record()
	for i := 0; i < 2; i++ {
		res, err := competitions.Create(ctx, value.FormToAPI(rec))
		require.NoError(t, err)
		assert.True(t, res.OK, "errors: %v", res.Errors)
	}

	docs, err := competitions.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestServices_LookupUnknown(t *testing.T) {
	_, err := newTestServices(t, NewMemoryRepository()).Lookup("players")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

// The uniqueness lookup and the write are separate steps. Two writers that
// both check before either inserts will both pass; this pins that behaviour.
func TestCheckUnique_NotAtomicWithWrite(t *testing.T) {
	repo := NewMemoryRepository()
	sets := testEntities(t)["sets"]
	ctx := context.Background()

	first, err := CheckUnique(ctx, repo, sets, validSet(), "")
	require.NoError(t, err)
	second, err := CheckUnique(ctx, repo, sets, validSet(), "")
	require.NoError(t, err)
	assert.Empty(t, first)
	assert.Empty(t, second)

	for i := 0; i < 2; i++ {
		_, err := repo.Insert(ctx, sets.Name, value.APIToStorage(validSet()))
		require.NoError(t, err)
	}

	dupes, err := repo.FindByField(ctx, sets.Name, sets.Unique, value.Number(10))
	require.NoError(t, err)
	assert.Len(t, dupes, 2)

	// once duplicates exist, every writer is rejected, including each duplicate itself
	conflict, err := CheckUnique(ctx, repo, sets, validSet(), dupes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"uniqueNumber": MsgAlreadyInUse}, conflict)
}

func TestCheckUnique_SkipsEntitiesWithoutUniqueField(t *testing.T) {
	competitions := testEntities(t)["competitions"]
	conflicts, err := CheckUnique(context.Background(), failingRepository{}, competitions, value.Record{}, "")
	require.NoError(t, err)
	assert.Nil(t, conflicts)
}

func TestService_StorageErrorsPropagate(t *testing.T) {
	entities, err := DefaultEntities()
	require.NoError(t, err)
	sets, err := NewServices(entities, failingRepository{}, nil).Lookup("sets")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = sets.Create(ctx, validSet())
	assert.ErrorIs(t, err, errStorageDown)

	_, err = sets.List(ctx)
	assert.ErrorIs(t, err, errStorageDown)

	_, err = sets.Get(ctx, "x")
	assert.ErrorIs(t, err, errStorageDown)

	assert.ErrorIs(t, sets.Remove(ctx, "x"), errStorageDown)
}

func TestService_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	entities, err := DefaultEntities()
	require.NoError(t, err)
	sets, err := NewServices(entities, NewMemoryRepository(), metrics).Lookup("sets")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = sets.Create(ctx, validSet())
	require.NoError(t, err)
	_, err = sets.Create(ctx, validSet())
	require.NoError(t, err)
	_, err = sets.Create(ctx, value.Record{})
	require.NoError(t, err)
	fresh := validSet()
	fresh["uniqueNumber"] = value.Number(99)
	_, err = sets.Update(ctx, "missing", fresh)
	require.ErrorIs(t, err, ErrRecordNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("sets", "create", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("sets", "create", OutcomeConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("sets", "create", OutcomeInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("sets", "update", OutcomeNotFound)))
}

var errStorageDown = errors.New("storage down")

// failingRepository fails every call.
type failingRepository struct{}

func (failingRepository) Insert(context.Context, string, value.Record) (*Document, error) {
	return nil, errStorageDown
}
func (failingRepository) Get(context.Context, string, string) (*Document, error) {
	return nil, errStorageDown
}
func (failingRepository) List(context.Context, string) ([]*Document, error) {
	return nil, errStorageDown
}
func (failingRepository) Replace(context.Context, string, string, value.Record) error {
	return errStorageDown
}
func (failingRepository) Delete(context.Context, string, string) error { return errStorageDown }
func (failingRepository) FindByField(context.Context, string, string, value.Value) ([]*Document, error) {
	return nil, errStorageDown
}
func (failingRepository) EnsureIndex(context.Context, string, string) error { return errStorageDown }
func (failingRepository) Health(context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"status": "unhealthy"}, errStorageDown
}
func (failingRepository) Close() error { return nil }
