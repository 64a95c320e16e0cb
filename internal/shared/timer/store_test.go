package timer_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusvault/internal/shared/timer"
)

func sampleRecord(id string, created time.Time) timer.Record {
	return timer.Record{
		ID:               id,
		Name:             "Linear algebra",
		Subject:          "Math",
		Kind:             timer.KindFocus,
		TotalSeconds:     1500,
		RemainingSeconds: 1200,
		Phase:            timer.PhasePaused,
		CreatedAt:        created,
		UpdatedAt:        created,
		Status:           timer.StatusActive,
	}
}

func TestStoreSaveGetDelete(t *testing.T) {
	store, err := timer.NewStore(t.TempDir())
	require.NoError(t, err)

	rec := sampleRecord("ses-1", epoch)
	require.NoError(t, store.Save(rec))

	got, err := store.Get("ses-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, rec.RemainingSeconds, got.RemainingSeconds)
	assert.Equal(t, timer.PhasePaused, got.Phase)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, store.Delete("ses-1"))
	_, err = store.Get("ses-1")
	assert.ErrorIs(t, err, os.ErrNotExist)

	// Deleting a missing record is not an error.
	assert.NoError(t, store.Delete("ses-1"))
}

func TestStoreLoadAllSortsAndSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := timer.NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(sampleRecord("ses-b", epoch.Add(time.Hour))))
	require.NoError(t, store.Save(sampleRecord("ses-a", epoch)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("::: not yaml"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	invalid := sampleRecord("ses-c", epoch)
	invalid.RemainingSeconds = 9999
	require.NoError(t, store.Save(invalid))

	records, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ses-a", records[0].ID)
	assert.Equal(t, "ses-b", records[1].ID)
}

func TestStorePlans(t *testing.T) {
	store, err := timer.NewStore(t.TempDir())
	require.NoError(t, err)

	plan := timer.Plan{
		ID:              "plan-1",
		Name:            "Morning review",
		Kind:            timer.KindFocus,
		Schedule:        "0 9 * * 1-5",
		DurationSeconds: 3000,
		CreatedAt:       epoch,
	}
	require.NoError(t, store.SavePlan(plan))

	plans, err := store.LoadPlans()
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "Morning review", plans[0].Name)
	assert.Equal(t, 3000, plans[0].DurationSeconds)

	// Plans never show up as session records.
	records, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, store.DeletePlan("plan-1"))
	plans, err = store.LoadPlans()
	require.NoError(t, err)
	assert.Empty(t, plans)
}
