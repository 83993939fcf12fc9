package composition

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/duet/internal/config"
	"github.com/stwalsh4118/duet/internal/db"
	"github.com/stwalsh4118/duet/internal/logger"
	"github.com/stwalsh4118/duet/internal/models"
)

func setupTestService(t *testing.T) *Service {
	t.Helper()

	logger.Init("error", false)

	database, err := db.New(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	return NewService(database, db.NewRepositories(database))
}

func TestService_Create(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, Input{
		Name:          "  Trailer  ",
		VideoURL:      "https://cdn.example.com/trailer.mp4",
		AudioURL:      "/srv/media/score.mp3",
		IconOverrides: models.IconOverrides{"video": "camera"},
		AudioMenu:     json.RawMessage(`{"items":[]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Trailer", c.Name)
	assert.NotNil(t, c.PresentationOverrides)

	got, err := svc.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "camera", got.IconOverrides["video"])
	assert.JSONEq(t, `{"items":[]}`, string(got.AudioMenu))
}

func TestService_Create_Validation(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   Input
		want error
	}{
		{"empty name", Input{Name: "   "}, ErrInvalidName},
		{"long name", Input{Name: strings.Repeat("x", maxNameLength+1)}, ErrInvalidName},
		{"bad url", Input{Name: "a", VideoURL: "http://[::1"}, ErrInvalidURL},
		{"http without host", Input{Name: "a", AudioURL: "https:///x.mp3"}, ErrInvalidURL},
		{"bad menu", Input{Name: "a", VideoMenu: json.RawMessage(`{`)}, ErrInvalidMenu},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestService_Create_DuplicateName(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{Name: "Demo"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, Input{Name: "demo"})
	assert.True(t, IsDuplicateName(err))
}

func TestService_Update(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, Input{Name: "Demo", VideoURL: "v.mp4", AudioURL: "a.mp3"})
	require.NoError(t, err)
	other, err := svc.Create(ctx, Input{Name: "Other"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, c.ID, Input{Name: "DEMO", VideoURL: "v2.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "DEMO", updated.Name)
	assert.Equal(t, "", updated.AudioURL)

	_, err = svc.Update(ctx, c.ID, Input{Name: "other"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = svc.Update(ctx, other.ID, Input{Name: ""})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = svc.Update(ctx, uuid.New(), Input{Name: "Ghost"})
	assert.True(t, IsNotFound(err))
}

func TestService_ListAndDelete(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, Input{Name: "One"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, Input{Name: "Two"})
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, svc.Delete(ctx, c.ID))
	assert.ErrorIs(t, svc.Delete(ctx, c.ID), ErrCompositionNotFound)

	_, err = svc.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, ErrCompositionNotFound)
}
