package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"studyhub/model"
	"studyhub/platform"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := platform.OpenDB(platform.DatabaseConfig{
		Driver: "sqlite",
		URL:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, model.InstallDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, FirstName: "Ada"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createAssignment(t *testing.T, db *gorm.DB, userID, title string, due time.Time) *model.Assignment {
	t.Helper()
	a, err := NewAssignmentService(db).Create(context.Background(), userID, AssignmentInput{
		Title:       title,
		Description: "Write 500 words",
		DueDate:     due,
		Subject:     "History",
		Priority:    model.PriorityHigh,
	})
	require.NoError(t, err)
	return a
}

type fakeGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	calls [][]Turn
}

func (f *fakeGenerator) Generate(ctx context.Context, turns []Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]Turn(nil), turns...))
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeGenerator) lastCall() []Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}
