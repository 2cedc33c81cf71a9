package task

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/testutils"
)

type stubProjects map[uint]bool

func (s stubProjects) Exists(_ context.Context, id uint) (bool, error) {
	return s[id], nil
}

type stubDirectory []uint

func (s stubDirectory) ActiveUserIDs(_ context.Context, ids []uint) ([]uint, error) {
	var active []uint
	for _, id := range ids {
		if slices.Contains(s, id) {
			active = append(active, id)
		}
	}
	return active, nil
}

var (
	creator  = Actor{UserID: 1}
	assignee = Actor{UserID: 2}
	outsider = Actor{UserID: 3}
	admin    = Actor{UserID: 4, IsAdmin: true}
)

func setupService(t *testing.T) *Service {
	t.Helper()
	db := testutils.SetupTestDB(t, &Task{})
	return NewService(db, stubProjects{10: true}, stubDirectory{1, 2, 3, 4}, nil)
}

func ptr[T any](v T) *T {
	return &v
}

func createAssigned(t *testing.T, service *Service) *Task {
	t.Helper()
	task, err := service.Create(context.Background(), creator, CreateInput{
		Title:      "Fact-check budget story",
		AssigneeID: ptr(assignee.UserID),
		ProjectID:  ptr(uint(10)),
	})
	require.NoError(t, err)
	return task
}

func assertKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperror.Is(err, kind), "unexpected error: %v", err)
}

func TestService_Create(t *testing.T) {
	service := setupService(t)
	ctx := context.Background()

	task := createAssigned(t, service)
	assert.Equal(t, StatusTodo, task.Status)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Equal(t, creator.UserID, task.CreatorID)
	assert.Nil(t, task.CompletedAt)

	done, err := service.Create(ctx, creator, CreateInput{Title: "Already shipped", Status: StatusDone})
	require.NoError(t, err)
	assert.NotNil(t, done.CompletedAt)

	tests := []struct {
		name  string
		input CreateInput
	}{
		{"missing title", CreateInput{Title: "  "}},
		{"bad status", CreateInput{Title: "x", Status: "blocked"}},
		{"bad priority", CreateInput{Title: "x", Priority: "critical"}},
		{"unknown project", CreateInput{Title: "x", ProjectID: ptr(uint(99))}},
		{"unknown assignee", CreateInput{Title: "x", AssigneeID: ptr(uint(99))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(ctx, creator, tt.input)
			assertKind(t, err, apperror.KindBadRequest)
		})
	}
}

func TestService_Visibility(t *testing.T) {
	service := setupService(t)
	ctx := context.Background()
	task := createAssigned(t, service)
	_, err := service.Create(ctx, outsider, CreateInput{Title: "Outsider task"})
	require.NoError(t, err)

	for _, actor := range []Actor{creator, assignee, admin} {
		got, err := service.Get(ctx, actor, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, got.ID)
	}

	_, err = service.Get(ctx, outsider, task.ID)
	assertKind(t, err, apperror.KindForbidden)

	_, err = service.Get(ctx, creator, 999)
	assertKind(t, err, apperror.KindNotFound)

	mine, total, err := service.List(ctx, assignee, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, mine, 1)
	assert.Equal(t, task.ID, mine[0].ID)

	all, total, err := service.List(ctx, admin, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)
}

func TestService_ListFilters(t *testing.T) {
	service := setupService(t)
	ctx := context.Background()

	_, err := service.Create(ctx, creator, CreateInput{Title: "Urgent", Priority: PriorityUrgent})
	require.NoError(t, err)
	_, err = service.Create(ctx, creator, CreateInput{Title: "Review", Status: StatusReview})
	require.NoError(t, err)
	createAssigned(t, service)

	urgent, _, err := service.List(ctx, creator, ListFilter{Priority: PriorityUrgent})
	require.NoError(t, err)
	require.Len(t, urgent, 1)
	assert.Equal(t, "Urgent", urgent[0].Title)

	review, _, err := service.List(ctx, creator, ListFilter{Status: StatusReview})
	require.NoError(t, err)
	assert.Len(t, review, 1)

	inProject, _, err := service.List(ctx, creator, ListFilter{ProjectID: 10})
	require.NoError(t, err)
	assert.Len(t, inProject, 1)

	assigned, _, err := service.List(ctx, creator, ListFilter{AssigneeID: assignee.UserID})
	require.NoError(t, err)
	assert.Len(t, assigned, 1)

	page, total, err := service.List(ctx, creator, ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, int64(3), total)

	_, _, err = service.List(ctx, creator, ListFilter{Status: "blocked"})
	assertKind(t, err, apperror.KindBadRequest)
}

func TestService_Update(t *testing.T) {
	service := setupService(t)
	ctx := context.Background()
	task := createAssigned(t, service)

	updated, err := service.Update(ctx, assignee, task.ID, UpdateInput{Status: ptr(StatusDone)})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, updated.Status)
	require.NotNil(t, updated.CompletedAt)

	reopened, err := service.Update(ctx, creator, task.ID, UpdateInput{Status: ptr(StatusInProgress), Title: ptr("Re-check")})
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedAt)
	assert.Equal(t, "Re-check", reopened.Title)

	_, err = service.Update(ctx, outsider, task.ID, UpdateInput{Title: ptr("hijack")})
	assertKind(t, err, apperror.KindForbidden)

	_, err = service.Update(ctx, admin, task.ID, UpdateInput{Priority: ptr("whenever")})
	assertKind(t, err, apperror.KindBadRequest)

	_, err = service.Update(ctx, admin, task.ID, UpdateInput{AssigneeID: ptr(uint(99))})
	assertKind(t, err, apperror.KindBadRequest)

	reassigned, err := service.Update(ctx, admin, task.ID, UpdateInput{AssigneeID: ptr(outsider.UserID)})
	require.NoError(t, err)
	assert.Equal(t, outsider.UserID, *reassigned.AssigneeID)
}

func TestService_Delete(t *testing.T) {
	service := setupService(t)
	ctx := context.Background()

	task := createAssigned(t, service)
	assertKind(t, service.Delete(ctx, assignee, task.ID), apperror.KindForbidden)
	require.NoError(t, service.Delete(ctx, creator, task.ID))
	assertKind(t, service.Delete(ctx, creator, task.ID), apperror.KindNotFound)

	other := createAssigned(t, service)
	require.NoError(t, service.Delete(ctx, admin, other.ID))
}
