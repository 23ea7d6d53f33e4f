package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codessneha/SciScope/models"
)

func newSessionService(t *testing.T) (*SessionService, *models.User) {
	t.Helper()
	db := testDB(t)
	user := testUser(t, db, "alice@example.com", models.RoleUser)
	return NewSessionService(db, zap.NewNop()), user
}

func TestCreateSessionDefaults(t *testing.T) {
	svc, user := newSessionService(t)

	session, err := svc.Create(user, "", []uint{3, 1, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSessionTitle, session.Title)
	assert.True(t, session.IsActive)
	assert.ElementsMatch(t, []uint{1, 2, 3}, []uint(session.PaperIDs))
}

func TestSessionOwnership(t *testing.T) {
	svc, owner := newSessionService(t)
	stranger := testUser(t, svc.DB, "bob@example.com", models.RoleUser)

	session, err := svc.Create(owner, "Mine", nil)
	require.NoError(t, err)

	// Fremde Session meldet Unauthorized, eine fehlende NotFound.
	_, err = svc.Get(session.ID, stranger)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(session.ID+1000, stranger)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Update(session.ID, stranger, strPtr("Hijacked"), nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, svc.Delete(session.ID, stranger), ErrUnauthorized)
}

func TestUpdateSession(t *testing.T) {
	svc, user := newSessionService(t)

	session, err := svc.Create(user, "Before", nil)
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(session.ID, user, strPtr("After"), &inactive)
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Title)
	assert.False(t, updated.IsActive)

	_, err = svc.Update(session.ID, user, strPtr(""), nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAddPapersUnions(t *testing.T) {
	svc, user := newSessionService(t)

	session, err := svc.Create(user, "Collection", []uint{1, 2})
	require.NoError(t, err)

	updated, err := svc.AddPapers(session.ID, user, []uint{2, 3, 3})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 2, 3}, []uint(updated.PaperIDs))

	_, err = svc.AddPapers(session.ID, user, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeleteSessionCascadesMessages(t *testing.T) {
	svc, user := newSessionService(t)

	session, err := svc.Create(user, "Doomed", nil)
	require.NoError(t, err)
	other, err := svc.Create(user, "Survivor", nil)
	require.NoError(t, err)

	for _, sid := range []uint{session.ID, session.ID, other.ID} {
		require.NoError(t, svc.DB.Create(&models.Message{
			SessionID: sid,
			Question:  "q",
			Answer:    "a",
		}).Error)
	}

	require.NoError(t, svc.Delete(session.ID, user))

	var remaining []models.Message
	require.NoError(t, svc.DB.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, other.ID, remaining[0].SessionID)

	_, err = svc.Get(session.ID, user)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMessagesInCreationOrder(t *testing.T) {
	svc, user := newSessionService(t)

	session, err := svc.Create(user, "History", nil)
	require.NoError(t, err)

	for _, q := range []string{"first", "second", "third"} {
		require.NoError(t, svc.DB.Create(&models.Message{
			SessionID: session.ID,
			Question:  q,
			Answer:    "a",
		}).Error)
	}

	messages, err := svc.Messages(session.ID, user)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Question)
	assert.Equal(t, "third", messages[2].Question)
}

func TestListOnlyOwnSessions(t *testing.T) {
	svc, alice := newSessionService(t)
	bob := testUser(t, svc.DB, "bob@example.com", models.RoleUser)

	_, err := svc.Create(alice, "Alice 1", nil)
	require.NoError(t, err)
	_, err = svc.Create(bob, "Bob 1", nil)
	require.NoError(t, err)

	sessions, err := svc.List(alice)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Alice 1", sessions[0].Title)
}
