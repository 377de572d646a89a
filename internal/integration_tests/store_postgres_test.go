package integrationtests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"support-backend/internal/auth"
	"support-backend/internal/chat"
	"support-backend/internal/database"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) string {
	dbName, dbUser, dbPassword := "test_db", "test_user", "test_password"

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	t.Cleanup(func() {
		err := postgresContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate PostgreSQL container")
	})

	connStr, err := postgresContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get PostgreSQL connection string")

	return connStr
}

func createDB(t *testing.T) *gorm.DB {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	uri := setupPostgresContainer(t, context.Background())
	db, err := database.NewDatabase(uri)
	require.NoError(t, err)

	return db
}

func TestMessageStoreOnPostgres(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()
	store := chat.NewStore(db)

	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err)
	user, err := database.CreateUser(ctx, db, "customer@example.com", hash, database.RoleUser)
	require.NoError(t, err)
	userId := int64(user.Id)

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.InsertMessage(ctx, chat.Message{
		UserId: userId, Chat: "c1", Text: "first question", Active: true, CreatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, store.InsertMessage(ctx, chat.Message{
		UserId: userId, Chat: "c2", Text: "second question", Active: true, CreatedAt: now.Add(-time.Minute),
	}))
	require.NoError(t, store.InsertMessage(ctx, chat.Message{
		Text: "anonymous question", Active: true, CreatedAt: now,
	}))

	t.Run("ActiveMessagesOldestFirst", func(t *testing.T) {
		active, err := store.LoadActiveMessages(ctx)
		require.NoError(t, err)
		require.Len(t, active, 3)
		assert.Equal(t, "first question", active[0].Text)
		assert.Equal(t, "anonymous question", active[2].Text)
	})

	t.Run("AnonymousRowRoundTripsUnbound", func(t *testing.T) {
		active, err := store.LoadActiveMessages(ctx)
		require.NoError(t, err)
		anon := active[2]
		assert.Zero(t, anon.UserId)
		assert.Empty(t, anon.Chat)
		assert.False(t, anon.HasUser())
	})

	t.Run("MarkChatInactiveClearsOnlyThatChat", func(t *testing.T) {
		require.NoError(t, store.MarkChatInactiveForUser(ctx, "c1", userId))

		active, err := store.LoadActiveMessages(ctx)
		require.NoError(t, err)
		require.Len(t, active, 2)
		for _, m := range active {
			assert.NotEqual(t, "c1", m.Chat)
		}
	})

	t.Run("MarkMessageInactive", func(t *testing.T) {
		active, err := store.LoadActiveMessages(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, active)

		require.NoError(t, store.MarkMessageInactive(ctx, active[0].Id))

		remaining, err := store.LoadActiveMessages(ctx)
		require.NoError(t, err)
		assert.Len(t, remaining, len(active)-1)
	})

	t.Run("MessagesByUserExcludeAnonymous", func(t *testing.T) {
		messages, err := store.LoadMessagesByUser(ctx, userId)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		for _, m := range messages {
			assert.Equal(t, userId, m.UserId)
		}
	})
}

func TestUserAccountsOnPostgres(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err)

	_, err = database.CreateUser(ctx, db, "a@example.com", hash, database.RoleUser)
	require.NoError(t, err)
	_, err = database.CreateUser(ctx, db, "ops@example.com", hash, database.RoleAdmin)
	require.NoError(t, err)

	t.Run("DuplicateEmailRejected", func(t *testing.T) {
		_, err := database.CreateUser(ctx, db, "a@example.com", hash, database.RoleUser)
		assert.Error(t, err, "email carries a unique index")
	})

	t.Run("FindByEmail", func(t *testing.T) {
		user, err := database.FindUserByEmail(ctx, db, "ops@example.com")
		require.NoError(t, err)
		assert.Equal(t, database.RoleAdmin, user.Role)
		assert.True(t, auth.VerifyPassword(user.Password, "secret1"))

		_, err = database.FindUserByEmail(ctx, db, "missing@example.com")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}
