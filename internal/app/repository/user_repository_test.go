package repository

import (
	"testing"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupUserTest(t *testing.T) (*gorm.DB, UserRepository) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	return testDB, NewUserRepository(testDB)
}

func TestUserRepository_Create(t *testing.T) {
	_, repo := setupUserTest(t)

	tests := []struct {
		name    string
		user    *model.User
		wantErr error
	}{
		{
			name: "Valid user",
			user: &model.User{
				Email:        "Test@Example.com ",
				PasswordHash: "hashedpassword",
				Name:         "Test User",
				Role:         model.RoleUser,
			},
		},
		{
			name: "Duplicate email after normalization",
			user: &model.User{
				Email:        "test@example.com",
				PasswordHash: "hashedpassword",
				Name:         "Another User",
				Role:         model.RoleUser,
			},
			wantErr: gorm.ErrDuplicatedKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(tt.user)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, tt.user.ID)
			assert.Equal(t, "test@example.com", tt.user.Email)
		})
	}
}

func TestUserRepository_FindByEmail(t *testing.T) {
	_, repo := setupUserTest(t)

	user := &model.User{Email: "find@example.com", PasswordHash: "hash", Name: "Finder"}
	require.NoError(t, repo.Create(user))

	found, err := repo.FindByEmail("FIND@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.FindByEmail("missing@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_LockByIDInTransaction(t *testing.T) {
	testDB, repo := setupUserTest(t)

	user := &model.User{Email: "lock@example.com", PasswordHash: "hash", Name: "Locker"}
	require.NoError(t, repo.Create(user))

	err := testDB.Transaction(func(tx *gorm.DB) error {
		locked, err := repo.WithTx(tx).LockByID(user.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, user.Email, locked.Email)
		return nil
	})
	require.NoError(t, err)

	_, err = repo.FindByID(9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
