package database

import (
	"testing"

	modelspkg "socialnet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestPersistentModels_IncludesSocialGraph(t *testing.T) {
	var hasRequest, hasFriendship, hasMessage bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.FriendRequest:
			hasRequest = true
		case *modelspkg.Friendship:
			hasFriendship = true
		case *modelspkg.Message:
			hasMessage = true
		}
	}
	require.True(t, hasRequest, "PersistentModels should include FriendRequest")
	require.True(t, hasFriendship, "PersistentModels should include Friendship")
	require.True(t, hasMessage, "PersistentModels should include Message")
}

func TestPersistentModels_AutoMigrateCreatesJoinTable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(PersistentModels()...))
	assert.True(t, db.Migrator().HasTable("post_topics"))
	assert.True(t, db.Migrator().HasTable("user_follows"))
	assert.True(t, db.Migrator().HasIndex(&modelspkg.Friendship{}, "idx_friendship_pair"))
}
