package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/database"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewTestDB opens a private in-memory sqlite database for the calling test
// and closes it on cleanup.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err, "Failed to open test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
