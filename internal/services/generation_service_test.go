package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	apperrors "github.com/phpmigrate/backend-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return gdb, mock
}

func TestReactFilename(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"index.php", "Index.jsx"},
		{"user_profile.php", "User_profile.jsx"},
		{"admin/dashboard.php", "Dashboard.jsx"},
		{"noext", "Noext.jsx"},
		{".php", "Component.jsx"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, reactFilename(tc.input), "input=%q", tc.input)
	}
}

func TestResolveProviderNoneConfigured(t *testing.T) {
	gdb, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "llm_configs"`).
		WillReturnRows(sqlmock.NewRows([]string{"config_id"}))

	svc := NewGenerationService(gdb, nil, nil)

	_, err := svc.resolveProvider(context.Background(), 1)
	require.Error(t, err)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeOperationFailed, appErr.Code)
}

func TestResolveProviderFromUserConfig(t *testing.T) {
	gdb, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "llm_configs"`).
		WillReturnRows(sqlmock.NewRows([]string{"config_id", "user_id", "provider", "api_key", "model", "base_url", "is_active"}).
			AddRow(1, 1, "openai", "sk-user", "gpt-4", "", true))

	svc := NewGenerationService(gdb, nil, nil)

	var gotKey, gotModel string
	svc.SetProviderFactory(func(apiKey, model, baseURL string) LLMProvider {
		gotKey = apiKey
		gotModel = model
		return nil
	})

	_, err := svc.resolveProvider(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "sk-user", gotKey)
	assert.Equal(t, "gpt-4", gotModel)
}
