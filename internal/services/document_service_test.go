package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	apperrors "github.com/phpmigrate/backend-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingCache 记录失效调用的上下文缓存
type recordingCache struct {
	invalidated []uint
}

func (c *recordingCache) Get(ctx context.Context, key string) (string, bool) { return "", false }
func (c *recordingCache) Set(ctx context.Context, key string, value string) {}
func (c *recordingCache) Invalidate(ctx context.Context, ownerID uint) {
	c.invalidated = append(c.invalidated, ownerID)
}

func TestUploadRejectsEmptyRequest(t *testing.T) {
	svc := NewDocumentService(nil, nil, nil, nil, nil)

	_, err := svc.Upload(context.Background(), 1, UploadDocumentsRequest{})
	require.Error(t, err)

	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, appErr.Code)
}

func TestUploadRejectsMissingContent(t *testing.T) {
	svc := NewDocumentService(nil, nil, nil, nil, nil)

	_, err := svc.Upload(context.Background(), 1, UploadDocumentsRequest{
		Documents: []DocumentUpload{{Name: "doc.md", Content: ""}},
	})
	assert.Error(t, err)
}

func TestDeleteInvalidatesContextCache(t *testing.T) {
	gdb, mock := newMockDB(t)

	svc := NewDocumentService(gdb, nil, nil, nil, nil)
	cache := &recordingCache{}
	svc.SetContextCache(cache)

	mock.ExpectQuery(`SELECT \* FROM "reference_documents"`).
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "user_id", "name", "type"}).
			AddRow(5, 1, "Doc", "other"))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "document_chunks"`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM "reference_documents"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Delete(context.Background(), 1, 5))

	// 删除后该用户的上下文缓存必须失效
	assert.Equal(t, []uint{1}, cache.invalidated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadFilesRejectsNonPHP(t *testing.T) {
	svc := NewMigrationService(nil, nil)

	_, err := svc.UploadFiles(context.Background(), 1, 1, UploadFilesRequest{
		Files: []FileUpload{{Filename: "script.js", Content: "var x = 1;"}},
	})
	require.Error(t, err)

	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, appErr.Code)
}
