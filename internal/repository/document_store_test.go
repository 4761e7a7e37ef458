package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/noah-isme/school-portal-api/internal/models"
)

func TestMergeDocumentsKeepsSiblings(t *testing.T) {
	dst := Document{
		"firstName": "Ada",
		"documents": map[string]interface{}{"idCopy": map[string]interface{}{"url": "a"}},
	}
	src := Document{
		"documents": map[string]interface{}{"birthCert": map[string]interface{}{"url": "b"}},
	}

	merged := mergeDocuments(dst, src)
	docs := merged["documents"].(map[string]interface{})
	assert.Equal(t, "Ada", merged["firstName"])
	assert.Contains(t, docs, "idCopy")
	assert.Contains(t, docs, "birthCert")
}

func TestMemoryDocumentStoreMergeCommutes(t *testing.T) {
	ctx := context.Background()
	refA := models.DocumentRef{URL: "a", FileName: "id.pdf"}
	refB := models.DocumentRef{URL: "b", FileName: "birth.pdf"}

	write := func(order []models.DocumentKind) Document {
		store := NewMemoryDocumentStore()
		repo := NewProfileRepository(store)
		require.NoError(t, repo.Create(ctx, &models.UserProfile{UID: "u1", Role: models.RoleStudent}))
		for _, kind := range order {
			ref := refA
			if kind == models.DocumentBirthCert {
				ref = refB
			}
			require.NoError(t, repo.MergeDocument(ctx, "u1", kind, ref))
		}
		doc, err := store.ReadDocument(ctx, models.CollectionUsers, "u1")
		require.NoError(t, err)
		return doc
	}

	first := write([]models.DocumentKind{models.DocumentIDCopy, models.DocumentBirthCert})
	second := write([]models.DocumentKind{models.DocumentBirthCert, models.DocumentIDCopy})
	assert.Equal(t, first, second)
}

func TestMemoryDocumentStoreReadMissing(t *testing.T) {
	store := NewMemoryDocumentStore()
	_, err := store.ReadDocument(context.Background(), "users", "nope")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestMemoryDocumentStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()
	require.NoError(t, store.WriteDocument(ctx, "users", "u1", Document{"role": "Student"}, false))

	doc, err := store.ReadDocument(ctx, "users", "u1")
	require.NoError(t, err)
	doc["role"] = "Admin"

	again, err := store.ReadDocument(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Student", again["role"])
}

func TestPostgresDocumentStoreWrite(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewPostgresDocumentStore(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents (collection, key, data, updated_at)")).
		WithArgs("users", "u1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.WriteDocument(context.Background(), "users", "u1", Document{"role": "Admin"}, false)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDocumentStoreMergeLocksRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewPostgresDocumentStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM documents WHERE collection = $1 AND key = $2 FOR UPDATE")).
		WithArgs("users", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"role":"Student","documents":{"idCopy":{"url":"a"}}}`)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs("users", "u1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	patch := Document{"documents": map[string]interface{}{"birthCert": map[string]interface{}{"url": "b"}}}
	require.NoError(t, store.WriteDocument(context.Background(), "users", "u1", patch, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDocumentStoreMergeCreatesMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewPostgresDocumentStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("users", "u2").WillReturnRows(sqlmock.NewRows([]string{"data"}))
	mock.ExpectExec("INSERT INTO documents").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.WriteDocument(context.Background(), "users", "u2", Document{"a": 1}, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDocumentStoreRead(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewPostgresDocumentStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM documents WHERE collection = $1 AND key = $2")).
		WithArgs("users", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"uid":"u1","role":"Admin","createdAt":"2026-10-15T08:00:00Z"}`)))
	mock.ExpectQuery("SELECT data FROM documents").
		WithArgs("users", "u9").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	repo := NewProfileRepository(store)
	profile, err := repo.FindByUID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, profile.Role)
	assert.True(t, profile.CreatedAt.Equal(time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)))

	_, err = repo.FindByUID(context.Background(), "u9")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlattenPaths(t *testing.T) {
	out := bson.M{}
	flattenPaths("", map[string]interface{}{
		"documents": map[string]interface{}{
			"idCopy": map[string]interface{}{"url": "a", "fileName": "id.pdf"},
		},
		"empty": map[string]interface{}{},
		"role":  "Student",
	}, out)

	assert.Equal(t, bson.M{
		"documents.idCopy.url":      "a",
		"documents.idCopy.fileName": "id.pdf",
		"empty":                     map[string]interface{}{},
		"role":                      "Student",
	}, out)
}

func TestFromBSONDropsID(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"_id": "u1", "role": "Teacher", "documents": bson.M{"idCopy": bson.M{"url": "a"}}})
	require.NoError(t, err)

	doc, err := fromBSON(raw)
	require.NoError(t, err)
	assert.NotContains(t, doc, "_id")
	assert.Equal(t, "Teacher", doc["role"])
	assert.Equal(t, map[string]interface{}{"idCopy": map[string]interface{}{"url": "a"}}, doc["documents"])
}

func TestFeedbackRepositoryAppend(t *testing.T) {
	store := NewMemoryDocumentStore()
	repo := NewFeedbackRepository(store)

	entry := &models.FeedbackEntry{StudentName: "Ada Lovelace", TeacherName: "Mr Babbage", Message: "great", StudentID: "u1"}
	id, err := repo.Append(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, id, entry.ID)

	doc, err := store.ReadDocument(context.Background(), models.CollectionFeedback, id)
	require.NoError(t, err)
	assert.Equal(t, "Mr Babbage", doc["teacherName"])
}
