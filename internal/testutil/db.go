package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/database"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
)

// NewTestDB creates a migrated SQLite database in a temp directory.
// It automatically closes the database when the test completes.
func NewTestDB(t *testing.T) *database.Database {
	t.Helper()

	d, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("closing test database: %v", err)
		}
	})

	return d
}

// CreateUser inserts a member with the given starting score.
func CreateUser(t *testing.T, d *database.Database, name string, score int) models.User {
	t.Helper()
	u := models.User{
		Username:         name,
		Email:            fmt.Sprintf("%s@example.com", name),
		Role:             models.RoleMember,
		ReputationPoints: score,
	}
	if err := d.DB.Create(&u).Error; err != nil {
		t.Fatalf("creating user %s: %v", name, err)
	}
	return u
}

// CreateQuestion inserts a question authored by authorID.
func CreateQuestion(t *testing.T, d *database.Database, authorID int) models.Question {
	t.Helper()
	q := models.Question{Title: "How do I lock a row?", Body: "Details inside.", AuthorID: authorID}
	if err := d.DB.Create(&q).Error; err != nil {
		t.Fatalf("creating question: %v", err)
	}
	return q
}

// CreateAnswer inserts an answer to questionID authored by authorID.
func CreateAnswer(t *testing.T, d *database.Database, questionID, authorID int) models.Answer {
	t.Helper()
	a := models.Answer{QuestionID: questionID, AuthorID: authorID, Body: "Use SELECT ... FOR UPDATE."}
	if err := d.DB.Create(&a).Error; err != nil {
		t.Fatalf("creating answer: %v", err)
	}
	return a
}

// Score reloads a user's reputation.
func Score(t *testing.T, d *database.Database, userID int) int {
	t.Helper()
	var u models.User
	if err := d.DB.First(&u, userID).Error; err != nil {
		t.Fatalf("loading user %d: %v", userID, err)
	}
	return u.ReputationPoints
}

// ReloadAnswer fetches the current row of an answer.
func ReloadAnswer(t *testing.T, d *database.Database, id int) models.Answer {
	t.Helper()
	var a models.Answer
	if err := d.DB.First(&a, id).Error; err != nil {
		t.Fatalf("loading answer %d: %v", id, err)
	}
	return a
}

// ReloadQuestion fetches the current row of a question.
func ReloadQuestion(t *testing.T, d *database.Database, id int) models.Question {
	t.Helper()
	var q models.Question
	if err := d.DB.First(&q, id).Error; err != nil {
		t.Fatalf("loading question %d: %v", id, err)
	}
	return q
}

// Token signs a bearer token the auth middleware accepts.
func Token(t *testing.T, secret []byte, userID int, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return "Bearer " + signed
}
