package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/ufs4life/marketplace/internal/database"
	"github.com/ufs4life/marketplace/internal/model"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"外部キー違反", &pq.Error{Code: "23503"}, true},
		{"ラップされた外部キー違反", fmt.Errorf("insert: %w", &pq.Error{Code: "23503"}), true},
		{"一意制約違反", &pq.Error{Code: "23505"}, false},
		{"pq以外のエラー", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isForeignKeyViolation(tt.err); got != tt.want {
				t.Errorf("isForeignKeyViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"一意制約違反", &pq.Error{Code: "23505"}, true},
		{"ラップされた一意制約違反", errors.Join(errors.New("insert"), &pq.Error{Code: "23505"}), true},
		{"外部キー違反", &pq.Error{Code: "23503"}, false},
		{"pq以外のエラー", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

// openTestDB はマイグレーション済みのテスト用DBを返す。
// TEST_DATABASE_URLに接続できない場合はテストをスキップする。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if _, err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE products, stores, users CASCADE`); err != nil {
		t.Fatalf("クリーンアップに失敗: %v", err)
	}
	return db
}

// createTestUser はテスト用ユーザーを作成する。
func createTestUser(t *testing.T, repo *PostgresUserRepo, email string) *model.User {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     "alice",
		PasswordHash: "$2a$10$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("ユーザー作成に失敗: %v", err)
	}
	return user
}

func TestPostgresUserRepo_Integration(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	created := createTestUser(t, repo, "alice@ufs4life.ac.za")

	t.Run("FindByEmailで作成したユーザーを取得できる", func(t *testing.T) {
		got, err := repo.FindByEmail(ctx, "alice@ufs4life.ac.za")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || got.ID != created.ID {
			t.Fatalf("FindByEmail() = %+v, want ID %q", got, created.ID)
		}
		if got.PasswordHash != created.PasswordHash {
			t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, created.PasswordHash)
		}
	})

	t.Run("FindByIDで存在しないIDはnilを返す", func(t *testing.T) {
		got, err := repo.FindByID(ctx, uuid.NewString())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("同一メールアドレスの作成はErrDuplicateEmailを返す", func(t *testing.T) {
		dup := &model.User{
			ID:           uuid.NewString(),
			Email:        "alice@ufs4life.ac.za",
			Username:     "alice2",
			PasswordHash: "x",
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		err := repo.Create(ctx, dup)
		if !errors.Is(err, ErrDuplicateEmail) {
			t.Errorf("Create() error = %v, want ErrDuplicateEmail", err)
		}
	})
}
