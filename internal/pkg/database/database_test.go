package database

import (
	"path/filepath"
	"testing"

	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestInitDBSqlite(t *testing.T) {
	db, err := InitDB("sqlite", filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}

	for _, table := range []any{&model.Workspace{}, &model.Workflow{}, &model.Chat{}, &model.ChatMessage{}, &model.MessageSource{}} {
		assert.True(t, db.Migrator().HasTable(table))
	}
}
