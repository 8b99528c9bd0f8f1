package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(User{}).TableName():         "users",
		(Conversation{}).TableName(): "conversations",
		(Message{}).TableName():      "messages",
		(Memory{}).TableName():       "memories",
		(Project{}).TableName():      "projects",
		(Idempotency{}).TableName():  "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestNewUser_Defaults(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	u := NewUser("uid-1", "a@b.c", "", "pic", now)

	if u.ID != "uid-1" || u.Email != "a@b.c" || u.Picture != "pic" {
		t.Fatalf("identity unexpected: %+v", u)
	}
	if u.Name != DefaultUserName {
		t.Fatalf("name default = %q; want %q", u.Name, DefaultUserName)
	}
	want := UserSettings{Voice: "Kore", Personality: "Mentor", Theme: "dark", AutoMemory: true}
	if u.Settings != want {
		t.Fatalf("settings = %+v; want %+v", u.Settings, want)
	}
	if u.Progression.Level != 1 || u.Progression.XP != 0 || u.Progression.Milestones == nil {
		t.Fatalf("progression unexpected: %+v", u.Progression)
	}
	if u.MemoryEntries == nil || len(u.MemoryEntries) != 0 {
		t.Fatalf("memory entries should be an empty list")
	}
	if !u.CreatedAt.Equal(now) || !u.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps unexpected: %v %v", u.CreatedAt, u.UpdatedAt)
	}

	if got := NewUser("x", "", "Alice", "", now).Name; got != "Alice" {
		t.Fatalf("explicit name lost: %q", got)
	}
}

func TestMigrations_Indexes_JSONColumns_AndCascade(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&User{}, &Conversation{}, &Message{}, &Memory{}, &Project{}, &Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasIndex(&Conversation{}, "idx_owner_updated") {
		t.Fatalf("expected index idx_owner_updated on conversations")
	}
	if !m.HasIndex(&Message{}, "idx_conv_msgs") {
		t.Fatalf("expected index idx_conv_msgs on messages")
	}
	if !m.HasIndex(&Idempotency{}, "ux_user_conv_key") {
		t.Fatalf("expected unique index ux_user_conv_key on idempotency")
	}

	now := time.Now().UTC()

	// slices and nested structs round-trip through JSON columns
	u := NewUser("u1", "", "", "", now)
	u.MemoryEntries = []string{"likes Go", "builds robots"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}
	var gotUser User
	if err := db.First(&gotUser, "id = ?", "u1").Error; err != nil {
		t.Fatalf("read user: %v", err)
	}
	if len(gotUser.MemoryEntries) != 2 || gotUser.MemoryEntries[1] != "builds robots" || gotUser.Settings.Voice != DefaultVoice {
		t.Fatalf("json columns lost data: %+v", gotUser)
	}

	conv := &Conversation{ID: "c1", OwnerUID: "u1", Title: "T", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(conv).Error; err != nil {
		t.Fatalf("insert conversation: %v", err)
	}
	msg := &Message{
		ID: "m1", ConversationID: "c1", Role: RoleBot, Content: "hi",
		File:              &FileMeta{Name: "a.txt", Type: "text/plain", Size: 3},
		GroundingMetadata: map[string]any{"webSearchQueries": []any{"go"}},
		Timestamp:         now,
	}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}
	var gotMsg Message
	if err := db.First(&gotMsg, "id = ?", "m1").Error; err != nil {
		t.Fatalf("read message: %v", err)
	}
	if gotMsg.File == nil || gotMsg.File.Name != "a.txt" || gotMsg.GroundingMetadata["webSearchQueries"] == nil {
		t.Fatalf("message json columns lost data: %+v", gotMsg)
	}

	// role constraint
	bad := &Message{ID: "m2", ConversationID: "c1", Role: "assistant", Content: "x", Timestamp: now}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected role check violation")
	}

	// CASCADE: deleting the conversation deletes its messages
	if err := db.Delete(&Conversation{}, "id = ?", "c1").Error; err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	var cnt int64
	if err := db.Model(&Message{}).Where("conversation_id = ?", "c1").Count(&cnt).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected messages to cascade-delete, got count=%d", cnt)
	}
}
