package domain

import "time"

// Profile defaults applied on first login.
const (
	DefaultUserName    = "Utilisateur"
	DefaultVoice       = "Kore"
	DefaultPersonality = "Mentor"
	DefaultTheme       = "dark"
)

// MaxProgress caps User.Progress.
const MaxProgress = 100

// UserSettings are the preferences edited from the settings panel.
type UserSettings struct {
	Voice       string `json:"voice"       firestore:"voice"`
	Personality string `json:"personality" firestore:"personality"`
	Theme       string `json:"theme"       firestore:"theme"`
	AutoMemory  bool   `json:"autoMemory"  firestore:"autoMemory"`
}

// Progression tracks gamified activity.
type Progression struct {
	XP            int      `json:"xp"            firestore:"xp"`
	Level         int      `json:"level"         firestore:"level"`
	ActivityScore int      `json:"activityScore" firestore:"activityScore"`
	Milestones    []string `json:"milestones"    firestore:"milestones"`
}

// User is the profile document keyed by the Firebase uid. FCMToken is never
// serialized to clients.
type User struct {
	ID                  string       `json:"id"                  gorm:"type:varchar(128);primaryKey" firestore:"id"`
	Email               string       `json:"email"               gorm:"type:varchar(320)" firestore:"email"`
	Name                string       `json:"name"                gorm:"type:varchar(255)" firestore:"name"`
	Picture             string       `json:"picture"             gorm:"type:text" firestore:"picture"`
	Level               string       `json:"level,omitempty"     gorm:"type:varchar(64)" firestore:"level,omitempty"`
	Goals               []string     `json:"goals"               gorm:"serializer:json" firestore:"goals"`
	Weaknesses          []string     `json:"weaknesses"          gorm:"serializer:json" firestore:"weaknesses"`
	Strengths           []string     `json:"strengths"           gorm:"serializer:json" firestore:"strengths"`
	Progress            int          `json:"progress"            firestore:"progress"`
	Streak              int          `json:"streak"              firestore:"streak"`
	MemoryEntries       []string     `json:"memoryEntries"       gorm:"serializer:json" firestore:"memoryEntries"`
	ConversationSummary string       `json:"conversationSummary" gorm:"type:text" firestore:"conversationSummary"`
	LastTopic           string       `json:"lastTopic"           gorm:"type:text" firestore:"lastTopic"`
	Settings            UserSettings `json:"userSettings"        gorm:"serializer:json" firestore:"userSettings"`
	Progression         Progression  `json:"progression"         gorm:"serializer:json" firestore:"progression"`
	FCMToken            string       `json:"-"                   gorm:"type:text" firestore:"fcmToken,omitempty"`
	CreatedAt           time.Time    `json:"createdAt"           firestore:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"           firestore:"updatedAt"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// NewUser builds the profile stored on first login.
func NewUser(uid, email, name, picture string, now time.Time) *User {
	if name == "" {
		name = DefaultUserName
	}
	return &User{
		ID:            uid,
		Email:         email,
		Name:          name,
		Picture:       picture,
		Goals:         []string{},
		Weaknesses:    []string{},
		Strengths:     []string{},
		MemoryEntries: []string{},
		Settings: UserSettings{
			Voice:       DefaultVoice,
			Personality: DefaultPersonality,
			Theme:       DefaultTheme,
			AutoMemory:  true,
		},
		Progression: Progression{Level: 1, Milestones: []string{}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
