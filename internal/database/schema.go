package database

import (
	"database/sql"
	"time"
)

const (
	RoleUser  string = "user"
	RoleAdmin string = "admin"
)

type User struct {
	Id uint `gorm:"primaryKey"`

	Email    string `gorm:"uniqueIndex;not null"`
	Password string `gorm:"not null"` // bcrypt hash
	Role     string `gorm:"size:20;not null;default:user"`

	CreatedAt time.Time
}

// Message is one support-chat message. Active marks a message still awaiting
// an admin reply, Answer marks a message authored by an admin. UserId and
// Chat are both null for anonymous single-turn messages.
//
// Chat values are client-chosen strings, with one exception: a reply to a
// message that was sent without a chat id stores the derived "anon:<id>"
// conversation key (id = the question's row id), so the question/reply pair
// regroups into one conversation on every reload.
type Message struct {
	Id uint `gorm:"primaryKey"`

	UserId sql.NullInt64 `gorm:"index"`
	User   *User         `gorm:"foreignKey:UserId"`

	Text   string         `gorm:"not null"`
	Active bool           `gorm:"index;not null;default:true"`
	Answer bool           `gorm:"not null;default:false"`
	Chat   sql.NullString `gorm:"index"`

	CreatedAt time.Time
}
