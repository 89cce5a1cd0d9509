package models

import "time"

type KBArticle struct {
	ID      string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Title   string `gorm:"column:title;type:text" json:"title"`
	Body    string `gorm:"column:body;type:text" json:"body"`
	Tags    string `gorm:"column:tags;type:text" json:"tags,omitempty"`
	Enabled bool   `gorm:"column:enabled;default:true" json:"enabled"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (KBArticle) TableName() string { return "kb_articles" }
