package models

import "time"

const BookTable = "lib_books"

// Book is one catalog title. AvailableQuantity counts copies on the shelf.
type Book struct {
	ID                string    `gorm:"type:uuid;primaryKey" json:"id"`
	ISBN              string    `gorm:"size:20;index" json:"isbn,omitempty"`
	Title             string    `gorm:"size:255;not null" json:"title"`
	Author            string    `gorm:"size:255;not null" json:"author"`
	Category          string    `gorm:"size:100;index" json:"category,omitempty"`
	PublishedYear     int       `json:"publishedYear,omitempty"`
	TotalQuantity     int       `gorm:"not null;default:0" json:"totalQuantity"`
	AvailableQuantity int       `gorm:"not null;default:0" json:"availableQuantity"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (Book) TableName() string { return BookTable }

// OnLoan is the number of copies currently out.
func (b Book) OnLoan() int { return b.TotalQuantity - b.AvailableQuantity }

type EBookRequestStatus string

const (
	EBookRequestPending  EBookRequestStatus = "pending"
	EBookRequestApproved EBookRequestStatus = "approved"
	EBookRequestRejected EBookRequestStatus = "rejected"
)

type EBookRequest struct {
	ID        string             `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string             `gorm:"type:uuid;index;not null" json:"userId"`
	Title     string             `gorm:"size:255;not null" json:"title"`
	Author    string             `gorm:"size:255" json:"author,omitempty"`
	Note      string             `gorm:"size:500" json:"note,omitempty"`
	Status    EBookRequestStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	DecidedBy *string            `gorm:"type:uuid" json:"decidedBy,omitempty"`
	DecidedAt *time.Time         `json:"decidedAt,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func (EBookRequest) TableName() string { return "lib_ebook_requests" }
