package db

import (
	"context"
	"strings"

	"Gin_postgres_redis_library/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookQuery struct {
	Q         string // title, author or isbn
	Category  string
	Available bool // only titles with a copy on the shelf
	Page      int
	Size      int
}

type PagedBooks struct {
	Total int64         `json:"total"`
	Books []models.Book `json:"books"`
}

// CreateBook stores a new title with every copy on the shelf.
func (r *Repo) CreateBook(ctx context.Context, b *models.Book) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.AvailableQuantity = b.TotalQuantity
	return r.DB.WithContext(ctx).Create(b).Error
}

func (r *Repo) FindBookByID(ctx context.Context, id string) (*models.Book, error) {
	var b models.Book
	if err := r.DB.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repo) ListBooks(ctx context.Context, q BookQuery) (*PagedBooks, error) {
	page, size := normalizePage(q.Page, q.Size, 200)

	tx := r.DB.WithContext(ctx).Model(&models.Book{})
	if s := strings.TrimSpace(q.Q); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		tx = tx.Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR isbn = ?", pat, pat, s)
	}
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if q.Available {
		tx = tx.Where("available_quantity > 0")
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}
	var books []models.Book
	if err := tx.Order("title").Offset((page - 1) * size).Limit(size).Find(&books).Error; err != nil {
		return nil, err
	}
	return &PagedBooks{Total: total, Books: books}, nil
}

type BookUpdate struct {
	ISBN          *string
	Title         *string
	Author        *string
	Category      *string
	PublishedYear *int
	TotalQuantity *int
}

// UpdateBook applies the set fields. A new total keeps the copies on loan out:
// available becomes total minus on loan, and a total below on loan is refused.
func (r *Repo) UpdateBook(ctx context.Context, id string, in BookUpdate) (*models.Book, error) {
	var b models.Book
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&b, "id = ?", id).Error; err != nil {
			return err
		}
		if in.ISBN != nil {
			b.ISBN = *in.ISBN
		}
		if in.Title != nil {
			b.Title = *in.Title
		}
		if in.Author != nil {
			b.Author = *in.Author
		}
		if in.Category != nil {
			b.Category = *in.Category
		}
		if in.PublishedYear != nil {
			b.PublishedYear = *in.PublishedYear
		}
		if in.TotalQuantity != nil {
			onLoan := b.OnLoan()
			if *in.TotalQuantity < onLoan {
				return ErrTotalBelowOnLoan
			}
			b.TotalQuantity = *in.TotalQuantity
			b.AvailableQuantity = b.TotalQuantity - onLoan
		}
		return tx.Save(&b).Error
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteBook removes a title with no copies out. Past loans keep pointing at the old id.
func (r *Repo) DeleteBook(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b models.Book
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&b, "id = ?", id).Error; err != nil {
			return err
		}
		var active int64
		if err := tx.Model(&models.Loan{}).
			Where("book_id = ? AND status IN ?", id, models.ActiveLoanStatuses).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrBookOnLoan
		}
		return tx.Delete(&models.Book{}, "id = ?", id).Error
	})
}
