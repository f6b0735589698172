package pagination

import (
	"math"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const defaultLimit = 100

type Pagination struct {
	Limit      int         `json:"limit,omitempty"`
	Page       int         `json:"page,omitempty"`
	TotalRows  int64       `json:"total_rows"`
	TotalPages int         `json:"total_pages"`
	Rows       interface{} `json:"rows"`
}

func (p *Pagination) GetOffset() int {
	return (p.GetPage() - 1) * p.GetLimit()
}

func (p *Pagination) GetLimit() int {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	return p.Limit
}

func (p *Pagination) GetPage() int {
	if p.Page <= 0 {
		p.Page = 1
	}
	return p.Page
}

// Paginate counts the rows matched by query and returns a scope applying the
// page window. The query must already carry its filters. A failed count is
// added to the scoped statement so the caller's Find returns it.
func Paginate(query *gorm.DB, model interface{}, p *Pagination) func(db *gorm.DB) *gorm.DB {
	var totalRows int64
	countErr := query.Session(&gorm.Session{}).Model(model).Count(&totalRows).Error

	p.TotalRows = totalRows
	p.TotalPages = int(math.Ceil(float64(totalRows) / float64(p.GetLimit())))

	return func(db *gorm.DB) *gorm.DB {
		if countErr != nil {
			_ = db.AddError(errors.Wrap(countErr, "failed to count rows"))
			return db
		}
		return db.Offset(p.GetOffset()).Limit(p.GetLimit())
	}
}
