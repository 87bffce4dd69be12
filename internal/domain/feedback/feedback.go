package feedback

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultRating  = 5
	DefaultRole    = "User"
	DefaultCompany = "Community Member"
)

type Feedback struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Quote     string    `json:"quote"`
	Rating    int       `json:"rating"`
	Role      string    `json:"role"`
	Company   string    `json:"company"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
}

var ErrNotFound = errors.New("feedback not found")

type CreateFeedbackRequest struct {
	Name    string `json:"name" binding:"required,notblank,max=120"`
	Quote   string `json:"quote" binding:"required,notblank"`
	Rating  *int   `json:"rating" binding:"omitempty,min=0,max=32767"`
	Role    string `json:"role" binding:"omitempty,max=120"`
	Company string `json:"company" binding:"omitempty,max=120"`
	Image   string `json:"image" binding:"omitempty,max=10"`
}

// NewFromCreateRequest fills the testimonial defaults for omitted fields.
func NewFromCreateRequest(req CreateFeedbackRequest) Feedback {
	rating := DefaultRating
	if req.Rating != nil {
		rating = *req.Rating
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = DefaultRole
	}

	company := strings.TrimSpace(req.Company)
	if company == "" {
		company = DefaultCompany
	}

	return Feedback{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Quote:     strings.TrimSpace(req.Quote),
		Rating:    rating,
		Role:      role,
		Company:   company,
		Image:     strings.TrimSpace(req.Image),
		CreatedAt: time.Now().UTC(),
	}
}
