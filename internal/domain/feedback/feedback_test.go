package feedback_test

import (
	"testing"

	"github.com/geocoder89/plansync/internal/domain/feedback"
	"github.com/stretchr/testify/assert"
)

func TestNewFromCreateRequestDefaults(t *testing.T) {
	f := feedback.NewFromCreateRequest(feedback.CreateFeedbackRequest{
		Name:  " Ada ",
		Quote: "Planning got easy.\n",
	})

	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "Ada", f.Name)
	assert.Equal(t, "Planning got easy.", f.Quote)
	assert.Equal(t, feedback.DefaultRating, f.Rating)
	assert.Equal(t, feedback.DefaultRole, f.Role)
	assert.Equal(t, feedback.DefaultCompany, f.Company)
	assert.False(t, f.CreatedAt.IsZero())
}

func TestNewFromCreateRequestKeepsExplicitValues(t *testing.T) {
	zero := 0
	f := feedback.NewFromCreateRequest(feedback.CreateFeedbackRequest{
		Name:    "Grace",
		Quote:   "Solid.",
		Rating:  &zero,
		Role:    "CTO",
		Company: "Navy",
		Image:   "GH",
	})

	assert.Equal(t, 0, f.Rating)
	assert.Equal(t, "CTO", f.Role)
	assert.Equal(t, "Navy", f.Company)
	assert.Equal(t, "GH", f.Image)
}
