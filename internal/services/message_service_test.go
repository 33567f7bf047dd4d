package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/poof/backend/internal/models"
)

func TestReverseMessagesRestoresAscendingOrder(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// A bounded listing arrives newest-first from the store.
	var page []models.Message
	for i := 4; i >= 0; i-- {
		page = append(page, models.Message{
			ID:        fmt.Sprintf("m%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	reverseMessages(page)

	for i := 1; i < len(page); i++ {
		if page[i].CreatedAt.Before(page[i-1].CreatedAt) {
			t.Fatalf("page not oldest-first at index %d: %v after %v",
				i, page[i].CreatedAt, page[i-1].CreatedAt)
		}
	}
	if page[0].ID != "m0" || page[len(page)-1].ID != "m4" {
		t.Errorf("page order = %v..%v, want m0..m4", page[0].ID, page[len(page)-1].ID)
	}
}

func TestReverseMessagesSmallPages(t *testing.T) {
	reverseMessages(nil)

	one := []models.Message{{ID: "only"}}
	reverseMessages(one)
	if one[0].ID != "only" {
		t.Errorf("single-element page changed: %v", one)
	}
}
