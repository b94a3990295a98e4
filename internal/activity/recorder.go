// Package activity appends and reads per-user activity history.
package activity

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/ayush/stash/internal/models"
	"github.com/ayush/stash/internal/store"
)

// DashboardLimit is how many entries the dashboard shows.
const DashboardLimit = 10

// maxDescription matches the activity_description column width.
const maxDescription = 255

// Record stages an entry for user inside tx. The caller commits it together
// with the change it describes. A nil user records nothing.
func Record(ctx context.Context, tx store.Activities, user *models.User, description string) error {
	if user == nil {
		return nil
	}
	a := &models.Activity{UserID: user.ID, Description: truncate(description, maxDescription)}
	if err := tx.InsertActivity(ctx, a); err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// Recent returns the newest limit entries for owner, newest first.
func Recent(ctx context.Context, acts store.Activities, owner *models.User, limit int) ([]models.Activity, error) {
	if owner == nil {
		return nil, nil
	}
	return acts.RecentActivities(ctx, owner.ID, limit)
}

func LoggedIn() string {
	return "User logged in"
}

func Created(title string) string {
	return fmt.Sprintf("Created item: '%s'", title)
}

func Updated(oldTitle, newTitle string) string {
	return fmt.Sprintf("Updated item: '%s' to '%s'", oldTitle, newTitle)
}

func Deleted(title string) string {
	return fmt.Sprintf("Deleted item: '%s'", title)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
