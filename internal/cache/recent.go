// Package cache holds small in-process caches. Nothing here is a source
// of truth; every entry can be rebuilt from the database.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RecentRecipes tracks the recipes each user viewed most recently. The
// outer LRU bounds how many users are tracked at once, so a long-running
// process does not accumulate every user who ever opened a recipe.
type RecentRecipes struct {
	users   *lru.Cache[uint, *recentList]
	perUser int
}

type recentList struct {
	mu  sync.Mutex
	ids []uint
}

// NewRecentRecipes creates a tracker keeping perUser recipe IDs for up to
// maxUsers users.
func NewRecentRecipes(maxUsers, perUser int) (*RecentRecipes, error) {
	users, err := lru.New[uint, *recentList](maxUsers)
	if err != nil {
		return nil, err
	}
	return &RecentRecipes{users: users, perUser: perUser}, nil
}

// Record marks a recipe as the user's most recently viewed. Re-viewing a
// recipe moves it to the front rather than duplicating it.
func (r *RecentRecipes) Record(userID, recipeID uint) {
	list, ok := r.users.Get(userID)
	if !ok {
		list = &recentList{}
		// Two goroutines can race here; both Adds store an equivalent
		// fresh list, so last write wins harmlessly.
		r.users.Add(userID, list)
	}

	list.mu.Lock()
	defer list.mu.Unlock()

	out := make([]uint, 0, len(list.ids)+1)
	out = append(out, recipeID)
	for _, id := range list.ids {
		if id != recipeID {
			out = append(out, id)
		}
	}
	if len(out) > r.perUser {
		out = out[:r.perUser]
	}
	list.ids = out
}

// ForUser returns the user's recently viewed recipe IDs, most recent
// first. Callers must treat the IDs as hints: a recipe may have been
// deleted or made private since it was viewed.
func (r *RecentRecipes) ForUser(userID uint) []uint {
	list, ok := r.users.Get(userID)
	if !ok {
		return nil
	}

	list.mu.Lock()
	defer list.mu.Unlock()
	return append([]uint(nil), list.ids...)
}

// Remove drops one recipe from one user's history, e.g. after the user
// deletes the recipe.
func (r *RecentRecipes) Remove(userID, recipeID uint) {
	list, ok := r.users.Peek(userID)
	if !ok {
		return
	}

	list.mu.Lock()
	defer list.mu.Unlock()

	out := list.ids[:0]
	for _, id := range list.ids {
		if id != recipeID {
			out = append(out, id)
		}
	}
	list.ids = out
}

// Forget drops a user's entire history.
func (r *RecentRecipes) Forget(userID uint) {
	r.users.Remove(userID)
}
