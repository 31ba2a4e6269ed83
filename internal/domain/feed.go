package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Author is the public projection of a user attached to posts and comments.
type Author struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Image    string    `json:"image,omitempty"`
}

type Post struct {
	ID           uuid.UUID   `json:"id"`
	UserID       uuid.UUID   `json:"user_id"`
	Author       *Author     `json:"user,omitempty"`
	Image        string      `json:"image,omitempty"`
	Caption      string      `json:"caption"`
	Location     string      `json:"location,omitempty"`
	ShareCount   int         `json:"share_count"`
	Tags         []string    `json:"tags"`
	LikedBy      []uuid.UUID `json:"likes"`
	BookmarkedBy []uuid.UUID `json:"bookmarks"`
	Comments     []*Comment  `json:"comments"`
	Shares       []*Share    `json:"shares"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type Comment struct {
	ID        uuid.UUID `json:"id"`
	PostID    uuid.UUID `json:"post_id"`
	UserID    uuid.UUID `json:"user_id"`
	Author    *Author   `json:"user,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Share struct {
	ID       uuid.UUID  `json:"id"`
	PostID   uuid.UUID  `json:"post_id"`
	UserID   *uuid.UUID `json:"user_id,omitempty"`
	SharedAt time.Time  `json:"shared_at"`
}

// NormalizeTags trims and lower-cases tag names, dropping empties and duplicates
// while keeping first-seen order.
func NormalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

type FeedRepository interface {
	// CreatePost stores the post and links its tags, creating missing tags.
	CreatePost(ctx context.Context, p *Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*Post, error)
	ListPosts(ctx context.Context, limit, offset int) ([]*Post, error)
	ToggleLike(ctx context.Context, postID, userID uuid.UUID) (liked bool, err error)
	ToggleBookmark(ctx context.Context, postID, userID uuid.UUID) (bookmarked bool, err error)
	AddComment(ctx context.Context, c *Comment) error
	GetComment(ctx context.Context, id uuid.UUID) (*Comment, error)
	DeleteComment(ctx context.Context, id uuid.UUID) error
	// SharePost records the share and bumps the post's share counter.
	SharePost(ctx context.Context, s *Share) error
}
