package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/minmin-app/minmin/internal/domain"
)

type ListFeedInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListFeedOutput struct {
	Body []*domain.Post
}

type CreatePostInput struct {
	Body struct {
		Image    string   `json:"image,omitempty" maxLength:"1024" doc:"Image URL returned by /uploads"`
		Caption  string   `json:"caption" minLength:"1" maxLength:"2200" doc:"Post text"`
		Location string   `json:"location,omitempty" maxLength:"255"`
		Tags     []string `json:"tags,omitempty" maxItems:"30" doc:"Tag names"`
	}
}

type PostIDInput struct {
	ID uuid.UUID `path:"id" doc:"Post ID"`
}

type PostOutput struct {
	Body *domain.Post
}

type AddCommentInput struct {
	ID   uuid.UUID `path:"id" doc:"Post ID"`
	Body struct {
		Text string `json:"text" minLength:"1" maxLength:"2000" doc:"Comment text"`
	}
}

type CommentOutput struct {
	Body *domain.Comment
}

type CommentIDInput struct {
	ID uuid.UUID `path:"id" doc:"Comment ID"`
}

func reloadPost(ctx context.Context, store DataStore, id uuid.UUID) (*PostOutput, error) {
	post, err := store.Feed().GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("Post not found")
		}
		return nil, huma.Error500InternalServerError("failed to load post", err)
	}
	return &PostOutput{Body: post}, nil
}

func feedWriteError(err error, action string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return huma.Error404NotFound("Post not found")
	}
	return huma.Error500InternalServerError("failed to "+action, err)
}

func RegisterFeedRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-feed",
		Method:      http.MethodGet,
		Path:        "/feed",
		Summary:     "List posts, newest first",
		Tags:        []string{"Feed"},
	}, func(ctx context.Context, input *ListFeedInput) (*ListFeedOutput, error) {
		posts, err := store.Feed().ListPosts(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list posts", err)
		}
		return &ListFeedOutput{Body: posts}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-post",
		Method:      http.MethodPost,
		Path:        "/feed",
		Summary:     "Publish a post",
		Tags:        []string{"Feed"},
	}, func(ctx context.Context, input *CreatePostInput) (*PostOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}

		user, err := store.Users().GetByID(ctx, p.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("User not found")
			}
			return nil, huma.Error500InternalServerError("failed to load user", err)
		}

		now := time.Now()
		post := &domain.Post{
			ID:           uuid.New(),
			UserID:       user.ID,
			Author:       &domain.Author{ID: user.ID, FullName: user.FullName, Image: user.Image},
			Image:        strings.TrimSpace(input.Body.Image),
			Caption:      input.Body.Caption,
			Location:     strings.TrimSpace(input.Body.Location),
			Tags:         domain.NormalizeTags(input.Body.Tags),
			LikedBy:      []uuid.UUID{},
			BookmarkedBy: []uuid.UUID{},
			Comments:     []*domain.Comment{},
			Shares:       []*domain.Share{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := store.Feed().CreatePost(ctx, post); err != nil {
			return nil, huma.Error500InternalServerError("failed to create post", err)
		}
		return &PostOutput{Body: post}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-post",
		Method:      http.MethodGet,
		Path:        "/feed/{id}",
		Summary:     "Get a post",
		Tags:        []string{"Feed"},
	}, func(ctx context.Context, input *PostIDInput) (*PostOutput, error) {
		return reloadPost(ctx, store, input.ID)
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-like",
		Method:      http.MethodPost,
		Path:        "/feed/{id}/like",
		Summary:     "Like or unlike a post",
		Tags:        []string{"Feed"},
	}, func(ctx context.Context, input *PostIDInput) (*PostOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := store.Feed().ToggleLike(ctx, input.ID, p.UserID); err != nil {
			return nil, feedWriteError(err, "toggle like")
		}
		return reloadPost(ctx, store, input.ID)
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-bookmark",
		Method:      http.MethodPost,
		Path:        "/feed/{id}/bookmark",
		Summary:     "Bookmark or unbookmark a post",
		Tags:        []string{"Feed"},
	}, func(ctx context.Context, input *PostIDInput) (*PostOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := store.Feed().ToggleBookmark(ctx, input.ID, p.UserID); err != nil {
			return nil, feedWriteError(err, "toggle bookmark")
		}
		return reloadPost(ctx, store, input.ID)
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-comment",
		Method:      http.MethodPost,
		Path:        "/feed/{id}/comments",
		Summary:     "Comment on a post",
		Tags:        []string{"Feed"},
	}, func(ctx context.Context, input *AddCommentInput) (*CommentOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}

		c := &domain.Comment{
			ID:        uuid.New(),
			PostID:    input.ID,
			UserID:    p.UserID,
			Text:      strings.TrimSpace(input.Body.Text),
			CreatedAt: time.Now(),
		}
		if err := store.Feed().AddComment(ctx, c); err != nil {
			return nil, feedWriteError(err, "add comment")
		}
		return &CommentOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-comment",
		Method:      http.MethodDelete,
		Path:        "/feed/comments/{id}",
		Summary:     "Delete a comment",
		Tags:        []string{"Feed"},
	}, func(ctx context.Context, input *CommentIDInput) (*struct{}, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}

		c, err := store.Feed().GetComment(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("Comment not found")
			}
			return nil, huma.Error500InternalServerError("failed to load comment", err)
		}
		if c.UserID != p.UserID && !p.IsAdmin() {
			return nil, huma.Error403Forbidden("You can only delete your own comments.")
		}

		if err := store.Feed().DeleteComment(ctx, c.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("Comment not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete comment", err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "share-post",
		Method:      http.MethodPost,
		Path:        "/feed/{id}/share",
		Summary:     "Record a share of a post",
		Tags:        []string{"Feed"},
	}, func(ctx context.Context, input *PostIDInput) (*PostOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}

		userID := p.UserID
		share := &domain.Share{ID: uuid.New(), PostID: input.ID, UserID: &userID, SharedAt: time.Now()}
		if err := store.Feed().SharePost(ctx, share); err != nil {
			return nil, feedWriteError(err, "share post")
		}
		return reloadPost(ctx, store, input.ID)
	})
}
