package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minmin-app/minmin/internal/domain"
)

type FeedRepo struct {
	pool *pgxpool.Pool
}

func NewFeedRepo(pool *pgxpool.Pool) *FeedRepo {
	return &FeedRepo{pool: pool}
}

const postSelect = `SELECT p.id, p.user_id, u.full_name, u.image, p.image, p.caption, p.location,
	p.share_count, p.created_at, p.updated_at
	FROM posts p JOIN users u ON u.id = p.user_id`

func scanPost(row pgx.Row) (*domain.Post, error) {
	var p domain.Post
	var authorImage, image, location *string
	var author domain.Author

	if err := row.Scan(&p.ID, &p.UserID, &author.FullName, &authorImage, &image, &p.Caption, &location,
		&p.ShareCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	author.ID = p.UserID
	author.Image = derefStr(authorImage)
	p.Author = &author
	p.Image = derefStr(image)
	p.Location = derefStr(location)
	p.Tags = []string{}
	p.LikedBy = []uuid.UUID{}
	p.BookmarkedBy = []uuid.UUID{}
	p.Comments = []*domain.Comment{}
	p.Shares = []*domain.Share{}

	return &p, nil
}

// CreatePost stores the post and links its tags, creating missing tags.
func (r *FeedRepo) CreatePost(ctx context.Context, p *domain.Post) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO posts (id, user_id, image, caption, location, share_count, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, 0, $6, $7)`,
			p.ID, p.UserID, nilIfEmpty(p.Image), p.Caption, nilIfEmpty(p.Location), p.CreatedAt, p.UpdatedAt,
		); err != nil {
			return mapErr(err)
		}

		for _, name := range p.Tags {
			if _, err := tx.Exec(ctx,
				`WITH tag AS (
				     INSERT INTO tags (name) VALUES ($1)
				     ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
				     RETURNING id
				 )
				 INSERT INTO post_tags (post_id, tag_id) SELECT $2, id FROM tag
				 ON CONFLICT DO NOTHING`,
				name, p.ID,
			); err != nil {
				return fmt.Errorf("tag %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("feedRepo.CreatePost: %w", err)
	}

	return nil
}

// GetPost loads the post with its tags, likes, bookmarks, comments and shares.
func (r *FeedRepo) GetPost(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	p, err := scanPost(r.pool.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("feedRepo.GetPost: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("feedRepo.GetPost: %w", err)
	}

	if err := r.loadRelations(ctx, []*domain.Post{p}); err != nil {
		return nil, fmt.Errorf("feedRepo.GetPost: %w", err)
	}
	return p, nil
}

// ListPosts returns a page of the feed, newest first.
func (r *FeedRepo) ListPosts(ctx context.Context, limit, offset int) ([]*domain.Post, error) {
	rows, err := r.pool.Query(ctx, postSelect+` ORDER BY p.created_at DESC, p.id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("feedRepo.ListPosts: %w", err)
	}
	defer rows.Close()

	posts := []*domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("feedRepo.ListPosts: scan: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("feedRepo.ListPosts: rows: %w", err)
	}

	if err := r.loadRelations(ctx, posts); err != nil {
		return nil, fmt.Errorf("feedRepo.ListPosts: %w", err)
	}
	return posts, nil
}

// loadRelations fills the collections of posts with one query per relation.
func (r *FeedRepo) loadRelations(ctx context.Context, posts []*domain.Post) error {
	if len(posts) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Post, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
		ids = append(ids, p.ID.String())
	}
	const inPosts = `post_id IN (SELECT unnest($1::text[])::uuid)`

	err := r.eachRow(ctx, `SELECT pt.post_id, t.name FROM post_tags pt JOIN tags t ON t.id = pt.tag_id
		WHERE pt.`+inPosts+` ORDER BY t.name`, ids, func(rows pgx.Rows) error {
		var postID uuid.UUID
		var name string
		if err := rows.Scan(&postID, &name); err != nil {
			return err
		}
		byID[postID].Tags = append(byID[postID].Tags, name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("tags: %w", err)
	}

	err = r.eachRow(ctx, `SELECT post_id, user_id FROM post_likes WHERE `+inPosts+` ORDER BY created_at`, ids,
		func(rows pgx.Rows) error {
			var postID, userID uuid.UUID
			if err := rows.Scan(&postID, &userID); err != nil {
				return err
			}
			byID[postID].LikedBy = append(byID[postID].LikedBy, userID)
			return nil
		})
	if err != nil {
		return fmt.Errorf("likes: %w", err)
	}

	err = r.eachRow(ctx, `SELECT post_id, user_id FROM post_bookmarks WHERE `+inPosts+` ORDER BY created_at`, ids,
		func(rows pgx.Rows) error {
			var postID, userID uuid.UUID
			if err := rows.Scan(&postID, &userID); err != nil {
				return err
			}
			byID[postID].BookmarkedBy = append(byID[postID].BookmarkedBy, userID)
			return nil
		})
	if err != nil {
		return fmt.Errorf("bookmarks: %w", err)
	}

	err = r.eachRow(ctx, `SELECT c.id, c.post_id, c.user_id, u.full_name, u.image, c.text, c.created_at
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.`+inPosts+` ORDER BY c.created_at`, ids, func(rows pgx.Rows) error {
		c, err := scanComment(rows)
		if err != nil {
			return err
		}
		byID[c.PostID].Comments = append(byID[c.PostID].Comments, c)
		return nil
	})
	if err != nil {
		return fmt.Errorf("comments: %w", err)
	}

	err = r.eachRow(ctx, `SELECT id, post_id, user_id, shared_at FROM shares WHERE `+inPosts+` ORDER BY shared_at`, ids,
		func(rows pgx.Rows) error {
			var s domain.Share
			if err := rows.Scan(&s.ID, &s.PostID, &s.UserID, &s.SharedAt); err != nil {
				return err
			}
			byID[s.PostID].Shares = append(byID[s.PostID].Shares, &s)
			return nil
		})
	if err != nil {
		return fmt.Errorf("shares: %w", err)
	}

	return nil
}

func (r *FeedRepo) eachRow(ctx context.Context, query string, ids []string, fn func(pgx.Rows) error) error {
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var c domain.Comment
	var author domain.Author
	var image *string

	if err := row.Scan(&c.ID, &c.PostID, &c.UserID, &author.FullName, &image, &c.Text, &c.CreatedAt); err != nil {
		return nil, err
	}
	author.ID = c.UserID
	author.Image = derefStr(image)
	c.Author = &author
	return &c, nil
}

// toggle removes the (post, user) row from table if present, inserts it otherwise.
func (r *FeedRepo) toggle(ctx context.Context, table string, postID, userID uuid.UUID) (bool, error) {
	var on bool
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE post_id = $1 AND user_id = $2`, postID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			on = false
			return nil
		}
		if _, err := tx.Exec(ctx, `INSERT INTO `+table+` (post_id, user_id) VALUES ($1, $2)`, postID, userID); err != nil {
			if errors.Is(mapErr(err), domain.ErrConflict) {
				return domain.ErrNotFound
			}
			return err
		}
		on = true
		return nil
	})
	return on, err
}

func (r *FeedRepo) ToggleLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	liked, err := r.toggle(ctx, "post_likes", postID, userID)
	if err != nil {
		return false, fmt.Errorf("feedRepo.ToggleLike: %w", err)
	}
	return liked, nil
}

func (r *FeedRepo) ToggleBookmark(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	bookmarked, err := r.toggle(ctx, "post_bookmarks", postID, userID)
	if err != nil {
		return false, fmt.Errorf("feedRepo.ToggleBookmark: %w", err)
	}
	return bookmarked, nil
}

func (r *FeedRepo) AddComment(ctx context.Context, c *domain.Comment) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO comments (id, post_id, user_id, text, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.PostID, c.UserID, c.Text, c.CreatedAt,
	)
	if err != nil {
		if errors.Is(mapErr(err), domain.ErrConflict) {
			return fmt.Errorf("feedRepo.AddComment: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("feedRepo.AddComment: %w", err)
	}

	return nil
}

func (r *FeedRepo) GetComment(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	c, err := scanComment(r.pool.QueryRow(ctx,
		`SELECT c.id, c.post_id, c.user_id, u.full_name, u.image, c.text, c.created_at
		 FROM comments c JOIN users u ON u.id = c.user_id WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("feedRepo.GetComment: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("feedRepo.GetComment: %w", err)
	}

	return c, nil
}

func (r *FeedRepo) DeleteComment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("feedRepo.DeleteComment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("feedRepo.DeleteComment: %w", domain.ErrNotFound)
	}

	return nil
}

// SharePost records the share and bumps the counter atomically.
func (r *FeedRepo) SharePost(ctx context.Context, s *domain.Share) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE posts SET share_count = share_count + 1 WHERE id = $1`, s.PostID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO shares (id, post_id, user_id, shared_at) VALUES ($1, $2, $3, $4)`,
			s.ID, s.PostID, s.UserID, s.SharedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("feedRepo.SharePost: %w", err)
	}

	return nil
}
