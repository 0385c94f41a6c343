package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"creator_sync/internal/domain"
)

const creatorColumns = `id, name, username, bio, profile_image, is_verified, is_featured, is_new,
		type, social_links, created_at, updated_at`

type CreatorStore struct {
	db *sqlx.DB
}

func NewCreatorStore(db *sqlx.DB) *CreatorStore {
	return &CreatorStore{db: db}
}

// List returns every creator ordered by id.
func (s *CreatorStore) List(ctx context.Context) ([]domain.Creator, error) {
	query := `SELECT ` + creatorColumns + ` FROM creators ORDER BY id`

	var creators []domain.Creator
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &creators, query); err != nil {
		return nil, err
	}
	return creators, nil
}

func (s *CreatorStore) Insert(ctx context.Context, c *domain.Creator) error {
	query := `
		INSERT INTO creators (
			id, name, username, bio, profile_image, is_verified, is_featured, is_new,
			type, social_links, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		RETURNING created_at`

	return sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &c.CreatedAt, query,
		c.ID,
		c.Name,
		c.Username,
		c.Bio,
		c.ProfileImage,
		c.IsVerified,
		c.IsFeatured,
		c.IsNew,
		c.Type,
		c.SocialLinks,
		c.UpdatedAt,
	)
}

// Update overwrites every field of the creator with id c.ID.
func (s *CreatorStore) Update(ctx context.Context, c *domain.Creator) error {
	query := `
		UPDATE creators SET
			name = $2,
			username = $3,
			bio = $4,
			profile_image = $5,
			is_verified = $6,
			is_featured = $7,
			is_new = $8,
			type = $9,
			social_links = $10,
			updated_at = $11
		WHERE id = $1`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		c.ID,
		c.Name,
		c.Username,
		c.Bio,
		c.ProfileImage,
		c.IsVerified,
		c.IsFeatured,
		c.IsNew,
		c.Type,
		c.SocialLinks,
		c.UpdatedAt,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrCreatorNotFound
	}
	return nil
}
