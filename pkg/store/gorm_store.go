package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"microblog/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &TweetModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "email", "password_hash"}),
	}).Create(&model).Error
}

// HasUsername checks if a username is taken.
func (s *GormStore) HasUsername(username string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByUsername looks up a user by username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("username = ?", username).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveTweet stores or overwrites a tweet.
func (s *GormStore) SaveTweet(t domain.Tweet) error {
	model, err := tweetToModel(t)
	if err != nil {
		return err
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "media", "updated_at"}),
	}).Create(&model).Error
}

// GetTweetByOwner resolves a tweet by (id, owner). Ownership is folded into
// the lookup so a foreign tweet is indistinguishable from a missing one.
func (s *GormStore) GetTweetByOwner(id, ownerID string) (domain.Tweet, bool, error) {
	var model TweetModel
	if err := s.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Tweet{}, false, nil
		}
		return domain.Tweet{}, false, err
	}
	t, err := tweetFromModel(model)
	if err != nil {
		return domain.Tweet{}, false, err
	}
	return t, true, nil
}

// ListTweets returns all tweets, most recent first.
func (s *GormStore) ListTweets() ([]domain.Tweet, error) {
	return s.listTweets()
}

// SearchTweets performs a case-insensitive substring match on tweet text.
func (s *GormStore) SearchTweets(query string) ([]domain.Tweet, error) {
	return s.listTweets("text ILIKE ?", "%"+escapeLike(query)+"%")
}

func (s *GormStore) listTweets(conds ...any) ([]domain.Tweet, error) {
	var models []TweetModel
	tx := s.db.Order("created_at DESC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Tweet, 0, len(models))
	for _, m := range models {
		t, err := tweetFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

// DeleteTweet removes a tweet if it belongs to the owner.
func (s *GormStore) DeleteTweet(id, ownerID string) error {
	return s.db.Delete(&TweetModel{}, "id = ? AND owner_id = ?", id, ownerID).Error
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

func tweetToModel(t domain.Tweet) (TweetModel, error) {
	model := TweetModel{
		ID:        t.ID,
		OwnerID:   t.OwnerID,
		Text:      t.Text,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.Media != nil {
		raw, err := json.Marshal(t.Media)
		if err != nil {
			return TweetModel{}, fmt.Errorf("marshal media: %w", err)
		}
		model.Media = raw
	}
	return model, nil
}

func tweetFromModel(m TweetModel) (domain.Tweet, error) {
	t := domain.Tweet{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if len(m.Media) > 0 {
		var media domain.Media
		if err := json.Unmarshal(m.Media, &media); err != nil {
			return domain.Tweet{}, fmt.Errorf("unmarshal media: %w", err)
		}
		t.Media = &media
	}
	return t, nil
}

// escapeLike neutralizes LIKE metacharacters in user queries.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
