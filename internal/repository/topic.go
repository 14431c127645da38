package repository

import (
	"context"

	"socialnet/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TopicRepository stores hashtag topics.
type TopicRepository interface {
	FindOrCreate(ctx context.Context, names []string) ([]models.Topic, error)
	GetByName(ctx context.Context, name string) (*models.Topic, error)
}

type topicRepository struct {
	db *gorm.DB
}

// NewTopicRepository creates a new topic repository
func NewTopicRepository(db *gorm.DB) TopicRepository {
	return &topicRepository{db: db}
}

// FindOrCreate returns a topic per name, inserting the missing ones. Names are
// expected to be normalized by the caller.
func (r *topicRepository) FindOrCreate(ctx context.Context, names []string) ([]models.Topic, error) {
	if len(names) == 0 {
		return nil, nil
	}

	rows := make([]models.Topic, 0, len(names))
	for _, name := range names {
		rows = append(rows, models.Topic{Name: name})
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	var topics []models.Topic
	if err := r.db.WithContext(ctx).Where("name IN ?", names).Order("name ASC").Find(&topics).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return topics, nil
}

func (r *topicRepository) GetByName(ctx context.Context, name string) (*models.Topic, error) {
	var topic models.Topic
	if err := readDB(r.db).WithContext(ctx).Where("name = ?", name).First(&topic).Error; err != nil {
		return nil, notFoundOr(err, "Topic", name)
	}
	return &topic, nil
}
