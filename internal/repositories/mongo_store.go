package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskify/internal/models"

	"github.com/gofrs/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	tasksCollection = "tasks"
	usersCollection = "users"
)

type taskDocument struct {
	ID           string     `bson:"_id"`
	OwnerID      string     `bson:"owner_id"`
	Title        string     `bson:"title"`
	Description  string     `bson:"description,omitempty"`
	Category     string     `bson:"category"`
	Status       string     `bson:"status"`
	Priority     string     `bson:"priority"`
	DueDate      *time.Time `bson:"due_date,omitempty"`
	ReminderDate *time.Time `bson:"reminder_date,omitempty"`
	Tags         []string   `bson:"tags"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

type userDocument struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	Password  string    `bson:"password"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func newTaskDocument(task models.Task) taskDocument {
	tags := []string(task.Tags)
	if tags == nil {
		tags = []string{}
	}
	return taskDocument{
		ID:           task.ID.String(),
		OwnerID:      task.UserID.String(),
		Title:        task.Title,
		Description:  task.Description,
		Category:     task.Category,
		Status:       string(task.Status),
		Priority:     string(task.Priority),
		DueDate:      task.DueDate,
		ReminderDate: task.ReminderDate,
		Tags:         tags,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
	}
}

func (d taskDocument) toTask() (models.Task, error) {
	id, err := uuid.FromString(d.ID)
	if err != nil {
		return models.Task{}, fmt.Errorf("invalid task id %q: %w", d.ID, err)
	}
	owner, err := uuid.FromString(d.OwnerID)
	if err != nil {
		return models.Task{}, fmt.Errorf("invalid owner id %q: %w", d.OwnerID, err)
	}
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.Task{
		ID:           id,
		UserID:       owner,
		Title:        d.Title,
		Description:  d.Description,
		Category:     d.Category,
		Status:       models.TaskStatus(d.Status),
		Priority:     models.TaskPriority(d.Priority),
		DueDate:      d.DueDate,
		ReminderDate: d.ReminderDate,
		Tags:         models.StringList(tags),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

func (d userDocument) toUser() (*models.User, error) {
	id, err := uuid.FromString(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", d.ID, err)
	}
	return &models.User{
		ID:        id,
		Username:  d.Username,
		Password:  d.Password,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func ownedFilter(id, owner uuid.UUID) bson.D {
	return bson.D{{Key: "_id", Value: id.String()}, {Key: "owner_id", Value: owner.String()}}
}

// toggleStatusPipeline flips pending/completed in a single server-side
// update, so the read and the write cannot interleave with another writer.
func toggleStatusPipeline(now time.Time) mongo.Pipeline {
	flippable := bson.D{{Key: "$in", Value: bson.A{"$status", bson.A{string(models.StatusPending), string(models.StatusCompleted)}}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "status", Value: bson.D{{Key: "$switch", Value: bson.D{
				{Key: "branches", Value: bson.A{
					bson.D{
						{Key: "case", Value: bson.D{{Key: "$eq", Value: bson.A{"$status", string(models.StatusPending)}}}},
						{Key: "then", Value: string(models.StatusCompleted)},
					},
					bson.D{
						{Key: "case", Value: bson.D{{Key: "$eq", Value: bson.A{"$status", string(models.StatusCompleted)}}}},
						{Key: "then", Value: string(models.StatusPending)},
					},
				}},
				{Key: "default", Value: "$status"},
			}}}},
			{Key: "updated_at", Value: bson.D{{Key: "$cond", Value: bson.A{flippable, now, "$updated_at"}}}},
		}}},
	}
}

// MongoStore implements TaskStore and UserStore on a MongoDB database.
type MongoStore struct {
	tasks *mongo.Collection
	users *mongo.Collection
	now   func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		tasks: db.Collection(tasksCollection),
		users: db.Collection(usersCollection),
		now:   time.Now,
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.tasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create task owner index: %w", err)
	}

	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create username index: %w", err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, owner uuid.UUID) ([]models.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.tasks.Find(ctx, bson.D{{Key: "owner_id", Value: owner.String()}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(docs))
	for _, doc := range docs {
		task, err := doc.toTask()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *MongoStore) Create(ctx context.Context, owner uuid.UUID, fields models.TaskFields) (models.Task, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to generate task ID: %w", err)
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	task := models.Task{ID: id, UserID: owner, CreatedAt: now, UpdatedAt: now}
	fields.WithDefaults().Apply(&task)

	if _, err := s.tasks.InsertOne(ctx, newTaskDocument(task)); err != nil {
		return models.Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

func (s *MongoStore) findOneAndUpdate(ctx context.Context, id, owner uuid.UUID, update interface{}) (models.Task, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc taskDocument
	err := s.tasks.FindOneAndUpdate(ctx, ownedFilter(id, owner), update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Task{}, ErrTaskNotFound
	}
	if err != nil {
		return models.Task{}, err
	}
	return doc.toTask()
}

func (s *MongoStore) Update(ctx context.Context, id, owner uuid.UUID, fields models.TaskFields) (models.Task, error) {
	fields = fields.WithDefaults()
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "title", Value: fields.Title},
		{Key: "description", Value: fields.Description},
		{Key: "category", Value: fields.Category},
		{Key: "status", Value: string(fields.Status)},
		{Key: "priority", Value: string(fields.Priority)},
		{Key: "due_date", Value: fields.DueDate},
		{Key: "reminder_date", Value: fields.ReminderDate},
		{Key: "tags", Value: fields.Tags},
		{Key: "updated_at", Value: s.now().UTC().Truncate(time.Millisecond)},
	}}}

	task, err := s.findOneAndUpdate(ctx, id, owner, update)
	if err != nil && !errors.Is(err, ErrTaskNotFound) {
		return models.Task{}, fmt.Errorf("failed to update task: %w", err)
	}
	return task, err
}

func (s *MongoStore) Delete(ctx context.Context, id, owner uuid.UUID) error {
	result, err := s.tasks.DeleteOne(ctx, ownedFilter(id, owner))
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *MongoStore) ToggleStatus(ctx context.Context, id, owner uuid.UUID) (models.Task, error) {
	now := s.now().UTC().Truncate(time.Millisecond)
	task, err := s.findOneAndUpdate(ctx, id, owner, toggleStatusPipeline(now))
	if err != nil && !errors.Is(err, ErrTaskNotFound) {
		return models.Task{}, fmt.Errorf("failed to toggle task: %w", err)
	}
	return task, err
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	doc := userDocument{
		ID:        user.ID.String(),
		Username:  user.Username,
		Password:  user.Password,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.D) (*models.User, error) {
	var doc userDocument
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return doc.toUser()
}

func (s *MongoStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, bson.D{{Key: "username", Value: username}})
}

func (s *MongoStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.findUser(ctx, bson.D{{Key: "_id", Value: id.String()}})
}
