package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/engram-labs/engram/pkg/memory/model"
)

// MongoStore implements Store on MongoDB. Row ids come from a counters
// collection so they stay int64 like the Postgres serials.
type MongoStore struct {
	client      *mongo.Client
	memories    *mongo.Collection
	goals       *mongo.Collection
	preferences *mongo.Collection
	projects    *mongo.Collection
	counters    *mongo.Collection
}

const mongoCloseTimeout = 5 * time.Second

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	db := client.Database(database)
	return &MongoStore{
		client:      client,
		memories:    db.Collection("memories"),
		goals:       db.Collection("goals"),
		preferences: db.Collection("preferences"),
		projects:    db.Collection("projects"),
		counters:    db.Collection("counters"),
	}, nil
}

func (ms *MongoStore) nextID(ctx context.Context, sequence string) (int64, error) {
	res := ms.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": sequence},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After))
	var doc struct {
		Value int64 `bson:"value"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, err
	}
	return doc.Value, nil
}

type mongoMemory struct {
	ID                   int64      `bson:"_id"`
	UserID               int64      `bson:"user_id"`
	ProjectID            string     `bson:"project_id"`
	Content              string     `bson:"content"`
	MemoryType           string     `bson:"memory_type"`
	Importance           int        `bson:"importance"`
	RetrievalCount       int        `bson:"retrieval_count"`
	Tags                 []string   `bson:"tags,omitempty"`
	SourceConversationID string     `bson:"source_conversation_id,omitempty"`
	SourceMessageID      string     `bson:"source_message_id,omitempty"`
	LastRetrievedAt      *time.Time `bson:"last_retrieved_at,omitempty"`
	CreatedAt            time.Time  `bson:"created_at"`
	UpdatedAt            time.Time  `bson:"updated_at"`
}

func (d mongoMemory) toModel() model.Memory {
	return model.Memory{
		ID:                   d.ID,
		UserID:               d.UserID,
		ProjectID:            d.ProjectID,
		Content:              d.Content,
		MemoryType:           model.MemoryType(d.MemoryType),
		Importance:           d.Importance,
		RetrievalCount:       d.RetrievalCount,
		Tags:                 d.Tags,
		SourceConversationID: d.SourceConversationID,
		SourceMessageID:      d.SourceMessageID,
		LastRetrievedAt:      d.LastRetrievedAt,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

func (ms *MongoStore) InsertMemory(ctx context.Context, m model.Memory) (model.Memory, error) {
	id, err := ms.nextID(ctx, "memories")
	if err != nil {
		return model.Memory{}, err
	}
	now := time.Now().UTC()
	doc := mongoMemory{
		ID:                   id,
		UserID:               m.UserID,
		ProjectID:            m.ProjectID,
		Content:              m.Content,
		MemoryType:           string(m.MemoryType),
		Importance:           model.ClampImportance(m.Importance),
		Tags:                 m.Tags,
		SourceConversationID: m.SourceConversationID,
		SourceMessageID:      m.SourceMessageID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if _, err := ms.memories.InsertOne(ctx, doc); err != nil {
		return model.Memory{}, err
	}
	return doc.toModel(), nil
}

func (ms *MongoStore) collectMemories(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.Memory, error) {
	cur, err := ms.memories.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.Memory
	for cur.Next(ctx) {
		var doc mongoMemory
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toModel())
	}
	return out, cur.Err()
}

func (ms *MongoStore) MemoriesByIDs(ctx context.Context, userID int64, projectID string, ids []int64) ([]model.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	filter := bson.M{"_id": bson.M{"$in": ids}, "user_id": userID, "project_id": projectID}
	return ms.collectMemories(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (ms *MongoStore) TopMemories(ctx context.Context, userID int64, projectID string, limit int) ([]model.Memory, error) {
	filter := bson.M{"user_id": userID, "project_id": projectID}
	opts := options.Find().
		SetSort(bson.D{{Key: "importance", Value: -1}, {Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	return ms.collectMemories(ctx, filter, opts)
}

func (ms *MongoStore) ListMemories(ctx context.Context, userID int64) ([]model.Memory, error) {
	return ms.collectMemories(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (ms *MongoStore) SearchMemories(ctx context.Context, userID int64, keyword string) ([]model.Memory, error) {
	filter := bson.M{
		"user_id": userID,
		"content": bson.M{"$regex": keyword, "$options": "i"},
	}
	return ms.collectMemories(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (ms *MongoStore) UpdateMemory(ctx context.Context, id int64, upd model.MemoryUpdate) error {
	if upd.IsZero() {
		return nil
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Content != nil {
		set["content"] = *upd.Content
	}
	if upd.MemoryType != nil {
		set["memory_type"] = string(*upd.MemoryType)
	}
	if upd.Importance != nil {
		set["importance"] = model.ClampImportance(*upd.Importance)
	}
	if upd.Tags != nil {
		set["tags"] = *upd.Tags
	}
	res, err := ms.memories.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (ms *MongoStore) DeleteMemory(ctx context.Context, id int64) error {
	res, err := ms.memories.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (ms *MongoStore) DeleteMemoriesByKeyword(ctx context.Context, userID int64, keyword string) ([]int64, error) {
	filter := bson.M{
		"user_id": userID,
		"content": bson.M{"$regex": keyword, "$options": "i"},
	}
	matches, err := ms.collectMemories(ctx, filter, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := ms.memories.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, err
	}
	return ids, nil
}

func (ms *MongoStore) MarkRetrieved(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := ms.memories.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{
			"$inc": bson.M{"retrieval_count": 1},
			"$set": bson.M{"last_retrieved_at": time.Now().UTC()},
		})
	return err
}

type mongoGoal struct {
	ID          int64      `bson:"_id"`
	UserID      int64      `bson:"user_id"`
	Title       string     `bson:"title"`
	Description string     `bson:"description,omitempty"`
	Status      string     `bson:"status"`
	Priority    int        `bson:"priority"`
	TargetDate  *time.Time `bson:"target_date,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func (ms *MongoStore) InsertGoal(ctx context.Context, g model.Goal) (model.Goal, error) {
	id, err := ms.nextID(ctx, "goals")
	if err != nil {
		return model.Goal{}, err
	}
	if g.Status == "" {
		g.Status = model.GoalActive
	}
	now := time.Now().UTC()
	doc := mongoGoal{
		ID: id, UserID: g.UserID, Title: g.Title, Description: g.Description,
		Status: string(g.Status), Priority: g.Priority, TargetDate: g.TargetDate,
		CreatedAt: now, UpdatedAt: now,
	}
	if _, err := ms.goals.InsertOne(ctx, doc); err != nil {
		return model.Goal{}, err
	}
	g.ID = id
	g.CreatedAt = now
	g.UpdatedAt = now
	return g, nil
}

func (ms *MongoStore) ListGoals(ctx context.Context, userID int64) ([]model.Goal, error) {
	cur, err := ms.goals.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.Goal
	for cur.Next(ctx) {
		var doc mongoGoal
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, model.Goal{
			ID: doc.ID, UserID: doc.UserID, Title: doc.Title, Description: doc.Description,
			Status: model.GoalStatus(doc.Status), Priority: doc.Priority, TargetDate: doc.TargetDate,
			CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt,
		})
	}
	return out, cur.Err()
}

func (ms *MongoStore) UpdateGoal(ctx context.Context, id int64, upd model.GoalUpdate) error {
	if upd.IsZero() {
		return nil
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Status != nil {
		set["status"] = string(*upd.Status)
	}
	if upd.Priority != nil {
		set["priority"] = *upd.Priority
	}
	if upd.TargetDate != nil {
		set["target_date"] = *upd.TargetDate
	}
	res, err := ms.goals.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type mongoPreference struct {
	ID        int64     `bson:"_id"`
	UserID    int64     `bson:"user_id"`
	Key       string    `bson:"preference_key"`
	Value     string    `bson:"preference_value"`
	Category  string    `bson:"category,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (ms *MongoStore) UpsertPreference(ctx context.Context, p model.Preference) (model.Preference, error) {
	now := time.Now().UTC()
	filter := bson.M{"user_id": p.UserID, "preference_key": p.Key}

	var existing mongoPreference
	err := ms.preferences.FindOne(ctx, filter).Decode(&existing)
	switch {
	case err == nil:
		_, err = ms.preferences.UpdateByID(ctx, existing.ID, bson.M{"$set": bson.M{
			"preference_value": p.Value,
			"category":         p.Category,
			"updated_at":       now,
		}})
		if err != nil {
			return model.Preference{}, err
		}
		existing.Value = p.Value
		existing.Category = p.Category
		existing.UpdatedAt = now
		return prefToModel(existing), nil
	case errors.Is(err, mongo.ErrNoDocuments):
		id, err := ms.nextID(ctx, "preferences")
		if err != nil {
			return model.Preference{}, err
		}
		doc := mongoPreference{
			ID: id, UserID: p.UserID, Key: p.Key, Value: p.Value, Category: p.Category,
			CreatedAt: now, UpdatedAt: now,
		}
		if _, err := ms.preferences.InsertOne(ctx, doc); err != nil {
			return model.Preference{}, err
		}
		return prefToModel(doc), nil
	default:
		return model.Preference{}, err
	}
}

func prefToModel(d mongoPreference) model.Preference {
	return model.Preference{
		ID: d.ID, UserID: d.UserID, Key: d.Key, Value: d.Value, Category: d.Category,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func (ms *MongoStore) ListPreferences(ctx context.Context, userID int64) ([]model.Preference, error) {
	cur, err := ms.preferences.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "preference_key", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.Preference
	for cur.Next(ctx) {
		var doc mongoPreference
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, prefToModel(doc))
	}
	return out, cur.Err()
}

func (ms *MongoStore) GetPreference(ctx context.Context, userID int64, key string) (model.Preference, error) {
	var doc mongoPreference
	err := ms.preferences.FindOne(ctx, bson.M{"user_id": userID, "preference_key": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Preference{}, ErrNotFound
	}
	if err != nil {
		return model.Preference{}, err
	}
	return prefToModel(doc), nil
}

type mongoProject struct {
	ID            int64     `bson:"_id"`
	UserID        int64     `bson:"user_id"`
	Name          string    `bson:"name"`
	Description   string    `bson:"description,omitempty"`
	Status        string    `bson:"status"`
	TechStack     []string  `bson:"tech_stack,omitempty"`
	RepositoryURL string    `bson:"repository_url,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func (ms *MongoStore) InsertProject(ctx context.Context, p model.Project) (model.Project, error) {
	id, err := ms.nextID(ctx, "projects")
	if err != nil {
		return model.Project{}, err
	}
	if p.Status == "" {
		p.Status = model.ProjectActive
	}
	now := time.Now().UTC()
	doc := mongoProject{
		ID: id, UserID: p.UserID, Name: p.Name, Description: p.Description,
		Status: string(p.Status), TechStack: p.TechStack, RepositoryURL: p.RepositoryURL,
		CreatedAt: now, UpdatedAt: now,
	}
	if _, err := ms.projects.InsertOne(ctx, doc); err != nil {
		return model.Project{}, err
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

func (ms *MongoStore) ListProjects(ctx context.Context, userID int64) ([]model.Project, error) {
	cur, err := ms.projects.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.Project
	for cur.Next(ctx) {
		var doc mongoProject
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, model.Project{
			ID: doc.ID, UserID: doc.UserID, Name: doc.Name, Description: doc.Description,
			Status: model.ProjectStatus(doc.Status), TechStack: doc.TechStack,
			RepositoryURL: doc.RepositoryURL, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt,
		})
	}
	return out, cur.Err()
}

func (ms *MongoStore) UpdateProject(ctx context.Context, id int64, upd model.ProjectUpdate) error {
	if upd.IsZero() {
		return nil
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Status != nil {
		set["status"] = string(*upd.Status)
	}
	if upd.TechStack != nil {
		set["tech_stack"] = *upd.TechStack
	}
	if upd.RepositoryURL != nil {
		set["repository_url"] = *upd.RepositoryURL
	}
	res, err := ms.projects.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Close disconnects the client.
func (ms *MongoStore) Close() error {
	if ms == nil || ms.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
