// Package mongostore keeps issues in their own collection and projects as
// documents holding an ordered list of issue ids.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"issue-tracker-api/internal/models"
	"issue-tracker-api/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var _ store.Store = (*Store)(nil)

type projectDoc struct {
	ID     primitive.ObjectID   `bson:"_id,omitempty"`
	Name   string               `bson:"name"`
	Issues []primitive.ObjectID `bson:"issues"`
}

type issueDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Project    string             `bson:"project"`
	Title      string             `bson:"issue_title"`
	Text       string             `bson:"issue_text"`
	CreatedBy  string             `bson:"created_by"`
	AssignedTo string             `bson:"assigned_to"`
	StatusText string             `bson:"status_text"`
	Open       bool               `bson:"open"`
	CreatedOn  time.Time          `bson:"created_on"`
	UpdatedOn  time.Time          `bson:"updated_on"`
}

func (d issueDoc) toModel() models.Issue {
	return models.Issue{
		AssignedTo: d.AssignedTo,
		StatusText: d.StatusText,
		Open:       d.Open,
		ID:         d.ID.Hex(),
		Title:      d.Title,
		Text:       d.Text,
		CreatedBy:  d.CreatedBy,
		CreatedOn:  d.CreatedOn.UTC(),
		UpdatedOn:  d.UpdatedOn.UTC(),
	}
}

type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	projects *mongo.Collection
	issues   *mongo.Collection
}

// New connects, verifies the primary is reachable and ensures indexes.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := newStore(client, client.Database(database))
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func newStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:   client,
		db:       db,
		projects: db.Collection("projects"),
		issues:   db.Collection("issues"),
	}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.projects.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create project index: %w", err)
	}
	_, err = s.issues.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "project", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create issue index: %w", err)
	}
	return nil
}

func (s *Store) findProject(ctx context.Context, name string) (*projectDoc, error) {
	var p projectDoc
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})
	err := s.projects.FindOne(ctx, bson.M{"name": name}, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	return &p, nil
}

// ordered runs filter against the project's issues and returns them in project order.
func (s *Store) ordered(ctx context.Context, p *projectDoc, filter bson.M) ([]models.Issue, error) {
	out := []models.Issue{}
	if len(p.Issues) == 0 {
		return out, nil
	}
	filter["project"] = p.Name
	if _, ok := filter["_id"]; !ok {
		filter["_id"] = bson.M{"$in": p.Issues}
	}

	cur, err := s.issues.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	var docs []issueDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}

	byID := make(map[primitive.ObjectID]issueDoc, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	for _, id := range p.Issues {
		if d, ok := byID[id]; ok {
			out = append(out, d.toModel())
		}
	}
	return out, nil
}

func (s *Store) FindProjectByName(ctx context.Context, name string) (*models.Project, error) {
	p, err := s.findProject(ctx, name)
	if err != nil {
		return nil, err
	}
	issues, err := s.ordered(ctx, p, bson.M{})
	if err != nil {
		return nil, err
	}
	return &models.Project{Name: p.Name, Issues: issues}, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]models.ProjectSummary, error) {
	cur, err := s.projects.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find projects: %w", err)
	}
	var projects []projectDoc
	if err := cur.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}

	agg, err := s.issues.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$project"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "open", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{"$open", 1, 0}},
			}}}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate issues: %w", err)
	}
	var counts []struct {
		Project string `bson:"_id"`
		Count   int    `bson:"count"`
		Open    int    `bson:"open"`
	}
	if err := agg.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("decode counts: %w", err)
	}
	byName := make(map[string]int, len(counts))
	for i, c := range counts {
		byName[c.Project] = i
	}

	out := make([]models.ProjectSummary, 0, len(projects))
	for _, p := range projects {
		sum := models.ProjectSummary{Name: p.Name}
		if i, ok := byName[p.Name]; ok {
			sum.IssueCount = counts[i].Count
			sum.OpenCount = counts[i].Open
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *Store) CreateIssue(ctx context.Context, name string, issue *models.Issue) error {
	doc := issueDoc{
		ID:         primitive.NewObjectID(),
		Project:    name,
		Title:      issue.Title,
		Text:       issue.Text,
		CreatedBy:  issue.CreatedBy,
		AssignedTo: issue.AssignedTo,
		StatusText: issue.StatusText,
		Open:       issue.Open,
		CreatedOn:  issue.CreatedOn,
		UpdatedOn:  issue.UpdatedOn,
	}
	if _, err := s.issues.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}

	if err := s.appendToProject(ctx, name, doc.ID); err != nil {
		if _, derr := s.issues.DeleteOne(ctx, bson.M{"_id": doc.ID}); derr != nil {
			return fmt.Errorf("%w (cleanup: %v)", err, derr)
		}
		return err
	}
	issue.ID = doc.ID.Hex()
	return nil
}

func (s *Store) appendToProject(ctx context.Context, name string, id primitive.ObjectID) error {
	update := bson.M{"$push": bson.M{"issues": id}}
	opts := options.Update().SetUpsert(true)
	_, err := s.projects.UpdateOne(ctx, bson.M{"name": name}, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an upsert race; the project exists now.
		_, err = s.projects.UpdateOne(ctx, bson.M{"name": name}, update)
	}
	if err != nil {
		return fmt.Errorf("append to project: %w", err)
	}
	return nil
}

func (s *Store) FindIssue(ctx context.Context, name, id string) (*models.Issue, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	var doc issueDoc
	err = s.issues.FindOne(ctx, bson.M{"_id": oid, "project": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find issue: %w", err)
	}
	is := doc.toModel()
	return &is, nil
}

func (s *Store) UpdateIssue(ctx context.Context, name string, issue *models.Issue) error {
	oid, err := primitive.ObjectIDFromHex(issue.ID)
	if err != nil {
		return store.ErrNotFound
	}
	res, err := s.issues.UpdateOne(ctx, bson.M{"_id": oid, "project": name}, bson.M{"$set": bson.M{
		"issue_title": issue.Title,
		"issue_text":  issue.Text,
		"created_by":  issue.CreatedBy,
		"assigned_to": issue.AssignedTo,
		"status_text": issue.StatusText,
		"open":        issue.Open,
		"updated_on":  issue.UpdatedOn,
	}})
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteIssue(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrNotFound
	}
	var doc issueDoc
	err = s.issues.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	// The issue is gone at this point. A stale id left in the project is
	// skipped on read, so a failed detach is only logged.
	if _, err := s.projects.UpdateOne(ctx, bson.M{"name": doc.Project}, bson.M{"$pull": bson.M{"issues": oid}}); err != nil {
		log.Printf("mongostore: detach issue %s from project %q: %v", id, doc.Project, err)
	}
	return nil
}

func (s *Store) FilterIssues(ctx context.Context, name string, f models.IssueFilter) ([]models.Issue, error) {
	if f.Unmatchable {
		return []models.Issue{}, nil
	}
	p, err := s.findProject(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return []models.Issue{}, nil
	}
	if err != nil {
		return nil, err
	}

	filter := bson.M{}
	if f.ID != nil {
		oid, err := primitive.ObjectIDFromHex(*f.ID)
		if err != nil {
			return []models.Issue{}, nil
		}
		filter["_id"] = oid
	}
	for key, v := range map[string]*string{
		"issue_title": f.Title,
		"issue_text":  f.Text,
		"created_by":  f.CreatedBy,
		"assigned_to": f.AssignedTo,
		"status_text": f.StatusText,
	} {
		if v != nil {
			filter[key] = *v
		}
	}
	if f.Open != nil {
		filter["open"] = *f.Open
	}
	if f.CreatedOn != nil {
		filter["created_on"] = *f.CreatedOn
	}
	if f.UpdatedOn != nil {
		filter["updated_on"] = *f.UpdatedOn
	}
	return s.ordered(ctx, p, filter)
}

// ParseID accepts a 24 character hex ObjectID in either case.
func (s *Store) ParseID(raw string) (string, bool) {
	oid, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return "", false
	}
	return oid.Hex(), true
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Drop removes the whole database. Used by tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}
