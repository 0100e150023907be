package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"survey-service/internal/domain"
)

type submissionDocument struct {
	ID         string         `bson:"_id"`
	SurveyID   string         `bson:"surveyId"`
	UserID     string         `bson:"userId,omitempty"`
	Answers    map[string]any `bson:"answers"`
	ArticleRef string         `bson:"articleRef,omitempty"`
	CreatedAt  time.Time      `bson:"createdAt"`
}

// SubmissionStore keeps submissions in a MongoDB collection.
type SubmissionStore struct {
	collection *mongo.Collection
}

func NewSubmissionStore(client *mongo.Client, database string) *SubmissionStore {
	return &SubmissionStore{collection: client.Database(database).Collection("submissions")}
}

// EnsureIndexes creates the indexes the queries below rely on.
func (s *SubmissionStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "surveyId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "surveyId", Value: 1}, {Key: "userId", Value: 1}}},
	})
	return err
}

func (s *SubmissionStore) Create(ctx context.Context, sub domain.Submission) error {
	doc := submissionDocument{
		ID:         sub.ID,
		SurveyID:   sub.SurveyID,
		UserID:     sub.UserID,
		Answers:    sub.Answers,
		ArticleRef: sub.ArticleRef,
		CreatedAt:  sub.CreatedAt,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *SubmissionStore) HasUserSubmitted(ctx context.Context, surveyID, userID string) (bool, error) {
	n, err := s.collection.CountDocuments(ctx,
		bson.M{"surveyId": surveyID, "userId": userID},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("count submissions: %w", err)
	}
	return n > 0, nil
}

func (s *SubmissionStore) List(ctx context.Context, surveyID string) ([]domain.Submission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"surveyId": surveyID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find submissions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []submissionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}
	out := make([]domain.Submission, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.Submission{
			ID:         doc.ID,
			SurveyID:   doc.SurveyID,
			UserID:     doc.UserID,
			Answers:    normalizeAnswers(doc.Answers),
			ArticleRef: doc.ArticleRef,
			CreatedAt:  doc.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func (s *SubmissionStore) AttachArticle(ctx context.Context, submissionID, articleRef string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": submissionID},
		bson.M{"$set": bson.M{"articleRef": articleRef}},
	)
	if err != nil {
		return fmt.Errorf("attach article: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrSubmissionNotFound
	}
	return nil
}

// Ping checks the connection.
func (s *SubmissionStore) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, nil)
}

// normalizeAnswers converts BSON arrays back to plain string slices.
func normalizeAnswers(answers map[string]any) map[string]any {
	out := make(map[string]any, len(answers))
	for k, v := range answers {
		if arr, ok := v.(primitive.A); ok {
			items := make([]string, 0, len(arr))
			for _, item := range arr {
				items = append(items, fmt.Sprint(item))
			}
			out[k] = items
			continue
		}
		out[k] = v
	}
	return out
}
