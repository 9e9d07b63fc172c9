package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"patrol/internal/compliance"
	"patrol/internal/visit/models"
	id "patrol/pkg/domain"
	"patrol/pkg/platform/sentinel"
)

// Mongo persists visit logs as documents. The collection only ever sees
// inserts and reads; recorded history is never updated in place.
type Mongo struct {
	visits *mongo.Collection
}

// NewMongo constructs a MongoDB-backed visit store.
func NewMongo(client *mongo.Client, database string) *Mongo {
	return &Mongo{visits: client.Database(database).Collection("visit_logs")}
}

// EnsureIndexes creates the store/visit-date listing index.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := s.visits.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "store_id", Value: 1}, {Key: "visit_date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("ensure visit indexes: %w", err)
	}
	return nil
}

func (s *Mongo) Create(ctx context.Context, v *models.VisitLog) error {
	if _, err := s.visits.InsertOne(ctx, visitDoc(v)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

func (s *Mongo) Get(ctx context.Context, visitID id.VisitID) (*models.VisitLog, error) {
	var doc visitDocument
	err := s.visits.FindOne(ctx, bson.D{{Key: "_id", Value: visitID.String()}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get visit: %w", err)
	}
	return doc.toModel()
}

func (s *Mongo) ListByStore(ctx context.Context, storeID id.StoreID) ([]*models.VisitLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "visit_date", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := s.visits.Find(ctx, bson.D{{Key: "store_id", Value: storeID.String()}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*models.VisitLog
	for cursor.Next(ctx) {
		var doc visitDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode visit: %w", err)
		}
		v, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, cursor.Err()
}

// visitDocument is the BSON shape; ids travel as strings.
type visitDocument struct {
	ID              string             `bson:"_id"`
	StoreID         string             `bson:"store_id"`
	TemplateID      string             `bson:"form_template_id"`
	RouteID         string             `bson:"route_id,omitempty"`
	AssigneeID      string             `bson:"assignee_id,omitempty"`
	Status          string             `bson:"status"`
	VisitDate       time.Time          `bson:"visit_date"`
	ComplianceScore float64            `bson:"compliance_score"`
	Summary         compliance.Summary `bson:"summary"`
	Answers         []answerDocument   `bson:"answers"`
	CreatedAt       time.Time          `bson:"created_at"`
	CreatedBy       string             `bson:"created_by,omitempty"`
}

type answerDocument struct {
	QuestionID  string   `bson:"question_id"`
	ValueKind   string   `bson:"value_kind"`
	ValueStr    string   `bson:"value_str,omitempty"`
	ValueNum    float64  `bson:"value_num,omitempty"`
	ValueBool   bool     `bson:"value_bool,omitempty"`
	ValueList   []string `bson:"value_list,omitempty"`
	Attachments []string `bson:"attachments,omitempty"`
	Status      string   `bson:"compliance_status"`
}

func visitDoc(v *models.VisitLog) visitDocument {
	doc := visitDocument{
		ID:              v.ID.String(),
		StoreID:         v.StoreID.String(),
		TemplateID:      v.TemplateID.String(),
		Status:          string(v.Status),
		VisitDate:       v.VisitDate,
		ComplianceScore: v.ComplianceScore,
		Summary:         v.Summary,
		Answers:         make([]answerDocument, len(v.Answers)),
		CreatedAt:       v.CreatedAt,
		CreatedBy:       v.CreatedBy,
	}
	if v.RouteID != nil {
		doc.RouteID = v.RouteID.String()
	}
	if v.AssigneeID != nil {
		doc.AssigneeID = v.AssigneeID.String()
	}
	for i, ans := range v.Answers {
		doc.Answers[i] = answerDoc(ans)
	}
	return doc
}

func answerDoc(a models.Answer) answerDocument {
	doc := answerDocument{
		QuestionID:  a.QuestionID.String(),
		ValueKind:   string(a.Value.Kind()),
		Attachments: a.Attachments,
		Status:      string(a.Status),
	}
	switch a.Value.Kind() {
	case compliance.KindString:
		doc.ValueStr, _ = a.Value.Str()
	case compliance.KindNumber:
		doc.ValueNum, _ = a.Value.Num()
	case compliance.KindBool:
		doc.ValueBool, _ = a.Value.Bool()
	case compliance.KindList:
		doc.ValueList, _ = a.Value.List()
	}
	return doc
}

func (d visitDocument) toModel() (*models.VisitLog, error) {
	visitID, err := id.ParseVisitID(d.ID)
	if err != nil {
		return nil, err
	}
	storeID, err := id.ParseStoreID(d.StoreID)
	if err != nil {
		return nil, err
	}
	templateID, err := id.ParseTemplateID(d.TemplateID)
	if err != nil {
		return nil, err
	}
	v := &models.VisitLog{
		ID:              visitID,
		StoreID:         storeID,
		TemplateID:      templateID,
		Status:          models.VisitStatus(d.Status),
		VisitDate:       d.VisitDate,
		ComplianceScore: d.ComplianceScore,
		Summary:         d.Summary,
		Answers:         make([]models.Answer, len(d.Answers)),
		CreatedAt:       d.CreatedAt,
		CreatedBy:       d.CreatedBy,
	}
	if d.RouteID != "" {
		routeID, err := id.ParseRouteID(d.RouteID)
		if err != nil {
			return nil, err
		}
		v.RouteID = &routeID
	}
	if d.AssigneeID != "" {
		assigneeID, err := id.ParseUserID(d.AssigneeID)
		if err != nil {
			return nil, err
		}
		v.AssigneeID = &assigneeID
	}
	for i, ans := range d.Answers {
		parsed, err := ans.toModel()
		if err != nil {
			return nil, err
		}
		v.Answers[i] = parsed
	}
	return v, nil
}

func (d answerDocument) toModel() (models.Answer, error) {
	questionID, err := id.ParseQuestionID(d.QuestionID)
	if err != nil {
		return models.Answer{}, err
	}
	var value compliance.Value
	switch compliance.ValueKind(d.ValueKind) {
	case compliance.KindString:
		value = compliance.StringValue(d.ValueStr)
	case compliance.KindNumber:
		value = compliance.NumberValue(d.ValueNum)
	case compliance.KindBool:
		value = compliance.BoolValue(d.ValueBool)
	case compliance.KindList:
		value = compliance.ListValue(d.ValueList)
	default:
		value = compliance.NullValue()
	}
	return models.Answer{
		QuestionID:  questionID,
		Value:       value,
		Attachments: d.Attachments,
		Status:      compliance.Status(d.Status),
	}, nil
}
