package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"patrol/internal/template/models"
	id "patrol/pkg/domain"
	"patrol/pkg/platform/sentinel"
)

// Mongo persists templates as documents, matching the document-store shape of
// the surrounding system. Lifecycle transitions use status-guarded
// findOneAndUpdate operations; the publish invariant runs inside a session
// transaction (requires a replica set, as Mongo transactions do).
type Mongo struct {
	client    *mongo.Client
	templates *mongo.Collection
}

// NewMongo constructs a MongoDB-backed template store.
func NewMongo(client *mongo.Client, database string) *Mongo {
	return &Mongo{
		client:    client,
		templates: client.Database(database).Collection("form_templates"),
	}
}

// EnsureIndexes creates the lineage/version and one-published-per-lineage
// indexes.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := s.templates.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "lineage_id", Value: 1}, {Key: "version", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "lineage_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "status", Value: string(models.StatusPublished)}}),
		},
	})
	if err != nil {
		return fmt.Errorf("ensure template indexes: %w", err)
	}
	return nil
}

func (s *Mongo) Create(ctx context.Context, t *models.FormTemplate) error {
	if _, err := s.templates.InsertOne(ctx, templateDoc(t)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *Mongo) Get(ctx context.Context, templateID id.TemplateID) (*models.FormTemplate, error) {
	var doc templateDocument
	err := s.templates.FindOne(ctx, bson.D{{Key: "_id", Value: templateID.String()}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return doc.toModel()
}

func (s *Mongo) List(ctx context.Context) ([]*models.FormTemplate, error) {
	return s.listFilter(ctx, bson.D{})
}

func (s *Mongo) ListPublished(ctx context.Context) ([]*models.FormTemplate, error) {
	return s.listFilter(ctx, bson.D{{Key: "status", Value: string(models.StatusPublished)}})
}

func (s *Mongo) listFilter(ctx context.Context, filter bson.D) ([]*models.FormTemplate, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.templates.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*models.FormTemplate
	for cursor.Next(ctx) {
		var doc templateDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode template: %w", err)
		}
		t, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, cursor.Err()
}

func (s *Mongo) NextVersion(ctx context.Context, lineageID id.LineageID) (int, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	var doc templateDocument
	err := s.templates.FindOne(ctx, bson.D{{Key: "lineage_id", Value: lineageID.String()}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("next template version: %w", err)
	}
	return doc.Version + 1, nil
}

func (s *Mongo) UpdateDraft(ctx context.Context, t *models.FormTemplate) error {
	res, err := s.templates.UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: t.ID.String()},
			{Key: "status", Value: string(models.StatusDraft)},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "name", Value: t.Name},
			{Key: "description", Value: t.Description},
			{Key: "scope", Value: scopeDoc(t.Scope)},
			{Key: "questions", Value: templateDoc(t).Questions},
			{Key: "updated_at", Value: t.UpdatedAt},
			{Key: "updated_by", Value: t.UpdatedBy},
		}}},
	)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.classifyMiss(ctx, t.ID, sentinel.ErrImmutable)
	}
	return nil
}

func (s *Mongo) Delete(ctx context.Context, templateID id.TemplateID) error {
	res, err := s.templates.DeleteOne(ctx, bson.D{{Key: "_id", Value: templateID.String()}})
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if res.DeletedCount == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PublishExclusive archives the lineage's published sibling and flips the
// draft to published inside one session transaction.
func (s *Mongo) PublishExclusive(ctx context.Context, templateID id.TemplateID, scope *models.Scope, now time.Time, actor string) (*models.FormTemplate, *models.FormTemplate, error) {
	session, err := s.client.StartSession()
	if err != nil {
		return nil, nil, fmt.Errorf("start publish session: %w", err)
	}
	defer session.EndSession(ctx)

	var published, archived *models.FormTemplate
	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		var draftDoc templateDocument
		err := s.templates.FindOne(sessCtx, bson.D{{Key: "_id", Value: templateID.String()}}).Decode(&draftDoc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load draft: %w", err)
		}
		if models.Status(draftDoc.Status) != models.StatusDraft {
			return nil, sentinel.ErrInvalidState
		}

		archiveSet := bson.D{{Key: "status", Value: string(models.StatusArchived)}, {Key: "updated_at", Value: now}}
		if actor != "" {
			archiveSet = append(archiveSet, bson.E{Key: "updated_by", Value: actor})
		}
		var siblingDoc templateDocument
		err = s.templates.FindOneAndUpdate(sessCtx,
			bson.D{
				{Key: "lineage_id", Value: draftDoc.LineageID},
				{Key: "status", Value: string(models.StatusPublished)},
			},
			bson.D{{Key: "$set", Value: archiveSet}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&siblingDoc)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			// no published sibling; nothing to archive
		case err != nil:
			return nil, fmt.Errorf("archive published sibling: %w", err)
		default:
			if archived, err = siblingDoc.toModel(); err != nil {
				return nil, err
			}
		}

		publishSet := bson.D{{Key: "status", Value: string(models.StatusPublished)}, {Key: "updated_at", Value: now}}
		if scope != nil {
			publishSet = append(publishSet, bson.E{Key: "scope", Value: scopeDoc(*scope)})
		}
		if actor != "" {
			publishSet = append(publishSet, bson.E{Key: "updated_by", Value: actor})
		}
		var publishedDoc templateDocument
		err = s.templates.FindOneAndUpdate(sessCtx,
			bson.D{
				{Key: "_id", Value: templateID.String()},
				{Key: "status", Value: string(models.StatusDraft)},
			},
			bson.D{{Key: "$set", Value: publishSet}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&publishedDoc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrInvalidState
		}
		// The one-published-per-lineage partial index trips when a
		// concurrent publish for the same lineage wins the race.
		if mongo.IsDuplicateKeyError(err) {
			return nil, sentinel.ErrConflict
		}
		if err != nil {
			return nil, fmt.Errorf("publish draft: %w", err)
		}
		if published, err = publishedDoc.toModel(); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		// Commit can also surface the index violation.
		if mongo.IsDuplicateKeyError(err) {
			return nil, nil, sentinel.ErrConflict
		}
		return nil, nil, err
	}
	return published, archived, nil
}

// Archive flips a published template to archived with a status guard.
func (s *Mongo) Archive(ctx context.Context, templateID id.TemplateID, now time.Time, actor string) (*models.FormTemplate, error) {
	set := bson.D{{Key: "status", Value: string(models.StatusArchived)}, {Key: "updated_at", Value: now}}
	if actor != "" {
		set = append(set, bson.E{Key: "updated_by", Value: actor})
	}
	var doc templateDocument
	err := s.templates.FindOneAndUpdate(ctx,
		bson.D{
			{Key: "_id", Value: templateID.String()},
			{Key: "status", Value: string(models.StatusPublished)},
		},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.classifyMiss(ctx, templateID, sentinel.ErrInvalidState)
	}
	if err != nil {
		return nil, fmt.Errorf("archive template: %w", err)
	}
	return doc.toModel()
}

func (s *Mongo) classifyMiss(ctx context.Context, templateID id.TemplateID, wrongState error) error {
	err := s.templates.FindOne(ctx, bson.D{{Key: "_id", Value: templateID.String()}}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("classify template state: %w", err)
	}
	return wrongState
}

// templateDocument is the persisted shape. IDs are stored as strings so the
// documents stay readable in shells and exports (the UUID-backed domain types
// would otherwise serialize as raw byte arrays).
type templateDocument struct {
	ID          string             `bson:"_id"`
	LineageID   string             `bson:"lineage_id"`
	Name        string             `bson:"name"`
	Description string             `bson:"description,omitempty"`
	Version     int                `bson:"version"`
	Status      string             `bson:"status"`
	Scope       scopeDocument      `bson:"scope"`
	Questions   []questionDocument `bson:"questions"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
	CreatedBy   string             `bson:"created_by,omitempty"`
	UpdatedBy   string             `bson:"updated_by,omitempty"`
}

type scopeDocument struct {
	Kind     string   `bson:"kind"`
	Formats  []string `bson:"formats,omitempty"`
	StoreIDs []string `bson:"store_ids,omitempty"`
}

type questionDocument struct {
	ID          string           `bson:"id"`
	Type        string           `bson:"type"`
	Title       string           `bson:"title"`
	Description string           `bson:"description,omitempty"`
	Required    bool             `bson:"required"`
	Order       int              `bson:"order"`
	Options     []models.Option  `bson:"options,omitempty"`
	Config      configDocument   `bson:"config"`
}

type configDocument struct {
	Weight          float64  `bson:"weight"`
	ExpectedBool    *bool    `bson:"expected_bool,omitempty"`
	ExpectedOption  string   `bson:"expected_option,omitempty"`
	ExpectedOptions []string `bson:"expected_options,omitempty"`
	Min             *float64 `bson:"min,omitempty"`
	Max             *float64 `bson:"max,omitempty"`
	MinPhotos       *int     `bson:"min_photos,omitempty"`
	MaxPhotos       *int     `bson:"max_photos,omitempty"`
	AllowPartial    bool     `bson:"allow_partial,omitempty"`
}

func templateDoc(t *models.FormTemplate) templateDocument {
	doc := templateDocument{
		ID:          t.ID.String(),
		LineageID:   t.LineageID.String(),
		Name:        t.Name,
		Description: t.Description,
		Version:     t.Version,
		Status:      string(t.Status),
		Scope:       scopeDoc(t.Scope),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CreatedBy:   t.CreatedBy,
		UpdatedBy:   t.UpdatedBy,
	}
	doc.Questions = make([]questionDocument, len(t.Questions))
	for i, q := range t.Questions {
		doc.Questions[i] = questionDoc(q)
	}
	return doc
}

func scopeDoc(s models.Scope) scopeDocument {
	doc := scopeDocument{Kind: string(s.Kind)}
	for _, f := range s.Formats {
		doc.Formats = append(doc.Formats, string(f))
	}
	for _, sid := range s.StoreIDs {
		doc.StoreIDs = append(doc.StoreIDs, sid.String())
	}
	return doc
}

func questionDoc(q models.Question) questionDocument {
	return questionDocument{
		ID:          q.ID.String(),
		Type:        string(q.Type),
		Title:       q.Title,
		Description: q.Description,
		Required:    q.Required,
		Order:       q.Order,
		Options:     q.Options,
		Config: configDocument{
			Weight:          q.Config.Weight,
			ExpectedBool:    q.Config.ExpectedBool,
			ExpectedOption:  q.Config.ExpectedOption,
			ExpectedOptions: q.Config.ExpectedOptions,
			Min:             q.Config.Min,
			Max:             q.Config.Max,
			MinPhotos:       q.Config.MinPhotos,
			MaxPhotos:       q.Config.MaxPhotos,
			AllowPartial:    q.Config.AllowPartial,
		},
	}
}

func (d templateDocument) toModel() (*models.FormTemplate, error) {
	templateID, err := id.ParseTemplateID(d.ID)
	if err != nil {
		return nil, err
	}
	lineageID, err := id.ParseLineageID(d.LineageID)
	if err != nil {
		return nil, err
	}
	scope := models.Scope{Kind: models.ScopeKind(d.Scope.Kind)}
	for _, f := range d.Scope.Formats {
		scope.Formats = append(scope.Formats, id.StoreFormat(f))
	}
	for _, sidStr := range d.Scope.StoreIDs {
		sid, err := id.ParseStoreID(sidStr)
		if err != nil {
			return nil, err
		}
		scope.StoreIDs = append(scope.StoreIDs, sid)
	}
	questions := make([]models.Question, len(d.Questions))
	for i, qd := range d.Questions {
		qid, err := id.ParseQuestionID(qd.ID)
		if err != nil {
			return nil, err
		}
		questions[i] = models.Question{
			ID:          qid,
			Type:        models.QuestionType(qd.Type),
			Title:       qd.Title,
			Description: qd.Description,
			Required:    qd.Required,
			Order:       qd.Order,
			Options:     qd.Options,
			Config: models.Config{
				Weight:          qd.Config.Weight,
				ExpectedBool:    qd.Config.ExpectedBool,
				ExpectedOption:  qd.Config.ExpectedOption,
				ExpectedOptions: qd.Config.ExpectedOptions,
				Min:             qd.Config.Min,
				Max:             qd.Config.Max,
				MinPhotos:       qd.Config.MinPhotos,
				MaxPhotos:       qd.Config.MaxPhotos,
				AllowPartial:    qd.Config.AllowPartial,
			},
		}
	}
	return &models.FormTemplate{
		ID:          templateID,
		LineageID:   lineageID,
		Name:        d.Name,
		Description: d.Description,
		Version:     d.Version,
		Status:      models.Status(d.Status),
		Scope:       scope,
		Questions:   questions,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		CreatedBy:   d.CreatedBy,
		UpdatedBy:   d.UpdatedBy,
	}, nil
}
