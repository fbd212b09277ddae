package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"usermgmt/internal/domain/entity"
	domainerrors "usermgmt/internal/domain/errors"
	"usermgmt/internal/domain/repository"
)

const emailIndexName = "uniq_email"

// userDocument mirrors a document in the users collection.
type userDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Name       string             `bson:"name"`
	Email      string             `bson:"email"`
	Credential credentialDocument `bson:"credential"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
}

type credentialDocument struct {
	Algorithm string `bson:"algorithm"`
	Salt      string `bson:"salt"`
	Hash      string `bson:"hash"`
	N         int    `bson:"n"`
	R         int    `bson:"r"`
	P         int    `bson:"p"`
	KeyLength int    `bson:"key_length"`
}

// userRepository implements repository.UserRepository on a MongoDB collection.
type userRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewUserRepository is the constructor for userRepository.
func NewUserRepository(coll *mongo.Collection) repository.UserRepository {
	return &userRepository{
		coll: coll,
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// EnsureIndexes creates the unique email index if it does not exist yet.
func EnsureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(emailIndexName),
	})

	return errors.Wrap(err, "failed to create email index")
}

// FindByID retrieves a single user by its hex ObjectID. A malformed ID cannot exist and reads as not found.
func (repo *userRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrUserNotFound
	}

	return repo.findOne(ctx, bson.M{"_id": oid}, "failed to find user by id")
}

// FindByEmail retrieves a single user by normalized email.
func (repo *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return repo.findOne(ctx, bson.M{"email": email}, "failed to find user by email")
}

func (repo *userRepository) findOne(ctx context.Context, filter bson.M, msg string) (*entity.User, error) {
	var doc userDocument
	if err := repo.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrUserNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, msg)
	}

	return toUserDomain(&doc), nil
}

// List returns all users ordered by creation time.
func (repo *userRepository) List(ctx context.Context) ([]*entity.User, error) {
	cursor, err := repo.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to list users")
	}

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to decode users")
	}

	users := make([]*entity.User, 0, len(docs))
	for i := range docs {
		users = append(users, toUserDomain(&docs[i]))
	}

	return users, nil
}

// Create inserts a new user document and assigns its ObjectID.
func (repo *userRepository) Create(ctx context.Context, user *entity.User) error {
	now := repo.now()
	doc := fromUserDomain(user)
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainerrors.ErrUserAlreadyExists.WrapMessage("email already exists")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create user")
	}

	user.ID = doc.ID.Hex()
	user.CreatedAt = now
	user.UpdatedAt = now

	return nil
}

// Update sets the patched fields atomically and returns the document after the update.
func (repo *userRepository) Update(ctx context.Context, id string, patch entity.UserPatch) (*entity.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrUserNotFound
	}

	set := bson.M{"updated_at": repo.now()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.Credential != nil {
		set["credential"] = fromCredentialDomain(patch.Credential)
	}

	var doc userDocument
	err = repo.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrUserNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, domainerrors.ErrUserAlreadyExists.WrapMessage("email already exists")
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to update user")
	}

	return toUserDomain(&doc), nil
}

// Delete removes the user document with the given ID.
func (repo *userRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return repository.ErrUserNotFound
	}

	result, err := repo.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to delete user")
	}
	if result.DeletedCount == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}

// --- Mapper Functions ---

func toUserDomain(doc *userDocument) *entity.User {
	if doc == nil {
		return nil
	}

	return &entity.User{
		ID:    doc.ID.Hex(),
		Name:  doc.Name,
		Email: doc.Email,
		Credential: &entity.Credential{
			Algorithm: doc.Credential.Algorithm,
			Salt:      doc.Credential.Salt,
			Hash:      doc.Credential.Hash,
			Params: entity.ScryptParams{
				N:         doc.Credential.N,
				R:         doc.Credential.R,
				P:         doc.Credential.P,
				KeyLength: doc.Credential.KeyLength,
			},
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func fromUserDomain(user *entity.User) *userDocument {
	doc := &userDocument{
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if user.Credential != nil {
		doc.Credential = fromCredentialDomain(user.Credential)
	}

	return doc
}

func fromCredentialDomain(c *entity.Credential) credentialDocument {
	return credentialDocument{
		Algorithm: c.Algorithm,
		Salt:      c.Salt,
		Hash:      c.Hash,
		N:         c.Params.N,
		R:         c.Params.R,
		P:         c.Params.P,
		KeyLength: c.Params.KeyLength,
	}
}
