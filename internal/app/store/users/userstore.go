// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/asigbo/portal/internal/app/system/normalize"
	"github.com/asigbo/portal/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateUser is returned when the email or code already exists.
	ErrDuplicateUser = errors.New("a user with this email or code already exists")
)

// GetByID loads a user by ObjectID. Returns mongo.ErrNoDocuments if absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by normalized email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetManyByID loads the users for a set of ids. Missing ids are simply
// absent from the result; callers that need all of them check the length.
func (s *Store) GetManyByID(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Create inserts a new user after normalizing fields. New users start
// unregistered (no password hash) and with an empty service-hours ledger.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Name = normalize.Name(u.Name)
	u.NameCI = text.Fold(u.Name)
	u.Lastname = normalize.Name(u.Lastname)
	u.LastnameCI = text.Fold(u.Lastname)
	u.Email = normalize.Email(u.Email)
	u.PasswordHash = nil
	u.ServiceHours = models.ServiceHours{}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateUser
		}
		return models.User{}, err
	}
	return u, nil
}

// CreateMany inserts a batch of users (bulk import). All-or-nothing: the
// insert is ordered, so the first duplicate aborts and the caller's
// transaction rolls back prior rows.
func (s *Store) CreateMany(ctx context.Context, users []models.User) ([]models.User, error) {
	if len(users) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(users))
	for i := range users {
		u := &users[i]
		u.ID = primitive.NewObjectID()
		u.Name = normalize.Name(u.Name)
		u.NameCI = text.Fold(u.Name)
		u.Lastname = normalize.Name(u.Lastname)
		u.LastnameCI = text.Fold(u.Lastname)
		u.Email = normalize.Email(u.Email)
		u.PasswordHash = nil
		u.ServiceHours = models.ServiceHours{}
		u.CreatedAt = now
		u.UpdatedAt = now
		docs = append(docs, *u)
	}
	if _, err := s.c.InsertMany(ctx, docs); err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}
	return users, nil
}

// ProfileUpdate holds the editable profile fields. Nil pointers leave the
// stored value unchanged.
type ProfileUpdate struct {
	Name       *string
	Lastname   *string
	Email      *string
	Promotion  *int
	Career     *string
	Sex        *string
	University *string
	Campus     *string
}

// UpdateProfile applies a partial profile edit and returns the updated user.
// The caller is responsible for running the propagator when mirrored fields
// (name, lastname, promotion) changed.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		n := normalize.Name(*upd.Name)
		set["name"] = n
		set["name_ci"] = text.Fold(n)
	}
	if upd.Lastname != nil {
		n := normalize.Name(*upd.Lastname)
		set["lastname"] = n
		set["lastname_ci"] = text.Fold(n)
	}
	if upd.Email != nil {
		set["email"] = normalize.Email(*upd.Email)
	}
	if upd.Promotion != nil {
		set["promotion"] = *upd.Promotion
	}
	if upd.Career != nil {
		set["career"] = *upd.Career
	}
	if upd.Sex != nil {
		set["sex"] = *upd.Sex
	}
	if upd.University != nil {
		set["university"] = *upd.University
	}
	if upd.Campus != nil {
		set["campus"] = *upd.Campus
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}
	return &u, nil
}

// SetPassword stores a bcrypt hash, completing registration for new users.
func (s *Store) SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"password_hash": hash, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetBlocked toggles the blocked flag.
func (s *Store) SetBlocked(ctx context.Context, id primitive.ObjectID, blocked bool) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"blocked": blocked, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetHasImage records whether the user has a stored profile image.
func (s *Store) SetHasImage(ctx context.Context, id primitive.ObjectID, hasImage bool) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"has_image": hasImage, "updated_at": time.Now().UTC()},
	})
	return err
}

// AddRole adds a role tag (set semantics). Returns whether the set changed.
func (s *Store) AddRole(ctx context.Context, id primitive.ObjectID, role string) (bool, error) {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$addToSet": bson.M{"roles": role}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, mongo.ErrNoDocuments
	}
	return res.ModifiedCount > 0, nil
}

// RemoveRole removes a role tag. Returns whether the set changed.
func (s *Store) RemoveRole(ctx context.Context, id primitive.ObjectID, role string) (bool, error) {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$pull": bson.M{"roles": role}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, mongo.ErrNoDocuments
	}
	return res.ModifiedCount > 0, nil
}

// Delete removes a user document. Responsibility/assignment checks happen in
// the calling workflow, not here.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Search    string // folded prefix match on name or lastname
	Promotion int    // 0 means any
	Role      string // "" means any
	Blocked   *bool
}

// List returns users matching the filter, ordered by lastname, name.
func (s *Store) List(ctx context.Context, f ListFilter, page, pageSize int64) ([]models.User, error) {
	filter := bson.M{}
	if f.Search != "" {
		folded := text.Fold(f.Search)
		filter["$or"] = bson.A{
			bson.M{"name_ci": bson.M{"$regex": "^" + folded}},
			bson.M{"lastname_ci": bson.M{"$regex": "^" + folded}},
		}
	}
	if f.Promotion != 0 {
		filter["promotion"] = f.Promotion
	}
	if f.Role != "" {
		filter["roles"] = f.Role
	}
	if f.Blocked != nil {
		filter["blocked"] = *f.Blocked
	}

	opts := options.Find().SetSort(bson.D{{Key: "lastname_ci", Value: 1}, {Key: "name_ci", Value: 1}})
	if pageSize > 0 {
		opts.SetSkip(page * pageSize).SetLimit(pageSize)
	}
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListByTarget returns unblocked users whose promotion passes a year/group
// filter, the same vocabulary activity eligibility uses. An empty filter
// selects nobody.
func (s *Store) ListByTarget(ctx context.Context, filter []string, bounds *models.Promotion) ([]models.User, error) {
	var or bson.A
	for _, f := range filter {
		switch f {
		case models.GroupStudent:
			or = append(or, bson.M{"promotion": bson.M{"$gte": bounds.FirstYear, "$lte": bounds.LastYear}})
		case models.GroupGraduate:
			or = append(or,
				bson.M{"promotion": bson.M{"$lt": bounds.FirstYear}},
				bson.M{"promotion": bson.M{"$gt": bounds.LastYear}})
		default:
			if y, err := strconv.Atoi(f); err == nil {
				or = append(or, bson.M{"promotion": y})
			}
		}
	}
	if len(or) == 0 {
		return nil, nil
	}

	cur, err := s.c.Find(ctx, bson.M{"$or": or, "blocked": false})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
