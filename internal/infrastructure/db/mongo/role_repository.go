package mongo

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lazyrag/authplane/internal/core/domain"
)

// RoleRepository stores roles with their granted permission-group names
// embedded in the role document.
type RoleRepository struct {
	coll   *mongo.Collection
	groups *mongo.Collection
	ids    counters
}

func NewRoleRepository(db *mongo.Database) *RoleRepository {
	return &RoleRepository{
		coll:   db.Collection(rolesCollection),
		groups: db.Collection(groupsCollection),
		ids:    newCounters(db),
	}
}

type roleDoc struct {
	ID          int64    `bson:"_id"`
	Name        string   `bson:"name"`
	BuiltIn     bool     `bson:"built_in"`
	Permissions []string `bson:"permissions"`
}

func (d roleDoc) toDomain() *domain.Role {
	perms := append([]string{}, d.Permissions...)
	sort.Strings(perms)
	return &domain.Role{ID: d.ID, Name: d.Name, BuiltIn: d.BuiltIn, Permissions: perms}
}

func (r *RoleRepository) Create(ctx context.Context, name string, builtIn bool) (*domain.Role, error) {
	id, err := r.ids.next(ctx, rolesCollection)
	if err != nil {
		return nil, err
	}
	doc := roleDoc{ID: id, Name: name, BuiltIn: builtIn, Permissions: []string{}}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrRoleExists
		}
		return nil, fmt.Errorf("insert role: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *RoleRepository) FindByID(ctx context.Context, id int64) (*domain.Role, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *RoleRepository) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.findOne(ctx, bson.M{"name": name})
}

func (r *RoleRepository) findOne(ctx context.Context, filter bson.M) (*domain.Role, error) {
	var doc roleDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if notFound(err) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *RoleRepository) List(ctx context.Context) ([]*domain.Role, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	var docs []roleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	out := make([]*domain.Role, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *RoleRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrRoleNotFound
	}
	return nil
}

func (r *RoleRepository) Permissions(ctx context.Context, roleID int64) ([]string, error) {
	role, err := r.FindByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return role.Permissions, nil
}

func (r *RoleRepository) SetPermissions(ctx context.Context, roleID int64, groups []string) error {
	known, err := r.knownGroups(ctx, groups)
	if err != nil {
		return err
	}
	return r.update(ctx, roleID, bson.M{"$set": bson.M{"permissions": known}})
}

func (r *RoleRepository) Grant(ctx context.Context, roleID int64, groups []string) error {
	known, err := r.knownGroups(ctx, groups)
	if err != nil {
		return err
	}
	return r.update(ctx, roleID, bson.M{"$addToSet": bson.M{"permissions": bson.M{"$each": known}}})
}

func (r *RoleRepository) update(ctx context.Context, roleID int64, change bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": roleID}, change)
	if err != nil {
		return fmt.Errorf("update role permissions: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrRoleNotFound
	}
	return nil
}

// knownGroups filters names down to existing permission groups, sorted.
func (r *RoleRepository) knownGroups(ctx context.Context, names []string) ([]string, error) {
	known := []string{}
	if len(names) == 0 {
		return known, nil
	}
	cur, err := r.groups.Find(ctx, bson.M{"name": bson.M{"$in": names}})
	if err != nil {
		return nil, fmt.Errorf("find permission groups: %w", err)
	}
	var docs []groupDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode permission groups: %w", err)
	}
	for _, d := range docs {
		known = append(known, d.Name)
	}
	sort.Strings(known)
	return known, nil
}

func (r *RoleRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count roles: %w", err)
	}
	return n, nil
}

type PermissionGroupRepository struct {
	coll *mongo.Collection
	ids  counters
}

func NewPermissionGroupRepository(db *mongo.Database) *PermissionGroupRepository {
	return &PermissionGroupRepository{coll: db.Collection(groupsCollection), ids: newCounters(db)}
}

type groupDoc struct {
	ID   int64  `bson:"_id"`
	Name string `bson:"name"`
}

func (r *PermissionGroupRepository) List(ctx context.Context) ([]*domain.PermissionGroup, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list permission groups: %w", err)
	}
	var docs []groupDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode permission groups: %w", err)
	}
	out := make([]*domain.PermissionGroup, 0, len(docs))
	for _, d := range docs {
		out = append(out, &domain.PermissionGroup{ID: d.ID, Name: d.Name})
	}
	return out, nil
}

// Ensure returns the named group, creating it when missing.
func (r *PermissionGroupRepository) Ensure(ctx context.Context, name string) (*domain.PermissionGroup, error) {
	var doc groupDoc
	err := r.coll.FindOne(ctx, bson.M{"name": name}).Decode(&doc)
	if err == nil {
		return &domain.PermissionGroup{ID: doc.ID, Name: doc.Name}, nil
	}
	if !notFound(err) {
		return nil, fmt.Errorf("find permission group: %w", err)
	}

	id, err := r.ids.next(ctx, groupsCollection)
	if err != nil {
		return nil, err
	}
	doc = groupDoc{ID: id, Name: name}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// lost a race with another instance seeding the same group
			if err := r.coll.FindOne(ctx, bson.M{"name": name}).Decode(&doc); err != nil {
				return nil, fmt.Errorf("find permission group: %w", err)
			}
			return &domain.PermissionGroup{ID: doc.ID, Name: doc.Name}, nil
		}
		return nil, fmt.Errorf("insert permission group: %w", err)
	}
	return &domain.PermissionGroup{ID: doc.ID, Name: doc.Name}, nil
}
