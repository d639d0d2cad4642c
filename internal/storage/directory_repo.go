package storage

import (
	"context"
	"strings"

	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/model"
)

// ProjectRepo provides operations for Project entities.
type ProjectRepo struct {
	db *DB
}

// NewProjectRepo creates a new project repository.
func NewProjectRepo(db *DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

// Create stores a project under its SID, replacing any previous one.
func (r *ProjectRepo) Create(project *model.Project) error {
	project.Key = model.GenerateProjectKey(project.SID)
	return r.db.Set(project)
}

// Get retrieves a project by SID.
func (r *ProjectRepo) Get(sid string) (*model.Project, error) {
	project := &model.Project{}
	if err := r.db.Get(model.GenerateProjectKey(sid), project); err != nil {
		return nil, entityNotFound(err, errors.ErrProjectNotFound, sid)
	}
	return project, nil
}

// Update updates an existing project.
func (r *ProjectRepo) Update(project *model.Project) error {
	return r.db.Set(project)
}

// Delete removes a project by SID.
func (r *ProjectRepo) Delete(sid string) error {
	return entityNotFound(r.db.Delete(model.GenerateProjectKey(sid)), errors.ErrProjectNotFound, sid)
}

// List retrieves all projects, archived ones included.
func (r *ProjectRepo) List() ([]*model.Project, error) {
	return GetAllByPrefix(r.db, model.PrefixProject+":", func() *model.Project {
		return &model.Project{}
	})
}

// Exists checks if a project exists by SID.
func (r *ProjectRepo) Exists(sid string) (bool, error) {
	return r.db.Exists(model.GenerateProjectKey(sid))
}

// ClientRepo provides operations for Client entities.
type ClientRepo struct {
	db *DB
}

// NewClientRepo creates a new client repository.
func NewClientRepo(db *DB) *ClientRepo {
	return &ClientRepo{db: db}
}

// Create stores a client under its SID.
func (r *ClientRepo) Create(client *model.Client) error {
	client.Key = model.GenerateClientKey(client.SID)
	return r.db.Set(client)
}

// Get retrieves a client by SID.
func (r *ClientRepo) Get(sid string) (*model.Client, error) {
	client := &model.Client{}
	if err := r.db.Get(model.GenerateClientKey(sid), client); err != nil {
		return nil, entityNotFound(err, errors.ErrClientNotFound, sid)
	}
	return client, nil
}

// Delete removes a client by SID. Its projects keep their client reference
// and render under "No client" until reassigned.
func (r *ClientRepo) Delete(sid string) error {
	return entityNotFound(r.db.Delete(model.GenerateClientKey(sid)), errors.ErrClientNotFound, sid)
}

// List retrieves all clients.
func (r *ClientRepo) List() ([]*model.Client, error) {
	return GetAllByPrefix(r.db, model.PrefixClient+":", func() *model.Client {
		return &model.Client{}
	})
}

// UserRepo provides operations for User entities.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new user repository.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create stores a user under its SID.
func (r *UserRepo) Create(user *model.User) error {
	user.Key = model.GenerateUserKey(user.SID)
	return r.db.Set(user)
}

// Get retrieves a user by SID.
func (r *UserRepo) Get(sid string) (*model.User, error) {
	user := &model.User{}
	if err := r.db.Get(model.GenerateUserKey(sid), user); err != nil {
		return nil, entityNotFound(err, errors.ErrUserNotFound, sid)
	}
	return user, nil
}

// Delete removes a user by SID.
func (r *UserRepo) Delete(sid string) error {
	return entityNotFound(r.db.Delete(model.GenerateUserKey(sid)), errors.ErrUserNotFound, sid)
}

// List retrieves all users.
func (r *UserRepo) List() ([]*model.User, error) {
	return GetAllByPrefix(r.db, model.PrefixUser+":", func() *model.User {
		return &model.User{}
	})
}

// MembershipRepo links users to projects. Keys sort by project, so the
// members of one project are a single prefix scan.
type MembershipRepo struct {
	db *DB
}

// NewMembershipRepo creates a new membership repository.
func NewMembershipRepo(db *DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

// Add records that userSID works on projectSID. Adding twice is a no-op.
func (r *MembershipRepo) Add(projectSID, userSID string) error {
	return r.db.Set(model.NewMembership(projectSID, userSID))
}

// Remove deletes the membership.
func (r *MembershipRepo) Remove(projectSID, userSID string) error {
	err := r.db.Delete(model.GenerateMembershipKey(projectSID, userSID))
	if IsErrKeyNotFound(err) {
		return errors.NewUserErrorWithField("member", userSID,
			"user is not a member of project "+projectSID, "")
	}
	return err
}

// ListByProject returns the user SIDs of projectSID's members.
func (r *MembershipRepo) ListByProject(projectSID string) ([]string, error) {
	prefix := model.GenerateMembershipKey(projectSID, "")
	keys, err := r.db.ListByPrefix(prefix)
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(keys))
	for _, k := range keys {
		users = append(users, strings.TrimPrefix(k, prefix))
	}
	return users, nil
}

// ListByUser returns the project SIDs userSID is a member of.
func (r *MembershipRepo) ListByUser(userSID string) ([]string, error) {
	ms, err := GetFilteredByPrefix(r.db, model.PrefixMembership+":", func() *model.Membership {
		return &model.Membership{}
	}, func(m *model.Membership) bool {
		return m.UserSID == userSID
	}, 0)
	if err != nil {
		return nil, err
	}
	projects := make([]string, 0, len(ms))
	for _, m := range ms {
		projects = append(projects, m.ProjectSID)
	}
	return projects, nil
}

// Directory exposes the stored projects, users, clients and memberships in
// the shape the row builder reads.
type Directory struct {
	Projects    *ProjectRepo
	Clients     *ClientRepo
	Users       *UserRepo
	Memberships *MembershipRepo
}

// NewDirectory creates a directory over db.
func NewDirectory(db *DB) *Directory {
	return &Directory{
		Projects:    NewProjectRepo(db),
		Clients:     NewClientRepo(db),
		Users:       NewUserRepo(db),
		Memberships: NewMembershipRepo(db),
	}
}

// ListProjects returns the projects that are not archived.
func (d *Directory) ListProjects(ctx context.Context) ([]model.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ps, err := d.Projects.List()
	if err != nil {
		return nil, err
	}
	out := make([]model.Entity, 0, len(ps))
	for _, p := range ps {
		if !p.Archived {
			out = append(out, p.Entity())
		}
	}
	return out, nil
}

func (d *Directory) ListUsers(ctx context.Context) ([]model.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	us, err := d.Users.List()
	if err != nil {
		return nil, err
	}
	out := make([]model.Entity, 0, len(us))
	for _, u := range us {
		out = append(out, u.Entity())
	}
	return out, nil
}

func (d *Directory) ListClients(ctx context.Context) ([]model.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cs, err := d.Clients.List()
	if err != nil {
		return nil, err
	}
	out := make([]model.Entity, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Entity())
	}
	return out, nil
}

func (d *Directory) ListMemberships(ctx context.Context, projectSID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.Memberships.ListByProject(projectSID)
}

func entityNotFound(err, sentinel error, sid string) error {
	if IsErrKeyNotFound(err) {
		return errors.NewValidationError(sentinel, "sid", sid)
	}
	return err
}
