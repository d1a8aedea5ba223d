package redbdriver

import (
	"context"

	"github.com/redbco/redb-driver-go/internal/cluster"
	"github.com/redbco/redb-driver-go/internal/driererr"
	"github.com/redbco/redb-driver-go/internal/wire"
)

// UserManager exposes user administration operations (spec §4.J "user
// manager: all, contains, get, create, delete, set_password,
// update_password").
type UserManager struct {
	d *Driver
}

// User is a named user as reported by the server.
type User struct {
	Username string
}

// All lists every user visible to the current user.
func (m *UserManager) All(ctx context.Context) ([]User, error) {
	payload, err := m.d.route(ctx, cluster.Strong(), wire.UsersAllRequest{})
	if err != nil {
		return nil, err
	}
	resp, ok := payload.(wire.UsersAllResponse)
	if !ok {
		return nil, driererr.New(driererr.KindUnexpectedResponse, "unexpected reply to UsersAllRequest")
	}

	out := make([]User, 0, len(resp.Users))
	for _, info := range resp.Users {
		out = append(out, User{Username: info.Username})
	}
	return out, nil
}

// Contains reports whether a user by this name exists.
func (m *UserManager) Contains(ctx context.Context, username string) (bool, error) {
	payload, err := m.d.route(ctx, cluster.Strong(), wire.UserContainsRequest{Username: username})
	if err != nil {
		return false, err
	}
	resp, ok := payload.(wire.UserContainsResponse)
	if !ok {
		return false, driererr.New(driererr.KindUnexpectedResponse, "unexpected reply to UserContainsRequest")
	}
	return resp.Exists, nil
}

// Get returns a handle to an existing user, failing if it does not
// exist.
func (m *UserManager) Get(ctx context.Context, username string) (User, error) {
	exists, err := m.Contains(ctx, username)
	if err != nil {
		return User{}, err
	}
	if !exists {
		return User{}, driererr.New(driererr.KindUnexpectedResponse, "user %q does not exist", username)
	}
	return User{Username: username}, nil
}

// Create creates a new user.
func (m *UserManager) Create(ctx context.Context, username, password string) error {
	_, err := m.d.route(ctx, cluster.Strong(), wire.UserCreateRequest{Username: username, Password: password})
	return err
}

// Delete deletes an existing user.
func (m *UserManager) Delete(ctx context.Context, username string) error {
	_, err := m.d.route(ctx, cluster.Strong(), wire.UserDeleteRequest{Username: username})
	return err
}

// SetPassword administratively sets another user's password.
func (m *UserManager) SetPassword(ctx context.Context, username, password string) error {
	_, err := m.d.route(ctx, cluster.Strong(), wire.UserSetPasswordRequest{Username: username, Password: password})
	return err
}

// UpdatePassword changes the caller's own password, proving knowledge of
// the old one.
func (m *UserManager) UpdatePassword(ctx context.Context, oldPassword, newPassword string) error {
	_, err := m.d.route(ctx, cluster.Strong(), wire.UserUpdatePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword})
	return err
}
