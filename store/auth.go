package store

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/taskmill/taskmill/cell"
	"github.com/taskmill/taskmill/kv"
	"github.com/taskmill/taskmill/model"
)

// Gateway keys owned by the auth store.
const (
	keyCurrentUser = "currentUser"
	keyUsers       = "users"
	keyPasswords   = "passwords"
)

func seedAuthUsers() []model.User {
	return []model.User{
		{ID: 1, Name: "Admin User", Email: "admin@example.com", Role: model.RoleAdmin},
		{ID: 2, Name: "Normal User", Email: "user@example.com", Role: model.RoleUser},
	}
}

func seedPasswords() map[string]string {
	return map[string]string{
		"admin@example.com": "admin123",
		"user@example.com":  "user123",
	}
}

// AuthStore owns the session and the user collection. Users come from
// two origins, the fixed seed set and locally registered accounts,
// merged by email with local entries taking precedence.
type AuthStore struct {
	gw  kv.Gateway
	log zerolog.Logger

	currentUser *cell.Cell[*model.User]
	users       *cell.Cell[[]model.User]
	passwords   *cell.Cell[map[string]string]

	isAuthenticated *cell.Derived[bool]
	isAdmin         *cell.Derived[bool]
}

type AuthOption func(*AuthStore)

func WithAuthLogger(log zerolog.Logger) AuthOption {
	return func(s *AuthStore) { s.log = log }
}

func NewAuthStore(rt *cell.Runtime, gw kv.Gateway, opts ...AuthOption) *AuthStore {
	s := &AuthStore{gw: gw, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	users := seedAuthUsers()
	if saved, ok := kv.Get[[]model.User](gw, keyUsers); ok && len(saved) > 0 {
		users = mergeUsers(users, saved)
	}
	passwords := seedPasswords()
	if saved, ok := kv.Get[map[string]string](gw, keyPasswords); ok && len(saved) > 0 {
		for email, pw := range saved {
			passwords[email] = pw
		}
	}

	s.users = cell.NewCell(rt, users)
	s.passwords = cell.NewCell(rt, passwords)

	var current *model.User
	if saved, ok := kv.Get[*model.User](gw, keyCurrentUser); ok {
		current = saved
	}
	s.currentUser = cell.NewCell(rt, current)

	s.isAuthenticated = cell.NewDerived(rt, func() bool {
		return s.currentUser.Read() != nil
	})
	s.isAdmin = cell.NewDerived(rt, func() bool {
		u := s.currentUser.Read()
		return u != nil && u.Role == model.RoleAdmin
	})

	kv.PersistEffect(rt, gw, keyUsers, s.users.Read)
	kv.PersistEffect(rt, gw, keyPasswords, s.passwords.Read)
	kv.PersistEffect(rt, gw, keyCurrentUser, s.currentUser.Read)

	return s
}

// mergeUsers overlays saved entries onto the seed set keyed by email;
// the locally saved entry wins on collision.
func mergeUsers(seed, saved []model.User) []model.User {
	byEmail := map[string]int{}
	merged := make([]model.User, len(seed))
	copy(merged, seed)
	for i, u := range merged {
		byEmail[u.Email] = i
	}
	for _, u := range saved {
		if i, ok := byEmail[u.Email]; ok {
			merged[i] = u
			continue
		}
		byEmail[u.Email] = len(merged)
		merged = append(merged, u)
	}
	return merged
}

// Login checks the credentials and opens a session.
func (s *AuthStore) Login(email, password string) (model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	var found *model.User
	for _, u := range s.users.Peek() {
		if u.Email == email {
			u := u
			found = &u
			break
		}
	}
	stored, hasPassword := s.passwords.Peek()[email]
	if found == nil || !hasPassword || stored != password {
		return model.User{}, ErrInvalidCredentials
	}
	s.currentUser.Write(found)
	s.log.Info().Str("email", email).Msg("signed in")
	return *found, nil
}

// Register creates an account and signs it in. A duplicate email is a
// validation error; nothing is written.
func (s *AuthStore) Register(name, email, password string) (model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	for _, u := range s.users.Peek() {
		if u.Email == email {
			return model.User{}, fmt.Errorf("%q: %w", email, ErrDuplicateEmail)
		}
	}

	user := model.User{
		ID:    model.NextID(s.users.Peek(), func(u model.User) int { return u.ID }),
		Name:  name,
		Email: email,
		Role:  model.RoleUser,
	}
	s.users.Update(func(users []model.User) []model.User {
		return append(append([]model.User(nil), users...), user)
	})
	s.passwords.Update(func(pw map[string]string) map[string]string {
		next := make(map[string]string, len(pw)+1)
		for k, v := range pw {
			next[k] = v
		}
		next[email] = password
		return next
	})
	s.currentUser.Write(&user)
	s.log.Info().Str("email", email).Msg("registered")
	return user, nil
}

func (s *AuthStore) Logout() {
	s.currentUser.Write(nil)
	s.gw.Remove(keyCurrentUser)
}

// CurrentUser reads the session reactively; nil means signed out.
func (s *AuthStore) CurrentUser() *model.User {
	return s.currentUser.Read()
}

func (s *AuthStore) IsAuthenticated() bool {
	return s.isAuthenticated.Read()
}

// IsAdmin is true only while the signed-in user has the admin role.
func (s *AuthStore) IsAdmin() bool {
	return s.isAdmin.Read()
}

// Users reads the user collection reactively.
func (s *AuthStore) Users() []model.User {
	return s.users.Read()
}

// UserName resolves a user id for display, with a sentinel for
// dangling references left behind by deletes.
func (s *AuthStore) UserName(id *int) string {
	if id == nil {
		return "unassigned"
	}
	for _, u := range s.users.Read() {
		if u.ID == *id {
			return u.Name
		}
	}
	return "unknown"
}

// DeleteUser removes the user and its password entry. Todos assigned
// to the user keep their dangling reference; it resolves to
// "unassigned" at render time.
func (s *AuthStore) DeleteUser(id int) bool {
	var removed *model.User
	for _, u := range s.users.Peek() {
		if u.ID == id {
			u := u
			removed = &u
			break
		}
	}
	if removed == nil {
		return false
	}
	s.users.Update(func(users []model.User) []model.User {
		next := make([]model.User, 0, len(users))
		for _, u := range users {
			if u.ID != id {
				next = append(next, u)
			}
		}
		return next
	})
	s.passwords.Update(func(pw map[string]string) map[string]string {
		next := make(map[string]string, len(pw))
		for k, v := range pw {
			if k != removed.Email {
				next[k] = v
			}
		}
		return next
	})
	if cur := s.currentUser.Peek(); cur != nil && cur.ID == id {
		s.Logout()
	}
	return true
}

// Token returns the mock session token.
func (s *AuthStore) Token() string {
	u := s.currentUser.Read()
	if u == nil {
		return ""
	}
	return fmt.Sprintf("mock-token-%d", u.ID)
}
